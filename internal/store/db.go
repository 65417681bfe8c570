// Package store is the relational repository for the paper-trading
// domain: accounts, positions, trades, screening snapshots, notification
// settings, and the auto-trading decision log. Grounded on the teacher's
// internal/database/db.go pool setup and internal/database/repository.go's
// flat query-method shape, with pgx.Tx-scoped sessions added for the
// multi-row paper-trading writes spec.md's PnL accounting requires to be
// atomic (open/close both touch the account and a position/trade row
// together).
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"binance-trading-bot/internal/apperr"
	"binance-trading-bot/internal/logging"
)

// DB wraps the relational connection pool.
type DB struct {
	Pool   *pgxpool.Pool
	logger *logging.Logger
}

// Connect opens the relational pool and verifies connectivity.
func Connect(ctx context.Context, dsn string, logger *logging.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing relational dsn: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating relational pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		return nil, fmt.Errorf("pinging relational database: %w", err)
	}

	logger.Info("connected to relational database")
	return &DB{Pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info("relational database connection closed")
	}
}

// Migrate creates every table the paper-trading domain uses.
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sim_accounts (
			id SERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			balance DOUBLE PRECISION NOT NULL,
			equity DOUBLE PRECISION NOT NULL,
			frozen_balance DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_positions INTEGER NOT NULL DEFAULT 5,
			position_size_pct DOUBLE PRECISION NOT NULL DEFAULT 2,
			stop_loss_pct DOUBLE PRECISION NOT NULL DEFAULT 3,
			take_profit_pcts DOUBLE PRECISION[] NOT NULL DEFAULT '{6,9,12}',
			entry_score_min DOUBLE PRECISION NOT NULL DEFAULT 60,
			entry_tech_min DOUBLE PRECISION NOT NULL DEFAULT 60,
			commission_rate DOUBLE PRECISION NOT NULL DEFAULT 0.001,
			auto_trading_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			auto_entry_policy VARCHAR(30) NOT NULL DEFAULT 'strict_conjunction',
			total_trades INTEGER NOT NULL DEFAULT 0,
			winning_trades INTEGER NOT NULL DEFAULT 0,
			losing_trades INTEGER NOT NULL DEFAULT 0,
			total_pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_commission DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS sim_positions (
			id SERIAL PRIMARY KEY,
			account_id INTEGER NOT NULL REFERENCES sim_accounts(id) ON DELETE CASCADE,
			symbol VARCHAR(20) NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			quantity DOUBLE PRECISION NOT NULL,
			remaining_quantity DOUBLE PRECISION NOT NULL,
			stop_loss DOUBLE PRECISION NOT NULL,
			take_profit_levels DOUBLE PRECISION[] NOT NULL,
			triggered_levels INTEGER NOT NULL DEFAULT 0,
			n_initial_levels INTEGER NOT NULL,
			is_closed BOOLEAN NOT NULL DEFAULT FALSE,
			opened_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			closed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sim_positions_account ON sim_positions(account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sim_positions_open ON sim_positions(account_id, is_closed)`,
		`CREATE TABLE IF NOT EXISTS sim_trades (
			id SERIAL PRIMARY KEY,
			account_id INTEGER NOT NULL REFERENCES sim_accounts(id) ON DELETE CASCADE,
			position_id INTEGER NOT NULL REFERENCES sim_positions(id) ON DELETE CASCADE,
			symbol VARCHAR(20) NOT NULL,
			side VARCHAR(5) NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			quantity DOUBLE PRECISION NOT NULL,
			commission DOUBLE PRECISION NOT NULL,
			pnl DOUBLE PRECISION,
			reason VARCHAR(30),
			executed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sim_trades_account ON sim_trades(account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sim_trades_position ON sim_trades(position_id)`,
		`CREATE TABLE IF NOT EXISTS screening_snapshots (
			id SERIAL PRIMARY KEY,
			timeframe VARCHAR(4) NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			beta_score DOUBLE PRECISION NOT NULL,
			volume_score DOUBLE PRECISION NOT NULL,
			technical_score DOUBLE PRECISION NOT NULL,
			total_score DOUBLE PRECISION NOT NULL,
			above_sma BOOLEAN NOT NULL DEFAULT FALSE,
			macd_golden_cross BOOLEAN NOT NULL DEFAULT FALSE,
			above_all_ema BOOLEAN NOT NULL DEFAULT FALSE,
			volume_surge BOOLEAN NOT NULL DEFAULT FALSE,
			price_anomaly BOOLEAN NOT NULL DEFAULT FALSE,
			price_btc_ratio DOUBLE PRECISION NOT NULL DEFAULT 0,
			price_eth_ratio DOUBLE PRECISION NOT NULL DEFAULT 0,
			btc_ratio_change_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
			eth_ratio_change_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
			price_change_5m DOUBLE PRECISION NOT NULL DEFAULT 0,
			price_change_15m DOUBLE PRECISION NOT NULL DEFAULT 0,
			price_change_1h DOUBLE PRECISION NOT NULL DEFAULT 0,
			price_change_4h DOUBLE PRECISION NOT NULL DEFAULT 0,
			volume_24h DOUBLE PRECISION NOT NULL DEFAULT 0,
			evaluated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_screening_snapshots_tf_time ON screening_snapshots(timeframe, evaluated_at DESC)`,
		`CREATE TABLE IF NOT EXISTS notification_settings (
			id INTEGER PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			min_interval_minutes INTEGER NOT NULL DEFAULT 15,
			daily_limit INTEGER NOT NULL DEFAULT 50,
			min_score_threshold DOUBLE PRECISION NOT NULL DEFAULT 60,
			notify_top_n INTEGER NOT NULL DEFAULT 5,
			quiet_hour_start INTEGER NOT NULL DEFAULT 23,
			quiet_hour_end INTEGER NOT NULL DEFAULT 7,
			timezone VARCHAR(60) NOT NULL DEFAULT 'Asia/Shanghai',
			sent_today INTEGER NOT NULL DEFAULT 0,
			sent_day DATE,
			last_sent_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS autotrade_logs (
			id SERIAL PRIMARY KEY,
			account_id INTEGER NOT NULL REFERENCES sim_accounts(id) ON DELETE CASCADE,
			symbol VARCHAR(20) NOT NULL,
			decision VARCHAR(20) NOT NULL,
			reason TEXT,
			total_score DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_autotrade_logs_account ON autotrade_logs(account_id, created_at DESC)`,
	}

	for _, stmt := range migrations {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("running store migration: %w", err)
		}
	}
	return nil
}

// WithTx runs fn inside a transaction scoped to one top-level operation:
// it acquires a connection, begins the transaction, runs fn, and commits
// on success or rolls back on error or panic, always releasing the
// connection on the way out (spec.md's "scoped session" semantics).
func (db *DB) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return apperr.Wrap(apperr.KindDBConflict, err, "beginning transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	err = fn(tx)
	return err
}
