// Package tsdb is the candle time-series store: upsert-on-conflict writes
// from the collector, rollup aggregation into larger timeframes, and
// retention pruning. Grounded on the teacher's internal/database/db.go pool
// setup and internal/database/repository.go query shape — this module has
// no dedicated time-series database client in its dependency pack, so the
// store is plain SQL over pgxpool rather than a TimescaleDB-specific
// driver (see DESIGN.md).
package tsdb

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"binance-trading-bot/internal/logging"
)

// DB wraps the candle-store connection pool.
type DB struct {
	Pool   *pgxpool.Pool
	logger *logging.Logger
}

// Connect opens the candle-store pool and verifies connectivity.
func Connect(ctx context.Context, dsn string, logger *logging.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing tsdb dsn: %w", err)
	}

	poolConfig.MaxConns = 20
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating tsdb pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		return nil, fmt.Errorf("pinging tsdb: %w", err)
	}

	logger.Info("connected to candle store")
	return &DB{Pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info("candle store connection closed")
	}
}

// Migrate creates the candle table and its supporting indexes.
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS candles (
			symbol VARCHAR(20) NOT NULL,
			timeframe VARCHAR(4) NOT NULL,
			time TIMESTAMPTZ NOT NULL,
			open DOUBLE PRECISION NOT NULL,
			high DOUBLE PRECISION NOT NULL,
			low DOUBLE PRECISION NOT NULL,
			close DOUBLE PRECISION NOT NULL,
			volume DOUBLE PRECISION NOT NULL,
			quote_volume DOUBLE PRECISION NOT NULL,
			trades INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (symbol, timeframe, time)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_candles_symbol_tf_time ON candles(symbol, timeframe, time DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_candles_time ON candles(time)`,
	}

	for _, stmt := range migrations {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("running candle store migration: %w", err)
		}
	}
	return nil
}
