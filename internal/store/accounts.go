package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"binance-trading-bot/internal/apperr"
)

// Repository is the data-access layer over the relational store,
// following the teacher's flat Repository-with-one-method-per-query shape
// (internal/database/repository.go).
type Repository struct {
	db *DB
}

// NewRepository builds a Repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck verifies the connection pool is reachable.
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// WithTx runs fn inside a transaction scoped to one top-level operation.
func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return r.db.WithTx(ctx, fn)
}

const accountColumns = `id, name, balance, equity, frozen_balance, max_positions, position_size_pct, stop_loss_pct,
	take_profit_pcts, entry_score_min, entry_tech_min, commission_rate, auto_trading_enabled, auto_entry_policy,
	total_trades, winning_trades, losing_trades, total_pnl, total_commission, created_at, updated_at`

func scanAccount(row interface {
	Scan(dest ...interface{}) error
}, a *Account) error {
	return row.Scan(
		&a.ID, &a.Name, &a.Balance, &a.Equity, &a.FrozenBalance, &a.MaxPositions, &a.PositionSizePct, &a.StopLossPct, &a.TakeProfitPcts,
		&a.EntryScoreMin, &a.EntryTechMin, &a.CommissionRate, &a.AutoTradingEnabled, &a.AutoEntryPolicy,
		&a.TotalTrades, &a.WinningTrades, &a.LosingTrades, &a.TotalPnL, &a.TotalCommission, &a.CreatedAt, &a.UpdatedAt,
	)
}

// CreateAccount inserts a new paper-trading account.
func (r *Repository) CreateAccount(ctx context.Context, a *Account) error {
	query := `
		INSERT INTO sim_accounts (name, balance, equity, max_positions, position_size_pct, stop_loss_pct,
			take_profit_pcts, entry_score_min, entry_tech_min, commission_rate, auto_trading_enabled, auto_entry_policy)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`
	return r.db.Pool.QueryRow(ctx, query,
		a.Name, a.Balance, a.Equity, a.MaxPositions, a.PositionSizePct, a.StopLossPct,
		a.TakeProfitPcts, a.EntryScoreMin, a.EntryTechMin, a.CommissionRate, a.AutoTradingEnabled, a.AutoEntryPolicy,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// GetAccount retrieves one account by ID.
func (r *Repository) GetAccount(ctx context.Context, id int64) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM sim_accounts WHERE id = $1`
	a := &Account{}
	if err := scanAccount(r.db.Pool.QueryRow(ctx, query, id), a); err != nil {
		return nil, apperr.Wrap(apperr.KindDBConflict, err, "fetching account %d", id)
	}
	return a, nil
}

// ListAccounts retrieves every paper-trading account.
func (r *Repository) ListAccounts(ctx context.Context) ([]*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM sim_accounts ORDER BY id`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		a := &Account{}
		if err := scanAccount(rows, a); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// ListAutoTradingAccounts retrieves every account with auto-trading
// enabled, for the monitor loop's per-cycle auto-entry/exit sweep.
func (r *Repository) ListAutoTradingAccounts(ctx context.Context) ([]*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM sim_accounts WHERE auto_trading_enabled = TRUE ORDER BY id`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		a := &Account{}
		if err := scanAccount(rows, a); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// UpdateBalanceAndEquity persists an account's post-trade balance/equity/
// frozen-balance, within tx so it commits atomically with the
// position/trade rows that drove the change.
func (r *Repository) UpdateBalanceAndEquity(ctx context.Context, tx pgx.Tx, accountID int64, balance, equity, frozenBalance float64) error {
	_, err := tx.Exec(ctx, `UPDATE sim_accounts SET balance = $2, equity = $3, frozen_balance = $4, updated_at = now() WHERE id = $1`,
		accountID, balance, equity, frozenBalance)
	return err
}

// RecordTradeOutcome increments an account's running trade counters by one
// closed trade's pnl and commission, within tx (spec.md §3/§4.6's
// winning/losing counters, incremented by sign of pnl).
func (r *Repository) RecordTradeOutcome(ctx context.Context, tx pgx.Tx, accountID int64, pnl, commission float64) error {
	winDelta, loseDelta := 0, 0
	switch {
	case pnl > 0:
		winDelta = 1
	case pnl < 0:
		loseDelta = 1
	}
	_, err := tx.Exec(ctx, `
		UPDATE sim_accounts SET
			total_trades = total_trades + 1,
			winning_trades = winning_trades + $2,
			losing_trades = losing_trades + $3,
			total_pnl = total_pnl + $4,
			total_commission = total_commission + $5,
			updated_at = now()
		WHERE id = $1
	`, accountID, winDelta, loseDelta, pnl, commission)
	return err
}

// SetAutoTrading flips an account's auto-trading flag.
func (r *Repository) SetAutoTrading(ctx context.Context, accountID int64, enabled bool) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE sim_accounts SET auto_trading_enabled = $2, updated_at = now() WHERE id = $1`, accountID, enabled)
	return err
}

// DeleteAccount removes an account and, via ON DELETE CASCADE, every
// position and trade it owns.
func (r *Repository) DeleteAccount(ctx context.Context, accountID int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM sim_accounts WHERE id = $1`, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindValidation, "account %d not found", accountID)
	}
	return nil
}
