package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// CreateTrade inserts one trade leg (ENTRY or EXIT) within tx.
func (r *Repository) CreateTrade(ctx context.Context, tx pgx.Tx, t *Trade) error {
	query := `
		INSERT INTO sim_trades (account_id, position_id, symbol, side, price, quantity, commission, pnl, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, executed_at
	`
	return tx.QueryRow(ctx, query,
		t.AccountID, t.PositionID, t.Symbol, t.Side, t.Price, t.Quantity, t.Commission, t.PnL, t.Reason,
	).Scan(&t.ID, &t.ExecutedAt)
}

// GetTradesByPosition retrieves every trade leg for a position, oldest
// first, for PnL/history reconstruction.
func (r *Repository) GetTradesByPosition(ctx context.Context, positionID int64) ([]*Trade, error) {
	query := `
		SELECT id, account_id, position_id, symbol, side, price, quantity, commission, pnl, reason, executed_at
		FROM sim_trades WHERE position_id = $1 ORDER BY executed_at ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, positionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*Trade
	for rows.Next() {
		t := &Trade{}
		if err := rows.Scan(&t.ID, &t.AccountID, &t.PositionID, &t.Symbol, &t.Side, &t.Price, &t.Quantity, &t.Commission, &t.PnL, &t.Reason, &t.ExecutedAt); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// GetTradeHistory retrieves an account's closed-trade history with
// pagination, most recent first.
func (r *Repository) GetTradeHistory(ctx context.Context, accountID int64, limit, offset int) ([]*Trade, error) {
	query := `
		SELECT id, account_id, position_id, symbol, side, price, quantity, commission, pnl, reason, executed_at
		FROM sim_trades
		WHERE account_id = $1 AND side = 'EXIT'
		ORDER BY executed_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Pool.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*Trade
	for rows.Next() {
		t := &Trade{}
		if err := rows.Scan(&t.ID, &t.AccountID, &t.PositionID, &t.Symbol, &t.Side, &t.Price, &t.Quantity, &t.Commission, &t.PnL, &t.Reason, &t.ExecutedAt); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
