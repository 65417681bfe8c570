package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// CreatePosition inserts a new open position within tx.
func (r *Repository) CreatePosition(ctx context.Context, tx pgx.Tx, p *Position) error {
	query := `
		INSERT INTO sim_positions (account_id, symbol, entry_price, quantity, remaining_quantity, stop_loss,
			take_profit_levels, triggered_levels, n_initial_levels, is_closed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE)
		RETURNING id, opened_at
	`
	return tx.QueryRow(ctx, query,
		p.AccountID, p.Symbol, p.EntryPrice, p.Quantity, p.RemainingQuantity, p.StopLoss,
		p.TakeProfitLevels, p.TriggeredLevels, p.NInitialLevels,
	).Scan(&p.ID, &p.OpenedAt)
}

// UpdatePosition persists a position's exit progress (remaining quantity,
// triggered level count, and closed state) within tx.
func (r *Repository) UpdatePosition(ctx context.Context, tx pgx.Tx, p *Position) error {
	query := `
		UPDATE sim_positions
		SET remaining_quantity = $2, triggered_levels = $3, is_closed = $4, closed_at = $5
		WHERE id = $1
	`
	_, err := tx.Exec(ctx, query, p.ID, p.RemainingQuantity, p.TriggeredLevels, p.IsClosed, p.ClosedAt)
	return err
}

// GetPosition retrieves one position by ID.
func (r *Repository) GetPosition(ctx context.Context, id int64) (*Position, error) {
	query := `
		SELECT id, account_id, symbol, entry_price, quantity, remaining_quantity, stop_loss,
			take_profit_levels, triggered_levels, n_initial_levels, is_closed, opened_at, closed_at
		FROM sim_positions WHERE id = $1
	`
	p := &Position{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.AccountID, &p.Symbol, &p.EntryPrice, &p.Quantity, &p.RemainingQuantity, &p.StopLoss,
		&p.TakeProfitLevels, &p.TriggeredLevels, &p.NInitialLevels, &p.IsClosed, &p.OpenedAt, &p.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetOpenPositions retrieves every open position for an account.
func (r *Repository) GetOpenPositions(ctx context.Context, accountID int64) ([]*Position, error) {
	query := `
		SELECT id, account_id, symbol, entry_price, quantity, remaining_quantity, stop_loss,
			take_profit_levels, triggered_levels, n_initial_levels, is_closed, opened_at, closed_at
		FROM sim_positions
		WHERE account_id = $1 AND is_closed = FALSE
		ORDER BY opened_at ASC
	`
	return r.queryPositions(ctx, query, accountID)
}

// GetPositionsBySymbol retrieves every open position for an account in one
// symbol, used to enforce max-positions-per-symbol and FIFO ordering.
func (r *Repository) GetPositionsBySymbol(ctx context.Context, accountID int64, symbol string) ([]*Position, error) {
	query := `
		SELECT id, account_id, symbol, entry_price, quantity, remaining_quantity, stop_loss,
			take_profit_levels, triggered_levels, n_initial_levels, is_closed, opened_at, closed_at
		FROM sim_positions
		WHERE account_id = $1 AND symbol = $2 AND is_closed = FALSE
		ORDER BY opened_at ASC
	`
	return r.queryPositions(ctx, query, accountID, symbol)
}

func (r *Repository) queryPositions(ctx context.Context, query string, args ...interface{}) ([]*Position, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*Position
	for rows.Next() {
		p := &Position{}
		if err := rows.Scan(
			&p.ID, &p.AccountID, &p.Symbol, &p.EntryPrice, &p.Quantity, &p.RemainingQuantity, &p.StopLoss,
			&p.TakeProfitLevels, &p.TriggeredLevels, &p.NInitialLevels, &p.IsClosed, &p.OpenedAt, &p.ClosedAt,
		); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}
