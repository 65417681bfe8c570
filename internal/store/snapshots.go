package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

const snapshotColumns = `timeframe, symbol, price, beta_score, volume_score, technical_score, total_score,
	above_sma, macd_golden_cross, above_all_ema, volume_surge, price_anomaly,
	price_btc_ratio, price_eth_ratio, btc_ratio_change_pct, eth_ratio_change_pct,
	price_change_5m, price_change_15m, price_change_1h, price_change_4h, volume_24h, evaluated_at`

// ReplaceSnapshots deletes the prior screening snapshot for timeframe and
// inserts the new one within a single transaction, so readers never see a
// partially-replaced snapshot (spec.md §4.5's dedup-then-insert write).
func (r *Repository) ReplaceSnapshots(ctx context.Context, timeframe string, snapshots []*ScreeningSnapshot) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM screening_snapshots WHERE timeframe = $1`, timeframe); err != nil {
			return err
		}

		for _, s := range snapshots {
			_, err := tx.Exec(ctx, `
				INSERT INTO screening_snapshots (`+snapshotColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
			`,
				s.Timeframe, s.Symbol, s.Price, s.BetaScore, s.VolumeScore, s.TechnicalScore, s.TotalScore,
				s.AboveSMA, s.MACDGoldenCross, s.AboveAllEMA, s.VolumeSurge, s.PriceAnomaly,
				s.PriceBTCRatio, s.PriceETHRatio, s.BTCRatioChangePct, s.ETHRatioChangePct,
				s.PriceChange5m, s.PriceChange15m, s.PriceChange1h, s.PriceChange4h, s.Volume24h, s.EvaluatedAt,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// GetLatestSnapshots retrieves the current screening snapshot for
// timeframe, sorted by total score descending.
func (r *Repository) GetLatestSnapshots(ctx context.Context, timeframe string, limit int) ([]*ScreeningSnapshot, error) {
	query := `
		SELECT id, ` + snapshotColumns + `
		FROM screening_snapshots
		WHERE timeframe = $1
		ORDER BY total_score DESC
		LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, timeframe, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ScreeningSnapshot
	for rows.Next() {
		s := &ScreeningSnapshot{}
		if err := rows.Scan(
			&s.ID, &s.Timeframe, &s.Symbol, &s.Price, &s.BetaScore, &s.VolumeScore, &s.TechnicalScore, &s.TotalScore,
			&s.AboveSMA, &s.MACDGoldenCross, &s.AboveAllEMA, &s.VolumeSurge, &s.PriceAnomaly,
			&s.PriceBTCRatio, &s.PriceETHRatio, &s.BTCRatioChangePct, &s.ETHRatioChangePct,
			&s.PriceChange5m, &s.PriceChange15m, &s.PriceChange1h, &s.PriceChange4h, &s.Volume24h, &s.EvaluatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
