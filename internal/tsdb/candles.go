package tsdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"binance-trading-bot/internal/exchange"
)

// rollupSources maps each derived timeframe to the stored timeframe it is
// aggregated from and the bucket width used for the aggregation.
var rollupSources = map[string]struct {
	from   string
	bucket time.Duration
}{
	"15m": {from: "5m", bucket: 15 * time.Minute},
	"1h":  {from: "5m", bucket: time.Hour},
	"4h":  {from: "1h", bucket: 4 * time.Hour},
	"1d":  {from: "4h", bucket: 24 * time.Hour},
}

// Store is the candle repository. Reads below minCandles for the base
// timeframe fall through to the exchange client rather than returning a
// too-short series (spec.md §4.2's smart-path fallback).
type Store struct {
	db         *DB
	public     *exchange.PublicClient
	minCandles int
}

// NewStore builds a candle store. minCandles defaults to 50 when zero.
func NewStore(db *DB, public *exchange.PublicClient, minCandles int) *Store {
	if minCandles <= 0 {
		minCandles = 50
	}
	return &Store{db: db, public: public, minCandles: minCandles}
}

// Upsert writes candles, overwriting any existing row for the same
// (symbol, timeframe, time), so replaying an overlapping range of candles
// is idempotent.
func (s *Store) Upsert(ctx context.Context, candles []exchange.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	const upsertQuery = `
		INSERT INTO candles (symbol, timeframe, time, open, high, low, close, volume, quote_volume, trades)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (symbol, timeframe, time) DO UPDATE SET
		  open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low, close = EXCLUDED.close,
		  volume = EXCLUDED.volume, quote_volume = EXCLUDED.quote_volume, trades = EXCLUDED.trades
	`

	batch := &pgx.Batch{}
	for _, c := range candles {
		batch.Queue(upsertQuery, c.Symbol, c.Timeframe, c.Time, c.Open, c.High, c.Low, c.Close, c.Volume, c.QuoteVolume, c.Trades)
	}

	br := s.db.Pool.SendBatch(ctx, batch)
	defer br.Close()

	for range candles {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upserting candle: %w", err)
		}
	}
	return nil
}

// LatestTime returns the most recent stored candle time for symbol at
// timeframe, or the zero time if none is stored.
func (s *Store) LatestTime(ctx context.Context, symbol, timeframe string) (time.Time, error) {
	var t time.Time
	err := s.db.Pool.QueryRow(ctx,
		`SELECT time FROM candles WHERE symbol = $1 AND timeframe = $2 ORDER BY time DESC LIMIT 1`,
		symbol, timeframe,
	).Scan(&t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return t, nil
}

// GetCandles returns the most recent limit candles for symbol at
// timeframe, oldest first. If the stored series is shorter than
// minCandles, it fetches fresh candles directly from the exchange instead
// of returning a too-short series (spec.md §4.2's smart-path fallback) —
// the collector may simply not have backfilled this symbol yet.
func (s *Store) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]exchange.Candle, error) {
	rows, err := s.queryCandles(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}
	if len(rows) >= s.minCandles {
		return rows, nil
	}

	fetched, err := s.public.FetchOHLCV(ctx, symbol, timeframe, time.Time{}, limit)
	if err != nil {
		return rows, nil // best-effort: return whatever was stored rather than failing the caller
	}
	return fetched, nil
}

func (s *Store) queryCandles(ctx context.Context, symbol, timeframe string, limit int) ([]exchange.Candle, error) {
	query := `
		SELECT symbol, timeframe, time, open, high, low, close, volume, quote_volume, trades
		FROM candles
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY time DESC
		LIMIT $3
	`
	rows, err := s.db.Pool.Query(ctx, query, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("querying candles: %w", err)
	}
	defer rows.Close()

	var out []exchange.Candle
	for rows.Next() {
		var c exchange.Candle
		if err := rows.Scan(&c.Symbol, &c.Timeframe, &c.Time, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.QuoteVolume, &c.Trades); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Rollup aggregates stored base-timeframe candles into timeframe's bucket
// width and upserts the result, for every symbol with data in the source
// timeframe. Supported derived timeframes are 15m, 1h, 4h, 1d.
func (s *Store) Rollup(ctx context.Context, timeframe string) error {
	src, ok := rollupSources[timeframe]
	if !ok {
		return fmt.Errorf("no rollup source configured for timeframe %q", timeframe)
	}

	query := `
		SELECT symbol,
		       date_trunc('hour', time) + (EXTRACT(epoch FROM time)::bigint / $2 * $2 - EXTRACT(epoch FROM date_trunc('hour', time))::bigint) * interval '1 second' AS bucket,
		       (array_agg(open ORDER BY time ASC))[1] AS open,
		       MAX(high) AS high,
		       MIN(low) AS low,
		       (array_agg(close ORDER BY time DESC))[1] AS close,
		       SUM(volume) AS volume,
		       SUM(quote_volume) AS quote_volume,
		       SUM(trades) AS trades
		FROM candles
		WHERE timeframe = $1
		GROUP BY symbol, bucket
	`
	rows, err := s.db.Pool.Query(ctx, query, src.from, int64(src.bucket.Seconds()))
	if err != nil {
		return fmt.Errorf("aggregating rollup for %s: %w", timeframe, err)
	}
	defer rows.Close()

	var out []exchange.Candle
	for rows.Next() {
		var c exchange.Candle
		if err := rows.Scan(&c.Symbol, &c.Time, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.QuoteVolume, &c.Trades); err != nil {
			return err
		}
		c.Timeframe = timeframe
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	return s.Upsert(ctx, out)
}

// Prune deletes candles older than retention for every symbol/timeframe,
// default 15 days (spec.md §4.7's retention sweep).
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM candles WHERE time < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning candles: %w", err)
	}
	return tag.RowsAffected(), nil
}
