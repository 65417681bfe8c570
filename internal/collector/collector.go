// Package collector runs the single background worker that keeps the
// candle store warm: a perpetual cycle over the symbol universe in small
// batches, with a cooperative stop flag and a bounded join window.
// Grounded on the teacher's internal/scanner/scanner.go run-loop shape,
// generalized from its strategy-evaluation cadence to straight OHLCV
// backfill.
package collector

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"binance-trading-bot/internal/apperr"
	"binance-trading-bot/internal/exchange"
	"binance-trading-bot/internal/logging"
	"binance-trading-bot/internal/tsdb"
)

// Config controls batch sizing and the sleeps between symbols/batches/
// cycles, matching spec.md §4.4's cadence.
type Config struct {
	BatchSize        int
	InterSymbolSleep time.Duration
	InterBatchSleep  time.Duration
	InterCycleSleep  time.Duration
	RateLimitSleep   time.Duration
	CandlesPerFetch  int
	StopJoinTimeout  time.Duration
}

// DefaultConfig returns spec.md §4.4's defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:        20,
		InterSymbolSleep: 500 * time.Millisecond,
		InterBatchSleep:  5 * time.Second,
		InterCycleSleep:  60 * time.Second,
		RateLimitSleep:   60 * time.Second,
		CandlesPerFetch:  500,
		StopJoinTimeout:  5 * time.Second,
	}
}

// Collector is the single background candle-fetch worker.
type Collector struct {
	public *exchange.PublicClient
	store  *tsdb.Store
	cfg    Config
	logger *logging.Logger

	stopping int32
	done     chan struct{}
	wg       sync.WaitGroup
}

// New builds a Collector.
func New(public *exchange.PublicClient, store *tsdb.Store, cfg Config, logger *logging.Logger) *Collector {
	return &Collector{public: public, store: store, cfg: cfg, logger: logger, done: make(chan struct{})}
}

// Start launches the background worker. It is safe to call once.
func (c *Collector) Start(ctx context.Context, timeframe string) {
	c.wg.Add(1)
	go c.run(ctx, timeframe)
}

// Stop raises the cooperative stop flag and waits up to StopJoinTimeout for
// the worker to notice it at the next batch boundary.
func (c *Collector) Stop() {
	atomic.StoreInt32(&c.stopping, 1)

	joined := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(joined)
	}()

	select {
	case <-joined:
	case <-time.After(c.cfg.StopJoinTimeout):
		c.logger.Warn("collector did not stop within join timeout")
	}
}

func (c *Collector) stopRequested() bool {
	return atomic.LoadInt32(&c.stopping) == 1
}

func (c *Collector) run(ctx context.Context, timeframe string) {
	defer c.wg.Done()

	for {
		if c.stopRequested() || ctx.Err() != nil {
			return
		}
		c.cycle(ctx, timeframe)

		select {
		case <-time.After(c.cfg.InterCycleSleep):
		case <-ctx.Done():
			return
		}
	}
}

func (c *Collector) cycle(ctx context.Context, timeframe string) {
	symbols, err := c.public.FetchSymbols(ctx)
	if err != nil {
		c.logger.WithFields(map[string]interface{}{"error": err.Error()}).Warn("collector cycle: failed to fetch symbols")
		return
	}
	symbols = prependReferenceCoins(symbols)

	for start := 0; start < len(symbols); start += c.cfg.BatchSize {
		if c.stopRequested() || ctx.Err() != nil {
			return
		}

		end := start + c.cfg.BatchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		c.fetchBatch(ctx, symbols[start:end], timeframe)

		select {
		case <-time.After(c.cfg.InterBatchSleep):
		case <-ctx.Done():
			return
		}
	}
}

func (c *Collector) fetchBatch(ctx context.Context, symbols []string, timeframe string) {
	for _, symbol := range symbols {
		since, err := c.store.LatestTime(ctx, symbol, timeframe)
		if err != nil {
			c.logger.WithFields(map[string]interface{}{"symbol": symbol, "error": err.Error()}).Warn("collector: failed to read latest candle time")
			continue
		}
		if since.IsZero() {
			since = time.Now().Add(-24 * time.Hour)
		} else {
			since = since.Add(time.Second)
		}

		candles, err := c.public.FetchOHLCV(ctx, symbol, timeframe, since, c.cfg.CandlesPerFetch)
		if err != nil {
			if isRateLimited(err) {
				time.Sleep(c.cfg.RateLimitSleep)
				continue
			}
			c.logger.WithFields(map[string]interface{}{"symbol": symbol, "error": err.Error()}).Warn("collector: failed to fetch candles")
			continue
		}

		if err := c.store.Upsert(ctx, candles); err != nil {
			c.logger.WithFields(map[string]interface{}{"symbol": symbol, "error": err.Error()}).Warn("collector: failed to upsert candles")
		}

		time.Sleep(c.cfg.InterSymbolSleep)
	}
}

func prependReferenceCoins(symbols []string) []string {
	out := make([]string, 0, len(symbols)+2)
	out = append(out, "BTC/USDT", "ETH/USDT")
	for _, s := range symbols {
		if s == "BTC/USDT" || s == "ETH/USDT" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func isRateLimited(err error) bool {
	return apperr.Is(err, apperr.KindTransientFetch)
}
