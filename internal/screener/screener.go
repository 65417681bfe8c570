// Package screener runs the per-timeframe scoring pass over the altcoin
// universe: a worker-pool fan-out bounded by a pass timeout, computing the
// beta/volume/technical/total scores spec.md §4.5 defines and returning
// the ranked survivors; callers (internal/monitor, internal/api) persist
// them as a screening snapshot. Grounded on the teacher's
// internal/scanner/scanner.go worker-pool shape and
// internal/screener/screener.go's scan-and-persist cycle.
package screener

import (
	"context"
	"sort"
	"sync"
	"time"

	"binance-trading-bot/internal/apperr"
	"binance-trading-bot/internal/exchange"
	"binance-trading-bot/internal/indicators"
	"binance-trading-bot/internal/logging"
	"binance-trading-bot/internal/store"
	"binance-trading-bot/internal/tsdb"
)

// multiTimeframes are the horizons original_source's
// _calculate_multi_timeframe_changes reports alongside every screening row.
var multiTimeframes = []string{"5m", "15m", "1h", "4h"}

// Config controls the pass's worker count, timeout, and reject thresholds.
type Config struct {
	WorkerCount      int
	PassTimeout      time.Duration
	CandlesPerSymbol int
	StaleAfter       time.Duration
	BetaRejectBelow  float64
	TotalRejectBelow float64
}

// DefaultConfig returns spec.md §4.5's defaults.
func DefaultConfig() Config {
	return Config{
		WorkerCount:      10,
		PassTimeout:      120 * time.Second,
		CandlesPerSymbol: 500,
		StaleAfter:       time.Hour,
		BetaRejectBelow:  30,
		TotalRejectBelow: 40,
	}
}

// Candidate is one symbol's scored screening result.
type Candidate struct {
	Symbol         string
	Timeframe      string
	Price          float64
	BetaScore      float64
	VolumeScore    float64
	TechnicalScore float64
	TotalScore     float64
	Indicators     indicators.Snapshot
	EvaluatedAt    time.Time

	PriceBTCRatio     float64
	PriceETHRatio     float64
	BTCRatioChangePct float64
	ETHRatioChangePct float64

	PriceChange5m  float64
	PriceChange15m float64
	PriceChange1h  float64
	PriceChange4h  float64
	Volume24h      float64
}

// ToSnapshot converts a scored Candidate into the persisted row shape,
// carrying every score, boolean sub-signal, and ratio/multi-timeframe
// field spec.md §3's screening snapshot mandates.
func (c Candidate) ToSnapshot(timeframe string) *store.ScreeningSnapshot {
	return &store.ScreeningSnapshot{
		Timeframe: timeframe, Symbol: c.Symbol, Price: c.Price,
		BetaScore: c.BetaScore, VolumeScore: c.VolumeScore, TechnicalScore: c.TechnicalScore, TotalScore: c.TotalScore,
		AboveSMA: c.Indicators.AboveSMA20, MACDGoldenCross: c.Indicators.MACDGoldenCross,
		AboveAllEMA: c.Indicators.AboveAllEMA, VolumeSurge: c.Indicators.VolumeSurge, PriceAnomaly: c.Indicators.PriceAnomaly,
		PriceBTCRatio: c.PriceBTCRatio, PriceETHRatio: c.PriceETHRatio,
		BTCRatioChangePct: c.BTCRatioChangePct, ETHRatioChangePct: c.ETHRatioChangePct,
		PriceChange5m: c.PriceChange5m, PriceChange15m: c.PriceChange15m,
		PriceChange1h: c.PriceChange1h, PriceChange4h: c.PriceChange4h, Volume24h: c.Volume24h,
		EvaluatedAt: c.EvaluatedAt,
	}
}

// Screener scores the altcoin universe on demand; it holds no background
// goroutine of its own — internal/monitor drives its cadence.
type Screener struct {
	public *exchange.PublicClient
	store  *tsdb.Store
	cfg    Config
	logger *logging.Logger
}

// New builds a Screener.
func New(public *exchange.PublicClient, store *tsdb.Store, cfg Config, logger *logging.Logger) *Screener {
	return &Screener{public: public, store: store, cfg: cfg, logger: logger}
}

// Run scores every altcoin in the universe at timeframe and returns the
// survivors sorted by total score descending. A pass that exceeds
// cfg.PassTimeout returns whatever symbols finished scoring rather than
// failing outright.
func (s *Screener) Run(ctx context.Context, timeframe string) ([]Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PassTimeout)
	defer cancel()

	start := time.Now()

	symbols, err := s.public.FetchAltcoins(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNoMarketData, err, "fetching altcoin universe")
	}

	tickers, err := s.public.FetchTickers(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNoMarketData, err, "fetching ticker snapshot")
	}

	symbolChan := make(chan string, len(symbols))
	resultChan := make(chan Candidate, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.WorkerCount; i++ {
		wg.Add(1)
		go s.worker(ctx, symbolChan, resultChan, tickers, timeframe, &wg)
	}

	go func() {
		for _, symbol := range symbols {
			select {
			case symbolChan <- symbol:
			case <-ctx.Done():
			}
		}
		close(symbolChan)
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var candidates []Candidate
	for c := range resultChan {
		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].TotalScore > candidates[j].TotalScore
	})

	s.logger.WithFields(map[string]interface{}{
		"timeframe":       timeframe,
		"universe_size":   len(symbols),
		"candidate_count": len(candidates),
		"duration_ms":     time.Since(start).Milliseconds(),
	}).Info("screening pass complete")

	return candidates, nil
}

func (s *Screener) worker(ctx context.Context, symbols <-chan string, out chan<- Candidate, tickers map[string]exchange.Ticker24h, timeframe string, wg *sync.WaitGroup) {
	defer wg.Done()
	for symbol := range symbols {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c, ok := s.evaluate(ctx, symbol, timeframe, tickers)
		if ok {
			out <- c
		}
	}
}

func (s *Screener) evaluate(ctx context.Context, symbol, timeframe string, tickers map[string]exchange.Ticker24h) (Candidate, bool) {
	ticker, ok := tickers[symbol]
	if !ok {
		return Candidate{}, false
	}

	candles, err := s.store.GetCandles(ctx, symbol, timeframe, s.cfg.CandlesPerSymbol)
	if err != nil || len(candles) < 2 {
		return Candidate{}, false
	}

	latest := candles[len(candles)-1]
	if time.Since(latest.Time) > s.cfg.StaleAfter {
		return Candidate{}, false // STALE_DATA: excluded rather than erroring the whole pass
	}

	snap := indicators.Compute(candles)

	btcTicker := tickers["BTC/USDT"]
	ethTicker := tickers["ETH/USDT"]
	deltaBTC := ticker.PriceChgPct - btcTicker.PriceChgPct
	deltaETH := ticker.PriceChgPct - ethTicker.PriceChgPct
	beta := betaScoreFromDeltas(deltaBTC, deltaETH)
	if beta < s.cfg.BetaRejectBelow {
		return Candidate{}, false
	}

	volume := volumeScore(ticker.QuoteVolume, snap.VolumeSurge)
	total := 0.3*beta + 0.2*volume + 0.5*snap.TechnicalScore
	if total < s.cfg.TotalRejectBelow {
		return Candidate{}, false
	}

	var btcRatio, ethRatio float64
	if btcTicker.LastPrice > 0 {
		btcRatio = ticker.LastPrice / btcTicker.LastPrice
	}
	if ethTicker.LastPrice > 0 {
		ethRatio = ticker.LastPrice / ethTicker.LastPrice
	}

	multiChanges := s.multiTimeframeChanges(ctx, symbol)

	return Candidate{
		Symbol:         symbol,
		Timeframe:      timeframe,
		Price:          ticker.LastPrice,
		BetaScore:      beta,
		VolumeScore:    volume,
		TechnicalScore: snap.TechnicalScore,
		TotalScore:     total,
		Indicators:     snap,
		EvaluatedAt:    time.Now(),

		PriceBTCRatio:     btcRatio,
		PriceETHRatio:     ethRatio,
		BTCRatioChangePct: deltaBTC,
		ETHRatioChangePct: deltaETH,

		PriceChange5m:  multiChanges["5m"],
		PriceChange15m: multiChanges["15m"],
		PriceChange1h:  multiChanges["1h"],
		PriceChange4h:  multiChanges["4h"],
		Volume24h:      ticker.QuoteVolume,
	}, true
}

// multiTimeframeChanges computes, for each of 5m/15m/1h/4h, the percentage
// change between the last two candles at that timeframe — grounded on
// original_source's _calculate_multi_timeframe_changes, which fetches one
// candle back at each horizon rather than deriving it from the pass's own
// timeframe series.
func (s *Screener) multiTimeframeChanges(ctx context.Context, symbol string) map[string]float64 {
	out := make(map[string]float64, len(multiTimeframes))
	for _, tf := range multiTimeframes {
		candles, err := s.store.GetCandles(ctx, symbol, tf, 2)
		if err != nil || len(candles) < 2 {
			out[tf] = 0
			continue
		}
		prev, curr := candles[len(candles)-2].Close, candles[len(candles)-1].Close
		if prev == 0 {
			out[tf] = 0
			continue
		}
		out[tf] = (curr - prev) / prev * 100
	}
	return out
}

// betaScoreFromDeltas is clamp(((ΔratioBTC + ΔratioETH) / 2) * 10, 0, 100),
// where Δratio is the symbol's own 24h % change minus the reference coin's
// 24h % change — how much the symbol outperformed BTC/ETH over the same
// window (spec.md §4.5).
func betaScoreFromDeltas(deltaBTC, deltaETH float64) float64 {
	score := ((deltaBTC + deltaETH) / 2) * 10
	return clamp(score, 0, 100)
}

// volumeScore applies the step function on 24h quote volume with a surge
// bonus, per spec.md §4.5.
func volumeScore(quoteVolume float64, surge bool) float64 {
	var score float64
	switch {
	case quoteVolume >= 10_000_000:
		score = 100
	case quoteVolume >= 5_000_000:
		score = 80
	case quoteVolume >= 2_000_000:
		score = 60
	case quoteVolume >= 1_000_000:
		score = 40
	default:
		score = 20
	}
	if surge {
		score += 20
	}
	return clamp(score, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
