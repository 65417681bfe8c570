// Package monitor runs the single-threaded ticker-driven cadence that
// stitches every other component together: scoring each configured
// timeframe, gating and logging notifications for the top candidates, and
// sweeping each account's open positions for exits/auto-entries. Grounded
// on the teacher's internal/scanner background loop (a single goroutine
// driving ticker.C, checked for a stop signal each iteration) generalized
// to the multi-step cadence spec.md §4.7 describes.
package monitor

import (
	"context"
	"sort"
	"strconv"
	"time"

	"binance-trading-bot/internal/apperr"
	"binance-trading-bot/internal/events"
	"binance-trading-bot/internal/logging"
	"binance-trading-bot/internal/notification"
	"binance-trading-bot/internal/notifygate"
	"binance-trading-bot/internal/paper"
	"binance-trading-bot/internal/screener"
	"binance-trading-bot/internal/store"
	"binance-trading-bot/internal/tsdb"
)

// Config tunes the monitor's cadence (spec.md §4.7).
type Config struct {
	Interval             time.Duration
	Timeframes           []string
	RetentionSweepEvery  int // sweep every N cycles
	CandleRetention      time.Duration
	SnapshotRetention    time.Duration
	PreferredWindowBonus float64
	PreferredWindowStart int // hour, local time
	PreferredWindowEnd   int
}

// DefaultConfig returns spec.md §4.7's defaults.
func DefaultConfig() Config {
	return Config{
		Interval:             5 * time.Minute,
		Timeframes:           []string{"5m", "15m", "1h"},
		RetentionSweepEvery:  288, // once per day at a 5-minute cadence
		CandleRetention:      15 * 24 * time.Hour,
		SnapshotRetention:    7 * 24 * time.Hour,
		PreferredWindowBonus: 5,
		PreferredWindowStart: 8,
		PreferredWindowEnd:   22,
	}
}

// Monitor is the top-level orchestration loop.
type Monitor struct {
	cfg      Config
	screener *screener.Screener
	candles  *tsdb.Store
	repo     *store.Repository
	gate     *notifygate.Gate
	engine   *paper.Engine
	notifier *notification.Manager
	events   *events.Bus
	logger   *logging.Logger

	cycle int
}

// New builds a Monitor. notifier and bus may be nil; a nil notifier skips
// transport delivery and a nil bus skips event publication, letting
// callers (and tests) wire only what they need.
func New(cfg Config, scr *screener.Screener, candles *tsdb.Store, repo *store.Repository, gate *notifygate.Gate, engine *paper.Engine, notifier *notification.Manager, bus *events.Bus, logger *logging.Logger) *Monitor {
	return &Monitor{cfg: cfg, screener: scr, candles: candles, repo: repo, gate: gate, engine: engine, notifier: notifier, events: bus, logger: logger}
}

// Run drives the cadence until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	m.cycle++
	now := time.Now()

	settings, err := m.repo.GetNotificationSettings(ctx)
	if err != nil {
		m.logger.WithFields(map[string]interface{}{"error": err.Error()}).Error("fetching notification settings")
		return
	}

	allCandidates := make([]screener.Candidate, 0)
	for _, tf := range m.cfg.Timeframes {
		passStart := time.Now()
		candidates, err := m.screener.Run(ctx, tf)
		if err != nil {
			m.logger.WithFields(map[string]interface{}{"timeframe": tf, "error": err.Error()}).Error("screening pass failed")
			if m.events != nil {
				m.events.PublishError("screener", "screening pass failed", err)
			}
			continue
		}
		if err := m.persistSnapshots(ctx, tf, candidates); err != nil {
			m.logger.WithFields(map[string]interface{}{"timeframe": tf, "error": err.Error()}).Error("persisting screening snapshot")
		}
		if m.events != nil {
			m.events.PublishScreeningComplete(tf, len(candidates), time.Since(passStart).Milliseconds())
		}
		allCandidates = append(allCandidates, candidates...)
	}

	eligible := filterAndRank(allCandidates, settings.MinScoreThreshold, settings.NotifyTopN)
	m.notify(ctx, eligible, now)

	if err := m.sweepAccounts(ctx, allCandidates, now); err != nil {
		m.logger.WithFields(map[string]interface{}{"error": err.Error()}).Error("sweeping accounts")
	}

	if m.cfg.RetentionSweepEvery > 0 && m.cycle%m.cfg.RetentionSweepEvery == 0 {
		m.runRetentionSweep(ctx)
	}
}

func (m *Monitor) persistSnapshots(ctx context.Context, timeframe string, candidates []screener.Candidate) error {
	snapshots := make([]*store.ScreeningSnapshot, len(candidates))
	for i, c := range candidates {
		snapshots[i] = c.ToSnapshot(timeframe)
	}
	return m.repo.ReplaceSnapshots(ctx, timeframe, snapshots)
}

// filterAndRank keeps candidates at or above minScore, sorted by total
// score descending, truncated to the top n.
func filterAndRank(candidates []screener.Candidate, minScore float64, n int) []screener.Candidate {
	var kept []screener.Candidate
	for _, c := range candidates {
		if c.TotalScore >= minScore {
			kept = append(kept, c)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].TotalScore > kept[j].TotalScore })
	if n > 0 && len(kept) > n {
		kept = kept[:n]
	}
	return kept
}

func (m *Monitor) notify(ctx context.Context, candidates []screener.Candidate, now time.Time) {
	for _, c := range candidates {
		decision, err := m.gate.Evaluate(ctx, now)
		if err != nil {
			m.logger.WithFields(map[string]interface{}{"error": err.Error()}).Error("evaluating notification gate")
			return
		}
		if !decision.Allowed {
			m.logger.WithFields(map[string]interface{}{"symbol": c.Symbol, "reason": decision.Reason}).Debug("notification suppressed")
			if m.events != nil {
				m.events.Publish(events.Event{Type: events.EventNotificationGated, Data: map[string]interface{}{"symbol": c.Symbol, "reason": decision.Reason}})
			}
			continue
		}

		m.logger.WithFields(map[string]interface{}{
			"symbol": c.Symbol, "timeframe": c.Timeframe, "total_score": c.TotalScore,
		}).Info("screening hit notified")

		if m.notifier != nil {
			reason := c.Timeframe + " pass"
			if err := m.notifier.SendTopOpportunity(c.Symbol, c.TotalScore, c.Price, reason); err != nil {
				m.logger.WithFields(map[string]interface{}{"symbol": c.Symbol, "error": err.Error()}).Warn("delivering top-opportunity notification")
				continue // not delivered: leave the gate's counters untouched
			}
		}
		if m.events != nil {
			m.events.Publish(events.Event{Type: events.EventNotificationSent, Data: map[string]interface{}{"symbol": c.Symbol, "total_score": c.TotalScore}})
		}

		if err := m.gate.Record(ctx, now); err != nil {
			m.logger.WithFields(map[string]interface{}{"error": err.Error()}).Error("recording notification send")
		}
	}
}

// sweepAccounts runs, for every auto-trading account: exit enforcement on
// every open position first, then auto-entry evaluation against the
// screened candidates — exits always precede entries within a cycle so a
// freed slot can be reused the same tick (spec.md §4.7).
func (m *Monitor) sweepAccounts(ctx context.Context, candidates []screener.Candidate, now time.Time) error {
	accounts, err := m.repo.ListAutoTradingAccounts(ctx)
	if err != nil {
		return err
	}

	candidatesBySymbol := make(map[string]screener.Candidate, len(candidates))
	for _, c := range candidates {
		candidatesBySymbol[c.Symbol] = c
	}

	inPreferredWindow := m.inPreferredWindow(now)

	for _, account := range accounts {
		m.enforceExits(ctx, account, candidatesBySymbol)
		m.evaluateAutoEntries(ctx, account, candidates, inPreferredWindow)
	}
	return nil
}

func (m *Monitor) enforceExits(ctx context.Context, account *store.Account, candidatesBySymbol map[string]screener.Candidate) {
	positions, err := m.repo.GetOpenPositions(ctx, account.ID)
	if err != nil {
		m.logger.WithFields(map[string]interface{}{"account_id": account.ID, "error": err.Error()}).Error("fetching open positions")
		return
	}

	for _, position := range positions {
		c, ok := candidatesBySymbol[position.Symbol]
		if !ok {
			continue // no fresh price this cycle; leave the position untouched
		}

		result, err := m.engine.EvaluateExits(ctx, position, c.Price)
		if err != nil {
			m.logger.WithFields(map[string]interface{}{"account_id": account.ID, "symbol": position.Symbol, "error": err.Error()}).Error("evaluating exit")
			continue
		}
		if result == nil {
			continue
		}

		decision := store.DecisionExitTakeProfit
		if result.Reason == store.CloseReasonStopLoss {
			decision = store.DecisionExitStopLoss
		}
		m.logDecision(ctx, account.ID, position.Symbol, decision, result.Reason, &c.TotalScore)

		pnlPercent := 0.0
		if cost := position.EntryPrice * result.Quantity; cost != 0 {
			pnlPercent = result.PnL / cost * 100
		}
		if m.notifier != nil {
			if err := m.notifier.SendPositionClose(fmtAccountID(account.ID), position.Symbol, position.EntryPrice, result.Price, result.PnL, pnlPercent, result.Reason); err != nil {
				m.logger.WithFields(map[string]interface{}{"account_id": account.ID, "symbol": position.Symbol, "error": err.Error()}).Warn("delivering position-close notification")
			}
		}
		if m.events != nil {
			m.events.PublishPositionClosed(fmtAccountID(account.ID), position.Symbol, position.EntryPrice, result.Price, result.Quantity, result.PnL, pnlPercent, result.Reason)
		}
	}
}

func (m *Monitor) evaluateAutoEntries(ctx context.Context, account *store.Account, candidates []screener.Candidate, inPreferredWindow bool) {
	for _, c := range candidates {
		existing, err := m.repo.GetPositionsBySymbol(ctx, account.ID, c.Symbol)
		if err != nil {
			m.logger.WithFields(map[string]interface{}{"account_id": account.ID, "symbol": c.Symbol, "error": err.Error()}).Error("checking existing positions")
			continue
		}
		if len(existing) > 0 {
			continue // already holding this symbol; spec.md leaves pyramiding out of scope
		}

		candidate := paper.Candidate{
			Symbol: c.Symbol, Price: c.Price, BetaScore: c.BetaScore, VolumeScore: c.VolumeScore,
			TechnicalScore: c.TechnicalScore, TotalScore: c.TotalScore,
			MACDGoldenCross: c.Indicators.MACDGoldenCross, AboveAllEMA: c.Indicators.AboveAllEMA,
			VolumeSurge: c.Indicators.VolumeSurge,
		}

		ok, reason := paper.EvaluateAutoEntry(account, candidate, m.cfg.PreferredWindowBonus, inPreferredWindow)
		if !ok {
			m.logDecision(ctx, account.ID, c.Symbol, store.DecisionEntrySkipped, reason, &c.TotalScore)
			if m.events != nil {
				m.events.PublishAutoEntrySkipped(fmtAccountID(account.ID), c.Symbol, reason)
			}
			continue
		}

		position, err := m.engine.OpenPosition(ctx, account.ID, c.Symbol, c.Price)
		if err != nil {
			if apperr.Is(err, apperr.KindCapacity) {
				return // account is full; no point checking the rest of the candidates
			}
			m.logger.WithFields(map[string]interface{}{"account_id": account.ID, "symbol": c.Symbol, "error": err.Error()}).Error("opening auto-entry position")
			continue
		}
		m.logDecision(ctx, account.ID, c.Symbol, store.DecisionEntryOpened, reason, &c.TotalScore)

		if m.notifier != nil {
			if err := m.notifier.SendPositionOpen(fmtAccountID(account.ID), c.Symbol, position.EntryPrice, position.RemainingQuantity); err != nil {
				m.logger.WithFields(map[string]interface{}{"account_id": account.ID, "symbol": c.Symbol, "error": err.Error()}).Warn("delivering position-open notification")
			}
		}
		if m.events != nil {
			m.events.PublishPositionOpened(fmtAccountID(account.ID), c.Symbol, position.EntryPrice, position.RemainingQuantity)
		}
	}
}

func (m *Monitor) logDecision(ctx context.Context, accountID int64, symbol string, decision store.AutoTradeDecision, reason string, score *float64) {
	log := &store.AutoTradeLog{AccountID: accountID, Symbol: symbol, Decision: decision, Reason: reason, TotalScore: score}
	if err := m.repo.CreateAutoTradeLog(ctx, log); err != nil {
		m.logger.WithFields(map[string]interface{}{"error": err.Error()}).Error("recording auto-trading decision")
	}
}

func (m *Monitor) inPreferredWindow(now time.Time) bool {
	hour := now.Hour()
	if m.cfg.PreferredWindowStart == m.cfg.PreferredWindowEnd {
		return false
	}
	if m.cfg.PreferredWindowStart < m.cfg.PreferredWindowEnd {
		return hour >= m.cfg.PreferredWindowStart && hour < m.cfg.PreferredWindowEnd
	}
	return hour >= m.cfg.PreferredWindowStart || hour < m.cfg.PreferredWindowEnd
}

func fmtAccountID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (m *Monitor) runRetentionSweep(ctx context.Context) {
	pruned, err := m.candles.Prune(ctx, m.cfg.CandleRetention)
	if err != nil {
		m.logger.WithFields(map[string]interface{}{"error": err.Error()}).Error("pruning candle retention")
	} else {
		m.logger.WithFields(map[string]interface{}{"rows_deleted": pruned}).Info("candle retention sweep complete")
	}
}
