// Package paper implements the simulated-account trading engine: opening
// positions against the screener's candidates, enforcing stop-loss and
// laddered partial take-profit exits every monitor tick, and reconciling
// account equity — all without ever placing a real order (spec.md
// explicitly scopes that out). Grounded on the teacher's
// internal/settlement package for the ENTRY/EXIT trade-leg split and
// FIFO-style position bookkeeping, adapted from a single-symbol futures
// ledger to the multi-account, multi-position-per-symbol paper book this
// module needs.
package paper

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"binance-trading-bot/internal/apperr"
	"binance-trading-bot/internal/logging"
	"binance-trading-bot/internal/store"
)

// AutoEntryPolicy selects how the auto-entry evaluator decides whether a
// screened candidate is worth opening. spec.md leaves the choice to
// configuration rather than mandating one (see DESIGN.md's Open Question
// decision).
type AutoEntryPolicy string

const (
	// PolicyStrictConjunction requires every configured threshold to hold
	// at once: total_score >= entry_score_min, technical_score >=
	// entry_tech_min, a recent MACD golden cross, price above all EMAs, and
	// volume_score >= 40.
	PolicyStrictConjunction AutoEntryPolicy = "strict_conjunction"
	// PolicyVolumeBreakout additionally accepts a candidate with a volume
	// surge and total_score >= 60 (on top of total_score >= entry_score_min),
	// even short of the technical threshold — looser, momentum-chasing
	// entry criteria.
	PolicyVolumeBreakout AutoEntryPolicy = "volume_breakout"
)

// Candidate is the subset of a screener result the engine needs to
// evaluate and open a position.
type Candidate struct {
	Symbol          string
	Price           float64
	BetaScore       float64
	VolumeScore     float64
	TechnicalScore  float64
	TotalScore      float64
	MACDGoldenCross bool
	AboveAllEMA     bool
	VolumeSurge     bool
}

// Engine is the paper-trading engine. Account mutations are serialized
// per-account via a map of mutexes so concurrent monitor ticks never race
// on the same account's balance (spec.md §5's concurrency model).
type Engine struct {
	repo   *store.Repository
	logger *logging.Logger

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

// New builds an Engine.
func New(repo *store.Repository, logger *logging.Logger) *Engine {
	return &Engine{repo: repo, logger: logger, locks: make(map[int64]*sync.Mutex)}
}

func (e *Engine) lockFor(accountID int64) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	l, ok := e.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[accountID] = l
	}
	return l
}

// EvaluateAutoEntry reports whether a screened candidate passes the
// account's configured auto-entry policy, and the human-readable reason
// either way (for the auto-trading log).
//
// Strict conjunction (spec.md §4.6 / original evaluate_screening_result)
// requires every one of: total_score >= entry_score_min, technical_score
// >= entry_technical_min, macd_golden_cross, above_all_ema, and
// volume_score >= 40. The volume-breakout policy additionally accepts a
// candidate with volume_surge and total_score >= 60, bypassing the rest.
func EvaluateAutoEntry(account *store.Account, c Candidate, preferredWindowBonus float64, inPreferredWindow bool) (bool, string) {
	scoreMin := account.EntryScoreMin
	if inPreferredWindow {
		scoreMin -= preferredWindowBonus
	}

	if c.TotalScore < scoreMin {
		return false, "total score below entry threshold"
	}

	switch AutoEntryPolicy(account.AutoEntryPolicy) {
	case PolicyVolumeBreakout:
		if c.VolumeSurge && c.TotalScore >= 60 {
			return true, "volume breakout"
		}
		fallthrough
	default:
		if c.TechnicalScore < account.EntryTechMin {
			return false, "technical score below entry threshold"
		}
		if !c.MACDGoldenCross {
			return false, "no MACD golden cross"
		}
		if !c.AboveAllEMA {
			return false, "price not above all EMA"
		}
		if c.VolumeScore < 40 {
			return false, "Volume too low"
		}
		return true, "strict conjunction satisfied"
	}
}

// OpenPosition opens a new paper position against candidate's current
// price, following spec.md §4.6's exact opening math:
//
//	position_value = total_equity * position_size_pct / 100
//	quantity       = position_value / entry_price
//	stop_loss      = entry_price * (1 - stop_loss_pct/100)
//	take_profit[i] = entry_price * (1 + take_profit_pct[i]/100)
//	commission     = position_value * commission_rate
func (e *Engine) OpenPosition(ctx context.Context, accountID int64, symbol string, entryPrice float64) (*store.Position, error) {
	lock := e.lockFor(accountID)
	lock.Lock()
	defer lock.Unlock()

	account, err := e.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	open, err := e.repo.GetOpenPositions(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(open) >= account.MaxPositions {
		return nil, apperr.New(apperr.KindCapacity, "account %d already holds %d open positions", accountID, len(open))
	}

	positionValue := account.Equity * account.PositionSizePct / 100
	quantity := positionValue / entryPrice
	stopLoss := entryPrice * (1 - account.StopLossPct/100)
	commission := positionValue * account.CommissionRate

	takeProfitLevels := make([]float64, len(account.TakeProfitPcts))
	for i, pct := range account.TakeProfitPcts {
		takeProfitLevels[i] = entryPrice * (1 + pct/100)
	}

	position := &store.Position{
		AccountID:         accountID,
		Symbol:            symbol,
		EntryPrice:        entryPrice,
		Quantity:          quantity,
		RemainingQuantity: quantity,
		StopLoss:          stopLoss,
		TakeProfitLevels:  takeProfitLevels,
		NInitialLevels:    len(takeProfitLevels),
	}

	err = e.repo.WithTx(ctx, func(tx pgx.Tx) error {
		if err := e.repo.CreatePosition(ctx, tx, position); err != nil {
			return err
		}
		trade := &store.Trade{
			AccountID:  accountID,
			PositionID: position.ID,
			Symbol:     symbol,
			Side:       store.TradeSideEntry,
			Price:      entryPrice,
			Quantity:   quantity,
			Commission: commission,
		}
		if err := e.repo.CreateTrade(ctx, tx, trade); err != nil {
			return err
		}
		newBalance := account.Balance - positionValue - commission
		newFrozen := account.FrozenBalance + positionValue
		return e.repo.UpdateBalanceAndEquity(ctx, tx, accountID, newBalance, account.Equity, newFrozen)
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDBConflict, err, "opening position for %s", symbol)
	}

	e.logger.WithFields(map[string]interface{}{
		"account_id": accountID, "symbol": symbol, "entry_price": entryPrice, "quantity": quantity,
	}).Info("paper position opened")

	return position, nil
}

// ExitResult describes one exit leg applied to a position.
type ExitResult struct {
	Position    *store.Position
	Price       float64
	Quantity    float64
	Commission  float64
	PnL         float64
	Reason      string
	FullyClosed bool
}

// EvaluateExits checks a position against the current price and applies
// at most one exit leg per tick: the stop-loss first (full close at
// whatever remains), otherwise the first untriggered take-profit level in
// ascending order, exiting fraction = 100/n_initial_levels of the
// position's ORIGINAL quantity (spec.md §4.6).
func (e *Engine) EvaluateExits(ctx context.Context, position *store.Position, currentPrice float64) (*ExitResult, error) {
	lock := e.lockFor(position.AccountID)
	lock.Lock()
	defer lock.Unlock()

	account, err := e.repo.GetAccount(ctx, position.AccountID)
	if err != nil {
		return nil, err
	}

	if currentPrice <= position.StopLoss {
		return e.applyExit(ctx, account, position, currentPrice, position.RemainingQuantity, store.CloseReasonStopLoss)
	}

	levels := position.TakeProfitLevels
	sort.Float64s(levels)
	for i := position.TriggeredLevels; i < len(levels); i++ {
		if currentPrice >= levels[i] {
			fraction := 100.0 / float64(position.NInitialLevels) / 100.0
			exitQty := position.Quantity * fraction
			if exitQty > position.RemainingQuantity {
				exitQty = position.RemainingQuantity
			}
			position.TriggeredLevels = i + 1
			return e.applyExit(ctx, account, position, currentPrice, exitQty, store.CloseReasonTakeProfit(position.TriggeredLevels))
		}
	}

	return nil, nil
}

func (e *Engine) applyExit(ctx context.Context, account *store.Account, position *store.Position, price, quantity float64, reason string) (*ExitResult, error) {
	commission := price * quantity * account.CommissionRate
	pnl := (price-position.EntryPrice)*quantity - commission

	remaining := position.RemainingQuantity - quantity
	if remaining < 1e-4 {
		remaining = 0
	}
	position.RemainingQuantity = remaining
	position.IsClosed = remaining < 1e-4
	if position.IsClosed {
		now := time.Now()
		position.ClosedAt = &now
	}

	err := e.repo.WithTx(ctx, func(tx pgx.Tx) error {
		if err := e.repo.UpdatePosition(ctx, tx, position); err != nil {
			return err
		}
		trade := &store.Trade{
			AccountID:  account.ID,
			PositionID: position.ID,
			Symbol:     position.Symbol,
			Side:       store.TradeSideExit,
			Price:      price,
			Quantity:   quantity,
			Commission: commission,
			PnL:        &pnl,
			Reason:     reason,
		}
		if err := e.repo.CreateTrade(ctx, tx, trade); err != nil {
			return err
		}
		if err := e.repo.RecordTradeOutcome(ctx, tx, account.ID, pnl, commission); err != nil {
			return err
		}
		proceeds := price*quantity - commission
		newBalance := account.Balance + proceeds
		newFrozen := account.FrozenBalance - quantity*position.EntryPrice
		if newFrozen < 0 {
			newFrozen = 0
		}
		return e.repo.UpdateBalanceAndEquity(ctx, tx, account.ID, newBalance, account.Equity, newFrozen)
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDBConflict, err, "closing position %d", position.ID)
	}

	e.logger.WithFields(map[string]interface{}{
		"account_id": account.ID, "symbol": position.Symbol, "price": price, "pnl": pnl, "reason": reason,
	}).Info("paper position exit applied")

	return &ExitResult{
		Position: position, Price: price, Quantity: quantity, Commission: commission,
		PnL: pnl, Reason: reason, FullyClosed: position.IsClosed,
	}, nil
}

// ClosePosition closes a position at the given price regardless of
// stop-loss/take-profit levels, for manual operator-driven exits via the
// HTTP surface.
func (e *Engine) ClosePosition(ctx context.Context, position *store.Position, price float64) (*ExitResult, error) {
	lock := e.lockFor(position.AccountID)
	lock.Lock()
	defer lock.Unlock()

	account, err := e.repo.GetAccount(ctx, position.AccountID)
	if err != nil {
		return nil, err
	}
	return e.applyExit(ctx, account, position, price, position.RemainingQuantity, store.CloseReasonManual)
}

// ReconcileEquity recomputes an account's equity as balance plus the
// mark-to-market value of every open position, and persists it.
func (e *Engine) ReconcileEquity(ctx context.Context, accountID int64, prices map[string]float64) error {
	lock := e.lockFor(accountID)
	lock.Lock()
	defer lock.Unlock()

	account, err := e.repo.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	open, err := e.repo.GetOpenPositions(ctx, accountID)
	if err != nil {
		return err
	}

	equity := account.Balance
	for _, p := range open {
		price, ok := prices[p.Symbol]
		if !ok {
			price = p.EntryPrice
		}
		equity += price * p.RemainingQuantity
	}

	return e.repo.WithTx(ctx, func(tx pgx.Tx) error {
		return e.repo.UpdateBalanceAndEquity(ctx, tx, accountID, account.Balance, equity, account.FrozenBalance)
	})
}
