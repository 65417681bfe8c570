package store

import (
	"strconv"
	"time"
)

// Account is a paper-trading account: its risk configuration, current
// balance/equity, and running trade counters (spec.md §3's Sim account).
type Account struct {
	ID                 int64
	Name               string
	Balance            float64
	Equity             float64
	FrozenBalance      float64
	MaxPositions       int
	PositionSizePct    float64
	StopLossPct        float64
	TakeProfitPcts     []float64
	EntryScoreMin      float64
	EntryTechMin       float64
	CommissionRate     float64
	AutoTradingEnabled bool
	AutoEntryPolicy    string
	TotalTrades        int
	WinningTrades      int
	LosingTrades       int
	TotalPnL           float64
	TotalCommission    float64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Position is an open or closed paper position with its partial take-profit
// ladder (spec.md §3's Sim position).
type Position struct {
	ID                int64
	AccountID         int64
	Symbol            string
	EntryPrice        float64
	Quantity          float64
	RemainingQuantity float64
	StopLoss          float64
	TakeProfitLevels  []float64
	TriggeredLevels   int
	NInitialLevels    int
	IsClosed          bool
	OpenedAt          time.Time
	ClosedAt          *time.Time
}

// TradeSide distinguishes the opening entry from a partial/full exit.
type TradeSide string

const (
	TradeSideEntry TradeSide = "ENTRY"
	TradeSideExit  TradeSide = "EXIT"
)

// Close reasons for an exited position (spec.md §3's close_reason enum).
// A take-profit exit's reason carries its triggered level index, e.g.
// "TAKE_PROFIT_1", formatted via CloseReasonTakeProfit.
const (
	CloseReasonStopLoss  = "STOP_LOSS"
	CloseReasonManual    = "MANUAL"
	CloseReasonTimeStop  = "TIME_STOP"
	takeProfitReasonStem = "TAKE_PROFIT_"
)

// CloseReasonTakeProfit formats the level-indexed take-profit close reason
// for the level-th triggered level (1-based).
func CloseReasonTakeProfit(level int) string {
	return takeProfitReasonStem + strconv.Itoa(level)
}

// Trade is one fill against a position — either the opening ENTRY (no PnL)
// or an EXIT leg (partial TP, full TP, or stop-loss), per spec.md §3's
// ENTRY/exit accounting fix.
type Trade struct {
	ID         int64
	AccountID  int64
	PositionID int64
	Symbol     string
	Side       TradeSide
	Price      float64
	Quantity   float64
	Commission float64
	PnL        *float64
	Reason     string
	ExecutedAt time.Time
}

// ScreeningSnapshot is one symbol's persisted screening result for a pass:
// the four scores, the five boolean technical sub-signals, the BTC/ETH
// price-ratio fields, and the multi-timeframe price changes (spec.md §3).
type ScreeningSnapshot struct {
	ID             int64
	Timeframe      string
	Symbol         string
	Price          float64
	BetaScore      float64
	VolumeScore    float64
	TechnicalScore float64
	TotalScore     float64

	AboveSMA        bool
	MACDGoldenCross bool
	AboveAllEMA     bool
	VolumeSurge     bool
	PriceAnomaly    bool

	PriceBTCRatio     float64
	PriceETHRatio     float64
	BTCRatioChangePct float64
	ETHRatioChangePct float64

	PriceChange5m  float64
	PriceChange15m float64
	PriceChange1h  float64
	PriceChange4h  float64
	Volume24h      float64

	EvaluatedAt time.Time
}

// NotificationSettings is the process-wide singleton notification-gate
// configuration plus its running counters (spec.md §3).
type NotificationSettings struct {
	MinIntervalMinutes int
	DailyLimit         int
	MinScoreThreshold  float64
	NotifyTopN         int
	QuietHourStart     int
	QuietHourEnd       int
	Timezone           string
	SentToday          int
	SentDay            *time.Time
	LastSentAt         *time.Time
}

// AutoTradeDecision is the kind of auto-trading action logged.
type AutoTradeDecision string

const (
	DecisionEntryOpened    AutoTradeDecision = "ENTRY_OPENED"
	DecisionEntrySkipped   AutoTradeDecision = "ENTRY_SKIPPED"
	DecisionExitStopLoss   AutoTradeDecision = "EXIT_STOP_LOSS"
	DecisionExitTakeProfit AutoTradeDecision = "EXIT_TAKE_PROFIT"
)

// AutoTradeLog is one auto-trading decision record (spec.md §3's
// Auto-trading log).
type AutoTradeLog struct {
	ID         int64
	AccountID  int64
	Symbol     string
	Decision   AutoTradeDecision
	Reason     string
	TotalScore *float64
	CreatedAt  time.Time
}
