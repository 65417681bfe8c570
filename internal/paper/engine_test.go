package paper

import (
	"testing"

	"binance-trading-bot/internal/store"
)

func almostEqual(a, b float64) bool {
	const eps = 1e-6
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < eps
}

func strictCandidate() Candidate {
	return Candidate{
		TotalScore:      70,
		TechnicalScore:  70,
		VolumeScore:     50,
		MACDGoldenCross: true,
		AboveAllEMA:     true,
		VolumeSurge:     false,
	}
}

func TestEvaluateAutoEntryStrictConjunctionRequiresMACDGoldenCross(t *testing.T) {
	account := &store.Account{EntryScoreMin: 60, EntryTechMin: 60, AutoEntryPolicy: string(PolicyStrictConjunction)}
	c := strictCandidate()
	c.MACDGoldenCross = false

	ok, reason := EvaluateAutoEntry(account, c, 5, false)
	if ok {
		t.Fatalf("expected rejection without a MACD golden cross, got accepted (%s)", reason)
	}
	if reason != "no MACD golden cross" {
		t.Errorf("reason = %q, want %q", reason, "no MACD golden cross")
	}

	c.MACDGoldenCross = true
	ok, reason = EvaluateAutoEntry(account, c, 5, false)
	if !ok {
		t.Fatalf("expected acceptance with a MACD golden cross, got rejected (%s)", reason)
	}
}

func TestEvaluateAutoEntryStrictConjunctionRequiresAboveAllEMA(t *testing.T) {
	account := &store.Account{EntryScoreMin: 60, EntryTechMin: 60, AutoEntryPolicy: string(PolicyStrictConjunction)}
	c := strictCandidate()
	c.AboveAllEMA = false

	ok, reason := EvaluateAutoEntry(account, c, 5, false)
	if ok {
		t.Fatalf("expected rejection when price is not above all EMA, got accepted (%s)", reason)
	}
	if reason != "price not above all EMA" {
		t.Errorf("reason = %q, want %q", reason, "price not above all EMA")
	}
}

// TestEvaluateAutoEntryRejectsLowVolumeScore reproduces scenario S6:
// volume_score=35 must reject with reason "Volume too low" even when every
// other strict-conjunction threshold is satisfied.
func TestEvaluateAutoEntryRejectsLowVolumeScore(t *testing.T) {
	account := &store.Account{EntryScoreMin: 60, EntryTechMin: 60, AutoEntryPolicy: string(PolicyStrictConjunction)}
	c := strictCandidate()
	c.VolumeScore = 35

	ok, reason := EvaluateAutoEntry(account, c, 5, false)
	if ok {
		t.Fatalf("expected rejection with volume_score=35, got accepted (%s)", reason)
	}
	if reason != "Volume too low" {
		t.Errorf("reason = %q, want %q", reason, "Volume too low")
	}
}

func TestEvaluateAutoEntryAcceptsVolumeScoreAtFloor(t *testing.T) {
	account := &store.Account{EntryScoreMin: 60, EntryTechMin: 60, AutoEntryPolicy: string(PolicyStrictConjunction)}
	c := strictCandidate()
	c.VolumeScore = 40

	ok, reason := EvaluateAutoEntry(account, c, 5, false)
	if !ok {
		t.Fatalf("expected acceptance with volume_score=40 (inclusive floor), got rejected (%s)", reason)
	}
}

func TestEvaluateAutoEntryPreferredWindowBonusLowersThreshold(t *testing.T) {
	account := &store.Account{EntryScoreMin: 60, EntryTechMin: 60, AutoEntryPolicy: string(PolicyStrictConjunction)}
	c := strictCandidate()
	c.TotalScore = 57

	ok, _ := EvaluateAutoEntry(account, c, 5, false)
	if ok {
		t.Fatalf("expected rejection outside preferred window: score 57 < min 60")
	}

	ok, reason := EvaluateAutoEntry(account, c, 5, true)
	if !ok {
		t.Fatalf("expected acceptance inside preferred window (score_min reduced to 55), got rejected (%s)", reason)
	}
}

func TestEvaluateAutoEntryVolumeBreakoutBypassesTechnicalFloor(t *testing.T) {
	account := &store.Account{EntryScoreMin: 60, EntryTechMin: 90, AutoEntryPolicy: string(PolicyVolumeBreakout)}
	c := Candidate{TotalScore: 65, TechnicalScore: 40, VolumeSurge: true}

	ok, reason := EvaluateAutoEntry(account, c, 5, false)
	if !ok {
		t.Fatalf("expected volume breakout to bypass the technical floor, got rejected (%s)", reason)
	}
	if reason != "volume breakout" {
		t.Errorf("reason = %q, want %q", reason, "volume breakout")
	}
}

func TestEvaluateAutoEntryVolumeBreakoutFallsBackToStrict(t *testing.T) {
	account := &store.Account{EntryScoreMin: 60, EntryTechMin: 60, AutoEntryPolicy: string(PolicyVolumeBreakout)}
	c := Candidate{TotalScore: 65, TechnicalScore: 40, VolumeSurge: false}

	ok, _ := EvaluateAutoEntry(account, c, 5, false)
	if ok {
		t.Fatalf("expected rejection when volume surge is absent and technical score is low")
	}
}

func TestEvaluateAutoEntryVolumeBreakoutRequiresTotalScoreSixty(t *testing.T) {
	account := &store.Account{EntryScoreMin: 60, EntryTechMin: 90, AutoEntryPolicy: string(PolicyVolumeBreakout)}
	c := Candidate{TotalScore: 59, TechnicalScore: 40, VolumeSurge: true}

	ok, _ := EvaluateAutoEntry(account, c, 5, false)
	if ok {
		t.Fatalf("expected rejection with volume_surge but total_score=59 < 60")
	}
}

func TestOpeningMathMatchesSpecFormulas(t *testing.T) {
	account := &store.Account{
		Equity:          10000,
		PositionSizePct: 2,
		StopLossPct:     3,
		TakeProfitPcts:  []float64{6, 9, 12},
		CommissionRate:  0.001,
	}
	entryPrice := 100.0

	positionValue := account.Equity * account.PositionSizePct / 100
	if !almostEqual(positionValue, 200) {
		t.Fatalf("position_value = %v, want 200", positionValue)
	}
	quantity := positionValue / entryPrice
	if !almostEqual(quantity, 2) {
		t.Fatalf("quantity = %v, want 2", quantity)
	}
	stopLoss := entryPrice * (1 - account.StopLossPct/100)
	if !almostEqual(stopLoss, 97) {
		t.Fatalf("stop_loss = %v, want 97", stopLoss)
	}
	commission := positionValue * account.CommissionRate
	if !almostEqual(commission, 0.2) {
		t.Fatalf("commission = %v, want 0.2", commission)
	}

	wantLevels := []float64{106, 109, 112}
	for i, pct := range account.TakeProfitPcts {
		got := entryPrice * (1 + pct/100)
		if !almostEqual(got, wantLevels[i]) {
			t.Errorf("take_profit[%d] = %v, want %v", i, got, wantLevels[i])
		}
	}
}

func TestPartialTakeProfitFractionIsHundredOverNInitial(t *testing.T) {
	position := &store.Position{
		EntryPrice:        100,
		Quantity:          3,
		RemainingQuantity: 3,
		StopLoss:          97,
		TakeProfitLevels:  []float64{106, 109, 112},
		NInitialLevels:    3,
	}

	fraction := 100.0 / float64(position.NInitialLevels) / 100.0
	if !almostEqual(fraction, 1.0/3.0) {
		t.Fatalf("fraction = %v, want 1/3", fraction)
	}
	exitQty := position.Quantity * fraction
	if !almostEqual(exitQty, 1) {
		t.Fatalf("exitQty = %v, want 1 (one of three units)", exitQty)
	}
}

func TestClosingPnLFormula(t *testing.T) {
	entryPrice := 100.0
	price := 109.0
	quantity := 1.0
	commissionRate := 0.001

	commission := price * quantity * commissionRate
	pnl := (price-entryPrice)*quantity - commission

	wantCommission := 0.109
	if !almostEqual(commission, wantCommission) {
		t.Fatalf("commission = %v, want %v", commission, wantCommission)
	}
	wantPnL := 9 - wantCommission
	if !almostEqual(pnl, wantPnL) {
		t.Fatalf("pnl = %v, want %v", pnl, wantPnL)
	}
}

// TestTakeProfitReasonIsLevelIndexed reproduces scenario S2: each ladder leg
// must report TAKE_PROFIT_<level>, not a generic "take_profit" string.
func TestTakeProfitReasonIsLevelIndexed(t *testing.T) {
	for level, want := range map[int]string{1: "TAKE_PROFIT_1", 2: "TAKE_PROFIT_2", 3: "TAKE_PROFIT_3"} {
		if got := store.CloseReasonTakeProfit(level); got != want {
			t.Errorf("CloseReasonTakeProfit(%d) = %q, want %q", level, got, want)
		}
	}
}

// TestClosingPnLFormulaLosingTrade reproduces scenario S1: a loss should
// land on a negative pnl with the commission formula applied at the exit
// price, not the entry price.
func TestClosingPnLFormulaLosingTrade(t *testing.T) {
	entryPrice := 100.0
	price := 96.5
	quantity := 2.0
	commissionRate := 0.001

	commission := price * quantity * commissionRate
	pnl := (price-entryPrice)*quantity - commission

	wantCommission := 0.193
	if !almostEqual(commission, wantCommission) {
		t.Fatalf("commission = %v, want %v", commission, wantCommission)
	}
	wantPnL := -7.0 - wantCommission
	if !almostEqual(pnl, wantPnL) {
		t.Fatalf("pnl = %v, want %v", pnl, wantPnL)
	}
}

// TestRecordTradeOutcomeCounterSign checks the sign convention applyExit
// relies on when updating an account's running win/loss counters: a
// negative pnl increments losing_trades, never winning_trades.
func TestRecordTradeOutcomeCounterSign(t *testing.T) {
	pnl := -7.193
	var winningDelta, losingDelta int
	switch {
	case pnl > 0:
		winningDelta = 1
	case pnl < 0:
		losingDelta = 1
	}
	if winningDelta != 0 || losingDelta != 1 {
		t.Fatalf("losing pnl must increment losing_trades only, got winningDelta=%d losingDelta=%d", winningDelta, losingDelta)
	}
}
