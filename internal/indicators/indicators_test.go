package indicators

import (
	"math"
	"testing"
	"time"

	"binance-trading-bot/internal/exchange"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func candlesFromCloses(closes []float64) []exchange.Candle {
	out := make([]exchange.Candle, len(closes))
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		out[i] = exchange.Candle{
			Time: t.Add(time.Duration(i) * time.Minute), Symbol: "BTC/USDT", Timeframe: "1m",
			Open: c, High: c, Low: c, Close: c, Volume: 100,
		}
	}
	return out
}

func TestSMAReturnsZeroBelowPeriod(t *testing.T) {
	candles := candlesFromCloses([]float64{1, 2, 3})
	if got := SMA(candles, 5); got != 0 {
		t.Fatalf("SMA with insufficient history = %v, want 0", got)
	}
}

func TestSMAAveragesLastPeriodCloses(t *testing.T) {
	candles := candlesFromCloses([]float64{1, 2, 3, 4, 5, 6})
	got := SMA(candles, 3)
	want := (4.0 + 5.0 + 6.0) / 3.0
	if !almostEqual(got, want) {
		t.Fatalf("SMA(3) = %v, want %v", got, want)
	}
}

func TestEMASeededBySMAOfFirstPeriod(t *testing.T) {
	closes := []float64{10, 10, 10, 10}
	candles := candlesFromCloses(closes)
	got := EMA(candles, 4)
	if !almostEqual(got, 10) {
		t.Fatalf("EMA of constant series = %v, want 10", got)
	}
}

func TestAboveAllEMADetectsSustainedUptrend(t *testing.T) {
	closes := make([]float64, 0, 70)
	for i := 0; i < 55; i++ {
		closes = append(closes, 100)
	}
	for i := 0; i < 15; i++ {
		closes = append(closes, 100+float64(i)*3)
	}
	candles := candlesFromCloses(closes)
	if !AboveAllEMA(candles) {
		t.Fatal("expected close above EMA{7,14,30,52} after a sustained uptrend")
	}
}

func TestAboveAllEMAFalseOnFlatSeries(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 50
	}
	candles := candlesFromCloses(closes)
	if AboveAllEMA(candles) {
		t.Fatal("a flat series has no close strictly above any EMA")
	}
}

func TestMACDGoldenCrossFalseOnFlatSeries(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 50
	}
	candles := candlesFromCloses(closes)
	if MACDGoldenCross(candles, 12, 26, 9) {
		t.Fatal("a flat series has no MACD/signal crossing")
	}
}

func TestMACDGoldenCrossFalseBelowMinimumHistory(t *testing.T) {
	candles := candlesFromCloses([]float64{1, 2, 3})
	if MACDGoldenCross(candles, 12, 26, 9) {
		t.Fatal("insufficient history should never report a crossing")
	}
}

func TestRSINeutralBelowMinimumHistory(t *testing.T) {
	candles := candlesFromCloses([]float64{1, 2, 3})
	if got := RSI(candles, 14); got != 50.0 {
		t.Fatalf("RSI with insufficient history = %v, want 50", got)
	}
}

func TestRSIMaxedOnPureUptrend(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 10 + float64(i)
	}
	candles := candlesFromCloses(closes)
	got := RSI(candles, 14)
	if got != 100.0 {
		t.Fatalf("RSI on a pure uptrend (zero losses) = %v, want 100", got)
	}
}

func TestRSIBoundedBetweenZeroAndHundred(t *testing.T) {
	closes := []float64{10, 12, 9, 15, 8, 20, 7, 25, 6, 30, 5, 35, 4, 40, 3, 45}
	candles := candlesFromCloses(closes)
	got := RSI(candles, 14)
	if got < 0 || got > 100 {
		t.Fatalf("RSI = %v, want value in [0, 100]", got)
	}
}

func TestBollingerUsesPopulationStdDev(t *testing.T) {
	closes := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	candles := candlesFromCloses(closes)
	bands := Bollinger(candles, 8, 2)
	if !almostEqual(bands.Middle, 5) {
		t.Fatalf("middle band = %v, want 5", bands.Middle)
	}
	wantStdDev := 2.0
	if !almostEqual(bands.Upper, 5+wantStdDev*2) || !almostEqual(bands.Lower, 5-wantStdDev*2) {
		t.Fatalf("bands = %+v, want stddev %v around middle", bands, wantStdDev)
	}
}

func TestVolumeSurgeComparesLatestAgainstTrailingAverageExcludingItself(t *testing.T) {
	candles := candlesFromCloses(make([]float64, 21))
	for i := range candles {
		candles[i].Volume = 100
	}
	candles[len(candles)-1].Volume = 500
	if !VolumeSurge(candles, 20, 1.5) {
		t.Fatal("expected a volume surge when the latest candle is 5x the trailing average")
	}
}

func TestVolumeSurgeFalseWhenFlat(t *testing.T) {
	candles := candlesFromCloses(make([]float64, 21))
	for i := range candles {
		candles[i].Volume = 100
	}
	if VolumeSurge(candles, 20, 1.5) {
		t.Fatal("flat volume should not register as a surge")
	}
}

func TestPriceAnomalyDetectsLargeMove(t *testing.T) {
	candles := candlesFromCloses([]float64{100, 103})
	if !PriceAnomaly(candles, 0.02) {
		t.Fatal("a 3% move should trip a 2% anomaly threshold")
	}
}

func TestPriceAnomalyFalseBelowThreshold(t *testing.T) {
	candles := candlesFromCloses([]float64{100, 100.5})
	if PriceAnomaly(candles, 0.02) {
		t.Fatal("a 0.5% move should not trip a 2% anomaly threshold")
	}
}

func TestComputeTechnicalScoreIsMultipleOfTwenty(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5
	}
	candles := candlesFromCloses(closes)
	snap := Compute(candles)
	if math.Mod(snap.TechnicalScore, 20) != 0 {
		t.Fatalf("technical score = %v, want a multiple of 20 (5 sub-signals x 20)", snap.TechnicalScore)
	}
	if snap.TechnicalScore < 0 || snap.TechnicalScore > 100 {
		t.Fatalf("technical score = %v, want value in [0, 100]", snap.TechnicalScore)
	}
}

func TestComputeExcludesPriceAnomalyFromScore(t *testing.T) {
	// A sharp final-candle spike trips price_anomaly, but technical_score
	// must still be exactly 20 x the five scoring sub-signals: the
	// anomaly flag earns no share of it.
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100
	}
	candles := candlesFromCloses(closes)
	before := Compute(candles)

	spiked := make([]exchange.Candle, len(candles))
	copy(spiked, candles)
	spiked[len(spiked)-1].Close = 110
	after := Compute(spiked)

	if !after.PriceAnomaly {
		t.Fatal("expected the spiked final candle to register as a price anomaly")
	}
	if before.PriceAnomaly {
		t.Fatal("expected the flat series not to register as a price anomaly")
	}

	scoring := 0
	for _, on := range []bool{after.AboveSMA20, after.MACDGoldenCross, after.AboveAllEMA, after.RSI14 >= 40 && after.RSI14 <= 70, after.VolumeSurge} {
		if on {
			scoring++
		}
	}
	if after.TechnicalScore != 20*float64(scoring) {
		t.Fatalf("technical score = %v, want %v (price_anomaly must not add to it)", after.TechnicalScore, 20*float64(scoring))
	}
}

func TestComputeRSIScoreBoundsAreInclusive(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100
	}
	candles := candlesFromCloses(closes)
	rsi := RSI(candles, 14)
	if rsi != 50 {
		t.Fatalf("flat series RSI = %v, want 50 (neutral)", rsi)
	}
	snap := Compute(candles)
	// RSI=50 falls within the inclusive [40,70] scoring band.
	if snap.TechnicalScore == 0 {
		t.Fatal("RSI=50 should contribute to technical_score under the inclusive [40,70] bound")
	}
}

func TestMACDAlignsFastAndSlowSeriesToSameLastCandle(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	candles := candlesFromCloses(closes)
	result := MACD(candles, 12, 26, 9)
	if result.MACD <= 0 {
		t.Fatalf("MACD line on a steady uptrend should be positive, got %v", result.MACD)
	}
}
