// Package indicators computes the technical signals the screener scores
// against: moving averages, MACD, RSI, Bollinger Bands, ATR, and volume
// surge, plus the composite technical_score built from their golden-cross/
// threshold sub-signals. Grounded on the teacher's
// internal/strategy/indicators.go formulas, generalized from
// []binance.Kline to []exchange.Candle and corrected where the teacher's
// version took a shortcut this domain can't accept (see MACD below).
package indicators

import (
	"math"

	"binance-trading-bot/internal/exchange"
)

// SMA returns the simple moving average of the last period closes, or 0 if
// there isn't enough history.
func SMA(candles []exchange.Candle, period int) float64 {
	if len(candles) < period {
		return 0
	}
	sum := 0.0
	for _, c := range candles[len(candles)-period:] {
		sum += c.Close
	}
	return sum / float64(period)
}

// EMA returns the exponential moving average of the closes, seeded by the
// SMA of the first period values.
func EMA(candles []exchange.Candle, period int) float64 {
	if len(candles) < period {
		return 0
	}
	multiplier := 2.0 / float64(period+1)
	ema := SMA(candles[:period], period)
	for _, c := range candles[period:] {
		ema = (c.Close * multiplier) + (ema * (1 - multiplier))
	}
	return ema
}

// emaSeries returns the EMA value as of every index from period-1 onward,
// needed to build a true MACD signal line rather than a one-shot
// approximation.
func emaSeries(candles []exchange.Candle, period int) []float64 {
	if len(candles) < period {
		return nil
	}
	multiplier := 2.0 / float64(period+1)
	out := make([]float64, 0, len(candles)-period+1)

	ema := SMA(candles[:period], period)
	out = append(out, ema)
	for _, c := range candles[period:] {
		ema = (c.Close * multiplier) + (ema * (1 - multiplier))
		out = append(out, ema)
	}
	return out
}

// MACDResult holds the MACD line, its EMA_9 signal line, and the
// histogram (MACD minus signal).
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD computes the standard 12/26/9 MACD. Unlike the teacher's
// approximation (`signal := macd * 0.8`), the signal line here is the true
// EMA_9 of the MACD line's own history — built by aligning the fast and
// slow EMA series and differencing them point by point, then taking an
// EMA over that series.
func MACD(candles []exchange.Candle, fastPeriod, slowPeriod, signalPeriod int) MACDResult {
	if len(candles) < slowPeriod+signalPeriod {
		return MACDResult{}
	}

	fastSeries := emaSeries(candles, fastPeriod)
	slowSeries := emaSeries(candles, slowPeriod)

	// Align: fastSeries starts fastPeriod-1 candles in, slowSeries starts
	// slowPeriod-1 candles in. Both end at the same last candle.
	offset := (slowPeriod - 1) - (fastPeriod - 1)
	macdHistory := make([]float64, len(slowSeries))
	for i := range slowSeries {
		macdHistory[i] = fastSeries[i+offset] - slowSeries[i]
	}

	if len(macdHistory) < signalPeriod {
		return MACDResult{MACD: macdHistory[len(macdHistory)-1]}
	}

	signalMultiplier := 2.0 / float64(signalPeriod+1)
	signal := 0.0
	for _, v := range macdHistory[:signalPeriod] {
		signal += v
	}
	signal /= float64(signalPeriod)
	for _, v := range macdHistory[signalPeriod:] {
		signal = (v * signalMultiplier) + (signal * (1 - signalMultiplier))
	}

	macdLine := macdHistory[len(macdHistory)-1]
	return MACDResult{MACD: macdLine, Signal: signal, Histogram: macdLine - signal}
}

// AboveAllEMA reports whether the latest close is above every one of
// EMA{7,14,30,52} — the composite score's "above all EMA" sub-signal.
func AboveAllEMA(candles []exchange.Candle) bool {
	if len(candles) == 0 {
		return false
	}
	close := candles[len(candles)-1].Close
	for _, period := range [...]int{7, 14, 30, 52} {
		ema := EMA(candles, period)
		if ema == 0 || close <= ema {
			return false
		}
	}
	return true
}

// MACDGoldenCross reports whether MACD crossed above its signal line within
// the last 3 candles: for each of the last 3 points, MACD computed through
// that point exceeds its signal while MACD computed through the prior point
// did not.
func MACDGoldenCross(candles []exchange.Candle, fastPeriod, slowPeriod, signalPeriod int) bool {
	minLen := slowPeriod + signalPeriod + 1
	for back := 0; back < 3; back++ {
		end := len(candles) - back
		if end < minLen {
			return false
		}
		curr := MACD(candles[:end], fastPeriod, slowPeriod, signalPeriod)
		prev := MACD(candles[:end-1], fastPeriod, slowPeriod, signalPeriod)
		if curr.MACD > curr.Signal && prev.MACD <= prev.Signal {
			return true
		}
	}
	return false
}

// RSI computes the Wilder-smoothed Relative Strength Index. Returns the
// neutral value 50 when there isn't enough history or when the closes do
// not move at all.
func RSI(candles []exchange.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 50.0
	}

	gains, losses := 0.0, 0.0
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	for i := period + 1; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// BollingerBands holds the upper/middle/lower band values.
type BollingerBands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Bollinger computes Bollinger Bands using the population standard
// deviation (divide by N, not N-1), matching spec.md's exact formula.
func Bollinger(candles []exchange.Candle, period int, stdDevMultiplier float64) BollingerBands {
	if len(candles) < period {
		return BollingerBands{}
	}
	window := candles[len(candles)-period:]

	middle := SMA(candles, period)
	variance := 0.0
	for _, c := range window {
		diff := c.Close - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	return BollingerBands{
		Upper:  middle + stdDev*stdDevMultiplier,
		Middle: middle,
		Lower:  middle - stdDev*stdDevMultiplier,
	}
}

// ATR computes the Average True Range as an exponential moving average of
// the true range (alpha = 2/(period+1), i.e. 2/15 for the 14-period
// default), seeded by the mean of the first period true ranges.
func ATR(candles []exchange.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 0
	}

	trueRange := func(i int) float64 {
		high, low, prevClose := candles[i].High, candles[i].Low, candles[i-1].Close
		return math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
	}

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += trueRange(i)
	}
	atr := sum / float64(period)

	alpha := 2.0 / float64(period+1)
	for i := period + 1; i < len(candles); i++ {
		atr = trueRange(i)*alpha + atr*(1-alpha)
	}
	return atr
}

// VolumeSMA returns the simple moving average of volume over period
// candles.
func VolumeSMA(candles []exchange.Candle, period int) float64 {
	if len(candles) < period {
		return 0
	}
	sum := 0.0
	for _, c := range candles[len(candles)-period:] {
		sum += c.Volume
	}
	return sum / float64(period)
}

// VolumeSurge reports whether the latest candle's volume exceeds 1.5x the
// trailing 20-period volume SMA (excluding the latest candle itself).
func VolumeSurge(candles []exchange.Candle, period int, multiplier float64) bool {
	if len(candles) < period+1 {
		return false
	}
	avg := VolumeSMA(candles[:len(candles)-1], period)
	if avg == 0 {
		return false
	}
	latest := candles[len(candles)-1].Volume
	return latest > avg*multiplier
}

// PriceAnomaly reports whether the latest close moved by at least
// threshold (as a fraction, e.g. 0.02 for 2%) relative to the prior close.
func PriceAnomaly(candles []exchange.Candle, threshold float64) bool {
	if len(candles) < 2 {
		return false
	}
	last := candles[len(candles)-1].Close
	prev := candles[len(candles)-2].Close
	if prev == 0 {
		return false
	}
	return math.Abs(last/prev-1) >= threshold
}

// Snapshot bundles every indicator value the screener needs for one
// symbol's candle series, plus the composite technical_score and the five
// boolean sub-signals it's built from.
type Snapshot struct {
	SMA20           float64
	MACD            MACDResult
	RSI14           float64
	Bollinger       BollingerBands
	ATR14           float64
	VolumeSMA20     float64
	VolumeSurge     bool
	AboveSMA20      bool
	AboveAllEMA     bool
	MACDGoldenCross bool
	PriceAnomaly    bool
	TechnicalScore  float64
}

// Compute builds a full Snapshot from a candle series, oldest first.
//
// technical_score = 20 * (above_sma20 + macd_golden_cross + above_all_ema +
// (40<=rsi<=70) + volume_surge). price_anomaly is tracked on the Snapshot
// for persistence but, per spec.md §4.3, is not one of the five scoring
// sub-signals.
func Compute(candles []exchange.Candle) Snapshot {
	sma20 := SMA(candles, 20)
	macd := MACD(candles, 12, 26, 9)
	aboveAllEMA := AboveAllEMA(candles)
	macdGolden := MACDGoldenCross(candles, 12, 26, 9)
	surge := VolumeSurge(candles, 20, 1.5)
	anomaly := PriceAnomaly(candles, 0.02)
	rsi := RSI(candles, 14)

	var aboveSMA bool
	if len(candles) > 0 && sma20 > 0 {
		aboveSMA = candles[len(candles)-1].Close > sma20
	}

	subSignals := 0
	if aboveSMA {
		subSignals++
	}
	if macdGolden {
		subSignals++
	}
	if aboveAllEMA {
		subSignals++
	}
	if rsi >= 40 && rsi <= 70 {
		subSignals++
	}
	if surge {
		subSignals++
	}

	return Snapshot{
		SMA20:           sma20,
		MACD:            macd,
		RSI14:           rsi,
		Bollinger:       Bollinger(candles, 20, 2),
		ATR14:           ATR(candles, 14),
		VolumeSMA20:     VolumeSMA(candles, 20),
		VolumeSurge:     surge,
		AboveSMA20:      aboveSMA,
		AboveAllEMA:     aboveAllEMA,
		MACDGoldenCross: macdGolden,
		PriceAnomaly:    anomaly,
		TechnicalScore:  20 * float64(subSignals),
	}
}
