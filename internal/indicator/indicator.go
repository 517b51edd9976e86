// Package indicator provides technical indicator calculations over price
// and candle windows.
//
// All functions are pure and deterministic: they take a read-only snapshot
// of the window and return derived values with no side effects. Windows too
// short for an indicator yield its documented neutral default, never an
// error.
package indicator

import "math"

// Trend labels shared by RSI and MACD outputs.
const (
	TrendNeutral    = "neutral"
	TrendOversold   = "oversold"
	TrendOverbought = "overbought"
	TrendBullish    = "bullish"
	TrendBearish    = "bearish"
)

// Default periods.
const (
	DefaultRSIPeriod       = 14
	DefaultSMAPeriod       = 20
	DefaultBollingerPeriod = 20
	DefaultBollingerK      = 2.0
	DefaultATRPeriod       = 14

	macdFastPeriod   = 12
	macdSlowPeriod   = 26
	macdSignalPeriod = 9
	macdSignalWindow = 35
)

// RSI computes the Relative Strength Index over the trailing period deltas.
// Fewer than period+1 prices yields the neutral default (50, "neutral").
// The value is rounded to 2 decimals; 0 <= RSI <= 100 always holds.
func RSI(prices []float64, period int) (float64, string) {
	if period <= 0 {
		period = DefaultRSIPeriod
	}
	if len(prices) < period+1 {
		return 50, TrendNeutral
	}

	var gains, losses float64
	for i := len(prices) - period; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	var rs float64
	if avgLoss == 0 {
		rs = 100
	} else {
		rs = avgGain / avgLoss
	}
	rsi := round2(100 - 100/(1+rs))

	switch {
	case rsi < 30:
		return rsi, TrendOversold
	case rsi > 70:
		return rsi, TrendOverbought
	default:
		return rsi, TrendNeutral
	}
}

// EMA computes the exponential moving average, seeded with the simple
// average of the first period values. Fewer than period prices degenerates
// to the last price.
func EMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if len(prices) < period {
		return prices[len(prices)-1]
	}

	var sum float64
	for _, p := range prices[:period] {
		sum += p
	}
	ema := sum / float64(period)

	k := 2.0 / float64(period+1)
	for _, p := range prices[period:] {
		ema = (p-ema)*k + ema
	}
	return ema
}

// MACD computes the MACD line (EMA12-EMA26), its signal line, and the
// histogram. Fewer than 26 prices yields zeros with a neutral trend.
//
// The signal line is EMA9 of the MACD values obtained by recomputing
// EMA12/EMA26 over every trailing prefix of the last 35 prices. This
// sliding recomputation is redundant next to an incrementally maintained
// EMA-of-MACD, but it is the exact output contract the golden vectors pin.
func MACD(prices []float64) (macd, signal, histogram float64, trend string) {
	if len(prices) < macdSlowPeriod {
		return 0, 0, 0, TrendNeutral
	}

	macd = EMA(prices, macdFastPeriod) - EMA(prices, macdSlowPeriod)

	recent := prices
	if len(recent) > macdSignalWindow {
		recent = recent[len(recent)-macdSignalWindow:]
	}
	series := make([]float64, 0, len(recent))
	for i := range recent {
		prefix := recent[:i+1]
		series = append(series, EMA(prefix, macdFastPeriod)-EMA(prefix, macdSlowPeriod))
	}
	signal = EMA(series, macdSignalPeriod)
	histogram = macd - signal

	trend = TrendBearish
	if histogram > 0 {
		trend = TrendBullish
	}
	return macd, signal, histogram, trend
}

// SMA computes the simple moving average of the last period prices, or of
// all available prices if fewer.
func SMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if period <= 0 || period > len(prices) {
		period = len(prices)
	}
	var sum float64
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period)
}

// Bollinger computes the Bollinger Bands: middle = SMA(period), upper/lower
// = middle +/- k population standard deviations of the last period prices.
func Bollinger(prices []float64, period int, k float64) (upper, middle, lower float64) {
	if len(prices) == 0 {
		return 0, 0, 0
	}
	if period <= 0 || period > len(prices) {
		period = len(prices)
	}
	middle = SMA(prices, period)

	var variance float64
	for _, p := range prices[len(prices)-period:] {
		d := p - middle
		variance += d * d
	}
	std := math.Sqrt(variance / float64(period))

	return middle + k*std, middle, middle - k*std
}

// ATR computes the Average True Range over highs/lows/closes. True range
// per index is max(high-low, |high-prevClose|, |low-prevClose|); the result
// averages the last period true ranges (or all available if fewer).
func ATR(highs, lows, closes []float64, period int) float64 {
	n := len(closes)
	if n < 2 || len(highs) != n || len(lows) != n {
		return 0
	}
	if period <= 0 {
		period = DefaultATRPeriod
	}

	trs := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		tr := highs[i] - lows[i]
		if hc := math.Abs(highs[i] - closes[i-1]); hc > tr {
			tr = hc
		}
		if lc := math.Abs(lows[i] - closes[i-1]); lc > tr {
			tr = lc
		}
		trs = append(trs, tr)
	}
	if period > len(trs) {
		period = len(trs)
	}

	var sum float64
	for _, tr := range trs[len(trs)-period:] {
		sum += tr
	}
	return sum / float64(period)
}

// round2 rounds to 2 decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
