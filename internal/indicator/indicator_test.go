package indicator

import (
	"math"
	"testing"

	"signalstreamv1/internal/model"
)

// Classic 14-point RSI warmup series plus one extra close so the window
// holds period+1 prices.
var rsiSeries = []float64{
	44, 44.25, 44.5, 43.75, 44.5, 45, 45.5, 45, 46, 45.75, 46.5, 46, 46.5, 47,
}

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestRSI_InsufficientHistory(t *testing.T) {
	// 14 prices is one short of period+1, so the neutral default applies.
	rsi, trend := RSI(rsiSeries, 14)
	if rsi != 50 || trend != TrendNeutral {
		t.Errorf("expected 50/neutral, got %.2f/%s", rsi, trend)
	}

	rsi, trend = RSI([]float64{44, 44.5, 45, 44.75, 45.25}, 14)
	if rsi != 50 || trend != TrendNeutral {
		t.Errorf("5 prices: expected 50/neutral, got %.2f/%s", rsi, trend)
	}
}

func TestRSI_GoldenVector(t *testing.T) {
	prices := append(append([]float64{}, rsiSeries...), 46.75)

	// Deltas: gains sum 5.00, losses sum 2.25 over the trailing 14.
	// rs = (5/14)/(2.25/14) = 2.2222, rsi = 100 - 100/3.2222 = 68.97.
	rsi, trend := RSI(prices, 14)
	if rsi != 68.97 {
		t.Errorf("expected RSI 68.97, got %v", rsi)
	}
	if trend != TrendNeutral {
		t.Errorf("expected neutral trend, got %s", trend)
	}
}

func TestRSI_AllGains(t *testing.T) {
	prices := make([]float64, 15)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	// avgLoss == 0 → rs pinned at 100 → rsi = 100 - 100/101 = 99.01.
	rsi, trend := RSI(prices, 14)
	if rsi != 99.01 {
		t.Errorf("expected RSI 99.01, got %v", rsi)
	}
	if trend != TrendOverbought {
		t.Errorf("expected overbought, got %s", trend)
	}
}

func TestRSI_Bounds(t *testing.T) {
	// Pseudo-random walk: RSI must stay within [0, 100].
	prices := make([]float64, 60)
	prices[0] = 1000
	for i := 1; i < len(prices); i++ {
		if i%3 == 0 {
			prices[i] = prices[i-1] - float64(i%7)
		} else {
			prices[i] = prices[i-1] + float64(i%5)
		}
	}
	for n := 2; n <= len(prices); n++ {
		rsi, _ := RSI(prices[:n], 14)
		if rsi < 0 || rsi > 100 {
			t.Fatalf("RSI out of bounds at n=%d: %v", n, rsi)
		}
	}
}

func TestRSI_OversoldTrend(t *testing.T) {
	prices := make([]float64, 15)
	for i := range prices {
		prices[i] = 100 - float64(i)
	}
	// All losses: avgGain 0 → rs 0 → rsi 0.
	rsi, trend := RSI(prices, 14)
	if rsi != 0 {
		t.Errorf("expected RSI 0, got %v", rsi)
	}
	if trend != TrendOversold {
		t.Errorf("expected oversold, got %s (rsi=%v)", trend, rsi)
	}
}

func TestEMA_Degenerate(t *testing.T) {
	if got := EMA(nil, 12); got != 0 {
		t.Errorf("empty series: expected 0, got %v", got)
	}
	prices := []float64{10, 20, 30}
	if got := EMA(prices, 12); got != 30 {
		t.Errorf("short series: expected last price 30, got %v", got)
	}
}

func TestEMA_ConstantSeries(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 42.5
	}
	if got := EMA(prices, 12); !almostEqual(got, 42.5, 1e-9) {
		t.Errorf("constant series: expected 42.5, got %v", got)
	}
}

func TestEMA_SeededWithSMA(t *testing.T) {
	// Exactly period prices: EMA equals the simple average.
	prices := []float64{1, 2, 3, 4}
	if got := EMA(prices, 4); !almostEqual(got, 2.5, 1e-9) {
		t.Errorf("expected SMA seed 2.5, got %v", got)
	}
}

func TestMACD_InsufficientHistory(t *testing.T) {
	prices := []float64{44, 44.5, 45, 44.75, 45.25}
	macd, signal, hist, trend := MACD(prices)
	if macd != 0 || signal != 0 || hist != 0 || trend != TrendNeutral {
		t.Errorf("expected zeros/neutral, got %v/%v/%v/%s", macd, signal, hist, trend)
	}
}

func TestMACD_HistogramIdentity(t *testing.T) {
	prices := make([]float64, 50)
	for i := range prices {
		prices[i] = 100 + float64(i)*0.8 + float64(i%4)
	}
	macd, signal, hist, trend := MACD(prices)
	if hist != macd-signal {
		t.Errorf("histogram must equal macd-signal exactly: %v != %v", hist, macd-signal)
	}
	if (hist > 0) != (trend == TrendBullish) {
		t.Errorf("trend bullish iff histogram > 0: hist=%v trend=%s", hist, trend)
	}
}

func TestMACD_RisingSeriesIsBullish(t *testing.T) {
	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = 100 * math.Pow(1.01, float64(i))
	}
	_, _, hist, trend := MACD(prices)
	if trend != TrendBullish || hist <= 0 {
		t.Errorf("steadily rising series: expected bullish, got %s (hist=%v)", trend, hist)
	}
}

func TestMACD_FallingSeriesIsBearish(t *testing.T) {
	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = 100 * math.Pow(0.99, float64(i))
	}
	_, _, hist, trend := MACD(prices)
	if trend != TrendBearish || hist > 0 {
		t.Errorf("steadily falling series: expected bearish, got %s (hist=%v)", trend, hist)
	}
}

func TestSMA(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6}
	if got := SMA(prices, 3); !almostEqual(got, 5, 1e-9) {
		t.Errorf("SMA(3) of last three: expected 5, got %v", got)
	}
	// Fewer prices than period: average of all available.
	if got := SMA(prices, 20); !almostEqual(got, 3.5, 1e-9) {
		t.Errorf("short window: expected 3.5, got %v", got)
	}
	if got := SMA(nil, 20); got != 0 {
		t.Errorf("empty: expected 0, got %v", got)
	}
}

func TestBollinger_Ordering(t *testing.T) {
	prices := []float64{43, 44.2, 45.1, 44.7, 46, 45.3, 44.9, 46.4, 47, 46.2,
		45.8, 46.9, 47.3, 46.5, 47.8, 48, 47.1, 48.5, 49, 48.2}
	upper, middle, lower := Bollinger(prices, 20, 2)
	if !(lower <= middle && middle <= upper) {
		t.Errorf("band ordering violated: lower=%v middle=%v upper=%v", lower, middle, upper)
	}
	if lower == upper {
		t.Errorf("non-degenerate input should produce non-zero band width")
	}
}

func TestBollinger_ConstantSeries(t *testing.T) {
	prices := make([]float64, 25)
	for i := range prices {
		prices[i] = 100
	}
	upper, middle, lower := Bollinger(prices, 20, 2)
	if upper != 100 || middle != 100 || lower != 100 {
		t.Errorf("zero-variance series: expected collapsed bands, got %v/%v/%v", upper, middle, lower)
	}
}

func TestATR(t *testing.T) {
	highs := []float64{10, 12}
	lows := []float64{9, 10}
	closes := []float64{9.5, 11}
	// TR = max(12-10, |12-9.5|, |10-9.5|) = 2.5
	if got := ATR(highs, lows, closes, 14); !almostEqual(got, 2.5, 1e-9) {
		t.Errorf("expected ATR 2.5, got %v", got)
	}

	if got := ATR([]float64{10}, []float64{9}, []float64{9.5}, 14); got != 0 {
		t.Errorf("single candle: expected 0, got %v", got)
	}
	if got := ATR(highs, lows, []float64{9.5}, 14); got != 0 {
		t.Errorf("mismatched lengths: expected 0, got %v", got)
	}
}

func TestSnapshot_InsufficientHistoryDefaults(t *testing.T) {
	prices := []float64{44, 44.5, 45, 44.75, 45.25}
	snap := Snapshot(prices, nil, DefaultParams())

	if snap.RSI != 50 || snap.RSITrend != TrendNeutral {
		t.Errorf("expected RSI default 50/neutral, got %v/%s", snap.RSI, snap.RSITrend)
	}
	if snap.MACD != 0 || snap.Signal != 0 || snap.Histogram != 0 || snap.MACDTrend != TrendNeutral {
		t.Errorf("expected MACD zeros/neutral, got %+v", snap)
	}
}

func TestSnapshot_WithCandles(t *testing.T) {
	prices := make([]float64, 40)
	candles := make([]model.Candle, 20)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	for i := range candles {
		c := 100 + float64(i)
		candles[i] = model.Candle{Open: c, High: c + 1, Low: c - 1, Close: c}
	}
	snap := Snapshot(prices, candles, DefaultParams())
	if snap.ATR <= 0 {
		t.Errorf("expected positive ATR with candle history, got %v", snap.ATR)
	}
	if snap.Bollinger.Lower > snap.Bollinger.Middle || snap.Bollinger.Middle > snap.Bollinger.Upper {
		t.Errorf("band ordering violated: %+v", snap.Bollinger)
	}
}
