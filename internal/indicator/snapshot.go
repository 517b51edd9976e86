package indicator

import "signalstreamv1/internal/model"

// Params configures the per-snapshot indicator periods. MACD periods are
// fixed (12/26/9) as part of the output contract.
type Params struct {
	RSIPeriod       int
	SMAPeriod       int
	BollingerPeriod int
	BollingerK      float64
	ATRPeriod       int
}

// DefaultParams returns the standard period set.
func DefaultParams() Params {
	return Params{
		RSIPeriod:       DefaultRSIPeriod,
		SMAPeriod:       DefaultSMAPeriod,
		BollingerPeriod: DefaultBollingerPeriod,
		BollingerK:      DefaultBollingerK,
		ATRPeriod:       DefaultATRPeriod,
	}
}

// Snapshot computes the full indicator set for one symbol. prices is the
// close-price window (oldest first); candles is the seeded OHLCV history
// used only for ATR and may be nil.
func Snapshot(prices []float64, candles []model.Candle, p Params) model.IndicatorSnapshot {
	rsi, rsiTrend := RSI(prices, p.RSIPeriod)
	macd, signal, histogram, macdTrend := MACD(prices)
	upper, middle, lower := Bollinger(prices, p.BollingerPeriod, p.BollingerK)

	var atr float64
	if len(candles) > 1 {
		highs := make([]float64, len(candles))
		lows := make([]float64, len(candles))
		closes := make([]float64, len(candles))
		for i := range candles {
			highs[i] = candles[i].High
			lows[i] = candles[i].Low
			closes[i] = candles[i].Close
		}
		atr = ATR(highs, lows, closes, p.ATRPeriod)
	}

	return model.IndicatorSnapshot{
		RSI:       rsi,
		RSITrend:  rsiTrend,
		MACD:      macd,
		Signal:    signal,
		Histogram: histogram,
		MACDTrend: macdTrend,
		ATR:       atr,
		SMA:       SMA(prices, p.SMAPeriod),
		Bollinger: model.BollingerBands{Upper: upper, Middle: middle, Lower: lower},
	}
}
