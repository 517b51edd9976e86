// Package signal implements the heuristic trading-signal scorer combining
// momentum (RSI), trend (MACD histogram) and market sentiment into
// bullish/bearish/neutral probabilities and a BUY/SELL/HOLD signal.
package signal

import (
	"math"
	"time"

	"signalstreamv1/internal/model"
)

// Fixed weights of the heuristic. The neutral score is a constant floor so
// the signal never fully commits on momentum alone.
const (
	rsiWeightFactor       = 0.4
	sentimentWeightFactor = 0.3
	macdWeightFactor      = 0.3
	neutralScoreFloor     = 30.0

	buyBullishThreshold  = 70.0
	buyRSICeiling        = 30.0
	sellBearishThreshold = 70.0
	sellRSIFloor         = 70.0
)

// Score produces a Prediction for one symbol. All inputs are finite
// numbers: rsi in [0,100], macdHistogram unbounded, sentiment in [0,100].
// Outputs are whole-percent values; probabilities sum to ~100.
func Score(symbol string, rsi, macdHistogram, sentiment float64, now time.Time) model.Prediction {
	// Momentum weight peaks at rsi=50 and decays toward either extreme.
	rsiWeight := (100 - math.Abs(rsi-50)) / 100
	sentimentWeight := sentiment / 100

	macdTerm := 0.0
	if macdHistogram > 0 {
		macdTerm = 1.0
	}

	bullishScore := (rsiWeight*rsiWeightFactor + sentimentWeight*sentimentWeightFactor + macdTerm*macdWeightFactor) * 100
	bearishScore := 100 - bullishScore

	bullish, bearish, neutral := normalize(bullishScore, bearishScore, neutralScoreFloor)

	confidence := math.Max(bullish, math.Max(bearish, neutral))

	sig := model.SignalHold
	switch {
	case bullish > buyBullishThreshold && rsi < buyRSICeiling:
		sig = model.SignalBuy
	case bearish > sellBearishThreshold && rsi > sellRSIFloor:
		sig = model.SignalSell
	}

	return model.Prediction{
		Symbol:      symbol,
		BullishProb: bullish,
		BearishProb: bearish,
		NeutralProb: neutral,
		Confidence:  confidence,
		Signal:      sig,
		RiskScore:   100 - confidence,
		TS:          now,
	}
}

// normalize scales the three raw scores into whole-percent probabilities
// summing to ~100. A degenerate all-zero input falls back to an equal
// 33/33/34 split instead of propagating NaN.
func normalize(bullish, bearish, neutral float64) (float64, float64, float64) {
	total := bullish + bearish + neutral
	if total == 0 {
		return 33, 33, 34
	}
	return math.Round(bullish / total * 100),
		math.Round(bearish / total * 100),
		math.Round(neutral / total * 100)
}
