package model

import (
	"encoding/json"
	"time"
)

// Trading signal values emitted by the scorer.
const (
	SignalBuy  = "BUY"
	SignalSell = "SELL"
	SignalHold = "HOLD"
)

// Prediction is the heuristic scorer output for one symbol.
// Probabilities are whole percents summing to ~100 (within rounding).
type Prediction struct {
	Symbol      string    `json:"symbol"`
	BullishProb float64   `json:"bullish_probability"`
	BearishProb float64   `json:"bearish_probability"`
	NeutralProb float64   `json:"neutral_probability"`
	Confidence  float64   `json:"confidence"`
	Signal      string    `json:"signal"` // BUY | SELL | HOLD
	RiskScore   float64   `json:"risk_score"`
	TS          time.Time `json:"ts"`
}

// JSON returns the JSON-encoded prediction.
func (p *Prediction) JSON() []byte {
	b, _ := json.Marshal(p)
	return b
}
