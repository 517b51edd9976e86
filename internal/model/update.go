package model

import (
	"encoding/json"
	"time"
)

// UpdateKind discriminates the two broadcast message types.
type UpdateKind string

const (
	UpdateSignal    UpdateKind = "signal"
	UpdateSentiment UpdateKind = "sentiment"
)

// Update is the wire payload fanned out to all downstream consumers
// (WS gateway, Redis publisher, SQLite journal, notifier).
//
// A "signal" update carries the per-symbol price, indicator snapshot and
// prediction for one broadcast tick. A "sentiment" update carries only the
// refreshed sentiment snapshot.
type Update struct {
	Kind         UpdateKind         `json:"kind"`
	Symbol       string             `json:"symbol,omitempty"`
	CurrentPrice float64            `json:"current_price,omitempty"`
	Indicators   *IndicatorSnapshot `json:"indicators,omitempty"`
	Prediction   *Prediction        `json:"prediction,omitempty"`
	Sentiment    *SentimentSnapshot `json:"sentiment,omitempty"`
	TS           time.Time          `json:"ts"`
}

// Channel returns the logical broadcast channel for this update:
// "signal:{symbol}" for per-symbol signal updates, "sentiment" otherwise.
func (u *Update) Channel() string {
	if u.Kind == UpdateSignal {
		return "signal:" + u.Symbol
	}
	return "sentiment"
}

// JSON returns the JSON-encoded update.
func (u *Update) JSON() []byte {
	b, _ := json.Marshal(u)
	return b
}
