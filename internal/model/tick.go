package model

import "time"

// Tick represents a single normalized market data tick from the upstream
// exchange stream. Prices are float64 USD quotes as delivered by the
// exchange (crypto tick sizes vary per pair, so no fixed-point scaling).
type Tick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Change24h float64   `json:"change_24h"` // percent
	Volume    float64   `json:"volume"`     // 24h quote volume
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	TS        time.Time `json:"ts"` // UTC timestamp
}
