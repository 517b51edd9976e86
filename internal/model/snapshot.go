package model

import "time"

// BollingerBands holds the three Bollinger band values.
type BollingerBands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// IndicatorSnapshot holds all indicator values derived from one price window.
// Recomputed on every broadcast tick; never persisted.
type IndicatorSnapshot struct {
	RSI       float64        `json:"rsi"`
	RSITrend  string         `json:"rsi_trend"` // "oversold" | "overbought" | "neutral"
	MACD      float64        `json:"macd"`
	Signal    float64        `json:"signal"`
	Histogram float64        `json:"histogram"`
	MACDTrend string         `json:"macd_trend"` // "bullish" | "bearish" | "neutral"
	ATR       float64        `json:"atr"`
	SMA       float64        `json:"sma"`
	Bollinger BollingerBands `json:"bollinger"`
}

// SentimentSnapshot is the cached output of the sentiment aggregator.
// Component scores are keyed by source name, each 0-100.
type SentimentSnapshot struct {
	Components   map[string]float64 `json:"components"`
	OverallScore float64            `json:"overall_score"`
	Trend        string             `json:"trend"`
	TS           time.Time          `json:"ts"`
}
