package feed

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"signalstreamv1/internal/model"
)

// streamMessage is the combined-stream envelope delivered by the exchange.
type streamMessage struct {
	Stream string    `json:"stream"`
	Data   tickerMsg `json:"data"`
}

// tickerMsg is the 24h ticker event payload. Numeric fields arrive as
// strings on the wire.
type tickerMsg struct {
	EventTime   int64  `json:"E"` // epoch milliseconds
	Symbol      string `json:"s"`
	LastPrice   string `json:"c"`
	ChangePct   string `json:"P"`
	QuoteVolume string `json:"q"`
	BidPrice    string `json:"b"`
	AskPrice    string `json:"a"`
}

// parseTick converts a raw stream message into a normalized model.Tick.
func parseTick(raw []byte) (model.Tick, error) {
	var msg streamMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return model.Tick{}, fmt.Errorf("unmarshal: %w", err)
	}
	if msg.Data.Symbol == "" {
		return model.Tick{}, fmt.Errorf("missing symbol in stream %q", msg.Stream)
	}

	price, err := strconv.ParseFloat(msg.Data.LastPrice, 64)
	if err != nil {
		return model.Tick{}, fmt.Errorf("bad price %q for %s: %w", msg.Data.LastPrice, msg.Data.Symbol, err)
	}
	if price <= 0 {
		return model.Tick{}, fmt.Errorf("non-positive price %v for %s", price, msg.Data.Symbol)
	}

	ts := time.Now().UTC()
	if msg.Data.EventTime > 0 {
		ts = time.Unix(0, msg.Data.EventTime*int64(time.Millisecond)).UTC()
	}

	return model.Tick{
		Symbol:    msg.Data.Symbol,
		Price:     price,
		Change24h: toFloat(msg.Data.ChangePct),
		Volume:    toFloat(msg.Data.QuoteVolume),
		Bid:       toFloat(msg.Data.BidPrice),
		Ask:       toFloat(msg.Data.AskPrice),
		TS:        ts,
	}, nil
}

// toFloat converts loosely typed exchange values. The klines endpoint mixes
// JSON numbers and quoted decimals in one array.
func toFloat(v interface{}) float64 {
	f, _ := strictFloat(v)
	return f
}

// strictFloat is toFloat with the parse error surfaced, for fields where a
// bad value must drop the whole record instead of defaulting to zero.
func strictFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("bad numeric value %q", t)
		}
		return f, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("bad numeric value %q", t)
		}
		return f, nil
	case int64:
		return float64(t), nil
	case int:
		return float64(t), nil
	default:
		return 0, fmt.Errorf("non-numeric value %v (%T)", v, v)
	}
}

// parseKlineRow validates one klines array row:
// [openTime, open, high, low, close, volume, ...]. Any unparseable numeric
// field fails the whole row so a poisoned value never enters the price
// history.
func parseKlineRow(row []interface{}) (model.Candle, error) {
	if len(row) < 6 {
		return model.Candle{}, fmt.Errorf("%d fields, want at least 6", len(row))
	}

	vals := make([]float64, 6)
	names := [6]string{"openTime", "open", "high", "low", "close", "volume"}
	for i := range vals {
		f, err := strictFloat(row[i])
		if err != nil {
			return model.Candle{}, fmt.Errorf("%s: %w", names[i], err)
		}
		vals[i] = f
	}
	if vals[4] <= 0 {
		return model.Candle{}, fmt.Errorf("non-positive close %v", vals[4])
	}

	return model.Candle{
		TS:     time.Unix(0, int64(vals[0])*int64(time.Millisecond)).UTC(),
		Open:   vals[1],
		High:   vals[2],
		Low:    vals[3],
		Close:  vals[4],
		Volume: vals[5],
	}, nil
}
