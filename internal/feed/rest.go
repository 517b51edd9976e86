package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"signalstreamv1/internal/model"
)

// FetchKlines retrieves up to limit OHLCV candles for the symbol from the
// REST fallback. A rate-limited call returns an empty result, not an error:
// callers seeded with nothing simply start cold.
func (f *Feed) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	if !f.limiter.Allow() {
		log.Printf("[feed] rate limit reached, skipping klines fetch for %s", symbol)
		if f.OnRateLimited != nil {
			f.OnRateLimited()
		}
		return nil, nil
	}

	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		f.cfg.RESTBaseURL, symbol, interval, limit)

	var rows [][]interface{}
	if err := f.getJSON(ctx, url, &rows); err != nil {
		return nil, fmt.Errorf("feed: klines %s: %w", symbol, err)
	}

	candles := make([]model.Candle, 0, len(rows))
	for _, row := range rows {
		candle, err := parseKlineRow(row)
		if err != nil {
			log.Printf("[feed] dropping malformed kline row for %s: %v", symbol, err)
			if f.OnMalformed != nil {
				f.OnMalformed()
			}
			continue
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// ticker24hResponse is the REST 24h ticker payload.
type ticker24hResponse struct {
	Symbol      string `json:"symbol"`
	LastPrice   string `json:"lastPrice"`
	ChangePct   string `json:"priceChangePercent"`
	QuoteVolume string `json:"quoteVolume"`
	BidPrice    string `json:"bidPrice"`
	AskPrice    string `json:"askPrice"`
}

// FetchTicker retrieves the current 24h ticker for an on-demand quote.
// When rate-limited it returns the previous result for the symbol (zero
// value if none), never an error.
func (f *Feed) FetchTicker(ctx context.Context, symbol string) (model.Tick, error) {
	if !f.limiter.Allow() {
		log.Printf("[feed] rate limit reached, returning cached ticker for %s", symbol)
		if f.OnRateLimited != nil {
			f.OnRateLimited()
		}
		f.mu.Lock()
		cached := f.lastTicker[symbol]
		f.mu.Unlock()
		return cached, nil
	}

	url := fmt.Sprintf("%s/api/v3/ticker/24hr?symbol=%s", f.cfg.RESTBaseURL, symbol)

	var resp ticker24hResponse
	if err := f.getJSON(ctx, url, &resp); err != nil {
		return model.Tick{}, fmt.Errorf("feed: ticker %s: %w", symbol, err)
	}

	price, err := strconv.ParseFloat(resp.LastPrice, 64)
	if err != nil {
		return model.Tick{}, fmt.Errorf("feed: ticker %s: bad price %q: %w", symbol, resp.LastPrice, err)
	}

	tick := model.Tick{
		Symbol:    symbol,
		Price:     price,
		Change24h: toFloat(resp.ChangePct),
		Volume:    toFloat(resp.QuoteVolume),
		Bid:       toFloat(resp.BidPrice),
		Ask:       toFloat(resp.AskPrice),
		TS:        time.Now().UTC(),
	}

	f.mu.Lock()
	f.lastTicker[symbol] = tick
	f.mu.Unlock()
	return tick, nil
}

func (f *Feed) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
