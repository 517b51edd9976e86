// Package engine implements the real-time streaming engine: it seeds and
// maintains per-symbol price history from the market feed, computes
// indicators and heuristic predictions on a fixed cadence, refreshes
// sentiment on a slower cadence, and emits composite updates for fan-out.
package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"signalstreamv1/internal/history"
	"signalstreamv1/internal/indicator"
	"signalstreamv1/internal/model"
	"signalstreamv1/internal/notification"
	"signalstreamv1/internal/sentiment"
	"signalstreamv1/internal/signal"
)

// MarketFeed is the upstream dependency of the engine: REST candle seeding
// plus the long-lived tick subscription.
type MarketFeed interface {
	FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error)
	Subscribe(ctx context.Context, onTick func(model.Tick)) error
	Close() error
}

// Config holds engine tuning. Zero values fall back to defaults.
type Config struct {
	Symbols           []string
	PriceInterval     time.Duration // broadcast cadence, default 1s
	SentimentInterval time.Duration // sentiment refresh cadence, default 5m
	SeedInterval      string        // kline interval for history seeding
	SeedLimit         int           // number of candles to seed per symbol
	MinHistory        int           // skip symbols with fewer prices
	Indicator         indicator.Params
}

func (c *Config) applyDefaults() {
	if c.PriceInterval <= 0 {
		c.PriceInterval = time.Second
	}
	if c.SentimentInterval <= 0 {
		c.SentimentInterval = 5 * time.Minute
	}
	if c.SeedInterval == "" {
		c.SeedInterval = "1m"
	}
	if c.SeedLimit <= 0 {
		c.SeedLimit = history.DefaultCapacity
	}
	if c.MinHistory <= 0 {
		c.MinHistory = 14
	}
	if c.Indicator == (indicator.Params{}) {
		c.Indicator = indicator.DefaultParams()
	}
}

// Engine is the broadcast scheduler. One instance owns the price history,
// the feed subscription and both timers; collaborators receive it
// explicitly rather than through package-level state.
type Engine struct {
	cfg       Config
	feed      MarketFeed
	history   *history.Store
	sentiment *sentiment.Aggregator

	out chan model.Update

	mu          sync.RWMutex
	running     bool
	cancel      context.CancelFunc
	predictions map[string]model.Prediction
	lastSignal  map[string]string
	lastTick    map[string]model.Tick
	seedCandles map[string][]model.Candle

	wg sync.WaitGroup

	// Notifier, when set, receives an alert whenever a symbol's signal
	// transitions to BUY or SELL.
	Notifier notification.Notifier

	// Optional observability hooks.
	OnTick      func(model.Tick)
	OnBroadcast func(model.Update)
	OnDrop      func()              // tick or update discarded
	OnLag       func(time.Duration) // price tick scheduling lag
	OnCompute   func(time.Duration) // indicator snapshot duration per symbol
}

// New creates an Engine over its collaborators.
func New(cfg Config, feed MarketFeed, hist *history.Store, agg *sentiment.Aggregator) *Engine {
	cfg.applyDefaults()
	return &Engine{
		cfg:         cfg,
		feed:        feed,
		history:     hist,
		sentiment:   agg,
		out:         make(chan model.Update, 1024),
		predictions: make(map[string]model.Prediction, len(cfg.Symbols)),
		lastSignal:  make(map[string]string, len(cfg.Symbols)),
		lastTick:    make(map[string]model.Tick, len(cfg.Symbols)),
		seedCandles: make(map[string][]model.Candle, len(cfg.Symbols)),
	}
}

// Updates returns the engine's broadcast output channel.
func (e *Engine) Updates() <-chan model.Update { return e.out }

// StartMonitoring seeds price history, performs the initial sentiment
// fetch, opens the feed subscription and starts both timers. Calling it on
// a running engine is a no-op.
func (e *Engine) StartMonitoring(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.mu.Unlock()

	// Seed each symbol's window from historical candles. A failed or
	// rate-limited fetch leaves the symbol cold; it warms up from ticks.
	for _, sym := range e.cfg.Symbols {
		candles, err := e.feed.FetchKlines(runCtx, sym, e.cfg.SeedInterval, e.cfg.SeedLimit)
		if err != nil {
			log.Printf("[engine] WARNING: seeding %s failed: %v (starting cold)", sym, err)
			continue
		}
		if len(candles) == 0 {
			continue
		}
		closes := make([]float64, len(candles))
		for i := range candles {
			closes[i] = candles[i].Close
		}
		e.history.Seed(sym, closes)

		e.mu.Lock()
		e.seedCandles[sym] = candles
		e.mu.Unlock()
		log.Printf("[engine] seeded %s with %d candles", sym, len(candles))
	}

	// Initial synchronous sentiment fetch so the first price tick already
	// has a cached score.
	snap := e.sentiment.Refresh(runCtx)
	e.emit(model.Update{Kind: model.UpdateSentiment, Sentiment: &snap, TS: snap.TS})

	if err := e.feed.Subscribe(runCtx, e.handleTick); err != nil {
		log.Printf("[engine] WARNING: stream subscribe failed: %v (feed will keep retrying)", err)
	}

	e.wg.Add(2)
	go e.priceLoop(runCtx)
	go e.sentimentLoop(runCtx)

	log.Printf("[engine] monitoring %d symbols (price tick %v, sentiment tick %v)",
		len(e.cfg.Symbols), e.cfg.PriceInterval, e.cfg.SentimentInterval)
	return nil
}

// StopMonitoring cancels both timers and closes the feed. Safe to call
// multiple times; late feed callbacks are discarded.
func (e *Engine) StopMonitoring() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	cancel()
	e.feed.Close()
	e.wg.Wait()
	log.Println("[engine] monitoring stopped")
}

// IsMonitoring reports whether the engine is running. Used as the health
// signal by the HTTP layer.
func (e *Engine) IsMonitoring() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// LatestPrediction returns the most recent prediction for a symbol.
func (e *Engine) LatestPrediction(symbol string) (model.Prediction, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.predictions[symbol]
	return p, ok
}

// Predictions returns the latest prediction per tracked symbol, in
// tracked-symbol order.
func (e *Engine) Predictions() []model.Prediction {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]model.Prediction, 0, len(e.predictions))
	for _, sym := range e.cfg.Symbols {
		if p, ok := e.predictions[sym]; ok {
			out = append(out, p)
		}
	}
	return out
}

// handleTick is the feed callback: the single writer into the history
// store. Ticks arriving after StopMonitoring are discarded.
func (e *Engine) handleTick(tick model.Tick) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		if e.OnDrop != nil {
			e.OnDrop()
		}
		return
	}
	e.lastTick[tick.Symbol] = tick
	e.mu.Unlock()

	e.history.Append(tick.Symbol, tick.Price)
	if e.OnTick != nil {
		e.OnTick(tick)
	}
}

func (e *Engine) priceLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.PriceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			e.broadcastOnce(now.UTC())
			if e.OnLag != nil {
				e.OnLag(time.Since(now))
			}
		}
	}
}

func (e *Engine) sentimentLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.SentimentInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := e.sentiment.Refresh(ctx)
			e.emit(model.Update{Kind: model.UpdateSentiment, Sentiment: &snap, TS: snap.TS})
		}
	}
}

// broadcastOnce runs one price tick: every tracked symbol is scored against
// the same cached sentiment snapshot and emitted in tracked-symbol order.
// Symbols with insufficient history are skipped, not errored.
func (e *Engine) broadcastOnce(now time.Time) {
	sent, _ := e.sentiment.Latest()

	for _, sym := range e.cfg.Symbols {
		prices := e.history.Get(sym)
		if len(prices) < e.cfg.MinHistory {
			continue
		}

		e.mu.RLock()
		candles := e.seedCandles[sym]
		tick, hasTick := e.lastTick[sym]
		e.mu.RUnlock()

		computeStart := time.Now()
		snap := indicator.Snapshot(prices, candles, e.cfg.Indicator)
		if e.OnCompute != nil {
			e.OnCompute(time.Since(computeStart))
		}
		pred := signal.Score(sym, snap.RSI, snap.Histogram, sent.OverallScore, now)

		price := prices[len(prices)-1]
		if hasTick {
			price = tick.Price
		}

		e.recordPrediction(pred, price)

		e.emit(model.Update{
			Kind:         model.UpdateSignal,
			Symbol:       sym,
			CurrentPrice: price,
			Indicators:   &snap,
			Prediction:   &pred,
			TS:           now,
		})
	}
}

// recordPrediction stores the latest prediction and fires a notification
// when the signal transitions to BUY or SELL.
func (e *Engine) recordPrediction(pred model.Prediction, price float64) {
	e.mu.Lock()
	prev := e.lastSignal[pred.Symbol]
	e.lastSignal[pred.Symbol] = pred.Signal
	e.predictions[pred.Symbol] = pred
	notifier := e.Notifier
	e.mu.Unlock()

	if notifier == nil || pred.Signal == prev || pred.Signal == model.SignalHold {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := notifier.Send(ctx, notification.SignalAlert(pred, price)); err != nil {
			log.Printf("[engine] notification failed: %v", err)
		}
	}()
}

// emit pushes an update to the output channel, dropping it if the consumer
// side is saturated. The broadcast tick must never block on I/O.
func (e *Engine) emit(u model.Update) {
	if e.OnBroadcast != nil {
		e.OnBroadcast(u)
	}
	select {
	case e.out <- u:
	default:
		log.Printf("[engine] output channel full, dropping %s update", u.Channel())
		if e.OnDrop != nil {
			e.OnDrop()
		}
	}
}
