// Package feed owns the upstream market-data connection: a combined
// WebSocket ticker stream covering all tracked symbols, plus the
// rate-limited REST fallback for candle seeding and on-demand quotes.
//
// Stream failures never crash the process: malformed messages are logged
// and dropped per-message, and an unexpected close schedules a fixed-delay
// reconnect that an operator-initiated Close suppresses.
package feed

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"signalstreamv1/internal/model"
	"signalstreamv1/internal/ratelimit"

	"context"
)

// Defaults for the upstream provider endpoints.
const (
	DefaultRESTBaseURL    = "https://api.binance.com"
	DefaultWSBaseURL      = "wss://stream.binance.com:9443"
	DefaultReconnectDelay = 3 * time.Second
)

var errFeedClosed = errors.New("feed closed")

// Config holds the feed configuration.
type Config struct {
	RESTBaseURL    string
	WSBaseURL      string
	Symbols        []string
	ReconnectDelay time.Duration
	HTTPTimeout    time.Duration
}

// Conn is the subset of the WebSocket connection the feed needs.
// Abstracted so tests can script close events without a server.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// DialFunc opens a stream connection to the given URL.
type DialFunc func(url string) (Conn, error)

func gorillaDial(url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Feed manages the streaming subscription and REST fallback.
type Feed struct {
	cfg     Config
	limiter *ratelimit.Limiter
	client  *http.Client
	dial    DialFunc

	mu         sync.Mutex
	conn       Conn
	closed     bool
	onTick     func(model.Tick)
	lastTicker map[string]model.Tick

	// Optional observability hooks.
	OnReconnect   func()
	OnRateLimited func()
	OnMalformed   func()
}

// New creates a Feed. Zero-value config fields fall back to defaults.
func New(cfg Config, limiter *ratelimit.Limiter) *Feed {
	if cfg.RESTBaseURL == "" {
		cfg.RESTBaseURL = DefaultRESTBaseURL
	}
	if cfg.WSBaseURL == "" {
		cfg.WSBaseURL = DefaultWSBaseURL
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	return &Feed{
		cfg:        cfg,
		limiter:    limiter,
		client:     &http.Client{Timeout: cfg.HTTPTimeout},
		dial:       gorillaDial,
		lastTicker: make(map[string]model.Tick, len(cfg.Symbols)),
	}
}

// streamURL builds the combined-stream URL covering all tracked symbols.
func (f *Feed) streamURL() string {
	streams := make([]string, len(f.cfg.Symbols))
	for i, s := range f.cfg.Symbols {
		streams[i] = strings.ToLower(s) + "@ticker"
	}
	return f.cfg.WSBaseURL + "/stream?streams=" + strings.Join(streams, "/")
}

// Subscribe opens the streaming connection and delivers normalized ticks to
// onTick from a background goroutine. A failed initial dial is reported but
// still schedules the reconnect loop, so the caller may continue degraded.
func (f *Feed) Subscribe(ctx context.Context, onTick func(model.Tick)) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return errFeedClosed
	}
	f.onTick = onTick
	f.mu.Unlock()

	conn, err := f.dial(f.streamURL())
	if err != nil {
		log.Printf("[feed] stream dial failed: %v (reconnecting in %v)", err, f.cfg.ReconnectDelay)
		go f.reconnectLoop(ctx)
		return fmt.Errorf("feed: dial: %w", err)
	}
	if !f.adopt(conn) {
		return errFeedClosed
	}

	log.Printf("[feed] stream connected: %d symbols", len(f.cfg.Symbols))
	go f.readLoop(ctx, conn)
	return nil
}

// adopt installs conn as the active connection unless the feed was closed
// in the meantime, in which case the connection is released.
func (f *Feed) adopt(conn Conn) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		conn.Close()
		return false
	}
	f.conn = conn
	return true
}

func (f *Feed) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// readLoop consumes stream messages until an error. Parse failures drop the
// single message; a read error on a live feed hands off to the reconnect
// loop.
func (f *Feed) readLoop(ctx context.Context, conn Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if f.isClosed() || ctx.Err() != nil {
				return
			}
			log.Printf("[feed] stream closed: %v (reconnecting in %v)", err, f.cfg.ReconnectDelay)
			f.reconnectLoop(ctx)
			return
		}

		tick, err := parseTick(msg)
		if err != nil {
			log.Printf("[feed] dropping malformed message: %v", err)
			if f.OnMalformed != nil {
				f.OnMalformed()
			}
			continue
		}
		f.onTick(tick)
	}
}

// reconnectLoop waits the fixed delay, then redials with the same
// subscription parameters until it succeeds, the context is cancelled, or
// the feed is closed. The delay is deliberately constant, not exponential.
func (f *Feed) reconnectLoop(ctx context.Context) {
	select {
	case <-time.After(f.cfg.ReconnectDelay):
	case <-ctx.Done():
		return
	}

	bo := backoff.WithContext(backoff.NewConstantBackOff(f.cfg.ReconnectDelay), ctx)
	err := backoff.Retry(func() error {
		if f.isClosed() {
			return backoff.Permanent(errFeedClosed)
		}
		conn, err := f.dial(f.streamURL())
		if err != nil {
			log.Printf("[feed] reconnect dial failed: %v (retrying in %v)", err, f.cfg.ReconnectDelay)
			return err
		}
		if !f.adopt(conn) {
			return backoff.Permanent(errFeedClosed)
		}

		log.Println("[feed] stream reconnected")
		if f.OnReconnect != nil {
			f.OnReconnect()
		}
		go f.readLoop(ctx, conn)
		return nil
	}, bo)

	if err != nil && !errors.Is(err, errFeedClosed) {
		log.Printf("[feed] reconnect abandoned: %v", err)
	}
}

// Close releases the stream connection and suppresses any pending
// reconnect. Idempotent.
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	conn := f.conn
	f.conn = nil
	f.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}
