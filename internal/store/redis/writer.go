// Package redis persists broadcast updates to Redis: latest-value keys with
// TTL, capped history streams, and pubsub for external subscribers.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"
	"unsafe"

	"signalstreamv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// ~3h of 1s broadcasts per symbol + buffer
	streamMaxLen     = 12000
	defaultLatestTTL = 30 * time.Minute

	breakerMaxFailures  = 5
	breakerResetTimeout = 10 * time.Second
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Writer persists signal and sentiment updates to Redis. Writes go through
// a circuit breaker so a dead Redis degrades to dropped persistence instead
// of stalling the broadcast pipeline.
type Writer struct {
	client  *goredis.Client
	breaker *CircuitBreaker

	// OnPublish receives the duration of each successful pipeline write.
	// Optional.
	OnPublish func(time.Duration)
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	breaker := NewCircuitBreaker(breakerMaxFailures, breakerResetTimeout)
	breaker.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Writer{client: client, breaker: breaker}, nil
}

// Run reads broadcast updates from updateCh and writes them to Redis.
// Blocks until ctx is cancelled or updateCh is closed.
func (w *Writer) Run(ctx context.Context, updateCh <-chan model.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updateCh:
			if !ok {
				return
			}
			w.writeUpdate(ctx, &u)
		}
	}
}

// writeUpdate performs the pipelined writes for one update:
// SET latest + XADD history + PUBLISH, one network roundtrip.
func (w *Writer) writeUpdate(ctx context.Context, u *model.Update) {
	jsonBytes := u.JSON()
	// Zero-copy []byte to string (safe: jsonBytes is not mutated after this)
	jsonData := *(*string)(unsafe.Pointer(&jsonBytes))
	channel := u.Channel()

	start := time.Now()
	err := w.breaker.Execute(func() error {
		pipe := w.client.Pipeline()

		pipe.Set(ctx, channel+":latest", jsonData, defaultLatestTTL)

		if u.Kind == model.UpdateSignal {
			pipe.XAdd(ctx, &goredis.XAddArgs{
				Stream: channel + ":stream",
				MaxLen: streamMaxLen,
				Approx: true,
				Values: map[string]interface{}{"data": jsonData},
			})
		}

		pipe.Publish(ctx, "pub:"+channel, jsonData)

		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		if err != ErrCircuitOpen {
			log.Printf("[redis] pipeline error for %s: %v", channel, err)
		}
		return
	}
	if w.OnPublish != nil {
		w.OnPublish(time.Since(start))
	}
}

// LatestUpdate reads back the most recently persisted update for a logical
// channel ("signal:{symbol}" or "sentiment"). Returns nil when absent.
func (w *Writer) LatestUpdate(ctx context.Context, channel string) ([]byte, error) {
	val, err := w.client.Get(ctx, channel+":latest").Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET %s:latest: %w", channel, err)
	}
	return val, nil
}

// BreakerState reports the circuit breaker state for health reporting.
func (w *Writer) BreakerState() State {
	return w.breaker.CurrentState()
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
