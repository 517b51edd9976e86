// Package ratelimit provides a fixed-window counter for outbound REST calls
// to the upstream market-data provider. Callers must treat a denied call as
// "skip this call", never as a retry signal; there is no queueing.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter counts calls inside a rolling fixed window. When the window has
// fully elapsed the counter resets; there is no sliding decay.
type Limiter struct {
	mu          sync.Mutex
	ceiling     int
	window      time.Duration
	count       int
	windowStart time.Time
	now         func() time.Time // injectable clock for tests
}

// New creates a Limiter allowing up to ceiling calls per window.
func New(ceiling int, window time.Duration) *Limiter {
	if ceiling <= 0 {
		ceiling = 100
	}
	if window <= 0 {
		window = time.Minute
	}
	l := &Limiter{
		ceiling: ceiling,
		window:  window,
		now:     time.Now,
	}
	l.windowStart = l.now()
	return l
}

// Allow records one call attempt and reports whether it is within the
// ceiling for the current window. Non-blocking.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.windowStart) > l.window {
		l.count = 0
		l.windowStart = now
	}
	l.count++
	return l.count <= l.ceiling
}

// Remaining returns how many calls are left in the current window.
// Returns 0 when exhausted; a fresh window restores the full ceiling.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.now().Sub(l.windowStart) > l.window {
		return l.ceiling
	}
	if l.count >= l.ceiling {
		return 0
	}
	return l.ceiling - l.count
}
