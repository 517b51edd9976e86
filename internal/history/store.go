// Package history provides the per-symbol bounded price window store.
//
// The store is the only mutable shared state between the feed callback
// (single writer) and the broadcast tick (readers). Get returns a copy so
// indicator computation can never observe a window mid-mutation.
package history

import "sync"

// DefaultCapacity is the per-symbol window size when none is configured.
const DefaultCapacity = 200

// window is a fixed-capacity circular buffer of closing prices.
// Oldest entries are overwritten once the buffer is full (FIFO eviction).
type window struct {
	buf  []float64
	pos  int // next write position
	full bool
}

func (w *window) append(price float64) {
	w.buf[w.pos] = price
	w.pos = (w.pos + 1) % len(w.buf)
	if w.pos == 0 && !w.full {
		w.full = true
	}
}

func (w *window) len() int {
	if w.full {
		return len(w.buf)
	}
	return w.pos
}

// snapshot copies the window contents in oldest-first order.
func (w *window) snapshot() []float64 {
	n := w.len()
	out := make([]float64, n)
	if w.full {
		copy(out, w.buf[w.pos:])
		copy(out[len(w.buf)-w.pos:], w.buf[:w.pos])
	} else {
		copy(out, w.buf[:n])
	}
	return out
}

// Store holds one bounded price window per symbol.
type Store struct {
	mu       sync.RWMutex
	capacity int
	windows  map[string]*window
}

// New creates a Store with the given per-symbol capacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		windows:  make(map[string]*window, 16),
	}
}

// Append adds one closing price to the symbol's window, evicting the oldest
// entry when the window is at capacity.
func (s *Store) Append(symbol string, price float64) {
	s.mu.Lock()
	w, ok := s.windows[symbol]
	if !ok {
		w = &window{buf: make([]float64, s.capacity)}
		s.windows[symbol] = w
	}
	w.append(price)
	s.mu.Unlock()
}

// Seed replaces the symbol's window with the given closes, keeping only the
// most recent capacity entries.
func (s *Store) Seed(symbol string, closes []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := &window{buf: make([]float64, s.capacity)}
	start := 0
	if len(closes) > s.capacity {
		start = len(closes) - s.capacity
	}
	for _, p := range closes[start:] {
		w.append(p)
	}
	s.windows[symbol] = w
}

// Get returns a copy of the symbol's window in oldest-first order.
// An untracked symbol yields an empty slice, never an error.
func (s *Store) Get(symbol string) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.windows[symbol]
	if !ok {
		return nil
	}
	return w.snapshot()
}

// Len returns the number of prices currently held for the symbol.
func (s *Store) Len(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.windows[symbol]
	if !ok {
		return 0
	}
	return w.len()
}
