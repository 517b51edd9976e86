// Package sentiment aggregates independent market-sentiment sources into a
// single 0-100 score with a qualitative trend label.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// neutralScore is contributed by any source that fails to deliver a value.
const neutralScore = 50.0

// Source delivers one scalar sentiment reading in [0, 100].
type Source interface {
	Name() string
	Fetch(ctx context.Context) (float64, error)
}

// FearGreedSource fetches the Crypto Fear & Greed Index.
type FearGreedSource struct {
	url    string
	client *http.Client
}

// DefaultFearGreedURL is the public Fear & Greed endpoint.
const DefaultFearGreedURL = "https://api.alternative.me/fng/"

// NewFearGreedSource creates a Fear & Greed fetcher. An empty url selects
// the public endpoint.
func NewFearGreedSource(url string) *FearGreedSource {
	if url == "" {
		url = DefaultFearGreedURL
	}
	return &FearGreedSource{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *FearGreedSource) Name() string { return "fear_greed" }

func (s *FearGreedSource) Fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return 0, fmt.Errorf("fear_greed: create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fear_greed: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fear_greed: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Data []struct {
			Value string `json:"value"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("fear_greed: decode: %w", err)
	}
	if len(payload.Data) == 0 {
		return 0, fmt.Errorf("fear_greed: empty data")
	}

	v, err := strconv.ParseFloat(payload.Data[0].Value, 64)
	if err != nil {
		return 0, fmt.Errorf("fear_greed: parse value %q: %w", payload.Data[0].Value, err)
	}
	return clamp(v), nil
}

// MockSource produces a slowly drifting pseudo-random score around a base
// value. Stands in for social-volume and news-tone providers that have no
// free API; the drift keeps the dashboard lively without real data.
type MockSource struct {
	name   string
	base   float64
	spread float64

	mu   sync.Mutex
	rng  *rand.Rand
	last float64
}

// NewMockSource creates a mock source centered on base with +/- spread/2.
func NewMockSource(name string, base, spread float64) *MockSource {
	return &MockSource{
		name:   name,
		base:   base,
		spread: spread,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		last:   base,
	}
}

// Seeded replaces the RNG with a deterministic one. Returns the receiver
// so it chains with NewMockSource.
func (s *MockSource) Seeded(seed int64) *MockSource {
	s.mu.Lock()
	s.rng = rand.New(rand.NewSource(seed))
	s.mu.Unlock()
	return s
}

func (s *MockSource) Name() string { return s.name }

func (s *MockSource) Fetch(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Random walk pulled back toward base so scores stay plausible.
	step := (s.rng.Float64() - 0.5) * s.spread
	s.last = clamp(s.last + step + (s.base-s.last)*0.2)
	return s.last, nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
