package sentiment

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"signalstreamv1/internal/model"
)

// Source weights: Fear & Greed dominates, the two auxiliary feeds split
// the remainder.
const (
	fearGreedWeight = 0.4
	socialWeight    = 0.3
	newsWeight      = 0.3
)

// Aggregator combines three sentiment sources into one cached snapshot.
// Refresh runs on its own timer, much slower than the price broadcast;
// every interleaved price tick reuses the last cached snapshot.
type Aggregator struct {
	fearGreed Source
	social    Source
	news      Source

	mu      sync.RWMutex
	last    model.SentimentSnapshot
	fetched bool
}

// New creates an Aggregator over the three named sources.
func New(fearGreed, social, news Source) *Aggregator {
	return &Aggregator{
		fearGreed: fearGreed,
		social:    social,
		news:      news,
	}
}

// Refresh fetches all sources, combines them and caches the result.
// A failing source contributes the neutral default (50) instead of
// aborting the aggregation.
func (a *Aggregator) Refresh(ctx context.Context) model.SentimentSnapshot {
	components := make(map[string]float64, 3)
	fg := a.fetchOne(ctx, a.fearGreed, components)
	so := a.fetchOne(ctx, a.social, components)
	ne := a.fetchOne(ctx, a.news, components)

	overall := round2(fg*fearGreedWeight + so*socialWeight + ne*newsWeight)

	snap := model.SentimentSnapshot{
		Components:   components,
		OverallScore: overall,
		Trend:        Trend(overall),
		TS:           time.Now().UTC(),
	}

	a.mu.Lock()
	a.last = snap
	a.fetched = true
	a.mu.Unlock()

	return snap
}

func (a *Aggregator) fetchOne(ctx context.Context, src Source, components map[string]float64) float64 {
	score, err := src.Fetch(ctx)
	if err != nil {
		log.Printf("[sentiment] source %s failed: %v (using neutral %v)", src.Name(), err, neutralScore)
		score = neutralScore
	}
	components[src.Name()] = score
	return score
}

// Latest returns the cached snapshot. ok is false before the first Refresh.
func (a *Aggregator) Latest() (model.SentimentSnapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last, a.fetched
}

// Trend buckets an overall score into a qualitative label.
func Trend(score float64) string {
	switch {
	case score < 35:
		return "extreme fear"
	case score < 50:
		return "fear"
	case score < 65:
		return "neutral"
	case score < 80:
		return "greed"
	default:
		return "extreme greed"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
