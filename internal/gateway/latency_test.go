package gateway

import (
	"math"
	"testing"
)

func recordSeries(lt *LatencyTracker, from, to int) {
	for v := from; v <= to; v++ {
		lt.Record(float64(v))
	}
}

func approx(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %f, want ~%f", name, got, want)
	}
}

func TestLatencyTracker_NoSamples(t *testing.T) {
	lt := NewLatencyTracker(64)
	p50, p95, p99 := lt.Percentiles()
	if p50 != 0 || p95 != 0 || p99 != 0 {
		t.Errorf("percentiles of empty tracker = (%f, %f, %f), want zeros", p50, p95, p99)
	}
	if lt.Count() != 0 {
		t.Errorf("Count() = %d, want 0", lt.Count())
	}
}

func TestLatencyTracker_SingleSampleIsEveryPercentile(t *testing.T) {
	lt := NewLatencyTracker(64)
	lt.Record(3.25)

	p50, p95, p99 := lt.Percentiles()
	for name, got := range map[string]float64{"p50": p50, "p95": p95, "p99": p99} {
		if got != 3.25 {
			t.Errorf("%s = %f, want 3.25", name, got)
		}
	}
}

func TestLatencyTracker_InterpolatedPercentiles(t *testing.T) {
	lt := NewLatencyTracker(1024)
	recordSeries(lt, 1, 100)

	p50, p95, p99 := lt.Percentiles()
	approx(t, "p50", p50, 50.5, 0.5)
	approx(t, "p95", p95, 95.05, 0.5)
	approx(t, "p99", p99, 99.01, 0.5)
}

func TestLatencyTracker_RingKeepsNewestSamples(t *testing.T) {
	lt := NewLatencyTracker(8)
	recordSeries(lt, 1, 24)

	if lt.Count() != 8 {
		t.Fatalf("Count() = %d, want 8", lt.Count())
	}

	// Only 17..24 remain; their median is 20.5.
	p50, _, _ := lt.Percentiles()
	approx(t, "p50 after eviction", p50, 20.5, 0.5)
}

func TestLatencyTracker_CountSaturatesAtCapacity(t *testing.T) {
	lt := NewLatencyTracker(16)
	recordSeries(lt, 1, 5)
	if lt.Count() != 5 {
		t.Errorf("Count() = %d, want 5", lt.Count())
	}
	recordSeries(lt, 6, 40)
	if lt.Count() != 16 {
		t.Errorf("Count() = %d, want 16", lt.Count())
	}
}

func TestPercentile_Bounds(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}
	if got := percentile(sorted, 0); got != 10 {
		t.Errorf("p0 = %f, want 10", got)
	}
	if got := percentile(sorted, 1); got != 40 {
		t.Errorf("p100 = %f, want 40", got)
	}
	approx(t, "p50 of four values", percentile(sorted, 0.5), 25, 0.001)
}
