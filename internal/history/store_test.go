package history

import "testing"

func TestStore_FIFOEviction(t *testing.T) {
	s := New(200)

	for i := 0; i < 250; i++ {
		s.Append("BTCUSDT", float64(i))
	}

	got := s.Get("BTCUSDT")
	if len(got) != 200 {
		t.Fatalf("expected window length 200, got %d", len(got))
	}
	// Oldest 50 entries evicted: window should be [50..249].
	if got[0] != 50 {
		t.Errorf("expected oldest entry 50, got %v", got[0])
	}
	if got[199] != 249 {
		t.Errorf("expected newest entry 249, got %v", got[199])
	}
}

func TestStore_OrderedBeforeFull(t *testing.T) {
	s := New(10)
	for i := 0; i < 5; i++ {
		s.Append("ETHUSDT", float64(100+i))
	}
	got := s.Get("ETHUSDT")
	if len(got) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(got))
	}
	for i, v := range got {
		if v != float64(100+i) {
			t.Errorf("entry %d: expected %d, got %v", i, 100+i, v)
		}
	}
}

func TestStore_AbsentSymbol(t *testing.T) {
	s := New(10)
	if got := s.Get("NOPE"); len(got) != 0 {
		t.Errorf("expected empty slice for absent symbol, got %v", got)
	}
	if got := s.Len("NOPE"); got != 0 {
		t.Errorf("expected length 0 for absent symbol, got %d", got)
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := New(10)
	s.Append("SOLUSDT", 100)
	s.Append("SOLUSDT", 101)

	got := s.Get("SOLUSDT")
	got[0] = -1

	again := s.Get("SOLUSDT")
	if again[0] != 100 {
		t.Errorf("mutating the returned slice corrupted the store: got %v", again[0])
	}
}

func TestStore_SeedTrimsToCapacity(t *testing.T) {
	s := New(5)
	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	s.Seed("BTCUSDT", closes)

	got := s.Get("BTCUSDT")
	if len(got) != 5 {
		t.Fatalf("expected 5 entries after seed, got %d", len(got))
	}
	if got[0] != 4 || got[4] != 8 {
		t.Errorf("expected [4..8], got %v", got)
	}
}

func TestStore_SeedReplacesExisting(t *testing.T) {
	s := New(10)
	s.Append("BTCUSDT", 999)
	s.Seed("BTCUSDT", []float64{1, 2, 3})

	got := s.Get("BTCUSDT")
	if len(got) != 3 || got[0] != 1 {
		t.Errorf("expected seed to replace prior contents, got %v", got)
	}
}
