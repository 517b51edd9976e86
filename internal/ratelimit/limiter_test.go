package ratelimit

import (
	"testing"
	"time"
)

func TestLimiter_CeilingEnforced(t *testing.T) {
	l := New(100, time.Minute)

	for i := 0; i < 100; i++ {
		if !l.Allow() {
			t.Fatalf("call %d: expected allow, got deny", i+1)
		}
	}
	if l.Allow() {
		t.Fatal("call 101: expected deny within the same window")
	}
}

func TestLimiter_WindowReset(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base
	l := New(100, time.Minute)
	l.now = func() time.Time { return current }
	l.windowStart = base

	for i := 0; i < 101; i++ {
		l.Allow()
	}
	if l.Allow() {
		t.Fatal("expected deny after ceiling exhausted")
	}

	// Advance past the 60s window so the counter resets.
	current = base.Add(61 * time.Second)
	if !l.Allow() {
		t.Fatal("expected allow after window elapsed")
	}
}

func TestLimiter_Remaining(t *testing.T) {
	l := New(10, time.Minute)
	if got := l.Remaining(); got != 10 {
		t.Fatalf("fresh limiter: expected 10 remaining, got %d", got)
	}
	for i := 0; i < 4; i++ {
		l.Allow()
	}
	if got := l.Remaining(); got != 6 {
		t.Fatalf("after 4 calls: expected 6 remaining, got %d", got)
	}
	for i := 0; i < 20; i++ {
		l.Allow()
	}
	if got := l.Remaining(); got != 0 {
		t.Fatalf("exhausted limiter: expected 0 remaining, got %d", got)
	}
}

func TestLimiter_DefaultsOnBadInput(t *testing.T) {
	l := New(0, 0)
	if l.ceiling != 100 {
		t.Errorf("expected default ceiling 100, got %d", l.ceiling)
	}
	if l.window != time.Minute {
		t.Errorf("expected default window 60s, got %v", l.window)
	}
}
