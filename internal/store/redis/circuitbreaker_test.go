package redis

import (
	"errors"
	"testing"
	"time"
)

var errWrite = errors.New("redis write failed")

// trip drives the breaker into the open state with n consecutive failures.
func trip(t *testing.T, cb *CircuitBreaker, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := cb.Execute(func() error { return errWrite }); !errors.Is(err, errWrite) {
			t.Fatalf("failure %d: got %v, want errWrite", i+1, err)
		}
	}
	if got := cb.CurrentState(); got != StateOpen {
		t.Fatalf("after %d failures state = %v, want open", n, got)
	}
}

func TestCircuitBreaker_NewIsClosed(t *testing.T) {
	cb := NewCircuitBreaker(3, 100*time.Millisecond)
	if got := cb.CurrentState(); got != StateClosed {
		t.Errorf("state = %v, want closed", got)
	}
}

func TestCircuitBreaker_OpenRejectsWithoutCalling(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	trip(t, cb, 3)

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("got %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("fn ran while the breaker was open")
	}
}

func TestCircuitBreaker_ProbeClosesOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(2, 20*time.Millisecond)
	trip(t, cb, 2)

	time.Sleep(30 * time.Millisecond)

	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe returned %v, want nil", err)
	}
	if got := cb.CurrentState(); got != StateClosed {
		t.Errorf("state after successful probe = %v, want closed", got)
	}
}

func TestCircuitBreaker_ProbeFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(2, 20*time.Millisecond)
	trip(t, cb, 2)

	time.Sleep(30 * time.Millisecond)

	if err := cb.Execute(func() error { return errWrite }); !errors.Is(err, errWrite) {
		t.Fatalf("probe returned %v, want errWrite", err)
	}
	if got := cb.CurrentState(); got != StateOpen {
		t.Errorf("state after failed probe = %v, want open", got)
	}
}

func TestCircuitBreaker_SuccessClearsFailureStreak(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	// Two failures, one success, two more failures: the streak never
	// reaches three, so the breaker must stay closed throughout.
	cb.Execute(func() error { return errWrite })
	cb.Execute(func() error { return errWrite })
	cb.Execute(func() error { return nil })
	cb.Execute(func() error { return errWrite })
	cb.Execute(func() error { return errWrite })

	if got := cb.CurrentState(); got != StateClosed {
		t.Errorf("state = %v, want closed", got)
	}
}

func TestCircuitBreaker_StateChangeNotifications(t *testing.T) {
	cb := NewCircuitBreaker(1, 20*time.Millisecond)

	var seen []State
	cb.OnStateChange = func(_, to State) { seen = append(seen, to) }

	cb.Execute(func() error { return errWrite })
	time.Sleep(30 * time.Millisecond)
	cb.Execute(func() error { return nil })

	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transition %d = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(7):      "unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
