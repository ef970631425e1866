package poll

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRegister_RejectsInvalidInterval(t *testing.T) {
	r := NewRegistry(context.Background(), nil)
	t.Cleanup(r.Close)

	for _, interval := range []time.Duration{0, -time.Second} {
		_, err := r.Register("bad", interval, func(context.Context) error { return nil })
		if !errors.Is(err, ErrInvalidInterval) {
			t.Fatalf("Register(%v) error = %v, want ErrInvalidInterval", interval, err)
		}
	}
	if r.Len() != 0 {
		t.Fatalf("Len = %d, want 0", r.Len())
	}
}

func TestRegister_RunsImmediatelyAndRepeatedly(t *testing.T) {
	r := NewRegistry(context.Background(), nil)
	t.Cleanup(r.Close)

	var calls atomic.Int32
	h, err := r.Register("count", 10*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	waitFor(t, "three fetches", func() bool { return calls.Load() >= 3 })
	if h.Stats().Runs < 3 {
		t.Fatalf("Stats.Runs = %d, want >= 3", h.Stats().Runs)
	}
}

func TestTick_SkipsWhileFetchInFlight(t *testing.T) {
	r := NewRegistry(context.Background(), nil)
	t.Cleanup(r.Close)

	release := make(chan struct{})
	var calls atomic.Int32
	h, err := r.Register("slow", 5*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	waitFor(t, "skipped ticks", func() bool { return h.Stats().Skipped >= 3 })
	if n := calls.Load(); n != 1 {
		t.Fatalf("fetch called %d times during overlap, want 1", n)
	}
	close(release)
	waitFor(t, "fetch after release", func() bool { return calls.Load() >= 2 })
}

func TestTick_ErrorsAndPanicsAreContained(t *testing.T) {
	r := NewRegistry(context.Background(), nil)
	t.Cleanup(r.Close)

	var calls atomic.Int32
	h, err := r.Register("flaky", 5*time.Millisecond, func(context.Context) error {
		if calls.Add(1)%2 == 0 {
			panic("boom")
		}
		return errors.New("offline")
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	waitFor(t, "four failures", func() bool { return h.Stats().Failures >= 4 })
}

func TestDispose_StopsEntry(t *testing.T) {
	r := NewRegistry(context.Background(), nil)
	t.Cleanup(r.Close)

	var calls atomic.Int32
	h, err := r.Register("stop-me", 5*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	waitFor(t, "first fetch", func() bool { return calls.Load() >= 1 })

	h.Dispose()
	h.Dispose()
	if r.Len() != 0 {
		t.Fatalf("Len = %d after Dispose, want 0", r.Len())
	}
	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	if calls.Load() != after {
		t.Fatalf("fetch ran after Dispose")
	}
	if r.Unregister(h) {
		t.Fatalf("Unregister returned true for a disposed handle")
	}
}

func TestClose_RejectsNewRegistrations(t *testing.T) {
	r := NewRegistry(context.Background(), nil)
	if _, err := r.Register("a", time.Second, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	r.Close()

	if _, err := r.Register("b", time.Second, func(context.Context) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Fatalf("Register after Close error = %v, want ErrClosed", err)
	}
}

func TestHandle_IDsAreUnique(t *testing.T) {
	r := NewRegistry(context.Background(), nil)
	t.Cleanup(r.Close)

	noop := func(context.Context) error { return nil }
	a, _ := r.Register("a", time.Second, noop)
	b, _ := r.Register("a", time.Second, noop)
	if a.ID() == b.ID() {
		t.Fatalf("handles share id %s", a.ID())
	}
	if a.Name() != "a" {
		t.Fatalf("Name = %q, want a", a.Name())
	}
}
