package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock returns a limiter whose clock is advanced by the returned func.
func fakeClock(l *Limiter) func(time.Duration) {
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }
	return func(d time.Duration) { now = now.Add(d) }
}

func TestReserve_Burst(t *testing.T) {
	l := NewLimiter(1.0, 3)
	fakeClock(l)
	for i := 0; i < 3; i++ {
		if !l.Allow("k") {
			t.Fatalf("request %d should be allowed within burst", i+1)
		}
	}
	ok, wait := l.Reserve("k")
	if ok {
		t.Fatal("fourth request should be limited")
	}
	if wait != time.Second {
		t.Errorf("retryAfter = %v, want 1s", wait)
	}
}

func TestReserve_Refill(t *testing.T) {
	l := NewLimiter(2.0, 1)
	advance := fakeClock(l)
	if !l.Allow("k") {
		t.Fatal("first request should be allowed")
	}
	if l.Allow("k") {
		t.Fatal("second request should be limited")
	}
	advance(250 * time.Millisecond)
	if ok, wait := l.Reserve("k"); ok || wait != 250*time.Millisecond {
		t.Errorf("half refilled: ok=%v wait=%v", ok, wait)
	}
	advance(250 * time.Millisecond)
	if !l.Allow("k") {
		t.Error("token should have refilled")
	}
}

func TestReserve_RefillCapsAtBurst(t *testing.T) {
	l := NewLimiter(10.0, 2)
	advance := fakeClock(l)
	l.Allow("k")
	advance(time.Hour)
	allowed := 0
	for i := 0; i < 5; i++ {
		if l.Allow("k") {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("allowed %d after long idle, want burst 2", allowed)
	}
}

func TestReserve_KeysIndependent(t *testing.T) {
	l := NewLimiter(0, 1)
	fakeClock(l)
	if !l.Allow("a") || !l.Allow("b") {
		t.Fatal("each key starts with a full bucket")
	}
	if ok, wait := l.Reserve("a"); ok || wait != 0 {
		t.Errorf("zero rate never refills: ok=%v wait=%v", ok, wait)
	}
}

func TestReserve_Concurrent(t *testing.T) {
	l := NewLimiter(0, 50)
	fakeClock(l)
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("k") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 50 {
		t.Errorf("allowed %d, want 50", allowed)
	}
}

func TestCheckLimit(t *testing.T) {
	limiters := ToolLimiters{"tickframe_run": NewLimiter(0, 1)}
	fakeClock(limiters["tickframe_run"])

	if err := CheckLimit(limiters, "tickframe_run"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	err := CheckLimit(limiters, "tickframe_run")
	if !errors.Is(err, ErrLimited) {
		t.Errorf("expected ErrLimited, got %v", err)
	}
	if err := CheckLimit(limiters, "unlisted"); err != nil {
		t.Errorf("unlisted tool should pass: %v", err)
	}
}

func TestNewToolLimiters(t *testing.T) {
	limiters := NewToolLimiters()
	for _, tool := range []string{"tickframe_run", "tickframe_runs", "tickframe_metrics", "tickframe_graph", "tickframe_presets"} {
		if limiters[tool] == nil {
			t.Errorf("missing limiter for %s", tool)
		}
	}
}
