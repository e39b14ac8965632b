package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 12, 20, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestNewSlidingWindowCounter(t *testing.T) {
	t.Parallel()
	disabled := NewSlidingWindowCounter(0, time.Hour)
	if disabled != nil {
		t.Error("expected nil for maxRequests <= 0")
	}
	if !disabled.Allow() || !disabled.Idle() || disabled.Remaining() != -1 {
		t.Error("expected a nil counter to be unlimited")
	}
	if NewSlidingWindowCounter(10, time.Hour) == nil {
		t.Error("expected non-nil counter")
	}
}

func TestSlidingWindowCounter_Allow(t *testing.T) {
	t.Parallel()
	swc := NewSlidingWindowCounter(5, time.Hour)

	for i := range 5 {
		if !swc.Allow() {
			t.Errorf("Allow() failed at request %d", i+1)
		}
	}
	if swc.Allow() {
		t.Error("Allow() passed when limit exceeded")
	}
}

func TestSlidingWindowCounter_WeightedCount(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	swc := newSlidingWindowCounter(10, 24*time.Hour, clock.Now)

	for range 10 {
		swc.Allow()
	}
	if swc.Allow() {
		t.Error("should be limited")
	}

	// 1.5 windows later half of the previous window still counts.
	clock.Advance(36 * time.Hour)
	if got := swc.Remaining(); got != 5 {
		t.Errorf("expected 5 remaining, got %d", got)
	}
	if !swc.Allow() {
		t.Error("should allow after window rotation")
	}
	if swc.Idle() {
		t.Error("counter with recent usage must not be idle")
	}
}

func TestSlidingWindowCounter_MultiWindowGap(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	swc := newSlidingWindowCounter(10, time.Hour, clock.Now)

	swc.Allow()
	clock.Advance(3*time.Hour + time.Minute)

	if !swc.Idle() {
		t.Error("Expected counter to be idle after a long gap")
	}
	if got := swc.Remaining(); got != 10 {
		t.Errorf("Expected full quota after a long gap, got %d", got)
	}
}

func TestSlidingWindowCounter_CheckConsume(t *testing.T) {
	t.Parallel()
	swc := NewSlidingWindowCounter(1, time.Minute)

	if !swc.Check() {
		t.Error("Check() should return true for empty counter")
	}

	swc.Consume()

	if swc.Check() {
		t.Error("Check() should return false after limit reached")
	}
}

func TestSlidingWindowCounter_Concurrency(t *testing.T) {
	t.Parallel()
	limit := 100
	swc := NewSlidingWindowCounter(limit, time.Hour)

	var wg sync.WaitGroup
	var successCount atomic.Int64

	for range 200 {
		wg.Go(func() {
			if swc.Allow() {
				successCount.Add(1)
			}
		})
	}
	wg.Wait()

	if got := successCount.Load(); got != int64(limit) {
		t.Errorf("Allowed %d requests concurrently, want %d", got, limit)
	}
}
