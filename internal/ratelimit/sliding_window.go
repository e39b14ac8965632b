package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindowCounter approximates a rolling window with two fixed windows.
//
//	effectiveCount = currCount + prevCount × (remaining time in current window / window)
//
// Example for a 24h window with limit 100: a client made 80 turns in the
// previous window and is now 30 minutes into the current one, so about 78 of
// those still count and about 22 turns remain.
type SlidingWindowCounter struct {
	mu              sync.Mutex
	currCount       int
	prevCount       int
	currWindowStart time.Time
	windowDuration  time.Duration
	maxRequests     int
	now             func() time.Time
}

// NewSlidingWindowCounter creates a counter allowing maxRequests per window.
// Returns nil (unlimited) when maxRequests <= 0; a nil counter is usable.
func NewSlidingWindowCounter(maxRequests int, window time.Duration) *SlidingWindowCounter {
	return newSlidingWindowCounter(maxRequests, window, time.Now)
}

func newSlidingWindowCounter(maxRequests int, window time.Duration, now func() time.Time) *SlidingWindowCounter {
	if maxRequests <= 0 {
		return nil
	}
	return &SlidingWindowCounter{
		currWindowStart: now(),
		windowDuration:  window,
		maxRequests:     maxRequests,
		now:             now,
	}
}

// Allow consumes one slot if the window has room.
func (swc *SlidingWindowCounter) Allow() bool {
	if swc == nil {
		return true
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	if swc.countLocked() >= float64(swc.maxRequests) {
		return false
	}
	swc.currCount++
	return true
}

// Check reports whether a request would be allowed without consuming.
func (swc *SlidingWindowCounter) Check() bool {
	if swc == nil {
		return true
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	return swc.countLocked() < float64(swc.maxRequests)
}

// Consume records one request (assumes Check() already passed).
func (swc *SlidingWindowCounter) Consume() {
	if swc == nil {
		return
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	if swc.countLocked() < float64(swc.maxRequests) {
		swc.currCount++
	}
}

// Remaining returns the approximate remaining quota, or -1 when unlimited.
func (swc *SlidingWindowCounter) Remaining() int {
	if swc == nil {
		return -1
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	return max(int(float64(swc.maxRequests)-swc.countLocked()), 0)
}

// Idle reports whether no request in the current or previous window still
// counts against the quota.
func (swc *SlidingWindowCounter) Idle() bool {
	if swc == nil {
		return true
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	return swc.countLocked() == 0
}

// countLocked rotates the window if needed and returns the weighted count.
// Must be called with mu held.
func (swc *SlidingWindowCounter) countLocked() float64 {
	elapsed := swc.now().Sub(swc.currWindowStart)

	if elapsed >= swc.windowDuration {
		windowsPassed := int(elapsed / swc.windowDuration)
		if windowsPassed == 1 {
			swc.prevCount = swc.currCount
		} else {
			// More than one window passed: the previous window is empty.
			swc.prevCount = 0
		}
		swc.currCount = 0
		swc.currWindowStart = swc.currWindowStart.Add(time.Duration(windowsPassed) * swc.windowDuration)
		elapsed = swc.now().Sub(swc.currWindowStart)
	}

	overlap := float64(swc.windowDuration-elapsed) / float64(swc.windowDuration)
	overlap = min(max(overlap, 0), 1)
	return float64(swc.currCount) + float64(swc.prevCount)*overlap
}
