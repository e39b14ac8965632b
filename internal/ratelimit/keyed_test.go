package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/garyellow/uniflow-chat/internal/metrics"
)

func TestKeyedLimiter_Basic(t *testing.T) {
	t.Parallel()
	m := metrics.New(prometheus.NewRegistry())
	kl := NewKeyedLimiter(KeyedConfig{
		Name:          "client",
		Burst:         1,
		RefillRate:    0.001,
		CleanupPeriod: time.Hour,
		Metrics:       m,
	})
	defer kl.Stop()

	if !kl.Allow("10.0.0.1") {
		t.Error("first request from 10.0.0.1 failed")
	}
	d := kl.Decide("10.0.0.1")
	if d.Allowed {
		t.Error("second request allowed (should limit)")
	}
	if d.RetryAfter <= 0 || d.DailyExceeded {
		t.Errorf("unexpected refusal %+v", d)
	}
	if !kl.Allow("10.0.0.2") {
		t.Error("first request from 10.0.0.2 failed")
	}
	if !kl.Allow("") {
		t.Error("empty key must never be limited")
	}
	if got := testutil.ToFloat64(m.RateLimiterDropped.WithLabelValues("client")); got != 1 {
		t.Errorf("Expected 1 drop recorded, got %v", got)
	}
}

func TestKeyedLimiter_DailyLimit(t *testing.T) {
	t.Parallel()
	kl := NewKeyedLimiter(KeyedConfig{
		Name:       "client",
		Burst:      10,
		RefillRate: 1,
		DailyLimit: 2,
	})
	defer kl.Stop()

	if r := kl.DailyRemaining("u1"); r != 2 {
		t.Errorf("Initial daily = %d, want 2", r)
	}
	kl.Allow("u1")
	kl.Allow("u1")
	d := kl.Decide("u1")
	if d.Allowed || !d.DailyExceeded {
		t.Errorf("Expected daily refusal, got %+v", d)
	}
	if r := kl.DailyRemaining("u1"); r != 0 {
		t.Errorf("After usage daily = %d, want 0", r)
	}
	// A refused request consumes nothing from the bucket.
	if v := kl.Available("u1"); v < 7.9 {
		t.Errorf("Expected ~8 tokens left, got %f", v)
	}

	nodaily := NewKeyedLimiter(KeyedConfig{Name: "nodaily", Burst: 10})
	defer nodaily.Stop()
	if r := nodaily.DailyRemaining("u1"); r != -1 {
		t.Errorf("Disabled daily = %d, want -1", r)
	}
}

func TestKeyedLimiter_Cleanup(t *testing.T) {
	t.Parallel()
	m := metrics.New(prometheus.NewRegistry())
	kl := NewKeyedLimiter(KeyedConfig{
		Name:          "client",
		Burst:         10,
		RefillRate:    1000,
		CleanupPeriod: time.Hour,
		Metrics:       m,
	})
	defer kl.Stop()

	kl.Allow("u1")
	if count := kl.ActiveCount(); count != 1 {
		t.Errorf("Active count = %d, want 1", count)
	}

	time.Sleep(20 * time.Millisecond) // bucket refills
	kl.cleanup()

	if count := kl.ActiveCount(); count != 0 {
		t.Errorf("Active count = %d, want 0 after cleanup", count)
	}
	if got := testutil.ToFloat64(m.RateLimiterClients.WithLabelValues("client")); got != 0 {
		t.Errorf("Expected client gauge 0, got %v", got)
	}
}

func TestKeyedLimiter_CleanupKeepsDailyUsage(t *testing.T) {
	t.Parallel()
	kl := NewKeyedLimiter(KeyedConfig{
		Name:          "client",
		Burst:         10,
		RefillRate:    1000,
		CleanupPeriod: time.Hour,
		DailyLimit:    5,
	})
	defer kl.Stop()

	kl.Allow("u1")
	time.Sleep(20 * time.Millisecond)
	kl.cleanup()

	if count := kl.ActiveCount(); count != 1 {
		t.Errorf("Active count = %d, want 1 (daily usage must survive cleanup)", count)
	}
	if r := kl.DailyRemaining("u1"); r != 4 {
		t.Errorf("Expected daily remaining 4, got %d", r)
	}
}

func TestKeyedLimiter_ThreadSafety(t *testing.T) {
	t.Parallel()
	kl := NewKeyedLimiter(KeyedConfig{
		Name:          "client",
		Burst:         1000,
		RefillRate:    1,
		CleanupPeriod: time.Hour,
	})
	defer kl.Stop()

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Go(func() {
			key := fmt.Sprintf("client%d", i%10)
			kl.Allow(key)
			kl.Available(key)
		})
	}
	wg.Wait()

	if count := kl.ActiveCount(); count != 10 {
		t.Errorf("Expected 10 tracked clients, got %d", count)
	}
}

func TestKeyedLimiter_StopTwice(t *testing.T) {
	t.Parallel()
	kl := NewKeyedLimiter(KeyedConfig{Name: "client", Burst: 1, RefillRate: 1})
	kl.Stop()
	kl.Stop()
}
