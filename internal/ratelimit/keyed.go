package ratelimit

import (
	"sync"
	"time"

	"github.com/garyellow/uniflow-chat/internal/metrics"
)

const dailyWindow = 24 * time.Hour

// KeyedConfig configures a KeyedLimiter instance.
type KeyedConfig struct {
	// Name identifies this limiter in metrics (e.g. "client")
	Name string

	// Token bucket settings
	Burst      float64 // Maximum tokens (burst capacity)
	RefillRate float64 // Tokens refilled per second

	// Rolling 24h cap per key (0 = disabled)
	DailyLimit int

	// How often to drop idle keys. Defaults to five minutes.
	CleanupPeriod time.Duration

	// Optional metrics reporter
	Metrics *metrics.Metrics
}

// Decision is the outcome of a keyed check.
type Decision struct {
	Allowed bool
	// RetryAfter hints when to come back; zero when allowed.
	RetryAfter time.Duration
	// DailyExceeded is set when the rolling daily quota, not the burst, refused.
	DailyExceeded bool
}

// KeyedLimiter tracks rate limits per key (client IP, session id).
// Idle keys are removed in the background.
type KeyedLimiter struct {
	mu      sync.RWMutex
	entries map[string]*keyedEntry
	config  KeyedConfig
	stopCh  chan struct{}
	once    sync.Once
}

// keyedEntry holds per-key state. Its mutex makes the two-layer
// check-then-consume atomic.
type keyedEntry struct {
	mu      sync.Mutex
	limiter *Limiter
	daily   *SlidingWindowCounter
}

// NewKeyedLimiter creates a per-key limiter and starts its cleanup loop.
// Call Stop when done.
func NewKeyedLimiter(cfg KeyedConfig) *KeyedLimiter {
	if cfg.CleanupPeriod <= 0 {
		cfg.CleanupPeriod = 5 * time.Minute
	}
	kl := &KeyedLimiter{
		entries: make(map[string]*keyedEntry),
		config:  cfg,
		stopCh:  make(chan struct{}),
	}

	go kl.cleanupLoop()

	return kl
}

// Allow reports whether a request for key may proceed, consuming a token
// when it does.
func (kl *KeyedLimiter) Allow(key string) bool {
	return kl.Decide(key).Allowed
}

// Decide is Allow with the reason for a refusal.
// The empty key is never limited.
func (kl *KeyedLimiter) Decide(key string) Decision {
	if key == "" {
		return Decision{Allowed: true}
	}

	entry := kl.getOrCreateEntry(key)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.daily.Check() {
		kl.config.Metrics.RecordRateLimiterDrop(kl.config.Name)
		return Decision{RetryAfter: time.Hour, DailyExceeded: true}
	}
	if !entry.limiter.Check() {
		kl.config.Metrics.RecordRateLimiterDrop(kl.config.Name)
		return Decision{RetryAfter: entry.limiter.RetryAfter()}
	}

	entry.daily.Consume()
	entry.limiter.Consume()
	return Decision{Allowed: true}
}

func (kl *KeyedLimiter) getOrCreateEntry(key string) *keyedEntry {
	kl.mu.RLock()
	entry, exists := kl.entries[key]
	kl.mu.RUnlock()

	if exists {
		return entry
	}

	kl.mu.Lock()
	defer kl.mu.Unlock()

	// Double-check after acquiring write lock
	if entry, exists = kl.entries[key]; exists {
		return entry
	}

	entry = &keyedEntry{
		limiter: New(kl.config.Burst, kl.config.RefillRate),
		daily:   NewSlidingWindowCounter(kl.config.DailyLimit, dailyWindow),
	}
	kl.entries[key] = entry
	return entry
}

// Available returns the tokens left for key, or Burst for an unseen key.
func (kl *KeyedLimiter) Available(key string) float64 {
	kl.mu.RLock()
	entry, exists := kl.entries[key]
	kl.mu.RUnlock()

	if !exists {
		return kl.config.Burst
	}
	return entry.limiter.Available()
}

// DailyRemaining returns the rolling daily quota left for key.
// Returns -1 if the daily limit is disabled.
func (kl *KeyedLimiter) DailyRemaining(key string) int {
	if kl.config.DailyLimit <= 0 {
		return -1
	}

	kl.mu.RLock()
	entry, exists := kl.entries[key]
	kl.mu.RUnlock()

	if !exists {
		return kl.config.DailyLimit
	}
	return entry.daily.Remaining()
}

// ActiveCount returns the number of tracked keys.
func (kl *KeyedLimiter) ActiveCount() int {
	kl.mu.RLock()
	defer kl.mu.RUnlock()
	return len(kl.entries)
}

func (kl *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(kl.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-kl.stopCh:
			return
		case <-ticker.C:
			kl.cleanup()
		}
	}
}

// cleanup drops keys whose bucket has refilled and whose daily window holds
// no usage, so forgetting them changes no future decision.
func (kl *KeyedLimiter) cleanup() {
	kl.mu.Lock()
	for key, entry := range kl.entries {
		if entry.limiter.IsFull() && entry.daily.Idle() {
			delete(kl.entries, key)
		}
	}
	active := len(kl.entries)
	kl.mu.Unlock()

	kl.config.Metrics.SetRateLimiterClients(kl.config.Name, active)
}

// Stop stops the cleanup goroutine. Safe to call multiple times.
func (kl *KeyedLimiter) Stop() {
	kl.once.Do(func() { close(kl.stopCh) })
}
