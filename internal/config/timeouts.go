// Package config provides centralized timeout constants for the application.
//
// A chat turn makes two model calls in parallel (classify, extract) followed
// by one sequential call (respond). Each call may retry and fall back across
// providers, so the HTTP write timeout must cover the whole model budget.
package config

import "time"

// HTTP server timeouts
const (
	// HTTPRead is the HTTP server read timeout.
	// Chat requests are small JSON payloads.
	HTTPRead = 10 * time.Second

	// HTTPWrite is the HTTP server write timeout.
	// Should accommodate LLMRequest + response serialization.
	HTTPWrite = 65 * time.Second

	// HTTPIdle is the HTTP server idle timeout for keep-alive connections.
	HTTPIdle = 120 * time.Second

	// HTTPReadHeader bounds slow-header clients.
	HTTPReadHeader = 5 * time.Second

	// ReadinessCheckTimeout bounds the database ping behind /readyz.
	ReadinessCheckTimeout = 3 * time.Second
)

// LLM timeouts
const (
	// LLMRequest is the default budget for all model calls of one turn,
	// including retries and provider fallback.
	LLMRequest = 60 * time.Second

	// LLMMinRetryBudget is the smallest remaining budget worth another attempt.
	LLMMinRetryBudget = 2 * time.Second
)

// Database timeouts
const (
	// DatabaseBusyTimeout is SQLite busy_timeout pragma value.
	DatabaseBusyTimeout = 30 * time.Second

	// DatabaseConnMaxLifetime is the maximum lifetime of database connections.
	// Prevents stale connections and allows connection pool refresh.
	DatabaseConnMaxLifetime = time.Hour
)

// Session lifecycle
const (
	// SessionIdleTTL is how long an untouched chat session survives.
	SessionIdleTTL = 30 * time.Minute

	// SessionSweepInterval is how often expired sessions are evicted.
	SessionSweepInterval = 5 * time.Minute
)

// Background job intervals
const (
	// MetricsUpdateInterval is how often gauge metrics (active sessions) are refreshed.
	MetricsUpdateInterval = 1 * time.Minute

	// RateLimiterCleanupInterval is how often inactive client rate limiters are cleaned.
	RateLimiterCleanupInterval = 5 * time.Minute
)

// Archive timeouts
const (
	// ArchiveUpload bounds one object upload after publication.
	// Runs on a detached context so the HTTP response is not delayed.
	ArchiveUpload = 30 * time.Second
)

// Graceful shutdown
const (
	// GracefulShutdown is the timeout for graceful server shutdown.
	// Allows in-flight requests to complete before forceful termination.
	GracefulShutdown = 30 * time.Second
)
