package config

import (
	"errors"
	"fmt"
	"time"
)

// ChatConfig centralizes dialogue engine limits.
type ChatConfig struct {
	// Session lifecycle
	SessionTTL           time.Duration // Idle time before a session is evicted
	SessionSweepInterval time.Duration // Janitor period for expired sessions

	// Dialogue
	PublishThreshold float64 // Minimum completeness for publication (0-1)
	HistoryLimit     int     // Turns passed to the model per call
	MaxTurns         int     // Turns retained per session
	MaxMessageLength int     // Longest accepted user message, in runes

	// Rate limiting (token bucket per client, applied to model-backed turns)
	TurnRateBurst      float64 // Maximum burst turns per client
	TurnRatePerHour    float64 // Turns refilled per hour
	TurnDailyLimit     int     // Rolling 24h cap per client (0 = disabled)
	GlobalRateLimitRPS float64 // Global cap on chat requests per second
}

// DefaultChatConfig returns default dialogue limits.
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		SessionTTL:           SessionIdleTTL,
		SessionSweepInterval: SessionSweepInterval,
		PublishThreshold:     0.6,
		HistoryLimit:         20,
		MaxTurns:             50,
		MaxMessageLength:     4000,
		TurnRateBurst:        30,
		TurnRatePerHour:      120,
		TurnDailyLimit:       500,
		GlobalRateLimitRPS:   50,
	}
}

// Validate checks if the configuration is valid.
// Returns every violation joined together.
func (c ChatConfig) Validate() error {
	var errs []error

	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("session TTL must be positive, got %v", c.SessionTTL))
	}
	if c.SessionSweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("session sweep interval must be positive, got %v", c.SessionSweepInterval))
	}
	if c.PublishThreshold <= 0 || c.PublishThreshold > 1 {
		errs = append(errs, fmt.Errorf("publish threshold must be in (0, 1], got %v", c.PublishThreshold))
	}
	if c.HistoryLimit < 1 {
		errs = append(errs, fmt.Errorf("history limit must be positive, got %d", c.HistoryLimit))
	}
	if c.MaxTurns < c.HistoryLimit {
		errs = append(errs, fmt.Errorf("max turns (%d) must be >= history limit (%d)", c.MaxTurns, c.HistoryLimit))
	}
	if c.MaxMessageLength < 1 {
		errs = append(errs, fmt.Errorf("max message length must be positive, got %d", c.MaxMessageLength))
	}
	if c.TurnRateBurst <= 0 {
		errs = append(errs, fmt.Errorf("turn rate burst must be positive, got %v", c.TurnRateBurst))
	}
	if c.TurnRatePerHour <= 0 {
		errs = append(errs, fmt.Errorf("turn rate refill must be positive, got %v", c.TurnRatePerHour))
	}
	if c.TurnDailyLimit < 0 {
		errs = append(errs, fmt.Errorf("turn daily limit cannot be negative, got %d", c.TurnDailyLimit))
	}
	if c.GlobalRateLimitRPS <= 0 {
		errs = append(errs, fmt.Errorf("global rate limit RPS must be positive, got %v", c.GlobalRateLimitRPS))
	}

	return errors.Join(errs...)
}
