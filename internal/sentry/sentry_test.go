package sentry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"

	apperrors "github.com/garyellow/uniflow-chat/internal/errors"
)

func TestInitialize_EmptyToken(t *testing.T) {
	t.Parallel()

	// Should return nil when token is empty (disabled)
	if err := Initialize(Config{Token: ""}); err != nil {
		t.Errorf("Expected nil error for empty token, got %v", err)
	}
}

func TestInitialize_MissingHost(t *testing.T) {
	t.Parallel()

	err := Initialize(Config{Token: "test-token", Host: ""})
	if err == nil {
		t.Error("Expected error when host is missing")
	}
}

func TestInitialize_ValidConfig(t *testing.T) {
	// Cannot use t.Parallel() as Sentry uses global state

	err := Initialize(Config{
		Token:       "test-token",
		Host:        "errors.betterstack.com",
		Environment: "test",
		ServerName:  "uniflow-chat",
		SampleRate:  0,
	})
	if err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}

	if !IsEnabled() {
		t.Error("Expected IsEnabled() to return true after initialization")
	}

	Flush(time.Second)
}

func TestIsExpected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"invalid input", fmt.Errorf("turn: %w", apperrors.ErrInvalidInput), true},
		{"session not found", apperrors.ErrSessionNotFound, true},
		{"validation error", &apperrors.ValidationError{Field: "message", Message: "empty"}, true},
		{"not publishable", fmt.Errorf("complete: %w", apperrors.ErrNotPublishable), true},
		{"canceled", context.Canceled, true},
		{"upstream", apperrors.NewUpstreamError("gemini", "classify", errors.New("503")), false},
		{"plain", errors.New("disk full"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsExpected(tt.err); got != tt.want {
				t.Errorf("IsExpected(%v) = %v, expected %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDropExpected(t *testing.T) {
	t.Parallel()

	ev := &sentry.Event{Message: "x"}
	if got := dropExpected(ev, nil); got != ev {
		t.Error("Expected event kept without hint")
	}
	if got := dropExpected(ev, &sentry.EventHint{OriginalException: apperrors.ErrInvalidInput}); got != nil {
		t.Error("Expected invalid input to be dropped")
	}
	if got := dropExpected(ev, &sentry.EventHint{OriginalException: errors.New("db locked")}); got != ev {
		t.Error("Expected unexpected error to be kept")
	}
}

func TestFlush(t *testing.T) {
	t.Parallel()

	// Flush should complete quickly when there are no events
	if !Flush(100 * time.Millisecond) {
		t.Error("Expected Flush to return true when no events pending")
	}
}
