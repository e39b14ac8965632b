// Package genai provides integration with LLM chat APIs.
// This file contains error classification and handling for retry/fallback logic.
package genai

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

// ErrorAction defines the action to take based on error type.
type ErrorAction int

const (
	// ActionRetry indicates the request should be retried with the same provider/model.
	ActionRetry ErrorAction = iota
	// ActionFallback indicates fallback to another model or provider should be attempted.
	ActionFallback
	// ActionFail indicates the request should fail immediately (permanent error).
	ActionFail
)

// String returns a human-readable string for the error action.
func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFallback:
		return "fallback"
	case ActionFail:
		return "fail"
	default:
		return "unknown"
	}
}

// LLMError wraps an error with additional context for retry/fallback decisions.
type LLMError struct {
	Err        error
	StatusCode int
	Provider   Provider
	Model      string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *LLMError) Error() string {
	msg := e.Err.Error()
	if e.Model != "" {
		msg = string(e.Provider) + "/" + e.Model + ": " + msg
	}
	if e.StatusCode > 0 {
		return msg + " (status: " + strconv.Itoa(e.StatusCode) + ")"
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *LLMError) Unwrap() error {
	return e.Err
}

// ClassifyError determines the appropriate action based on the error.
//   - Transient errors (429, 5xx, network) → Retry
//   - Quota exhaustion → Fallback to other model/provider
//   - Permanent errors (400, 401, 403, 404) → Fail immediately
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionFail
	}

	if errors.Is(err, context.Canceled) {
		return ActionFail
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ActionRetry
	}

	errStr := strings.ToLower(err.Error())

	// Quota exhaustion is reported as 429 by most providers; check the text first.
	if containsAny(errStr, "quota", "daily limit", "monthly limit", "billing", "insufficient balance") {
		return ActionFallback
	}

	if code, _ := statusFromError(err); code > 0 {
		return classifyStatusCode(code)
	}

	switch {
	case containsAny(errStr, "rate limit", "too many requests", "resource_exhausted", "429"):
		return ActionRetry
	case containsAny(errStr, "unavailable", "503", "502", "500", "504",
		"internal server error", "bad gateway", "gateway timeout", "overloaded", "capacity"):
		return ActionRetry
	case containsAny(errStr, "408", "409", "timeout", "deadline", "connection", "eof"):
		return ActionRetry
	case containsAny(errStr, "401", "unauthorized", "unauthenticated", "invalid api key"),
		containsAny(errStr, "403", "forbidden", "permission denied"),
		containsAny(errStr, "404", "not found"),
		containsAny(errStr, "422", "unprocessable"),
		containsAny(errStr, "400", "invalid", "bad request", "malformed"):
		return ActionFail
	}

	// Unknown errors are retried once more before giving up.
	return ActionRetry
}

// classifyStatusCode determines action based on HTTP status code.
func classifyStatusCode(statusCode int) ErrorAction {
	switch {
	case statusCode == http.StatusTooManyRequests,
		statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusConflict,
		statusCode >= 500 && statusCode < 600:
		return ActionRetry
	case statusCode >= 400 && statusCode < 500:
		return ActionFail
	default:
		return ActionRetry
	}
}

// statusFromError extracts the HTTP status (and headers, when available) from
// an LLMError or from the provider SDK error types.
func statusFromError(err error) (int, http.Header) {
	var llmErr *LLMError
	if errors.As(err, &llmErr) && llmErr.StatusCode > 0 {
		return llmErr.StatusCode, nil
	}

	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		var h http.Header
		if oaErr.Response != nil {
			h = oaErr.Response.Header
		}
		return oaErr.StatusCode, h
	}

	var gErr genai.APIError
	if errors.As(err, &gErr) {
		return gErr.Code, nil
	}
	var gErrPtr *genai.APIError
	if errors.As(err, &gErrPtr) && gErrPtr != nil {
		return gErrPtr.Code, nil
	}

	return 0, nil
}

// ParseRetryAfter parses the Retry-After header value.
// Supports both integer seconds and HTTP-date formats.
// Returns 0 if header is missing or invalid.
func ParseRetryAfter(headers http.Header) time.Duration {
	if headers == nil {
		return 0
	}

	// retry-after-ms (milliseconds, non-standard but precise)
	if msStr := headers.Get("retry-after-ms"); msStr != "" {
		if ms, err := strconv.Atoi(msStr); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}

	if secStr := headers.Get("retry-after"); secStr != "" {
		if sec, err := strconv.Atoi(secStr); err == nil && sec > 0 {
			return time.Duration(sec) * time.Second
		}
		if t, err := http.ParseTime(secStr); err == nil {
			return time.Until(t)
		}
	}

	// Groq-specific header
	if resetStr := headers.Get("x-ratelimit-reset-tokens"); resetStr != "" {
		if d, err := time.ParseDuration(resetStr); err == nil {
			return d
		}
	}

	return 0
}

// ShouldFallback returns true if the error warrants trying another provider.
func ShouldFallback(err error) bool {
	return ClassifyError(err) == ActionFallback
}

// IsRetryable returns true if the error is transient and can be retried.
func IsRetryable(err error) bool {
	return ClassifyError(err) == ActionRetry
}

// IsPermanent returns true if the error is permanent and should not be retried.
func IsPermanent(err error) bool {
	return ClassifyError(err) == ActionFail
}

// containsAny checks if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// WrapError wraps an SDK error with provider, model and status information.
func WrapError(err error, provider Provider, model string) error {
	if err == nil {
		return nil
	}
	code, headers := statusFromError(err)
	return &LLMError{
		Err:        err,
		StatusCode: code,
		Provider:   provider,
		Model:      model,
		RetryAfter: ParseRetryAfter(headers),
	}
}

// classifyErrorType maps error to a metric status label.
func classifyErrorType(err error) string {
	if err == nil {
		return "success"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}

	if code, _ := statusFromError(err); code > 0 {
		switch {
		case code == http.StatusTooManyRequests:
			if ShouldFallback(err) {
				return "quota_exhausted"
			}
			return "rate_limit"
		case code >= 500:
			return "server_error"
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return "auth_error"
		case code == http.StatusBadRequest:
			return "invalid_request"
		}
	}

	switch ClassifyError(err) {
	case ActionFallback:
		return "quota_exhausted"
	case ActionRetry:
		return "transient_error"
	default:
		return "error"
	}
}
