// Package errors provides domain-specific error types and sentinel errors
// for improved error handling across the application.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrSessionNotFound indicates the chat session does not exist or has expired.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidInput indicates user provided invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration indicates missing model credentials or invalid settings.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrMalformedModelOutput indicates the model reply could not be parsed.
	// Always recovered locally with a safe default.
	ErrMalformedModelOutput = errors.New("malformed model output")

	// ErrUpstream indicates the language model failed (network, timeout, quota).
	ErrUpstream = errors.New("upstream model failure")

	// ErrNotPublishable indicates the draft does not meet the publish threshold.
	ErrNotPublishable = errors.New("draft not publishable")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")
)

// IsNotFound reports whether err is a missing resource or session.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrSessionNotFound)
}

// IsInvalidInput reports whether err is ErrInvalidInput or a ValidationError.
func IsInvalidInput(err error) bool {
	var ve *ValidationError
	return errors.Is(err, ErrInvalidInput) || errors.As(err, &ve)
}

// IsUpstream reports whether err came from the language model.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstream)
}

// ValidationError represents input validation failures.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// UpstreamError represents a language model failure with provider context.
// It matches ErrUpstream under errors.Is.
type UpstreamError struct {
	Provider  string
	Operation string
	Err       error
}

func (e *UpstreamError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("upstream error (provider=%s, op=%s): %v", e.Provider, e.Operation, e.Err)
	}
	return fmt.Sprintf("upstream error (op=%s): %v", e.Operation, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrUpstream) true for every UpstreamError.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// NewUpstreamError creates a new upstream error.
func NewUpstreamError(provider, operation string, err error) *UpstreamError {
	return &UpstreamError{
		Provider:  provider,
		Operation: operation,
		Err:       err,
	}
}
