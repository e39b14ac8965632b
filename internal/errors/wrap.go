package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorWrapper stamps errors leaving a package with where they happened and
// what the client may be told.
type ErrorWrapper struct {
	module    string
	operation string
	sessionID string
}

// NewWrapper creates a wrapper for one module operation.
func NewWrapper(module, operation string) *ErrorWrapper {
	return &ErrorWrapper{module: module, operation: operation}
}

// WithSession returns a copy that also records the chat session.
func (w *ErrorWrapper) WithSession(sessionID string) *ErrorWrapper {
	next := *w
	next.sessionID = sessionID
	return &next
}

// Wrap returns nil for a nil err.
func (w *ErrorWrapper) Wrap(err error, userMessage string) error {
	if err == nil {
		return nil
	}
	return &WrappedError{
		Module:      w.module,
		Operation:   w.operation,
		SessionID:   w.sessionID,
		Cause:       err,
		UserMessage: userMessage,
	}
}

// WrappedError separates the internal cause from the message shown to clients.
type WrappedError struct {
	Module      string // e.g. "dialogue", "calendar"
	Operation   string // e.g. "publish", "export"
	SessionID   string // empty outside a chat session
	Cause       error
	UserMessage string
}

func (e *WrappedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s.%s", e.Module, e.Operation)
	if e.SessionID != "" {
		fmt.Fprintf(&b, " [session %s]", e.SessionID)
	}
	fmt.Fprintf(&b, ": %s: %v", e.UserMessage, e.Cause)
	return b.String()
}

func (e *WrappedError) Unwrap() error {
	return e.Cause
}

// GetUserMessage returns the outermost client-facing message in err's chain,
// or err's text when nothing in the chain carries one.
func GetUserMessage(err error) string {
	if err == nil {
		return ""
	}
	var wrapped *WrappedError
	if errors.As(err, &wrapped) {
		return wrapped.UserMessage
	}
	return err.Error()
}

// SessionIDOf returns the first session recorded in err's chain.
func SessionIDOf(err error) string {
	for err != nil {
		if wrapped, ok := err.(*WrappedError); ok && wrapped.SessionID != "" {
			return wrapped.SessionID
		}
		err = errors.Unwrap(err)
	}
	return ""
}
