package logger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/lo"
)

// MultiHandler writes each record to stdout and the remote sink.
// Handlers that reject a level are skipped for that record.
type MultiHandler struct {
	sinks []slog.Handler
}

// NewMultiHandler drops nil handlers so optional sinks can be passed as-is.
func NewMultiHandler(sinks ...slog.Handler) *MultiHandler {
	return &MultiHandler{sinks: lo.Filter(sinks, func(h slog.Handler, _ int) bool { return h != nil })}
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return lo.SomeBy(m.sinks, func(h slog.Handler) bool { return h.Enabled(ctx, level) })
}

// Handle gives every enabled sink its own clone of r and joins their errors.
func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.sinks {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &MultiHandler{sinks: lo.Map(m.sinks, func(h slog.Handler, _ int) slog.Handler { return h.WithAttrs(attrs) })}
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	return &MultiHandler{sinks: lo.Map(m.sinks, func(h slog.Handler, _ int) slog.Handler { return h.WithGroup(name) })}
}
