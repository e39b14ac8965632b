// Package genai provides integration with LLM chat APIs.
// This file contains the fallback chain for model and provider failover.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/garyellow/uniflow-chat/internal/metrics"
)

// FallbackChatModel tries an ordered chain of models.
// Each model is retried with backoff; a model whose errors are permanent or
// exhausted hands over to the next one. Permanent errors skip the remaining
// models of the same provider since they share credentials.
type FallbackChatModel struct {
	models      []ChatModel
	retryConfig RetryConfig
}

// NewFallbackChatModel creates a chain from models in priority order.
func NewFallbackChatModel(cfg RetryConfig, models ...ChatModel) *FallbackChatModel {
	return &FallbackChatModel{
		models:      models,
		retryConfig: cfg,
	}
}

// Complete returns the first successful reply in the chain.
func (f *FallbackChatModel) Complete(ctx context.Context, req ChatRequest) (string, error) {
	if f == nil || len(f.models) == 0 {
		return "", errors.New("chat model not configured")
	}

	op := req.Operation
	if op == "" {
		op = "chat"
	}

	var lastErr error
	var skip Provider
	for i, m := range f.models {
		if m.Provider() == skip {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		start := time.Now()
		text, err := WithRetry(ctx, f.retryConfig, func(attempt int, err error) {
			slog.DebugContext(ctx, "retrying chat completion",
				"provider", m.Provider(),
				"model", m.Model(),
				"operation", op,
				"attempt", attempt,
				"error", err)
		}, func(ctx context.Context) (string, error) {
			return m.Complete(ctx, req)
		})
		if err == nil {
			recordSuccess(m.Provider(), op, start)
			if i > 0 {
				recordFallback(f.models[0], m, op)
			}
			return text, nil
		}

		lastErr = err
		recordError(m.Provider(), op, err)

		action := ClassifyError(err)
		slog.WarnContext(ctx, "chat model failed",
			"provider", m.Provider(),
			"model", m.Model(),
			"operation", op,
			"action", action,
			"duration", time.Since(start),
			"error", err)

		if errors.Is(err, context.Canceled) {
			return "", err
		}
		if action == ActionFail {
			skip = m.Provider()
		}
	}

	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return "", fmt.Errorf("all models failed: %w", lastErr)
}

// Provider returns the primary provider type.
func (f *FallbackChatModel) Provider() Provider {
	if f == nil || len(f.models) == 0 {
		return ""
	}
	return f.models[0].Provider()
}

// Model returns the primary model name.
func (f *FallbackChatModel) Model() string {
	if f == nil || len(f.models) == 0 {
		return ""
	}
	return f.models[0].Model()
}

// Len returns the number of models in the chain.
func (f *FallbackChatModel) Len() int {
	if f == nil {
		return 0
	}
	return len(f.models)
}

// Close closes every model in the chain.
func (f *FallbackChatModel) Close() error {
	if f == nil {
		return nil
	}

	var errs []error
	for _, m := range f.models {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Helper functions for metrics recording

func recordSuccess(provider Provider, operation string, start time.Time) {
	metrics.Global().RecordLLMRequest(string(provider), operation, "success", time.Since(start).Seconds())
}

func recordError(provider Provider, operation string, err error) {
	metrics.Global().RecordLLMRequest(string(provider), operation, classifyErrorType(err), 0)
}

func recordFallback(from, to ChatModel, operation string) {
	metrics.Global().RecordLLMFallback(
		string(from.Provider())+"/"+from.Model(),
		string(to.Provider())+"/"+to.Model(),
		operation,
	)
}
