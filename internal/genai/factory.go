// Package genai provides integration with LLM chat APIs.
// This file contains factory functions for creating chat models.
package genai

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/garyellow/uniflow-chat/internal/errors"
)

// CreateChatModel builds a FallbackChatModel from every configured provider's
// model chain, in cfg.Providers order.
//
// Provider selection logic:
//  1. Each provider with an API key contributes its models in order.
//  2. Each model is tried with retry logic (configured in RetryConfig).
//  3. Returns an errors.ErrConfiguration error if nothing could be built.
func CreateChatModel(ctx context.Context, cfg LLMConfig) (*FallbackChatModel, error) {
	models := []ChatModel{}

	for _, provider := range cfg.ConfiguredProviders() {
		pc := cfg.GetProviderConfig(provider)
		for _, name := range pc.Models {
			m, err := newChatModel(ctx, provider, *pc, name)
			if err != nil {
				slog.WarnContext(ctx, "failed to create chat model",
					"provider", provider,
					"model", name,
					"error", err)
				continue
			}
			if m != nil {
				models = append(models, m)
			}
		}
	}

	if len(models) == 0 {
		return nil, fmt.Errorf("%w: no LLM provider configured", apperrors.ErrConfiguration)
	}

	slog.InfoContext(ctx, "chat model configured",
		"primary", models[0].Provider(),
		"model", models[0].Model(),
		"chainSize", len(models))

	return NewFallbackChatModel(cfg.RetryConfig, models...), nil
}

func newChatModel(ctx context.Context, provider Provider, pc ProviderConfig, model string) (ChatModel, error) {
	switch provider {
	case ProviderGemini:
		m, err := newGeminiChatModel(ctx, pc.APIKey, model)
		if m == nil || err != nil {
			return nil, err
		}
		return m, nil
	case ProviderOpenAI, ProviderGroq:
		baseURL := pc.BaseURL
		if provider == ProviderOpenAI && baseURL == "" {
			baseURL = DefaultOpenAIBaseURL
		}
		m, err := newOpenAIChatModel(provider, pc.APIKey, model, baseURL)
		if m == nil || err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// DefaultLLMConfig returns a default LLM configuration.
// API keys must be provided separately.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Providers: DefaultProviders,
		OpenAI: ProviderConfig{
			BaseURL: DefaultOpenAIBaseURL,
			Models:  DefaultOpenAIModels,
		},
		Gemini: ProviderConfig{
			Models: DefaultGeminiModels,
		},
		Groq: ProviderConfig{
			Models: DefaultGroqModels,
		},
		RetryConfig: DefaultRetryConfig(),
	}
}
