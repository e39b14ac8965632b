package genai

import (
	"context"
	"errors"
	"slices"
	"testing"

	apperrors "github.com/garyellow/uniflow-chat/internal/errors"
)

func TestDefaultLLMConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultLLMConfig()

	if !slices.Equal(cfg.Providers, DefaultProviders) {
		t.Errorf("Providers = %v, want %v", cfg.Providers, DefaultProviders)
	}
	if cfg.OpenAI.BaseURL != DefaultOpenAIBaseURL {
		t.Errorf("OpenAI.BaseURL = %v, want %v", cfg.OpenAI.BaseURL, DefaultOpenAIBaseURL)
	}
	if !slices.Equal(cfg.Gemini.Models, DefaultGeminiModels) {
		t.Errorf("Gemini.Models = %v, want %v", cfg.Gemini.Models, DefaultGeminiModels)
	}
	if cfg.RetryConfig.MaxAttempts != DefaultMaxRetryAttempts {
		t.Errorf("RetryConfig.MaxAttempts = %v, want %v", cfg.RetryConfig.MaxAttempts, DefaultMaxRetryAttempts)
	}
	if cfg.RetryConfig.InitialDelay != DefaultInitialRetryDelay {
		t.Errorf("RetryConfig.InitialDelay = %v, want %v", cfg.RetryConfig.InitialDelay, DefaultInitialRetryDelay)
	}
	if cfg.RetryConfig.MaxDelay != DefaultMaxRetryDelay {
		t.Errorf("RetryConfig.MaxDelay = %v, want %v", cfg.RetryConfig.MaxDelay, DefaultMaxRetryDelay)
	}
}

func TestLLMConfig_ConfiguredProviders(t *testing.T) {
	t.Parallel()
	cfg := DefaultLLMConfig()
	cfg.Providers = []Provider{ProviderGroq, ProviderGemini, ProviderOpenAI}
	cfg.Groq.APIKey = "groq-key"
	cfg.OpenAI.APIKey = "openai-key"

	got := cfg.ConfiguredProviders()
	want := []Provider{ProviderGroq, ProviderOpenAI}
	if !slices.Equal(got, want) {
		t.Errorf("ConfiguredProviders() = %v, want %v", got, want)
	}
	if !cfg.HasAnyProvider() {
		t.Error("Expected HasAnyProvider true")
	}
	if cfg.HasProvider(ProviderGemini) {
		t.Error("Expected Gemini not configured")
	}
	if cfg.GetProviderConfig(Provider("cerebras")) != nil {
		t.Error("Expected nil config for unknown provider")
	}
}

func TestCreateChatModel_NoProviders(t *testing.T) {
	t.Parallel()

	m, err := CreateChatModel(context.Background(), DefaultLLMConfig())
	if !errors.Is(err, apperrors.ErrConfiguration) {
		t.Errorf("Expected ErrConfiguration, got %v", err)
	}
	if m != nil {
		t.Error("Expected nil model")
	}
}

func TestCreateChatModel_BuildsChain(t *testing.T) {
	t.Parallel()
	cfg := DefaultLLMConfig()
	cfg.Providers = []Provider{ProviderGroq, ProviderOpenAI}
	cfg.OpenAI.APIKey = "openai-key"
	cfg.Groq.APIKey = "groq-key"

	m, err := CreateChatModel(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantLen := len(DefaultGroqModels) + len(DefaultOpenAIModels)
	if m.Len() != wantLen {
		t.Errorf("Len() = %d, want %d", m.Len(), wantLen)
	}
	if m.Provider() != ProviderGroq {
		t.Errorf("Provider() = %v, want groq", m.Provider())
	}
	if m.Model() != DefaultGroqModels[0] {
		t.Errorf("Model() = %v, want %v", m.Model(), DefaultGroqModels[0])
	}
}

func TestParseProviders(t *testing.T) {
	t.Parallel()

	got := ParseProviders([]string{"Gemini", " groq ", "cerebras", "openai"})
	want := []Provider{ProviderGemini, ProviderGroq, ProviderOpenAI}
	if !slices.Equal(got, want) {
		t.Errorf("ParseProviders() = %v, want %v", got, want)
	}
}

func TestProvider_IsOpenAICompatible(t *testing.T) {
	t.Parallel()

	if !ProviderOpenAI.IsOpenAICompatible() || !ProviderGroq.IsOpenAICompatible() {
		t.Error("Expected openai and groq to be OpenAI-compatible")
	}
	if ProviderGemini.IsOpenAICompatible() {
		t.Error("Expected gemini not to be OpenAI-compatible")
	}
	if ProviderGemini.String() != "gemini" {
		t.Errorf("String() = %q", ProviderGemini.String())
	}
}
