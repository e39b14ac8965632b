// Package genai provides integration with LLM chat APIs (OpenAI-compatible
// endpoints such as DeepSeek and Groq, and Gemini).
//
// Architecture:
// - Gemini: Uses google.golang.org/genai (official SDK)
// - OpenAI/Groq: Uses github.com/openai/openai-go/v3 (OpenAI-compatible API)
//
// Fallback Strategy (3-layer):
// 1. Model Retry: Same model retried with full-jitter backoff
// 2. Model Chain: Next model in same provider's model list
// 3. Provider Chain: Next provider in LLM_PROVIDERS list
package genai

import (
	"context"
	"strings"
	"time"
)

// Provider represents an LLM provider.
type Provider string

const (
	// ProviderOpenAI is any OpenAI-compatible endpoint (DeepSeek by default).
	ProviderOpenAI Provider = "openai"
	// ProviderGemini represents Google's Gemini API (non-OpenAI-compatible).
	ProviderGemini Provider = "gemini"
	// ProviderGroq represents Groq's API (OpenAI-compatible, fast inference).
	ProviderGroq Provider = "groq"
)

// ProviderEndpoint defines fixed base URLs for OpenAI-compatible providers.
// ProviderOpenAI takes its URL from configuration.
var ProviderEndpoint = map[Provider]string{
	ProviderGroq: "https://api.groq.com/openai/v1/",
}

// IsOpenAICompatible returns true if the provider uses OpenAI-compatible API.
func (p Provider) IsOpenAICompatible() bool {
	return p == ProviderOpenAI || p == ProviderGroq
}

// String returns the string representation of the provider.
func (p Provider) String() string {
	return string(p)
}

// ParseProviders converts configured names to providers, dropping unknown ones.
func ParseProviders(names []string) []Provider {
	out := make([]Provider, 0, len(names))
	for _, n := range names {
		switch p := Provider(strings.ToLower(strings.TrimSpace(n))); p {
		case ProviderOpenAI, ProviderGemini, ProviderGroq:
			out = append(out, p)
		}
	}
	return out
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation sent to the model.
type Message struct {
	Role    Role
	Content string
}

// ChatRequest is a single completion request.
type ChatRequest struct {
	// Operation labels metrics and logs (classify, extract, respond).
	Operation string

	// System is the system instruction. May be empty.
	System string

	// Messages in chronological order.
	Messages []Message

	// JSON asks the provider for a JSON object response.
	JSON bool

	Temperature float64
	MaxTokens   int
}

// ChatModel is the narrow capability the dialogue layer depends on.
type ChatModel interface {
	// Complete returns the model's text reply.
	Complete(ctx context.Context, req ChatRequest) (string, error)
	// Provider returns the provider type for metrics.
	Provider() Provider
	// Model returns the model name.
	Model() string
	// Close releases any resources held by the model client.
	Close() error
}

// RetryConfig defines retry behavior for LLM API calls.
// Uses AWS-recommended Full Jitter exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 2 (1 initial + 1 retry)
	MaxAttempts int

	// InitialDelay is the base delay before first retry.
	// Default: 500ms
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries.
	// Default: 3s
	MaxDelay time.Duration
}

// ProviderConfig holds configuration for a single LLM provider.
type ProviderConfig struct {
	// APIKey is the API key for the provider.
	APIKey string

	// BaseURL overrides the endpoint (OpenAI-compatible providers only).
	BaseURL string

	// Models is the ordered model chain. First model is primary.
	Models []string
}

// LLMConfig holds configuration for all LLM providers.
type LLMConfig struct {
	// Providers is the ordered list of providers to try.
	// Only those with API keys take part.
	Providers []Provider

	OpenAI ProviderConfig
	Gemini ProviderConfig
	Groq   ProviderConfig

	RetryConfig RetryConfig
}

// Default model configurations.
// First element is primary model, subsequent elements are fallbacks.
var (
	DefaultOpenAIBaseURL = "https://api.deepseek.com/v1"
	DefaultOpenAIModels  = []string{"deepseek-chat"}
	DefaultGeminiModels  = []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"}
	DefaultGroqModels    = []string{"llama-3.3-70b-versatile", "llama-3.1-8b-instant"}

	// DefaultProviders is the default provider order for fallback.
	DefaultProviders = []Provider{ProviderOpenAI, ProviderGemini, ProviderGroq}
)

// Retry configuration defaults
const (
	DefaultMaxRetryAttempts  = 2
	DefaultInitialRetryDelay = 500 * time.Millisecond
	DefaultMaxRetryDelay     = 3 * time.Second
)

// HasAnyProvider returns true if at least one provider is configured.
func (c *LLMConfig) HasAnyProvider() bool {
	return c.OpenAI.APIKey != "" || c.Gemini.APIKey != "" || c.Groq.APIKey != ""
}

// HasProvider returns true if the specified provider is configured with an API key.
func (c *LLMConfig) HasProvider(p Provider) bool {
	pc := c.GetProviderConfig(p)
	return pc != nil && pc.APIKey != ""
}

// GetProviderConfig returns the configuration for a specific provider.
func (c *LLMConfig) GetProviderConfig(p Provider) *ProviderConfig {
	switch p {
	case ProviderOpenAI:
		return &c.OpenAI
	case ProviderGemini:
		return &c.Gemini
	case ProviderGroq:
		return &c.Groq
	default:
		return nil
	}
}

// ConfiguredProviders returns the list of providers with configured API keys,
// in the order specified by c.Providers.
func (c *LLMConfig) ConfiguredProviders() []Provider {
	result := make([]Provider, 0, len(c.Providers))
	for _, p := range c.Providers {
		if c.HasProvider(p) {
			result = append(result, p)
		}
	}
	return result
}
