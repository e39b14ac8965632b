// Package genai provides integration with LLM chat APIs.
// This file contains the OpenAI-compatible chat implementation.
// It works with DeepSeek, Groq, and other OpenAI-compatible providers via custom BaseURL.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// openaiChatModel implements ChatModel using the Chat Completions API.
type openaiChatModel struct {
	client   openai.Client
	model    string
	provider Provider
}

// newOpenAIChatModel creates a new OpenAI-compatible chat model.
// Returns nil if apiKey is empty (provider disabled).
func newOpenAIChatModel(provider Provider, apiKey, model, baseURL string) (*openaiChatModel, error) {
	if apiKey == "" {
		return nil, nil //nolint:nilnil // Intentional: provider disabled when no API key
	}
	if model == "" {
		return nil, fmt.Errorf("model is required for provider %s", provider)
	}

	if baseURL == "" {
		var ok bool
		baseURL, ok = ProviderEndpoint[provider]
		if !ok {
			return nil, fmt.Errorf("base URL is required for provider %s", provider)
		}
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0), // Retries are handled by FallbackChatModel
	)

	return &openaiChatModel{
		client:   client,
		model:    model,
		provider: provider,
	}, nil
}

// Complete sends the conversation and returns the first choice's content.
func (m *openaiChatModel) Complete(ctx context.Context, req ChatRequest) (string, error) {
	if m == nil {
		return "", errors.New("chat model is nil")
	}

	params := openai.ChatCompletionNewParams{
		Model:       m.model,
		Messages:    buildOpenAIMessages(req),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	start := time.Now()
	resp, err := m.client.Chat.Completions.New(ctx, params)
	duration := time.Since(start)

	if err != nil {
		slog.WarnContext(ctx, "chat completion failed",
			"provider", m.provider,
			"model", m.model,
			"operation", req.Operation,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return "", WrapError(fmt.Errorf("chat completion failed: %w", err), m.provider, m.model)
	}

	if len(resp.Choices) == 0 {
		return "", WrapError(errors.New("empty response from model"), m.provider, m.model)
	}

	slog.DebugContext(ctx, "chat completion finished",
		"provider", m.provider,
		"model", m.model,
		"operation", req.Operation,
		"input_tokens", resp.Usage.PromptTokens,
		"output_tokens", resp.Usage.CompletionTokens,
		"duration_ms", duration.Milliseconds())

	return resp.Choices[0].Message.Content, nil
}

func buildOpenAIMessages(req ChatRequest) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(msg.Content))
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(msg.Content))
		default:
			msgs = append(msgs, openai.UserMessage(msg.Content))
		}
	}
	return msgs
}

// Provider returns the provider type for this model.
func (m *openaiChatModel) Provider() Provider {
	if m == nil {
		return ""
	}
	return m.provider
}

// Model returns the model name.
func (m *openaiChatModel) Model() string {
	if m == nil {
		return ""
	}
	return m.model
}

// Close releases resources held by the model. openai-go needs no cleanup.
func (m *openaiChatModel) Close() error {
	return nil
}
