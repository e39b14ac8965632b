// Package genai provides integration with LLM chat APIs.
// This file contains the Gemini chat implementation.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// geminiChatModel implements ChatModel using Gemini GenerateContent.
type geminiChatModel struct {
	client *genai.Client
	model  string
}

// newGeminiChatModel creates a new Gemini chat model.
// Returns nil if apiKey is empty (provider disabled).
func newGeminiChatModel(ctx context.Context, apiKey, model string) (*geminiChatModel, error) {
	if apiKey == "" {
		return nil, nil //nolint:nilnil // Intentional: provider disabled when no API key
	}

	if model == "" {
		model = DefaultGeminiModels[0]
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &geminiChatModel{
		client: client,
		model:  model,
	}, nil
}

// Complete sends the conversation and joins the text parts of the first candidate.
func (m *geminiChatModel) Complete(ctx context.Context, req ChatRequest) (string, error) {
	if m == nil {
		return "", errors.New("chat model is nil")
	}

	system, contents := buildGeminiContents(req)

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens) //nolint:gosec // bounded by caller
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	resp, err := m.client.Models.GenerateContent(ctx, m.model, contents, config)
	duration := time.Since(start)

	if err != nil {
		slog.WarnContext(ctx, "generate content failed",
			"provider", ProviderGemini,
			"model", m.model,
			"operation", req.Operation,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return "", WrapError(fmt.Errorf("generate content failed: %w", err), ProviderGemini, m.model)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", WrapError(errors.New("empty response from model"), ProviderGemini, m.model)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			text.WriteString(part.Text)
		}
	}

	if resp.UsageMetadata != nil {
		slog.DebugContext(ctx, "generate content finished",
			"provider", ProviderGemini,
			"model", m.model,
			"operation", req.Operation,
			"input_tokens", resp.UsageMetadata.PromptTokenCount,
			"output_tokens", resp.UsageMetadata.CandidatesTokenCount,
			"duration_ms", duration.Milliseconds())
	}

	return text.String(), nil
}

// buildGeminiContents folds system-role messages into the system instruction;
// Gemini only accepts user and model turns in contents.
func buildGeminiContents(req ChatRequest) (string, []*genai.Content) {
	system := []string{}
	if req.System != "" {
		system = append(system, req.System)
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}

// Provider returns the provider type for this model.
func (m *geminiChatModel) Provider() Provider {
	return ProviderGemini
}

// Model returns the model name.
func (m *geminiChatModel) Model() string {
	if m == nil {
		return ""
	}
	return m.model
}

// Close releases resources.
// genai.Client does not require explicit cleanup in current SDK version.
func (m *geminiChatModel) Close() error {
	return nil
}
