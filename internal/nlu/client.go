package nlu

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	apperrors "github.com/garyellow/uniflow-chat/internal/errors"
	"github.com/garyellow/uniflow-chat/internal/event"
	"github.com/garyellow/uniflow-chat/internal/genai"
	"github.com/garyellow/uniflow-chat/internal/metrics"
)

const (
	opClassify = "classify"
	opExtract  = "extract"
	opRespond  = "respond"

	jsonTemperature   = 0.1
	replyTemperature  = 0.7
	jsonMaxTokens     = 1024
	responseMaxTokens = 1000
)

// Classify labels the turn. Unparseable output yields an unclear intent.
func (c *Client) Classify(ctx context.Context, in ClassifyInput) (event.IntentResult, error) {
	msgs := c.history(in.History)
	msgs = append(msgs, genai.Message{Role: genai.RoleUser, Content: classifyPrompt(in)})

	text, err := c.complete(ctx, genai.ChatRequest{
		Operation:   opClassify,
		System:      classifySystemPrompt,
		Messages:    msgs,
		JSON:        true,
		Temperature: jsonTemperature,
		MaxTokens:   jsonMaxTokens,
	})
	if err != nil {
		return event.IntentResult{}, err
	}

	result, err := parseIntentResult(text)
	if err != nil {
		c.malformed(ctx, opClassify, text, err)
		return event.UnclearResult(), nil
	}
	return result, nil
}

// Extract returns field-bound entities. Unparseable output yields none.
func (c *Client) Extract(ctx context.Context, in ExtractInput) ([]event.Entity, error) {
	msgs := c.history(in.History)
	msgs = append(msgs, genai.Message{Role: genai.RoleUser, Content: extractPrompt(in)})

	text, err := c.complete(ctx, genai.ChatRequest{
		Operation:   opExtract,
		System:      extractSystemPrompt,
		Messages:    msgs,
		JSON:        true,
		Temperature: jsonTemperature,
		MaxTokens:   jsonMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	entities, err := parseExtraction(text)
	if err != nil {
		c.malformed(ctx, opExtract, text, err)
		return []event.Entity{}, nil
	}
	return entities, nil
}

// Respond generates the assistant reply for the stage in `in`.
// An empty completion falls back to a localized apology.
func (c *Client) Respond(ctx context.Context, in RespondInput) (string, error) {
	msgs := c.history(in.History)
	if strings.TrimSpace(in.Message) != "" {
		msgs = append(msgs, genai.Message{Role: genai.RoleUser, Content: in.Message})
	}
	msgs = append(msgs, genai.Message{Role: genai.RoleUser, Content: stateBlock(in)})

	text, err := c.complete(ctx, genai.ChatRequest{
		Operation:   opRespond,
		System:      SystemPrompt(in.State),
		Messages:    msgs,
		Temperature: replyTemperature,
		MaxTokens:   responseMaxTokens,
	})
	if err != nil {
		return "", err
	}

	if text = strings.TrimSpace(text); text == "" {
		return Apology(in.Language), nil
	}
	return text, nil
}

func (c *Client) complete(ctx context.Context, req genai.ChatRequest) (string, error) {
	if c == nil || c.chat == nil {
		return "", apperrors.NewUpstreamError("", req.Operation, apperrors.ErrConfiguration)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	text, err := c.chat.Complete(ctx, req)
	if err != nil {
		return "", apperrors.NewUpstreamError(string(c.chat.Provider()), req.Operation, err)
	}
	return text, nil
}

func (c *Client) history(h []genai.Message) []genai.Message {
	return slices.Clone(recent(h, c.historyLimit))
}

func (c *Client) malformed(ctx context.Context, op, text string, err error) {
	metrics.Global().RecordLLMMalformed(op)
	slog.WarnContext(ctx, "malformed model output",
		"operation", op,
		"prompt_version", PromptVersion,
		"reply_length", len(text),
		"error", err)
}
