// Package nlu turns model completions into typed dialogue artifacts.
//
// Client implements the three model-backed steps of a conversational turn:
//   - Classify labels the turn with an event.Intent
//   - Extract pulls field-bound entities out of the user's message
//   - Respond writes the assistant's next reply for the current stage
//
// Classification and extraction request JSON at low temperature and parse the
// result tolerantly; output that cannot be parsed degrades to a safe default
// instead of failing the turn. Transport failures surface as
// errors.ErrUpstream so the caller can leave its state untouched.
package nlu

import (
	"context"
	"time"

	"github.com/garyellow/uniflow-chat/internal/event"
	"github.com/garyellow/uniflow-chat/internal/genai"
)

// DefaultHistoryLimit caps the turns sent with every prompt.
const DefaultHistoryLimit = 20

// Model is the narrow capability the dialogue engine depends on.
type Model interface {
	Classify(ctx context.Context, in ClassifyInput) (event.IntentResult, error)
	Extract(ctx context.Context, in ExtractInput) ([]event.Entity, error)
	Respond(ctx context.Context, in RespondInput) (string, error)
}

// State is the conversation context shared by every prompt.
type State struct {
	Stage         event.Stage
	Draft         event.Event
	MissingFields []string
	// History is the conversation so far, oldest first, excluding the
	// message being processed.
	History  []genai.Message
	Language event.Language
}

// ClassifyInput is the input for intent classification.
type ClassifyInput struct {
	State
	Message    string
	LastIntent event.Intent
}

// ExtractInput is the input for entity extraction.
type ExtractInput struct {
	State
	Message string
}

// RespondInput is the input for reply generation. State must already reflect
// this turn's merge and stage transition.
type RespondInput struct {
	State
	Message string
	Intent  event.Intent
}

// Config configures a Client.
type Config struct {
	// HistoryLimit caps the turns sent to the model. Zero means DefaultHistoryLimit.
	HistoryLimit int
	// Timeout bounds each model call. Zero leaves the caller's deadline alone.
	Timeout time.Duration
}

// Client implements Model on top of a genai.ChatModel.
type Client struct {
	chat         genai.ChatModel
	historyLimit int
	timeout      time.Duration
}

var _ Model = (*Client)(nil)

// New creates a Client.
func New(chat genai.ChatModel, cfg Config) *Client {
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Client{
		chat:         chat,
		historyLimit: limit,
		timeout:      cfg.Timeout,
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// recent returns at most the last limit messages.
func recent(history []genai.Message, limit int) []genai.Message {
	if len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}
