// Package session holds conversation state between turns.
package session

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/garyellow/uniflow-chat/internal/event"
)

// IDPrefix marks chat session identifiers.
const IDPrefix = "chat_"

// DefaultMaxTurns caps the stored history of one session.
const DefaultMaxTurns = 50

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one message of the conversation.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one independent slot-filling run.
type Session struct {
	ID               string         `json:"id"`
	Turns            []Turn         `json:"turns"`
	Stage            event.Stage    `json:"stage"`
	Draft            event.Event    `json:"draft"`
	MissingFields    []string       `json:"missing_fields"`
	LastIntent       event.Intent   `json:"last_intent,omitempty"`
	Language         event.Language `json:"language"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	PublishedEventID string         `json:"published_event_id,omitempty"`
}

// NewID returns a fresh session identifier.
func NewID() string {
	return IDPrefix + uuid.NewString()
}

func newSession(id string, lang event.Language, now time.Time) *Session {
	return &Session{
		ID:            id,
		Turns:         []Turn{},
		Stage:         event.StageInitial,
		MissingFields: []string{},
		Language:      lang,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Turns = slices.Clone(s.Turns)
	out.Draft = s.Draft.Clone()
	out.MissingFields = slices.Clone(s.MissingFields)
	return &out
}

// AddTurn appends a turn, keeping at most limit turns (oldest dropped).
func (s *Session) AddTurn(role Role, content string, at time.Time, limit int) {
	s.Turns = append(s.Turns, Turn{Role: role, Content: content, Timestamp: at})
	if limit > 0 && len(s.Turns) > limit {
		s.Turns = slices.Clone(s.Turns[len(s.Turns)-limit:])
	}
}

// Reset clears the draft and history and returns to the initial stage.
func (s *Session) Reset() {
	s.Turns = []Turn{}
	s.Stage = event.StageInitial
	s.Draft = event.Event{}
	s.MissingFields = []string{}
	s.LastIntent = ""
	s.PublishedEventID = ""
}

// MessageCount returns the number of stored turns.
func (s *Session) MessageCount() int {
	return len(s.Turns)
}
