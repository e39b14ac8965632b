// Package event defines the campus event record that a conversation fills in,
// together with the per-turn artifacts (entities, intents) and the enums shared
// by the dialogue, nlu, and storage packages.
package event

import (
	"slices"
	"strings"
	"time"
)

// Type is the category of a campus event.
type Type string

const (
	TypeRecruit  Type = "recruit"
	TypeActivity Type = "activity"
	TypeLecture  Type = "lecture"
)

// ParseType maps loose model output ("招聘", "Lecture", ...) to a Type.
// Returns false for anything that is not one of the three categories.
func ParseType(s string) (Type, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "recruit", "recruitment", "job", "招聘", "实习", "宣讲会":
		return TypeRecruit, true
	case "activity", "event", "活动", "比赛":
		return TypeActivity, true
	case "lecture", "talk", "讲座", "报告":
		return TypeLecture, true
	default:
		return "", false
	}
}

// Valid reports whether t is a known category.
func (t Type) Valid() bool {
	return t == TypeRecruit || t == TypeActivity || t == TypeLecture
}

// Event is the accumulating partial record built across turns.
type Event struct {
	Title   string   `json:"title,omitempty"`
	Type    Type     `json:"type,omitempty"`
	Summary string   `json:"summary,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	KeyInfo KeyInfo  `json:"key_info"`
}

// Clone returns a deep copy.
func (e Event) Clone() Event {
	out := e
	out.Tags = slices.Clone(e.Tags)
	out.KeyInfo = e.KeyInfo.Clone()
	return out
}

// IsEmpty reports whether nothing has been collected yet.
func (e Event) IsEmpty() bool {
	return e.Title == "" && e.Type == "" && e.Summary == "" && len(e.Tags) == 0 && e.KeyInfo.IsEmpty()
}

// Overlay applies every non-empty field of other on top of e (shallow merge).
// Used when a client echoes back an edited draft.
func (e Event) Overlay(other Event) Event {
	out := e.Clone()
	if other.Title != "" {
		out.Title = other.Title
	}
	if other.Type != "" {
		out.Type = other.Type
	}
	if other.Summary != "" {
		out.Summary = other.Summary
	}
	if len(other.Tags) > 0 {
		out.Tags = slices.Clone(other.Tags)
	}
	for _, f := range Fields() {
		if f == FieldReferral {
			if other.KeyInfo.Referral != nil {
				v := *other.KeyInfo.Referral
				out.KeyInfo.Referral = &v
			}
			continue
		}
		if v := other.KeyInfo.Get(f); v != "" {
			out.KeyInfo.Set(f, v)
		}
	}
	for k, v := range other.KeyInfo.Extra {
		out.KeyInfo.SetExtra(k, v)
	}
	return out
}

// Entity is a typed value extracted from one turn and bound to a field path.
type Entity struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Field      string  `json:"field"`
	Confidence float64 `json:"confidence"`
}

// Intent labels a conversational turn.
type Intent string

const (
	IntentCreateEvent Intent = "create_event"
	IntentModifyField Intent = "modify_field"
	IntentAddInfo     Intent = "add_info"
	IntentConfirm     Intent = "confirm"
	IntentCancel      Intent = "cancel"
	IntentHelp        Intent = "help"
	IntentUnclear     Intent = "unclear"
)

// ParseIntent returns IntentUnclear for unknown labels.
func ParseIntent(s string) Intent {
	switch i := Intent(strings.ToLower(strings.TrimSpace(s))); i {
	case IntentCreateEvent, IntentModifyField, IntentAddInfo, IntentConfirm,
		IntentCancel, IntentHelp, IntentUnclear:
		return i
	default:
		return IntentUnclear
	}
}

// IntentResult is the classifier output for one turn.
type IntentResult struct {
	Intent     Intent   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Entities   []Entity `json:"entities"`
	Reasoning  string   `json:"reasoning,omitempty"`
}

// UnclearResult is the safe default used when model output cannot be parsed.
func UnclearResult() IntentResult {
	return IntentResult{Intent: IntentUnclear, Entities: []Entity{}}
}

// Stage is the dialogue lifecycle phase.
type Stage string

const (
	StageInitial    Stage = "initial"
	StageCollecting Stage = "collecting"
	StageClarifying Stage = "clarifying"
	StagePreviewing Stage = "previewing"
	StageEditing    Stage = "editing"
)

// Stages lists every stage in lifecycle order.
func Stages() []Stage {
	return []Stage{StageInitial, StageCollecting, StageClarifying, StagePreviewing, StageEditing}
}

// Language selects the output formatting mode.
type Language string

const (
	LangZh   Language = "zh"
	LangEn   Language = "en"
	LangZhEn Language = "zh-en"
)

// Languages lists the supported output modes.
func Languages() []Language {
	return []Language{LangZh, LangEn, LangZhEn}
}

// ParseLanguage defaults to Chinese for empty or unknown values.
func ParseLanguage(s string) Language {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case LangEn:
		return LangEn
	case LangZhEn, "bilingual", "zh_en":
		return LangZhEn
	default:
		return LangZh
	}
}

// Record is a published event as returned by the persistence layer.
type Record struct {
	ID        string    `json:"id"`
	Event     Event     `json:"event"`
	Source    string    `json:"source"`
	SessionID string    `json:"session_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SourceChatbot marks records created through the conversational flow.
const SourceChatbot = "chatbot"
