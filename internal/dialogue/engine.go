// Package dialogue drives one conversational slot-filling run: it merges what
// the model understood into the session draft, decides the next stage, and
// publishes the draft once it is complete enough.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/garyellow/uniflow-chat/internal/ctxutil"
	apperrors "github.com/garyellow/uniflow-chat/internal/errors"
	"github.com/garyellow/uniflow-chat/internal/event"
	"github.com/garyellow/uniflow-chat/internal/genai"
	"github.com/garyellow/uniflow-chat/internal/logger"
	"github.com/garyellow/uniflow-chat/internal/metrics"
	"github.com/garyellow/uniflow-chat/internal/nlu"
	"github.com/garyellow/uniflow-chat/internal/normalize"
	"github.com/garyellow/uniflow-chat/internal/session"
)

const moduleName = "dialogue"

// DefaultMaxMessageLength caps a single user message, in characters.
const DefaultMaxMessageLength = 4000

// EventStore persists published events.
type EventStore interface {
	CreateEvent(ctx context.Context, ev event.Event, source, sessionID string) (event.Record, error)
	GetEvent(ctx context.Context, id string) (event.Record, error)
}

// Archiver copies a published record to long-term storage.
type Archiver interface {
	Archive(ctx context.Context, rec event.Record) error
}

// NotPublishableError is returned by Complete when the draft cannot be published yet.
type NotPublishableError struct {
	Stage         event.Stage
	MissingFields []string
	Completeness  float64
}

func (e *NotPublishableError) Error() string {
	return fmt.Sprintf("draft not publishable (stage=%s, completeness=%.2f, missing=%s)",
		e.Stage, e.Completeness, strings.Join(e.MissingFields, ","))
}

// Is makes errors.Is(err, ErrNotPublishable) true.
func (e *NotPublishableError) Is(target error) bool {
	return target == apperrors.ErrNotPublishable
}

// EngineConfig holds configuration for creating a new Engine.
type EngineConfig struct {
	Model    nlu.Model
	Sessions *session.Store
	Events   EventStore
	Archiver Archiver // optional
	Logger   *logger.Logger
	Metrics  *metrics.Metrics

	PublishThreshold float64
	HistoryLimit     int
	MaxMessageLength int
	// Now is the clock used to resolve relative dates. Defaults to normalize.Now.
	Now func() time.Time
}

// Engine runs conversational turns against a session store.
type Engine struct {
	model     nlu.Model
	sessions  *session.Store
	events    EventStore
	archiver  Archiver
	logger    *logger.Logger
	metrics   *metrics.Metrics
	threshold float64
	history   int
	maxLen    int
	now       func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		model:     cfg.Model,
		sessions:  cfg.Sessions,
		events:    cfg.Events,
		archiver:  cfg.Archiver,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		threshold: cfg.PublishThreshold,
		history:   cfg.HistoryLimit,
		maxLen:    cfg.MaxMessageLength,
		now:       cfg.Now,
	}
	if e.logger == nil {
		e.logger = logger.New("info")
	}
	if e.threshold <= 0 {
		e.threshold = DefaultPublishThreshold
	}
	if e.history <= 0 {
		e.history = nlu.DefaultHistoryLimit
	}
	if e.maxLen <= 0 {
		e.maxLen = DefaultMaxMessageLength
	}
	if e.now == nil {
		e.now = normalize.Now
	}
	return e
}

// TurnRequest is one user message.
type TurnRequest struct {
	// SessionID selects the conversation. Empty or unknown ids start a new one.
	SessionID string
	Message   string
	// CurrentDraft, when set, is overlaid on the stored draft before the turn.
	CurrentDraft *event.Event
	// Language overrides the session's output language when non-empty.
	Language event.Language
}

// TurnResult is the outcome of a turn.
type TurnResult struct {
	SessionID        string
	Created          bool
	Reply            string
	Draft            event.Event
	MissingFields    []string
	IsComplete       bool
	Stage            event.Stage
	Intent           event.Intent
	Completeness     float64
	Preview          *Preview
	Suggestions      []string
	PublishedEventID string
}

// Status is a read-only view of a session.
type Status struct {
	SessionID        string
	Draft            event.Event
	MessageCount     int
	MissingFields    []string
	IsComplete       bool
	Stage            event.Stage
	Completeness     float64
	Language         event.Language
	PublishedEventID string
}

// Turn processes one user message. If any model call fails the session is
// left exactly as it was and the error matches errors.ErrUpstream.
func (e *Engine) Turn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	start := time.Now()

	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return nil, apperrors.NewValidationError("message", "message is required")
	}
	if n := utf8.RuneCountInString(msg); n > e.maxLen {
		return nil, apperrors.NewValidationError("message", fmt.Sprintf("message too long: %d > %d characters", n, e.maxLen))
	}

	lang := req.Language
	if lang == "" {
		lang = event.LangZh
	}

	sess, created, err := e.sessions.GetOrCreate(ctx, req.SessionID, lang)
	if err != nil {
		return nil, err
	}
	ctx = ctxutil.WithSessionID(ctx, sess.ID)
	if created && req.SessionID != "" {
		e.logger.WithSessionID(sess.ID).WithField("requested_id", req.SessionID).Info("Unknown session, started a new one")
	}

	var (
		result    *TurnResult
		published *event.Record
	)
	_, err = e.sessions.Update(ctx, sess.ID, func(cur *session.Session) error {
		if req.Language != "" {
			cur.Language = req.Language
		}
		r, rec, err := e.runTurn(ctx, cur, msg, req.CurrentDraft)
		if err != nil {
			return err
		}
		result, published = r, rec
		return nil
	})
	if err != nil {
		// A session the client never saw is dropped with the failed turn.
		if created {
			_ = e.sessions.Delete(context.WithoutCancel(ctx), sess.ID)
		}
		e.metrics.RecordTurn(string(sess.Stage), "error", time.Since(start).Seconds())
		return nil, err
	}

	if published != nil {
		e.archive(ctx, *published)
	}

	result.Created = created
	e.metrics.RecordTurn(string(result.Stage), "success", time.Since(start).Seconds())
	e.metrics.SetSessionsActive(e.sessions.Count())
	e.logger.WithSessionID(result.SessionID).
		WithField("intent", result.Intent).
		WithField("stage", result.Stage).
		WithField("completeness", result.Completeness).
		Debug("Turn processed")
	return result, nil
}

// runTurn mutates cur in place. The caller commits cur only when it returns nil.
func (e *Engine) runTurn(ctx context.Context, cur *session.Session, msg string, echoed *event.Event) (*TurnResult, *event.Record, error) {
	now := e.now()
	prevStage := cur.Stage

	draft := cur.Draft
	if echoed != nil {
		draft = draft.Overlay(*echoed)
	}
	history := e.recentHistory(cur.Turns)
	state := nlu.State{
		Stage:         cur.Stage,
		Draft:         draft,
		MissingFields: cur.MissingFields,
		History:       history,
		Language:      cur.Language,
	}

	var (
		intent    event.IntentResult
		extracted []event.Entity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		intent, err = e.model.Classify(gctx, nlu.ClassifyInput{State: state, Message: msg, LastIntent: cur.LastIntent})
		return err
	})
	g.Go(func() error {
		var err error
		extracted, err = e.model.Extract(gctx, nlu.ExtractInput{State: state, Message: msg})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// Extraction comes last so it wins when both name the same path.
	entities := slices.Concat(intent.Entities, extracted)
	switch intent.Intent {
	case event.IntentCancel:
		draft, entities = event.Event{}, nil
		cur.PublishedEventID = ""
	case event.IntentCreateEvent:
		cur.PublishedEventID = ""
	}

	next, touched := Merge(draft, entities, intent.Intent)
	next, clarify := Normalize(next, touched, cur.Language, now)
	assessment := Evaluate(next, e.threshold)
	stage := NextStage(intent.Intent, assessment.MissingFields, next, clarify != nil)

	reply, err := e.model.Respond(ctx, nlu.RespondInput{
		State: nlu.State{
			Stage:         stage,
			Draft:         next,
			MissingFields: assessment.MissingFields,
			History:       history,
			Language:      cur.Language,
		},
		Message: msg,
		Intent:  intent.Intent,
	})
	if err != nil {
		return nil, nil, err
	}
	if clarify != nil {
		reply += "\n\n" + clarify.Text(cur.Language)
		e.metrics.RecordClarification()
	}

	var rec *event.Record
	if intent.Intent == event.IntentConfirm && prevStage == event.StagePreviewing &&
		assessment.Publishable && cur.PublishedEventID == "" {
		r, err := e.publish(ctx, cur.ID, next)
		if err != nil {
			return nil, nil, err
		}
		rec = &r
		cur.PublishedEventID = r.ID
		reply += "\n\n" + publishedNote(cur.Language, r.ID)
	}

	cur.Draft = next
	cur.MissingFields = assessment.MissingFields
	cur.Stage = stage
	cur.LastIntent = intent.Intent
	cur.AddTurn(session.RoleUser, msg, now, e.sessions.MaxTurns())
	cur.AddTurn(session.RoleAssistant, reply, now, e.sessions.MaxTurns())

	result := &TurnResult{
		SessionID:        cur.ID,
		Reply:            reply,
		Draft:            next.Clone(),
		MissingFields:    slices.Clone(assessment.MissingFields),
		IsComplete:       assessment.Publishable,
		Stage:            stage,
		Intent:           intent.Intent,
		Completeness:     assessment.Completeness,
		Suggestions:      Suggestions(next, cur.Language),
		PublishedEventID: cur.PublishedEventID,
	}
	if stage == event.StagePreviewing {
		result.Preview = NewPreview(next, assessment, now)
	}
	return result, rec, nil
}

func (e *Engine) recentHistory(turns []session.Turn) []genai.Message {
	if len(turns) > e.history {
		turns = turns[len(turns)-e.history:]
	}
	out := make([]genai.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, genai.Message{Role: genai.Role(t.Role), Content: t.Content})
	}
	return out
}

// Status returns the current state of a session.
func (e *Engine) Status(ctx context.Context, id string) (*Status, error) {
	sess, err := e.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	a := Evaluate(sess.Draft, e.threshold)
	return &Status{
		SessionID:        sess.ID,
		Draft:            sess.Draft,
		MessageCount:     sess.MessageCount(),
		MissingFields:    a.MissingFields,
		IsComplete:       a.Publishable,
		Stage:            sess.Stage,
		Completeness:     a.Completeness,
		Language:         sess.Language,
		PublishedEventID: sess.PublishedEventID,
	}, nil
}

// Validate runs the deterministic checks on a session's draft.
func (e *Engine) Validate(ctx context.Context, id string) (ValidationReport, error) {
	sess, err := e.sessions.Get(ctx, id)
	if err != nil {
		return ValidationReport{}, err
	}
	return Validate(sess.Draft, e.threshold, e.now()), nil
}

// Complete publishes the session's draft. The session must be previewing a
// publishable draft. Completing an already published session returns the
// existing record id without publishing again.
func (e *Engine) Complete(ctx context.Context, id string) (event.Record, error) {
	ctx = ctxutil.WithSessionID(ctx, id)

	var (
		rec      event.Record
		existing string
	)
	_, err := e.sessions.Update(ctx, id, func(cur *session.Session) error {
		if cur.PublishedEventID != "" {
			existing = cur.PublishedEventID
			return nil
		}

		a := Evaluate(cur.Draft, e.threshold)
		if cur.Stage != event.StagePreviewing || !a.Publishable {
			return &NotPublishableError{
				Stage:         cur.Stage,
				MissingFields: a.MissingFields,
				Completeness:  a.Completeness,
			}
		}

		r, err := e.publish(ctx, cur.ID, cur.Draft)
		if err != nil {
			return err
		}
		rec = r
		cur.PublishedEventID = r.ID
		return nil
	})
	if err != nil {
		return event.Record{}, err
	}

	if existing != "" {
		return e.events.GetEvent(ctx, existing)
	}
	e.archive(ctx, rec)
	return rec, nil
}

// Reset clears the draft and history but keeps the session.
func (e *Engine) Reset(ctx context.Context, id string) (*Status, error) {
	if _, err := e.sessions.Update(ctx, id, func(cur *session.Session) error {
		cur.Reset()
		return nil
	}); err != nil {
		return nil, err
	}
	return e.Status(ctx, id)
}

// Delete removes a session.
func (e *Engine) Delete(ctx context.Context, id string) error {
	if err := e.sessions.Delete(ctx, id); err != nil {
		return err
	}
	e.metrics.SetSessionsActive(e.sessions.Count())
	return nil
}

func (e *Engine) publish(ctx context.Context, sessionID string, ev event.Event) (event.Record, error) {
	wrap := apperrors.NewWrapper(moduleName, "publish").WithSession(sessionID)
	if e.events == nil {
		return event.Record{}, wrap.Wrap(apperrors.ErrConfiguration, "event store is not configured")
	}
	rec, err := e.events.CreateEvent(ctx, ev, event.SourceChatbot, sessionID)
	if err != nil {
		return event.Record{}, wrap.Wrap(err, "failed to save event")
	}
	e.metrics.RecordEventPublished(string(ev.Type))
	e.logger.WithSessionID(sessionID).
		WithField("event_id", rec.ID).
		WithField("type", ev.Type).
		Info("Event published")
	return rec, nil
}

// archive failures never undo a publication.
func (e *Engine) archive(ctx context.Context, rec event.Record) {
	if e.archiver == nil {
		return
	}
	if err := e.archiver.Archive(ctx, rec); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		e.logger.WithSessionID(rec.SessionID).
			WithField("event_id", rec.ID).
			WithError(err).
			Warn("Archive upload failed")
	}
}
