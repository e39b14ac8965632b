package app

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/garyellow/uniflow-chat/internal/calendar"
	"github.com/garyellow/uniflow-chat/internal/ctxutil"
	"github.com/garyellow/uniflow-chat/internal/dialogue"
	apperrors "github.com/garyellow/uniflow-chat/internal/errors"
	"github.com/garyellow/uniflow-chat/internal/event"
	"github.com/garyellow/uniflow-chat/internal/sentry"
	"github.com/garyellow/uniflow-chat/internal/storage"
)

const (
	moduleChat   = "chat"
	moduleEvents = "events"
)

type turnRequest struct {
	SessionID    string       `json:"sessionId"`
	Message      string       `json:"message"`
	CurrentDraft *event.Event `json:"currentDraft,omitempty"`
	Language     string       `json:"language"`
}

type turnResponse struct {
	SessionID        string            `json:"sessionId"`
	Reply            string            `json:"reply"`
	Draft            event.Event       `json:"draft"`
	MissingFields    []string          `json:"missingFields"`
	IsComplete       bool              `json:"isComplete"`
	Stage            event.Stage       `json:"stage"`
	Intent           event.Intent      `json:"intent"`
	Completeness     float64           `json:"completeness"`
	Preview          *dialogue.Preview `json:"preview,omitempty"`
	Suggestions      []string          `json:"suggestions"`
	PublishedEventID string            `json:"publishedEventId,omitempty"`
}

type statusResponse struct {
	SessionID        string         `json:"sessionId"`
	Draft            event.Event    `json:"draft"`
	MessageCount     int            `json:"messageCount"`
	MissingFields    []string       `json:"missingFields"`
	IsComplete       bool           `json:"isComplete"`
	Stage            event.Stage    `json:"stage"`
	Completeness     float64        `json:"completeness"`
	Language         event.Language `json:"language"`
	PublishedEventID string         `json:"publishedEventId,omitempty"`
}

func newStatusResponse(s *dialogue.Status) statusResponse {
	return statusResponse{
		SessionID:        s.SessionID,
		Draft:            s.Draft,
		MessageCount:     s.MessageCount,
		MissingFields:    orEmpty(s.MissingFields),
		IsComplete:       s.IsComplete,
		Stage:            s.Stage,
		Completeness:     s.Completeness,
		Language:         s.Language,
		PublishedEventID: s.PublishedEventID,
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// withSession tags the request context so the access log carries the session.
func withSession(c *gin.Context, id string) {
	c.Request = c.Request.WithContext(ctxutil.WithSessionID(c.Request.Context(), id))
}

// handleTurn processes one user message.
func (a *Application) handleTurn(c *gin.Context) {
	var req turnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.respondError(c, moduleChat, apperrors.NewValidationError("body", "request body must be a JSON object"))
		return
	}

	turn := dialogue.TurnRequest{
		SessionID:    strings.TrimSpace(req.SessionID),
		Message:      req.Message,
		CurrentDraft: req.CurrentDraft,
	}
	if req.Language != "" {
		turn.Language = event.ParseLanguage(req.Language)
	}

	ctx := c.Request.Context()
	if a.cfg.LLMTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.LLMTimeout)
		defer cancel()
	}

	res, err := a.engine.Turn(ctx, turn)
	if err != nil {
		if turn.SessionID != "" {
			withSession(c, turn.SessionID)
		}
		a.respondError(c, moduleChat, err)
		return
	}
	withSession(c, res.SessionID)

	c.JSON(http.StatusOK, turnResponse{
		SessionID:        res.SessionID,
		Reply:            res.Reply,
		Draft:            res.Draft,
		MissingFields:    orEmpty(res.MissingFields),
		IsComplete:       res.IsComplete,
		Stage:            res.Stage,
		Intent:           res.Intent,
		Completeness:     res.Completeness,
		Preview:          res.Preview,
		Suggestions:      orEmpty(res.Suggestions),
		PublishedEventID: res.PublishedEventID,
	})
}

// handleSessionStatusQuery serves GET /api/chat?sessionId=.
func (a *Application) handleSessionStatusQuery(c *gin.Context) {
	a.sessionStatus(c, c.Query("sessionId"))
}

func (a *Application) handleSessionStatus(c *gin.Context) {
	a.sessionStatus(c, c.Param("id"))
}

func (a *Application) sessionStatus(c *gin.Context, id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		a.respondError(c, moduleChat, apperrors.NewValidationError("sessionId", "sessionId is required"))
		return
	}
	withSession(c, id)

	st, err := a.engine.Status(c.Request.Context(), id)
	if err != nil {
		a.respondError(c, moduleChat, err)
		return
	}
	c.JSON(http.StatusOK, newStatusResponse(st))
}

func (a *Application) handleValidate(c *gin.Context) {
	id := c.Param("id")
	withSession(c, id)

	report, err := a.engine.Validate(c.Request.Context(), id)
	if err != nil {
		a.respondError(c, moduleChat, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (a *Application) handleComplete(c *gin.Context) {
	id := c.Param("id")
	withSession(c, id)

	rec, err := a.engine.Complete(c.Request.Context(), id)
	if err != nil {
		a.respondError(c, moduleChat, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (a *Application) handleReset(c *gin.Context) {
	id := c.Param("id")
	withSession(c, id)

	st, err := a.engine.Reset(c.Request.Context(), id)
	if err != nil {
		a.respondError(c, moduleChat, err)
		return
	}
	c.JSON(http.StatusOK, newStatusResponse(st))
}

func (a *Application) handleDelete(c *gin.Context) {
	id := c.Param("id")
	withSession(c, id)

	if err := a.engine.Delete(c.Request.Context(), id); err != nil {
		a.respondError(c, moduleChat, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleListEvents serves GET /api/events?type=&q=&active=&limit=&offset=.
func (a *Application) handleListEvents(c *gin.Context) {
	opts, err := parseListOptions(c)
	if err != nil {
		a.respondError(c, moduleEvents, err)
		return
	}

	records, err := a.db.ListEvents(c.Request.Context(), opts)
	if err != nil {
		a.respondError(c, moduleEvents, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events": lo.Ternary(records == nil, []event.Record{}, records),
		"count":  len(records),
	})
}

func parseListOptions(c *gin.Context) (storage.ListOptions, error) {
	var opts storage.ListOptions

	if raw := c.Query("type"); raw != "" {
		t, ok := event.ParseType(raw)
		if !ok {
			return opts, apperrors.NewValidationError("type", "type must be one of recruit, activity, lecture")
		}
		opts.Type = t
	}
	opts.Query = c.Query("q")

	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, apperrors.NewValidationError("active", "active must be true or false")
		}
		opts.ActiveOnly = active
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"limit", &opts.Limit},
		{"offset", &opts.Offset},
	} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return opts, apperrors.NewValidationError(p.name, p.name+" must be a non-negative integer")
		}
		*p.dst = n
	}
	return opts, nil
}

func (a *Application) handleGetEvent(c *gin.Context) {
	rec, err := a.db.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondError(c, moduleEvents, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// handleEventCalendar serves a published event as an iCalendar file.
func (a *Application) handleEventCalendar(c *gin.Context) {
	rec, err := a.db.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondError(c, moduleEvents, err)
		return
	}

	ics, err := calendar.Export(rec)
	if err != nil {
		a.respondError(c, moduleEvents, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+rec.ID+`.ics"`)
	c.Data(http.StatusOK, calendar.ContentType, []byte(ics))
}

// errorSessionID prefers the session bound to the request, then one recorded
// on the error.
func errorSessionID(c *gin.Context, err error) string {
	if id := ctxutil.GetSessionID(c.Request.Context()); id != "" {
		return id
	}
	return apperrors.SessionIDOf(err)
}

// respondError maps domain errors onto HTTP statuses. Only unexpected
// failures reach Sentry. Timeouts and cancellations are matched before
// upstream errors, which wrap them.
func (a *Application) respondError(c *gin.Context, module string, err error) {
	var (
		notPublishable *dialogue.NotPublishableError
		validation     *apperrors.ValidationError
	)

	switch {
	case errors.As(err, &notPublishable):
		a.metrics.RecordHTTPError("not_publishable", module)
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":         "draft is not ready to publish",
			"stage":         notPublishable.Stage,
			"missingFields": orEmpty(notPublishable.MissingFields),
			"completeness":  notPublishable.Completeness,
		})
	case errors.Is(err, calendar.ErrNoSchedule):
		a.metrics.RecordHTTPError("no_schedule", module)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "event has no date to put on a calendar"})
	case errors.As(err, &validation):
		a.metrics.RecordHTTPError("invalid_input", module)
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Message, "field": validation.Field})
	case apperrors.IsInvalidInput(err):
		a.metrics.RecordHTTPError("invalid_input", module)
		c.JSON(http.StatusBadRequest, gin.H{"error": apperrors.GetUserMessage(err)})
	case errors.Is(err, apperrors.ErrSessionNotFound):
		a.metrics.RecordHTTPError("not_found", module)
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found or expired"})
	case apperrors.IsNotFound(err):
		a.metrics.RecordHTTPError("not_found", module)
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, apperrors.ErrTimeout):
		a.metrics.RecordHTTPError("timeout", module)
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out, please retry"})
	case errors.Is(err, context.Canceled):
		a.metrics.RecordHTTPError("canceled", module)
		c.Status(499)
	case apperrors.IsUpstream(err):
		a.metrics.RecordHTTPError("upstream", module)
		a.logger.WithModule(module).WithError(err).Warn("Language model call failed")
		sentry.CaptureExceptionWithContext(c.Request.Context(), err, errorSessionID(c, err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "the language model is unavailable, please retry"})
	default:
		a.metrics.RecordHTTPError("internal", module)
		a.logger.WithModule(module).WithError(err).Error("Request failed")
		sentry.CaptureExceptionWithContext(c.Request.Context(), err, errorSessionID(c, err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
