package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/garyellow/uniflow-chat/internal/errors"
	"github.com/garyellow/uniflow-chat/internal/event"
	"github.com/garyellow/uniflow-chat/internal/normalize"
)

// EventIDPrefix marks published event identifiers.
const EventIDPrefix = "evt_"

// MaxListLimit caps a single ListEvents page.
const MaxListLimit = 200

const (
	defaultListLimit = 50
	maxQueryLength   = 100
)

// slowQueryThreshold triggers a warning log for slow statements.
const slowQueryThreshold = 100 * time.Millisecond

// ListOptions filters ListEvents.
type ListOptions struct {
	Type event.Type
	// Query matches a substring of the title.
	Query string
	// ActiveOnly drops events whose date (or deadline, for recruit) has passed.
	ActiveOnly bool
	// Now is the reference time for ActiveOnly. Defaults to normalize.Now.
	Now    time.Time
	Limit  int
	Offset int
}

// CreateEvent stores a published event and returns its record.
func (db *DB) CreateEvent(ctx context.Context, ev event.Event, source, sessionID string) (event.Record, error) {
	if strings.TrimSpace(ev.Title) == "" {
		return event.Record{}, apperrors.NewValidationError("title", "title is required")
	}
	if !ev.Type.Valid() {
		return event.Record{}, apperrors.NewValidationError("type", fmt.Sprintf("unknown event type %q", ev.Type))
	}

	tags, err := json.Marshal(nonNilTags(ev.Tags))
	if err != nil {
		return event.Record{}, fmt.Errorf("encode tags: %w", err)
	}
	keyInfo, err := json.Marshal(ev.KeyInfo)
	if err != nil {
		return event.Record{}, fmt.Errorf("encode key_info: %w", err)
	}

	rec := event.Record{
		ID:        EventIDPrefix + uuid.NewString(),
		Event:     ev.Clone(),
		Source:    source,
		SessionID: sessionID,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	query := `
		INSERT INTO events (id, title, type, summary, tags, key_info, source, session_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	start := time.Now()
	_, err = db.writer.ExecContext(ctx, query,
		rec.ID,
		ev.Title,
		string(ev.Type),
		ev.Summary,
		string(tags),
		string(keyInfo),
		source,
		nullString(sessionID),
		rec.CreatedAt.Unix(),
	)
	if err != nil {
		slog.ErrorContext(ctx, "failed to save event",
			"event_id", rec.ID,
			"error", err)
		return event.Record{}, fmt.Errorf("failed to save event: %w", err)
	}
	warnSlow(ctx, "CreateEvent", start)

	return rec, nil
}

// GetEvent returns the event with the given id, or errors.ErrNotFound.
func (db *DB) GetEvent(ctx context.Context, id string) (event.Record, error) {
	query := `SELECT id, title, type, summary, tags, key_info, source, session_id, created_at FROM events WHERE id = ?`

	rec, err := scanEvent(db.reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return event.Record{}, fmt.Errorf("event %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to query event",
			"event_id", id,
			"error", err)
		return event.Record{}, fmt.Errorf("query event: %w", err)
	}
	return rec, nil
}

// likeEscaper neutralizes LIKE wildcards under ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern turns a user search term into a literal substring match.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// ListEvents returns published events, newest first.
func (db *DB) ListEvents(ctx context.Context, opts ListOptions) ([]event.Record, error) {
	if len(opts.Query) > maxQueryLength {
		return nil, apperrors.NewValidationError("q", "search term too long")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, MaxListLimit)
	offset := max(opts.Offset, 0)

	var (
		where []string
		args  []any
	)
	if opts.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(opts.Type))
	}
	if q := strings.TrimSpace(opts.Query); q != "" {
		where = append(where, `title LIKE ? ESCAPE '\'`)
		args = append(args, containsPattern(q))
	}

	query := `SELECT id, title, type, summary, tags, key_info, source, session_id, created_at FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	// Expiry depends on free-text dates, so ActiveOnly pages in Go.
	if !opts.ActiveOnly {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	start := time.Now()
	rows, err := db.reader.QueryContext(ctx, query, args...)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list events", "error", err)
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	now := opts.Now
	if now.IsZero() {
		now = normalize.Now()
	}

	records := []event.Record{}
	skipped := 0
	for rows.Next() {
		rec, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if opts.ActiveOnly {
			if normalize.IsExpired(rec.Event, now) {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			if len(records) >= limit {
				break
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	warnSlow(ctx, "ListEvents", start)

	return records, nil
}

// CountEvents returns the number of published events.
func (db *DB) CountEvents(ctx context.Context) (int, error) {
	var count int
	if err := db.reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (event.Record, error) {
	var (
		rec       event.Record
		typ       string
		tags      string
		keyInfo   string
		sessionID sql.NullString
		createdAt int64
	)
	err := row.Scan(
		&rec.ID,
		&rec.Event.Title,
		&typ,
		&rec.Event.Summary,
		&tags,
		&keyInfo,
		&rec.Source,
		&sessionID,
		&createdAt,
	)
	if err != nil {
		return event.Record{}, err
	}

	rec.Event.Type = event.Type(typ)
	if err := json.Unmarshal([]byte(tags), &rec.Event.Tags); err != nil {
		return event.Record{}, fmt.Errorf("decode tags of %s: %w", rec.ID, err)
	}
	if len(rec.Event.Tags) == 0 {
		rec.Event.Tags = nil
	}
	if err := json.Unmarshal([]byte(keyInfo), &rec.Event.KeyInfo); err != nil {
		return event.Record{}, fmt.Errorf("decode key_info of %s: %w", rec.ID, err)
	}
	rec.SessionID = sessionID.String
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	return rec, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// nullString converts empty strings to SQL NULL
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func warnSlow(ctx context.Context, op string, start time.Time) {
	if duration := time.Since(start); duration > slowQueryThreshold {
		slog.WarnContext(ctx, "slow database operation",
			"operation", op,
			"duration_ms", duration.Milliseconds())
	}
}
