package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/garyellow/uniflow-chat/internal/calendar"
	"github.com/garyellow/uniflow-chat/internal/event"
	"github.com/garyellow/uniflow-chat/internal/logger"
	"github.com/garyellow/uniflow-chat/internal/metrics"
)

// DefaultPrefix is the key prefix when none is configured.
const DefaultPrefix = "events"

const (
	jsonContentType = "application/json"
	zstdEncoding    = "zstd"
)

// Upload outcomes recorded in metrics.
const (
	statusSuccess = "success"
	statusExists  = "exists"
	statusError   = "error"
)

// Archiver writes each published record under
// <prefix>/<yyyy>/<mm>/<id>.json.zst and, when the event has a date,
// <prefix>/<yyyy>/<mm>/<id>.ics.
type Archiver struct {
	store   ObjectStore
	prefix  string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// Config configures an Archiver.
type Config struct {
	Store   ObjectStore
	Prefix  string
	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

// New creates an Archiver.
func New(cfg Config) (*Archiver, error) {
	if cfg.Store == nil {
		return nil, errors.New("archive: object store is required")
	}
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	log := cfg.Logger
	if log == nil {
		log = logger.New("info")
	}

	// EncodeAll and DecodeAll are safe for concurrent use.
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("archive: create encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("archive: create decoder: %w", err)
	}

	return &Archiver{
		store:   cfg.Store,
		prefix:  prefix,
		encoder: enc,
		decoder: dec,
		metrics: cfg.Metrics,
		logger:  log.WithModule("archive"),
	}, nil
}

// Close releases the codec resources.
func (a *Archiver) Close() error {
	a.decoder.Close()
	return a.encoder.Close()
}

// RecordKey returns the object key of rec's JSON copy.
func (a *Archiver) RecordKey(rec event.Record) string {
	return a.base(rec) + ".json.zst"
}

// CalendarKey returns the object key of rec's ICS copy.
func (a *Archiver) CalendarKey(rec event.Record) string {
	return a.base(rec) + ".ics"
}

func (a *Archiver) base(rec event.Record) string {
	created := rec.CreatedAt.UTC()
	return path.Join(a.prefix, created.Format("2006"), created.Format("01"), rec.ID)
}

// Archive uploads rec. Objects that already exist are left untouched, so
// retrying is safe.
func (a *Archiver) Archive(ctx context.Context, rec event.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("archive: encode %s: %w", rec.ID, err)
	}
	compressed := a.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))

	if err := a.put(ctx, a.RecordKey(rec), compressed, jsonContentType, zstdEncoding); err != nil {
		return err
	}

	ics, err := calendar.Export(rec)
	if errors.Is(err, calendar.ErrNoSchedule) {
		a.logger.WithField("event_id", rec.ID).Debug("Skipping calendar archive for undated event")
		return nil
	}
	if err != nil {
		return fmt.Errorf("archive: export calendar %s: %w", rec.ID, err)
	}
	return a.put(ctx, a.CalendarKey(rec), []byte(ics), calendar.ContentType, "")
}

func (a *Archiver) put(ctx context.Context, key string, body []byte, contentType, encoding string) error {
	created, err := a.store.PutIfAbsent(ctx, key, bytes.NewReader(body), contentType, encoding)
	switch {
	case err != nil:
		a.metrics.RecordArchiveUpload(statusError)
		return err
	case !created:
		a.metrics.RecordArchiveUpload(statusExists)
		a.logger.WithField("key", key).Debug("Archive object already exists")
	default:
		a.metrics.RecordArchiveUpload(statusSuccess)
		a.logger.WithField("key", key).WithField("bytes", len(body)).Debug("Archived object")
	}
	return nil
}

// Load reads back an archived record from its JSON key.
func (a *Archiver) Load(ctx context.Context, key string) (event.Record, error) {
	body, err := a.store.Get(ctx, key)
	if err != nil {
		return event.Record{}, err
	}
	defer func() { _ = body.Close() }()

	compressed, err := io.ReadAll(body)
	if err != nil {
		return event.Record{}, fmt.Errorf("archive: read %q: %w", key, err)
	}
	data, err := a.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return event.Record{}, fmt.Errorf("archive: decompress %q: %w", key, err)
	}

	var rec event.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return event.Record{}, fmt.Errorf("archive: decode %q: %w", key, err)
	}
	return rec, nil
}
