// Command backfill copies published events from the local database into the
// object-store archive. Uploads are conditional, so re-running is safe.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/garyellow/uniflow-chat/internal/archive"
	"github.com/garyellow/uniflow-chat/internal/config"
	"github.com/garyellow/uniflow-chat/internal/event"
	"github.com/garyellow/uniflow-chat/internal/logger"
	"github.com/garyellow/uniflow-chat/internal/storage"
)

// CLI flags
var (
	typesFlag   = flag.String("types", "recruit,activity,lecture", "Comma-separated event types to archive")
	workersFlag = flag.Int("workers", 4, "Concurrent uploads")
	batchFlag   = flag.Int("batch", 100, "Events read per page")
	dryRunFlag  = flag.Bool("dry-run", false, "List what would be archived without uploading")
	timeoutFlag = flag.Duration("timeout", 30*time.Minute, "Overall time budget")
)

// eventSource pages through stored events.
type eventSource interface {
	ListEvents(ctx context.Context, opts storage.ListOptions) ([]event.Record, error)
}

// recordArchiver uploads one record.
type recordArchiver interface {
	Archive(ctx context.Context, rec event.Record) error
}

type options struct {
	types   []event.Type
	workers int
	batch   int
	dryRun  bool
}

type stats struct {
	scanned  atomic.Int64
	archived atomic.Int64
	failed   atomic.Int64
}

func main() {
	flag.Parse()

	// Backfill never talks to a model, so provider keys are not required.
	config.LoadDotEnv()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel).WithModule("backfill")
	log.Info("Starting archive backfill")

	types, err := parseTypes(*typesFlag)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Invalid -types: %v\n", err)
		os.Exit(2)
	}
	opts := options{types: types, workers: *workersFlag, batch: *batchFlag, dryRun: *dryRunFlag}

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	db, err := storage.New(ctx, cfg.SQLitePath())
	if err != nil {
		log.WithError(err).Error("Failed to open database")
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	var dst recordArchiver
	if !opts.dryRun {
		if !cfg.ArchiveEnabled {
			_, _ = fmt.Fprintln(os.Stderr, "Archive is disabled; set UNIFLOW_ARCHIVE_ENABLED=true or use -dry-run")
			os.Exit(2)
		}
		client, err := archive.NewClient(ctx, archive.ClientConfig{
			Endpoint:    cfg.ArchiveEndpointURL(),
			AccessKeyID: cfg.ArchiveAccessKeyID,
			SecretKey:   cfg.ArchiveSecretAccessKey,
			BucketName:  cfg.ArchiveBucketName,
		})
		if err != nil {
			log.WithError(err).Error("Failed to create archive client")
			os.Exit(1)
		}
		arc, err := archive.New(archive.Config{Store: client, Prefix: cfg.ArchivePrefix, Logger: log})
		if err != nil {
			log.WithError(err).Error("Failed to create archiver")
			os.Exit(1)
		}
		defer func() { _ = arc.Close() }()
		dst = arc
	}

	start := time.Now()
	st, err := run(ctx, db, dst, opts, log)
	duration := time.Since(start).Round(time.Millisecond)

	summary := fmt.Sprintf("%d scanned, %d archived, %d failed", st.scanned.Load(), st.archived.Load(), st.failed.Load())
	if err != nil || st.failed.Load() > 0 {
		entry := log.WithField("failed", st.failed.Load()).WithField("duration", duration)
		if err != nil {
			entry = entry.WithError(err)
		}
		entry.Error("Backfill completed with errors")
		_, _ = fmt.Fprintf(os.Stderr, "Backfill completed with errors: %s (%v)\n", summary, duration)
		os.Exit(1)
	}
	log.WithField("duration", duration).Info("Backfill complete")
	fmt.Printf("Backfill complete: %s (%v)\n", summary, duration)
}

// parseTypes parses a comma-separated type list, skipping blanks.
func parseTypes(raw string) ([]event.Type, error) {
	var out []event.Type
	for part := range strings.SplitSeq(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t, ok := event.ParseType(part)
		if !ok {
			return nil, fmt.Errorf("unknown event type %q", part)
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no event types given")
	}
	return out, nil
}

// run pages through every requested type and feeds records to a worker pool.
// A nil dst counts records without uploading.
func run(ctx context.Context, src eventSource, dst recordArchiver, opts options, log *logger.Logger) (*stats, error) {
	workers := max(opts.workers, 1)
	batch := min(max(opts.batch, 1), storage.MaxListLimit)
	st := &stats{}

	records := make(chan event.Record, workers*2)
	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			for rec := range records {
				if ctx.Err() != nil {
					st.failed.Add(1)
					continue
				}
				if dst == nil {
					log.WithField("event_id", rec.ID).WithField("type", rec.Event.Type).Info("Would archive")
					continue
				}
				if err := dst.Archive(ctx, rec); err != nil {
					log.WithError(err).WithField("event_id", rec.ID).Warn("Failed to archive event")
					st.failed.Add(1)
					continue
				}
				if n := st.archived.Add(1); n%50 == 0 {
					log.WithField("archived", n).Info("Backfill progress")
				}
			}
		})
	}

	var listErr error
produce:
	for _, t := range opts.types {
		for offset := 0; ; offset += batch {
			page, err := src.ListEvents(ctx, storage.ListOptions{Type: t, Limit: batch, Offset: offset})
			if err != nil {
				listErr = fmt.Errorf("list %s events at offset %d: %w", t, offset, err)
				break produce
			}
			for _, rec := range page {
				st.scanned.Add(1)
				records <- rec
			}
			if len(page) < batch {
				break
			}
		}
	}
	close(records)
	wg.Wait()

	return st, listErr
}
