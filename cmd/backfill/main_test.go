package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/garyellow/uniflow-chat/internal/event"
	"github.com/garyellow/uniflow-chat/internal/logger"
	"github.com/garyellow/uniflow-chat/internal/storage"
)

func TestParseTypes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		input   string
		want    []event.Type
		wantErr bool
	}{
		{"all types", "recruit,activity,lecture", []event.Type{event.TypeRecruit, event.TypeActivity, event.TypeLecture}, false},
		{"single type", "lecture", []event.Type{event.TypeLecture}, false},
		{"with spaces", " recruit , activity ", []event.Type{event.TypeRecruit, event.TypeActivity}, false},
		{"mixed case", "Recruit,LECTURE", []event.Type{event.TypeRecruit, event.TypeLecture}, false},
		{"blank entries skipped", "recruit,,", []event.Type{event.TypeRecruit}, false},
		{"empty string", "", nil, true},
		{"only commas", ",,,", nil, true},
		{"unknown type", "recruit,party", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseTypes(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTypes(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseTypes(%q) length = %d, want %d", tt.input, len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("parseTypes(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

type fakeSource struct {
	byType map[event.Type][]event.Record
	err    error

	mu    sync.Mutex
	calls []storage.ListOptions
}

func (f *fakeSource) ListEvents(_ context.Context, opts storage.ListOptions) ([]event.Record, error) {
	f.mu.Lock()
	f.calls = append(f.calls, opts)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	all := f.byType[opts.Type]
	if opts.Offset >= len(all) {
		return nil, nil
	}
	end := min(opts.Offset+opts.Limit, len(all))
	return all[opts.Offset:end], nil
}

type fakeArchiver struct {
	failIDs map[string]bool

	mu   sync.Mutex
	seen map[string]int
}

func (f *fakeArchiver) Archive(_ context.Context, rec event.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = make(map[string]int)
	}
	f.seen[rec.ID]++
	if f.failIDs[rec.ID] {
		return errors.New("upload failed")
	}
	return nil
}

func records(t event.Type, n int) []event.Record {
	out := make([]event.Record, n)
	for i := range out {
		out[i] = event.Record{
			ID:    fmt.Sprintf("evt_%s_%d", t, i),
			Event: event.Event{Type: t, Title: fmt.Sprintf("%s %d", t, i)},
		}
	}
	return out
}

func testLogger() *logger.Logger {
	return logger.NewWithWriter("error", io.Discard)
}

func TestRun_ArchivesEveryPage(t *testing.T) {
	t.Parallel()
	src := &fakeSource{byType: map[event.Type][]event.Record{
		event.TypeRecruit: records(event.TypeRecruit, 7),
		event.TypeLecture: records(event.TypeLecture, 3),
	}}
	dst := &fakeArchiver{}

	st, err := run(context.Background(), src, dst, options{
		types:   []event.Type{event.TypeRecruit, event.TypeLecture},
		workers: 3,
		batch:   3,
	}, testLogger())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := st.scanned.Load(); got != 10 {
		t.Errorf("Expected 10 scanned, got %d", got)
	}
	if got := st.archived.Load(); got != 10 {
		t.Errorf("Expected 10 archived, got %d", got)
	}
	if got := st.failed.Load(); got != 0 {
		t.Errorf("Expected 0 failed, got %d", got)
	}
	for id, n := range dst.seen {
		if n != 1 {
			t.Errorf("Expected %s archived once, got %d", id, n)
		}
	}
	// recruit: offsets 0,3,6 (last page short); lecture: offsets 0,3 (second page empty).
	if len(src.calls) != 5 {
		t.Errorf("Expected 5 list calls, got %d", len(src.calls))
	}
}

func TestRun_CountsFailures(t *testing.T) {
	t.Parallel()
	src := &fakeSource{byType: map[event.Type][]event.Record{
		event.TypeActivity: records(event.TypeActivity, 4),
	}}
	dst := &fakeArchiver{failIDs: map[string]bool{"evt_activity_2": true}}

	st, err := run(context.Background(), src, dst, options{
		types: []event.Type{event.TypeActivity},
		batch: 10,
	}, testLogger())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := st.archived.Load(); got != 3 {
		t.Errorf("Expected 3 archived, got %d", got)
	}
	if got := st.failed.Load(); got != 1 {
		t.Errorf("Expected 1 failed, got %d", got)
	}
}

func TestRun_DryRunSkipsUploads(t *testing.T) {
	t.Parallel()
	src := &fakeSource{byType: map[event.Type][]event.Record{
		event.TypeRecruit: records(event.TypeRecruit, 2),
	}}

	st, err := run(context.Background(), src, nil, options{
		types:  []event.Type{event.TypeRecruit},
		dryRun: true,
	}, testLogger())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := st.scanned.Load(); got != 2 {
		t.Errorf("Expected 2 scanned, got %d", got)
	}
	if got := st.archived.Load(); got != 0 {
		t.Errorf("Expected 0 archived in dry run, got %d", got)
	}
}

func TestRun_ListErrorStops(t *testing.T) {
	t.Parallel()
	src := &fakeSource{err: errors.New("database is locked")}

	_, err := run(context.Background(), src, &fakeArchiver{}, options{
		types: []event.Type{event.TypeRecruit, event.TypeLecture},
	}, testLogger())
	if err == nil {
		t.Fatal("Expected list error, got nil")
	}
	if len(src.calls) != 1 {
		t.Errorf("Expected production to stop after first failure, got %d calls", len(src.calls))
	}
}

func TestRun_ClampsBatchToStorageLimit(t *testing.T) {
	t.Parallel()
	src := &fakeSource{byType: map[event.Type][]event.Record{}}

	_, err := run(context.Background(), src, &fakeArchiver{}, options{
		types: []event.Type{event.TypeRecruit},
		batch: 1000,
	}, testLogger())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := src.calls[0].Limit; got != storage.MaxListLimit {
		t.Errorf("Expected limit %d, got %d", storage.MaxListLimit, got)
	}
}
