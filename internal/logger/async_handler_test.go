package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer serializes writes from the async worker and reads from the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAsyncHandler_FlushOnShutdown(t *testing.T) {
	t.Parallel()

	out := &syncBuffer{}
	h := NewAsyncHandler(slog.NewJSONHandler(out, nil), AsyncOptions{BufferSize: 16})
	log := slog.New(h).With("module", "archive")

	for i := range 5 {
		log.Info("queued", "n", i)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	got := out.String()
	if n := strings.Count(got, `"msg":"queued"`); n != 5 {
		t.Errorf("Expected 5 flushed records, got %d: %s", n, got)
	}
	if !strings.Contains(got, `"module":"archive"`) {
		t.Errorf("Expected WithAttrs to carry through the worker: %s", got)
	}
}

func TestAsyncHandler_DropsAfterShutdown(t *testing.T) {
	t.Parallel()

	out := &syncBuffer{}
	h := NewAsyncHandler(slog.NewJSONHandler(out, nil), AsyncOptions{})
	if err := h.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	// Second shutdown is a no-op.
	if err := h.Shutdown(context.Background()); err != nil {
		t.Errorf("Second Shutdown() error = %v", err)
	}

	slog.New(h).Info("late")
	if strings.Contains(out.String(), "late") {
		t.Error("Expected records after shutdown to be dropped")
	}
}

func TestAsyncHandler_NilShutdown(t *testing.T) {
	t.Parallel()

	var h *AsyncHandler
	if err := h.Shutdown(context.Background()); err != nil {
		t.Errorf("nil Shutdown() error = %v", err)
	}
}

// dropLog records OnDrop reasons from the worker goroutine.
type dropLog struct {
	mu      sync.Mutex
	reasons []string
}

func (d *dropLog) add(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reasons = append(d.reasons, reason)
}

func (d *dropLog) snapshot() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.reasons...)
}

// gateSink blocks every Handle call until release is closed.
type gateSink struct {
	entered chan struct{}
	release chan struct{}
	err     error
}

func (g *gateSink) Enabled(context.Context, slog.Level) bool { return true }
func (g *gateSink) WithAttrs([]slog.Attr) slog.Handler { return g }
func (g *gateSink) WithGroup(string) slog.Handler { return g }

func (g *gateSink) Handle(context.Context, slog.Record) error {
	if g.entered != nil {
		select {
		case g.entered <- struct{}{}:
		default:
		}
	}
	if g.release != nil {
		<-g.release
	}
	return g.err
}

func TestAsyncHandler_ReportsBufferFullDrops(t *testing.T) {
	t.Parallel()

	drops := &dropLog{}
	sink := &gateSink{entered: make(chan struct{}, 1), release: make(chan struct{})}
	h := NewAsyncHandler(sink, AsyncOptions{BufferSize: 1, OnDrop: drops.add})
	log := slog.New(h)

	log.Info("in flight")
	<-sink.entered
	log.Info("buffered")
	log.Info("overflow")

	close(sink.release)
	if err := h.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	got := drops.snapshot()
	if len(got) != 1 || got[0] != DropBufferFull {
		t.Errorf("Expected one %q drop, got %v", DropBufferFull, got)
	}
	if h.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", h.Dropped())
	}
}

func TestAsyncHandler_ReportsClosedAndSinkErrors(t *testing.T) {
	t.Parallel()

	drops := &dropLog{}
	h := NewAsyncHandler(&gateSink{err: errors.New("ingest rejected")}, AsyncOptions{OnDrop: drops.add})
	log := slog.New(h)

	log.Warn("rejected by sink")
	if err := h.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	log.Warn("after shutdown")

	got := drops.snapshot()
	want := []string{DropSinkError, DropClosed}
	if len(got) != len(want) {
		t.Fatalf("Expected drops %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("drop[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if h.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", h.Dropped())
	}
}

func TestAsyncHandler_SurvivesCancelledRequestContext(t *testing.T) {
	t.Parallel()

	out := &syncBuffer{}
	h := NewAsyncHandler(slog.NewJSONHandler(out, nil), AsyncOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	slog.New(h).InfoContext(ctx, "turn finished")
	cancel()

	if err := h.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !strings.Contains(out.String(), "turn finished") {
		t.Errorf("Expected record logged before cancel to be flushed: %s", out.String())
	}
}
