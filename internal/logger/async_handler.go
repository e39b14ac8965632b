package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Drop reasons passed to AsyncOptions.OnDrop.
const (
	DropBufferFull = "buffer_full"
	DropClosed     = "closed"
	DropSinkError  = "sink_error"
)

const (
	defaultQueueSize     = 1024
	defaultDrainDeadline = 5 * time.Second
)

// AsyncOptions configures the buffer in front of a slow sink.
type AsyncOptions struct {
	// BufferSize is the number of records held before new ones are dropped.
	BufferSize int
	// FlushTimeout bounds Shutdown when the caller's context has no deadline.
	FlushTimeout time.Duration
	// OnDrop is called once per record that never reached the sink.
	// It runs on the logging goroutine and must not log.
	OnDrop func(reason string)
}

type queuedRecord struct {
	ctx    context.Context
	record slog.Record
	sink   slog.Handler
}

// sinkQueue is shared by every handler derived from one AsyncHandler.
type sinkQueue struct {
	records  chan queuedRecord
	deadline time.Duration
	onDrop   func(string)

	closed  atomic.Bool
	dropped atomic.Uint64
	done    sync.WaitGroup
}

func newSinkQueue(opts AsyncOptions) *sinkQueue {
	size := opts.BufferSize
	if size <= 0 {
		size = defaultQueueSize
	}
	deadline := opts.FlushTimeout
	if deadline <= 0 {
		deadline = defaultDrainDeadline
	}

	q := &sinkQueue{
		records:  make(chan queuedRecord, size),
		deadline: deadline,
		onDrop:   opts.OnDrop,
	}
	q.done.Go(q.drain)
	return q
}

func (q *sinkQueue) drain() {
	for qr := range q.records {
		if err := qr.sink.Handle(qr.ctx, qr.record); err != nil {
			q.drop(DropSinkError)
		}
	}
}

func (q *sinkQueue) drop(reason string) {
	q.dropped.Add(1)
	if q.onDrop != nil {
		q.onDrop(reason)
	}
}

func (q *sinkQueue) push(ctx context.Context, r slog.Record, sink slog.Handler) {
	if q.closed.Load() {
		q.drop(DropClosed)
		return
	}
	// Request contexts are cancelled long before the sink sees the record.
	qr := queuedRecord{ctx: context.WithoutCancel(ctx), record: r, sink: sink}
	select {
	case q.records <- qr:
	default:
		q.drop(DropBufferFull)
	}
}

func (q *sinkQueue) close(ctx context.Context) error {
	if q.closed.Swap(true) {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.deadline)
		defer cancel()
	}
	close(q.records)

	drained := make(chan struct{})
	go func() {
		q.done.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AsyncHandler hands records to a background goroutine so a remote sink
// never blocks a dialogue turn. Records that cannot be queued are dropped
// and reported through AsyncOptions.OnDrop.
type AsyncHandler struct {
	queue *sinkQueue
	sink  slog.Handler
}

// NewAsyncHandler starts the background goroutine for sink.
func NewAsyncHandler(sink slog.Handler, opts AsyncOptions) *AsyncHandler {
	return &AsyncHandler{queue: newSinkQueue(opts), sink: sink}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.sink.Enabled(ctx, level)
}

// Handle queues a clone of r; it never returns an error.
func (h *AsyncHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.sink.Enabled(ctx, r.Level) {
		h.queue.push(ctx, r.Clone(), h.sink)
	}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{queue: h.queue, sink: h.sink.WithAttrs(attrs)}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{queue: h.queue, sink: h.sink.WithGroup(name)}
}

// Dropped returns how many records never reached the sink.
func (h *AsyncHandler) Dropped() uint64 {
	if h == nil || h.queue == nil {
		return 0
	}
	return h.queue.dropped.Load()
}

// Shutdown stops accepting records and waits for the queue to drain.
// Calling it more than once is a no-op.
func (h *AsyncHandler) Shutdown(ctx context.Context) error {
	if h == nil || h.queue == nil {
		return nil
	}
	return h.queue.close(ctx)
}
