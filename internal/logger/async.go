package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer flushes buffered log records and stops background workers.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// asyncCore is the queue and worker state shared by an AsyncHandler and all
// of its WithAttrs/WithGroup derivatives, so Close drains every variant.
type asyncCore struct {
	queue   chan slog.Record
	workers sync.WaitGroup
	dropped atomic.Int64
}

// AsyncHandler decouples log emission from log writing: Handle enqueues the
// record and a worker pool hands it to the wrapped handler. A full queue
// drops the record rather than blocking the caller.
type AsyncHandler struct {
	next slog.Handler
	core *asyncCore
}

// NewAsyncHandler starts workers goroutines draining a queue of the given
// capacity into next.
func NewAsyncHandler(next slog.Handler, capacity, workers int) *AsyncHandler {
	core := &asyncCore{queue: make(chan slog.Record, capacity)}
	h := &AsyncHandler{next: next, core: core}
	for range workers {
		core.workers.Add(1)
		go h.run()
	}
	return h
}

func (h *AsyncHandler) run() {
	defer h.core.workers.Done()
	for rec := range h.core.queue {
		_ = h.next.Handle(context.Background(), rec)
	}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle enqueues the record, counting it as dropped when the queue is full.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.core.queue <- rec:
	default:
		h.core.dropped.Add(1)
	}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{next: h.next.WithAttrs(attrs), core: h.core}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{next: h.next.WithGroup(name), core: h.core}
}

// DroppedCount reports how many records were discarded due to a full queue.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.core.dropped.Load()
}

// Close stops accepting records and blocks until the workers have written
// everything still queued.
func (h *AsyncHandler) Close() {
	close(h.core.queue)
	h.core.workers.Wait()
}
