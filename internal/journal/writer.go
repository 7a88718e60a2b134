package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultQueueSize = 64
	writeTimeout     = 2 * time.Second
)

// recorder is the write side of Journal.
type recorder interface {
	Record(ctx context.Context, kind Kind, value string) error
}

type pending struct {
	kind  Kind
	value string
}

// Writer records entries off the caller's goroutine, preserving submission
// order. Submit never blocks; entries are dropped when the queue is full.
type Writer struct {
	rec   recorder
	queue chan pending

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewWriter starts a writer over rec. queueSize <= 0 uses a default.
func NewWriter(rec recorder, queueSize int) *Writer {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	w := &Writer{
		rec:   rec,
		queue: make(chan pending, queueSize),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

// Submit enqueues one entry. It reports false when the entry was dropped.
func (w *Writer) Submit(kind Kind, value string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	select {
	case w.queue <- pending{kind: kind, value: value}:
		return true
	default:
		slog.Debug("[journal] queue full, entry dropped", "kind", kind)
		return false
	}
}

// Close flushes queued entries and stops the writer. Idempotent.
func (w *Writer) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
}

func (w *Writer) run() {
	defer close(w.done)
	for p := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := w.rec.Record(ctx, p.kind, p.value); err != nil {
			slog.Warn("[journal] record failed", "kind", p.kind, "error", err)
		}
		cancel()
	}
}
