// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// LogRecorder keeps the records passed to the default logger during a test.
type LogRecorder struct {
	level slog.Level

	mu      sync.Mutex
	records []string
}

// CaptureLogs routes slog.Default to a recorder at or above level and
// restores the previous logger in t.Cleanup.
func CaptureLogs(t *testing.T, level slog.Level) *LogRecorder {
	t.Helper()
	previous := slog.Default()
	rec := &LogRecorder{level: level}
	slog.SetDefault(slog.New(rec))
	t.Cleanup(func() { slog.SetDefault(previous) })
	return rec
}

// Contains reports whether any formatted record contains substr.
func (r *LogRecorder) Contains(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, line := range r.records {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// String joins all records, one per line.
func (r *LogRecorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.records, "\n")
}

func (r *LogRecorder) Enabled(_ context.Context, level slog.Level) bool {
	return level >= r.level
}

func (r *LogRecorder) Handle(_ context.Context, rec slog.Record) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", rec.Level, rec.Message)
	rec.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		return true
	})
	r.mu.Lock()
	r.records = append(r.records, b.String())
	r.mu.Unlock()
	return nil
}

// WithAttrs and WithGroup drop the extra context; tests match on messages.
func (r *LogRecorder) WithAttrs([]slog.Attr) slog.Handler { return r }
func (r *LogRecorder) WithGroup(string) slog.Handler { return r }
