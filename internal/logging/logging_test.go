package logging

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type capturedEntry struct {
	level slog.Level
	msg   string
	group string
}

func newTestCallback() (EntryCallback, func() []capturedEntry) {
	var mu sync.Mutex
	var entries []capturedEntry
	cb := func(_ time.Time, level slog.Level, msg string, group string) {
		mu.Lock()
		defer mu.Unlock()
		entries = append(entries, capturedEntry{level: level, msg: msg, group: group})
	}
	get := func() []capturedEntry {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedEntry(nil), entries...)
	}
	return cb, get
}

func TestTeeHandlerCapturesAtOrAboveThreshold(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	cb, entries := newTestCallback()
	logger := slog.New(NewTeeHandler(base, slog.LevelWarn, cb))

	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	got := entries()
	if len(got) != 2 {
		t.Fatalf("captured %d entries, want 2: %+v", len(got), got)
	}
	if got[0].msg != "warn message" || got[1].level != slog.LevelError {
		t.Fatalf("captured = %+v", got)
	}
	for _, want := range []string{"info message", "warn message", "error message"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("base output missing %q", want)
		}
	}
}

func TestTeeHandlerCapturesWhenBaseDisabled(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: LevelOff})
	cb, entries := newTestCallback()
	logger := slog.New(NewTeeHandler(base, slog.LevelWarn, cb))

	logger.Warn("still captured")
	logger.Info("dropped")

	if buf.Len() != 0 {
		t.Fatalf("base wrote %q with level off", buf.String())
	}
	if got := entries(); len(got) != 1 || got[0].msg != "still captured" {
		t.Fatalf("captured = %+v", got)
	}
}

func TestTeeHandlerNestedGroups(t *testing.T) {
	base := slog.NewTextHandler(io.Discard, nil)
	cb, entries := newTestCallback()
	h := NewTeeHandler(base, slog.LevelWarn, cb)

	if same := h.WithGroup(""); same != h {
		t.Fatal("WithGroup(\"\") should return the receiver")
	}
	if same := h.WithAttrs(nil); same != h {
		t.Fatal("WithAttrs(nil) should return the receiver")
	}
	slog.New(h.WithGroup("a").WithAttrs([]slog.Attr{slog.Int("k", 1)}).WithGroup("b")).Error("nested")

	got := entries()
	if len(got) != 1 || got[0].group != "a.b" {
		t.Fatalf("captured = %+v, want group a.b", got)
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (failingHandler) Handle(context.Context, slog.Record) error {
	return errors.New("disk gone")
}

func TestTeeHandlerBaseErrorStillCaptures(t *testing.T) {
	cb, entries := newTestCallback()
	h := NewTeeHandler(failingHandler{}, slog.LevelWarn, cb)
	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelError, "boom", 0))
	if err == nil {
		t.Fatal("Handle() error = nil, want base error")
	}
	if len(entries()) != 1 {
		t.Fatal("callback not invoked after base failure")
	}
}

func TestTeeHandlerCallbackPanicIsContained(t *testing.T) {
	origStderr := os.Stderr
	readPipe, writePipe, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	os.Stderr = writePipe
	t.Cleanup(func() {
		os.Stderr = origStderr
		_ = readPipe.Close()
	})

	h := NewTeeHandler(slog.NewTextHandler(io.Discard, nil), slog.LevelInfo,
		func(time.Time, slog.Level, string, string) { panic("tee panic") })
	if err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "x", 0)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	_ = writePipe.Close()

	out, _ := io.ReadAll(readPipe)
	if !strings.Contains(string(out), "[logging] tee callback panicked: tee panic") {
		t.Fatalf("stderr = %q", out)
	}
}

func TestRecentKeepsNewestInOrder(t *testing.T) {
	r := NewRecent(3)
	for i, msg := range []string{"a", "b", "c", "d", "e"} {
		r.Add(time.Unix(int64(i), 0), slog.LevelWarn, msg, "")
	}
	got := r.Snapshot()
	if len(got) != 3 {
		t.Fatalf("Snapshot() len = %d, want 3", len(got))
	}
	for i, want := range []string{"c", "d", "e"} {
		if got[i].Message != want {
			t.Fatalf("Snapshot()[%d] = %q, want %q", i, got[i].Message, want)
		}
	}
}

func TestRecentPartiallyFilled(t *testing.T) {
	r := NewRecent(0)
	if got := r.Snapshot(); len(got) != 0 {
		t.Fatalf("empty Snapshot() = %+v", got)
	}
	r.Add(time.Now(), slog.LevelError, "only", "g")
	got := r.Snapshot()
	if len(got) != 1 || got[0].Message != "only" || got[0].Group != "g" {
		t.Fatalf("Snapshot() = %+v", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{name: "off", want: LevelOff},
		{name: "Error", want: slog.LevelError},
		{name: "warning", want: slog.LevelWarn},
		{name: "warn", want: slog.LevelWarn},
		{name: " info ", want: slog.LevelInfo},
		{name: "DEBUG", want: slog.LevelDebug},
		{name: "trace", want: LevelTrace},
		{name: "verbose", want: slog.LevelInfo, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestLevelNameRoundTrip(t *testing.T) {
	for _, name := range []string{"off", "error", "warning", "info", "debug", "trace"} {
		level, err := ParseLevel(name)
		if err != nil {
			t.Fatalf("ParseLevel(%q) error = %v", name, err)
		}
		if got := LevelName(level); got != name {
			t.Fatalf("LevelName(%v) = %q, want %q", level, got, name)
		}
	}
}

func TestFileName(t *testing.T) {
	got := FileName(time.Date(2026, 2, 7, 23, 59, 0, 0, time.Local))
	if got != "TinyTools_20260207.log" {
		t.Fatalf("FileName() = %q", got)
	}
}

func TestNewWritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	sink, err := New(Options{
		Level: "trace",
		Dir:   dir,
		Now:   func() time.Time { return time.Date(2026, 5, 1, 8, 0, 0, 0, time.Local) },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = sink.Close() })

	sink.Logger().Log(context.Background(), LevelTrace, "[hook] wheel", "delta", 120)
	sink.Logger().Warn("[dimmer] gamma write failed")

	want := filepath.Join(dir, "TinyTools_20260501.log")
	if sink.Path() != want {
		t.Fatalf("Path() = %q, want %q", sink.Path(), want)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	raw, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	text := string(raw)
	if !strings.Contains(text, "level=TRACE") || !strings.Contains(text, "[hook] wheel") {
		t.Fatalf("log file missing trace line: %q", text)
	}
	warnings := sink.Warnings()
	if len(warnings) != 1 || warnings[0].Message != "[dimmer] gamma write failed" {
		t.Fatalf("Warnings() = %+v", warnings)
	}
}

func TestNewConsoleMirrorAndSetLevel(t *testing.T) {
	var console bytes.Buffer
	sink, err := New(Options{Level: "warning", Console: &console})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sink.Logger().Info("hidden")
	if strings.Contains(console.String(), "hidden") {
		t.Fatal("info logged at warning level")
	}

	if err := sink.SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	if sink.Level() != "debug" {
		t.Fatalf("Level() = %q, want debug", sink.Level())
	}
	sink.Logger().Debug("visible")
	if !strings.Contains(console.String(), "visible") {
		t.Fatalf("console = %q, want debug line", console.String())
	}
	if err := sink.SetLevel("loud"); err == nil {
		t.Fatal("SetLevel(loud) expected error")
	}
	if sink.Path() != "" {
		t.Fatalf("Path() = %q, want empty without Dir", sink.Path())
	}
}

func TestNewReportsBadLevelButWorks(t *testing.T) {
	var console bytes.Buffer
	sink, err := New(Options{Level: "chatty", Console: &console})
	if err == nil {
		t.Fatal("New() expected level error")
	}
	sink.Logger().Info("info still works")
	if !strings.Contains(console.String(), "info still works") {
		t.Fatalf("console = %q", console.String())
	}
}
