// Package logging builds the process logger: a leveled text log in a daily
// file, an optional console mirror and an in-memory ring of recent warnings.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	// LevelTrace is below Debug for per-event chatter (hook callbacks).
	LevelTrace = slog.LevelDebug - 4
	// LevelOff disables the file and console output.
	LevelOff = slog.Level(1 << 20)

	filePrefix = "TinyTools_"
	fileSuffix = ".log"
)

var levelByName = map[string]slog.Level{
	"off":     LevelOff,
	"error":   slog.LevelError,
	"warning": slog.LevelWarn,
	"warn":    slog.LevelWarn,
	"info":    slog.LevelInfo,
	"debug":   slog.LevelDebug,
	"trace":   LevelTrace,
}

// ParseLevel maps a settings level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	level, ok := levelByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

// LevelName is the inverse of ParseLevel.
func LevelName(level slog.Level) string {
	switch {
	case level >= LevelOff:
		return "off"
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warning"
	case level >= slog.LevelInfo:
		return "info"
	case level >= slog.LevelDebug:
		return "debug"
	default:
		return "trace"
	}
}

// FileName returns the log file name for the day containing t.
func FileName(t time.Time) string {
	return filePrefix + t.Format("20060102") + fileSuffix
}

// Options configures New.
type Options struct {
	// Level is a settings level name; empty means info.
	Level string
	// Dir receives the daily log file. Empty disables file output.
	Dir string
	// Console mirrors output when non-nil.
	Console io.Writer
	// RecentCapacity bounds the warning ring.
	RecentCapacity int
	// Now is a test seam for the file date.
	Now func() time.Time
}

// Sink owns the logger and its file.
type Sink struct {
	logger   *slog.Logger
	level    *slog.LevelVar
	warnings *Recent
	path     string

	mu   sync.Mutex
	file *os.File
}

// New builds a Sink. A file that cannot be opened is reported through the
// returned error while the Sink still works without it.
func New(opts Options) (*Sink, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	level, levelErr := ParseLevel(opts.Level)
	if strings.TrimSpace(opts.Level) == "" {
		levelErr = nil
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	s := &Sink{level: levelVar, warnings: NewRecent(opts.RecentCapacity)}

	var fileErr error
	var writers []io.Writer
	if opts.Dir != "" {
		path := filepath.Join(opts.Dir, FileName(now()))
		f, err := openLogFile(path)
		if err != nil {
			fileErr = err
		} else {
			s.file = f
			s.path = path
			writers = append(writers, f)
		}
	}
	if opts.Console != nil {
		writers = append(writers, opts.Console)
	}

	var out io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		out = writers[0]
	default:
		out = io.MultiWriter(writers...)
	}

	base := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level:       levelVar,
		ReplaceAttr: replaceLevelName,
	})
	s.logger = slog.New(NewTeeHandler(base, slog.LevelWarn, s.warnings.Add))
	return s, errors.Join(levelErr, fileErr)
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("open log file: mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// replaceLevelName spells the custom trace level as TRACE instead of DEBUG-4.
func replaceLevelName(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if level, ok := a.Value.Any().(slog.Level); ok && level <= LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}

// Logger returns the configured logger.
func (s *Sink) Logger() *slog.Logger { return s.logger }

// Path returns the log file path, or "" when file output is disabled.
func (s *Sink) Path() string { return s.path }

// Level returns the current level name.
func (s *Sink) Level() string { return LevelName(s.level.Level()) }

// SetLevel changes the level at runtime.
func (s *Sink) SetLevel(name string) error {
	level, err := ParseLevel(name)
	if err != nil {
		return err
	}
	if s.level.Level() != level {
		s.level.Set(level)
		s.logger.Info("[logging] level changed", "level", LevelName(level))
	}
	return nil
}

// Warnings returns captured warnings and errors, oldest first.
func (s *Sink) Warnings() []Entry { return s.warnings.Snapshot() }

// Close flushes and closes the log file. Idempotent.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
