package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDelay coalesces editor save bursts (truncate, write, rename)
// into one reload.
const DefaultWatchDelay = 300 * time.Millisecond

// Watcher reloads the settings file after external edits.
type Watcher struct {
	path     string
	delay    time.Duration
	onChange func(Config, error)
}

// NewWatcher returns a watcher for path. onChange receives the result of
// Load and runs on a timer goroutine.
func NewWatcher(path string, delay time.Duration, onChange func(Config, error)) *Watcher {
	if delay <= 0 {
		delay = DefaultWatchDelay
	}
	return &Watcher{path: path, delay: delay, onChange: onChange}
}

// Run watches the settings directory until ctx is cancelled. The directory
// is watched rather than the file because atomic saves replace the file.
func (w *Watcher) Run(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("watch config: mkdir: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	defer func() {
		if closeErr := fw.Close(); closeErr != nil {
			slog.Debug("[DEBUG-CONFIG] watcher close failed", "error", closeErr)
		}
	}()
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch config: add %s: %w", dir, err)
	}

	debounced := debounce.New(w.delay)
	reload := func() {
		if ctx.Err() != nil {
			return
		}
		cfg, loadErr := Load(w.path)
		w.onChange(cfg, loadErr)
	}
	target := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Base(ev.Name), target) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			slog.Debug("[DEBUG-CONFIG] settings file changed", "op", ev.Op.String())
			debounced(reload)
		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("[WARN-CONFIG] settings watcher error", "error", watchErr)
		}
	}
}
