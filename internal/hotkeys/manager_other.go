//go:build !windows

package hotkeys

import "log/slog"

// registration only remembers the binding; nothing ever fires it.
type registration struct {
	binding string
}

func register(binding Binding, _ func()) (*registration, error) {
	slog.Warn("[hotkey] global hotkeys are not supported on this platform", "binding", binding.Normalized())
	return &registration{binding: binding.Normalized()}, nil
}

func (r *registration) unregister() error { return nil }
