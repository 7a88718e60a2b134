//go:build !windows

package tray

import "log/slog"

// Icon is a headless stand-in; nothing is shown off Windows.
type Icon struct {
	opts    Options
	visible bool
}

// New returns a hidden icon.
func New(opts Options) *Icon { return &Icon{opts: opts} }

// Show marks the icon visible.
func (i *Icon) Show() error {
	if !i.visible {
		slog.Debug("[tray] notification area not available on this platform", "tooltip", i.opts.Tooltip)
	}
	i.visible = true
	return nil
}

// Close hides the icon.
func (i *Icon) Close() error {
	i.visible = false
	return nil
}
