// Package overlay darkens monitors with translucent, click-through black
// windows. All Manager methods must run on the UI thread.
package overlay

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"tinytools/internal/display"
)

// OpacityPerPercent converts one percent of lost brightness into alpha units.
// It is a tuning constant: 2.3 reaches full black (255) slightly before 0%,
// leaving a floor instead of a hard black-out.
const OpacityPerPercent = 2.3

// Opacity maps brightness in percent to overlay alpha (0 transparent, 255 black).
func Opacity(brightness int) uint8 {
	v := math.Round(float64(100-brightness) * OpacityPerPercent)
	return uint8(min(max(v, 0), 255))
}

// surface is the OS window layer behind Manager.
type surface interface {
	create(m display.Monitor, opacity uint8) (uintptr, error)
	update(hwnd uintptr, bounds display.Rect, opacity uint8) error
	destroy(hwnd uintptr) error
}

type window struct {
	hwnd    uintptr
	bounds  display.Rect
	opacity uint8
}

// Manager owns one overlay window per monitor handle.
type Manager struct {
	surface surface
	windows map[uintptr]*window
}

// NewManager returns a Manager backed by native windows.
func NewManager() *Manager {
	return newManager(newSurface())
}

func newManager(s surface) *Manager {
	return &Manager{surface: s, windows: map[uintptr]*window{}}
}

// Show creates or updates the overlay for m at the given opacity.
func (o *Manager) Show(m display.Monitor, opacity uint8) error {
	if w, ok := o.windows[m.Handle]; ok {
		if w.bounds == m.Bounds && w.opacity == opacity {
			return nil
		}
		if err := o.surface.update(w.hwnd, m.Bounds, opacity); err != nil {
			return fmt.Errorf("update overlay for %s: %w", m.DeviceName, err)
		}
		w.bounds = m.Bounds
		w.opacity = opacity
		return nil
	}

	hwnd, err := o.surface.create(m, opacity)
	if err != nil {
		return fmt.Errorf("create overlay for %s: %w", m.DeviceName, err)
	}
	o.windows[m.Handle] = &window{hwnd: hwnd, bounds: m.Bounds, opacity: opacity}
	slog.Debug("[overlay] window created", "device", m.DeviceName, "opacity", opacity)
	return nil
}

// Hide destroys the overlay for a monitor handle if one exists. The window is
// forgotten even when the OS call fails.
func (o *Manager) Hide(handle uintptr) error {
	w, ok := o.windows[handle]
	if !ok {
		return nil
	}
	delete(o.windows, handle)
	if err := o.surface.destroy(w.hwnd); err != nil {
		return fmt.Errorf("destroy overlay: %w", err)
	}
	return nil
}

// HideAll destroys every overlay, continuing past individual failures.
func (o *Manager) HideAll() error {
	var errs []error
	for handle := range o.windows {
		if err := o.Hide(handle); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Count returns the number of live overlay windows.
func (o *Manager) Count() int { return len(o.windows) }
