//go:build !windows

package overlay

import "tinytools/internal/display"

// headless tracks overlays without drawing anything.
type headless struct{ next uintptr }

func newSurface() surface { return &headless{} }

func (h *headless) create(display.Monitor, uint8) (uintptr, error) {
	h.next++
	return h.next, nil
}

func (*headless) update(uintptr, display.Rect, uint8) error { return nil }

func (*headless) destroy(uintptr) error { return nil }
