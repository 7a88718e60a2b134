//go:build !windows

package gamma

import "tinytools/internal/display"

type unsupported struct{}

// NewDevice returns a device that never supports gamma ramps.
func NewDevice() Device { return unsupported{} }

func (unsupported) Probe(display.Monitor) bool { return false }

func (unsupported) Read(display.Monitor) (Ramp, error) { return Ramp{}, ErrUnsupported }

func (unsupported) Write(display.Monitor, Ramp) error { return ErrUnsupported }
