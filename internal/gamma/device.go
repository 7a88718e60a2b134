package gamma

import "tinytools/internal/display"

// Device reads and writes the gamma ramp of one monitor at a time. Every call
// acquires and releases its own device context.
type Device interface {
	// Probe reports whether the monitor currently returns a gamma ramp.
	Probe(m display.Monitor) bool
	Read(m display.Monitor) (Ramp, error)
	Write(m display.Monitor, r Ramp) error
}
