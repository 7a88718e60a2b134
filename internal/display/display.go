// Package display enumerates the connected monitors and their geometry.
package display

// Rect is a rectangle in virtual-desktop coordinates. Right and Bottom are exclusive.
type Rect struct {
	Left   int32 `json:"left"`
	Top    int32 `json:"top"`
	Right  int32 `json:"right"`
	Bottom int32 `json:"bottom"`
}

// Width returns the horizontal extent of r.
func (r Rect) Width() int32 { return r.Right - r.Left }

// Height returns the vertical extent of r.
func (r Rect) Height() int32 { return r.Bottom - r.Top }

// Empty reports whether r covers no pixels.
func (r Rect) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// Monitor describes one display as reported by a single topology scan.
// Handle and DeviceName are stable for the OS session; a Monitor value from an
// older scan must not be mixed with values from a newer one.
type Monitor struct {
	Handle     uintptr `json:"handle"`
	DeviceName string  `json:"device_name"`
	Bounds     Rect    `json:"bounds"`
	WorkArea   Rect    `json:"work_area"`
	Primary    bool    `json:"primary"`
}

// Provider performs a complete, fresh scan of the monitor topology on every call.
type Provider interface {
	Enumerate() []Monitor
}

// VirtualDeviceName names the single fallback monitor that stands in for the
// whole virtual desktop when enumeration fails.
const VirtualDeviceName = "DISPLAY"

var fallbackBounds = Rect{Left: 0, Top: 0, Right: 1920, Bottom: 1080}

// Fallback returns the degenerate single-monitor topology covering bounds.
// An empty rectangle is replaced with a 1920x1080 desktop.
func Fallback(bounds Rect) []Monitor {
	if bounds.Empty() {
		bounds = fallbackBounds
	}
	return []Monitor{{
		Handle:     0,
		DeviceName: VirtualDeviceName,
		Bounds:     bounds,
		WorkArea:   bounds,
		Primary:    true,
	}}
}

// Static is a Provider that always reports the same monitors. Each call
// returns a fresh copy so callers can never alias a previous scan.
type Static []Monitor

// Enumerate implements Provider.
func (s Static) Enumerate() []Monitor {
	if len(s) == 0 {
		return Fallback(Rect{})
	}
	out := make([]Monitor, len(s))
	copy(out, s)
	return out
}
