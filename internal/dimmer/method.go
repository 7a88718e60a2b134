package dimmer

import "strings"

// Method selects how brightness is reduced.
type Method int

const (
	// Auto prefers the gamma ramp and falls back to the overlay.
	Auto Method = iota
	GammaRamp
	Overlay
)

func (m Method) String() string {
	switch m {
	case GammaRamp:
		return "gamma"
	case Overlay:
		return "overlay"
	default:
		return "auto"
	}
}

// ParseMethod accepts the names written by String plus a few aliases.
// Unknown input reports false and yields Auto.
func ParseMethod(s string) (Method, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto", "":
		return Auto, true
	case "gamma", "gammaramp", "gamma_ramp", "ramp":
		return GammaRamp, true
	case "overlay", "window":
		return Overlay, true
	}
	return Auto, false
}

// Phase is the engine lifecycle state.
type Phase int

const (
	Stopped Phase = iota
	Starting
	Running
)

func (p Phase) String() string {
	switch p {
	case Starting:
		return "starting"
	case Running:
		return "running"
	default:
		return "stopped"
	}
}

// Resolve returns the backend in effect for the user's method. Explicit
// choices are never overridden. Auto picks GammaRamp when some selected
// monitor accepted a gamma probe and no write has failed this session.
func Resolve(method Method, gammaCapable, downgraded bool) Method {
	switch method {
	case GammaRamp, Overlay:
		return method
	}
	if gammaCapable && !downgraded {
		return GammaRamp
	}
	return Overlay
}
