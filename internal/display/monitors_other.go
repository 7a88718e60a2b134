//go:build !windows

package display

// NewProvider returns a provider reporting the virtual-desktop fallback.
// Only Windows exposes a monitor topology to this program.
func NewProvider() Provider { return Static(nil) }
