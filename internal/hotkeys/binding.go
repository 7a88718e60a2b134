// Package hotkeys parses key combinations such as "Ctrl+Shift+D" and
// registers them as global hotkeys.
package hotkeys

// Modifier is a MOD_* bitmask as used by RegisterHotKey.
type Modifier uint32

// VKey is a Win32 virtual-key code.
type VKey uint32

const (
	ModAlt     Modifier = 0x0001
	ModControl Modifier = 0x0002
	ModShift   Modifier = 0x0004
	ModWin     Modifier = 0x0008
)

// Binding is a parsed key combination. Construct it with ParseBinding.
type Binding struct {
	modifiers  Modifier
	key        VKey
	normalized string
}

// Modifiers returns the modifier bitmask.
func (b Binding) Modifiers() Modifier { return b.modifiers }

// Key returns the virtual-key code.
func (b Binding) Key() VKey { return b.key }

// Normalized returns the canonical spelling, e.g. "Ctrl+Shift+F12".
func (b Binding) Normalized() string { return b.normalized }

// Matches reports whether a key press with the given held modifiers is
// exactly this binding. Win is not observable from the keyboard hook and is
// ignored.
func (b Binding) Matches(vk uint32, ctrl, shift, alt bool) bool {
	if VKey(vk) != b.key {
		return false
	}
	return ctrl == (b.modifiers&ModControl != 0) &&
		shift == (b.modifiers&ModShift != 0) &&
		alt == (b.modifiers&ModAlt != 0)
}
