package hotkeys

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	vkTab    VKey = 0x09
	vkReturn VKey = 0x0D
	vkEscape VKey = 0x1B
	vkSpace  VKey = 0x20
	vkLeft   VKey = 0x25
	vkUp     VKey = 0x26
	vkRight  VKey = 0x27
	vkDown   VKey = 0x28
	vkDelete VKey = 0x2E
	vkF1     VKey = 0x70
	vkOem3   VKey = 0xC0
)

var modifierByName = map[string]Modifier{
	"CTRL":    ModControl,
	"CONTROL": ModControl,
	"SHIFT":   ModShift,
	"ALT":     ModAlt,
	"WIN":     ModWin,
	"SUPER":   ModWin,
}

var keyByName = map[string]VKey{
	"SPACE":  vkSpace,
	"TAB":    vkTab,
	"ENTER":  vkReturn,
	"RETURN": vkReturn,
	"ESC":    vkEscape,
	"ESCAPE": vkEscape,
	"DELETE": vkDelete,
	"LEFT":   vkLeft,
	"RIGHT":  vkRight,
	"UP":     vkUp,
	"DOWN":   vkDown,
}

// modifierOrder fixes the spelling order of Normalized.
var modifierOrder = []struct {
	mod  Modifier
	name string
}{
	{ModControl, "Ctrl"},
	{ModShift, "Shift"},
	{ModAlt, "Alt"},
	{ModWin, "Win"},
}

// ParseBinding parses "Mod+...+Key". At least one modifier is required;
// repeated modifiers are ignored.
func ParseBinding(spec string) (Binding, error) {
	raw := strings.TrimSpace(spec)
	if raw == "" {
		return Binding{}, fmt.Errorf("hotkey spec is empty")
	}
	parts := strings.Split(raw, "+")
	if len(parts) < 2 {
		return Binding{}, fmt.Errorf("hotkey must include modifiers and key: %s", raw)
	}

	var modifiers Modifier
	for _, token := range parts[:len(parts)-1] {
		mod, ok := modifierByName[strings.ToUpper(strings.TrimSpace(token))]
		if !ok {
			return Binding{}, fmt.Errorf("unknown modifier %q in hotkey %q", token, raw)
		}
		modifiers |= mod
	}

	key, keyName, err := parseKey(parts[len(parts)-1])
	if err != nil {
		return Binding{}, err
	}

	var names []string
	for _, m := range modifierOrder {
		if modifiers&m.mod != 0 {
			names = append(names, m.name)
		}
	}
	return Binding{
		modifiers:  modifiers,
		key:        key,
		normalized: strings.Join(append(names, keyName), "+"),
	}, nil
}

// MustParse is ParseBinding for built-in defaults; it panics on error.
func MustParse(spec string) Binding {
	b, err := ParseBinding(spec)
	if err != nil {
		panic(err)
	}
	return b
}

func parseKey(raw string) (VKey, string, error) {
	token := strings.ToUpper(strings.TrimSpace(raw))
	if token == "" {
		return 0, "", fmt.Errorf("missing hotkey key token")
	}
	if key, ok := keyByName[token]; ok {
		return key, token, nil
	}
	if n, err := strconv.Atoi(strings.TrimPrefix(token, "F")); err == nil && strings.HasPrefix(token, "F") && n >= 1 && n <= 24 {
		return vkF1 + VKey(n-1), token, nil
	}
	if len(token) == 1 {
		switch ch := token[0]; {
		case ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
			return VKey(ch), token, nil
		case ch == '`':
			return vkOem3, "`", nil
		}
	}
	if token == "BACKQUOTE" || token == "GRAVE" {
		return vkOem3, "`", nil
	}
	if hex, ok := strings.CutPrefix(token, "0X"); ok {
		value, err := strconv.ParseUint(hex, 16, 16)
		if err != nil || value == 0 {
			return 0, "", fmt.Errorf("invalid hex key %q", raw)
		}
		return VKey(value), token, nil
	}
	return 0, "", fmt.Errorf("unknown key %q in hotkey spec", raw)
}
