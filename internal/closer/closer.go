// Package closer closes a specific application's foreground window when a
// key combination is pressed, swallowing that keystroke.
package closer

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"tinytools/internal/hotkeys"
	"tinytools/internal/inputhook"
)

// Rule binds a key combination to an executable name.
type Rule struct {
	Name        string
	Description string
	// Process is the executable file name, e.g. "notepad3.exe".
	Process string
	Binding hotkeys.Binding
}

// DefaultRules are the built-in closers.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:        "Notepad3 Hotkey",
			Description: "Close Notepad3 with Ctrl+W",
			Process:     "notepad3.exe",
			Binding:     hotkeys.MustParse("Ctrl+W"),
		},
		{
			Name:        "Calculator Hotkey",
			Description: "Close Calculator with Ctrl+W",
			Process:     "win32calc.exe",
			Binding:     hotkeys.MustParse("Ctrl+W"),
		},
	}
}

// NewRule validates a user-configured closer.
func NewRule(name, process, binding string) (Rule, error) {
	name = strings.TrimSpace(name)
	process = strings.TrimSpace(process)
	if name == "" || process == "" {
		return Rule{}, fmt.Errorf("closer needs a name and a process")
	}
	b, err := hotkeys.ParseBinding(binding)
	if err != nil {
		return Rule{}, fmt.Errorf("closer %q: %w", name, err)
	}
	return Rule{
		Name:        name,
		Description: fmt.Sprintf("Close %s with %s", process, b.Normalized()),
		Process:     process,
		Binding:     b,
	}, nil
}

// MatchProcess compares executable names case-insensitively; a missing
// ".exe" on either side is tolerated.
func MatchProcess(want, exe string) bool {
	norm := func(s string) string {
		s = strings.ToLower(filepath.Base(strings.ReplaceAll(s, `\`, "/")))
		return strings.TrimSuffix(s, ".exe")
	}
	return want != "" && norm(want) == norm(exe)
}

type keyHook interface {
	Start() error
	Stop() error
}

// Hub shares one keyboard hook among all enabled rules. The hook is
// installed while at least one rule is enabled.
type Hub struct {
	mu    sync.Mutex
	rules map[string]Rule
	hook  keyHook

	foregroundFn  func() (hwnd uintptr, exe string, ok bool)
	closeWindowFn func(hwnd uintptr) error
}

// NewHub returns a Hub backed by the system keyboard hook.
func NewHub() *Hub {
	h := &Hub{
		rules:         map[string]Rule{},
		foregroundFn:  foregroundProcess,
		closeWindowFn: closeWindow,
	}
	h.hook = &inputhook.KeyboardHook{Filter: h.filter}
	return h
}

// Enable activates r, installing the hook for the first rule.
func (h *Hub) Enable(r Rule) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rules[r.Name]; ok {
		return nil
	}
	if len(h.rules) == 0 {
		if err := h.hook.Start(); err != nil {
			return fmt.Errorf("start keyboard hook for %q: %w", r.Name, err)
		}
	}
	h.rules[r.Name] = r
	slog.Info("[closer] enabled", "name", r.Name, "process", r.Process, "binding", r.Binding.Normalized())
	return nil
}

// Disable deactivates the named rule, removing the hook after the last one.
func (h *Hub) Disable(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rules[name]; !ok {
		return nil
	}
	delete(h.rules, name)
	slog.Info("[closer] disabled", "name", name)
	if len(h.rules) == 0 {
		return h.hook.Stop()
	}
	return nil
}

// Active returns the enabled rule names, sorted.
func (h *Hub) Active() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.rules))
	for name := range h.rules {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// filter runs on the hook thread. The foreground window is only inspected
// once a binding matches.
func (h *Hub) filter(ev inputhook.KeyEvent) bool {
	if !ev.Down {
		return false
	}
	h.mu.Lock()
	var candidates []Rule
	for _, r := range h.rules {
		if r.Binding.Matches(ev.VKey, ev.Ctrl, ev.Shift, ev.Alt) {
			candidates = append(candidates, r)
		}
	}
	h.mu.Unlock()
	if len(candidates) == 0 {
		return false
	}

	hwnd, exe, ok := h.foregroundFn()
	if !ok {
		return false
	}
	for _, r := range candidates {
		if !MatchProcess(r.Process, exe) {
			continue
		}
		if err := h.closeWindowFn(hwnd); err != nil {
			slog.Warn("[closer] close request failed", "name", r.Name, "error", err)
			return false
		}
		slog.Info("[closer] window closed", "name", r.Name, "process", exe)
		return true
	}
	return false
}
