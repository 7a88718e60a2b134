package hotkeys

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Manager owns at most one global hotkey registration.
type Manager struct {
	mu     sync.Mutex
	active *registration
}

// NewManager returns an idle Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Start registers spec and calls onTrigger on its own goroutine each time
// the hotkey fires. A previous registration is replaced.
func (m *Manager) Start(spec string, onTrigger func()) error {
	if onTrigger == nil {
		return errors.New("onTrigger callback is required")
	}
	binding, err := ParseBinding(spec)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.stopLocked(); err != nil {
		return err
	}
	reg, err := register(binding, onTrigger)
	if err != nil {
		return fmt.Errorf("register hotkey %q failed: %w", binding.Normalized(), err)
	}
	m.active = reg
	slog.Info("[hotkey] registered", "binding", reg.binding)
	return nil
}

// Stop unregisters the active hotkey, if any.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked()
}

// ActiveBinding returns the normalized binding, or "" when idle.
func (m *Manager) ActiveBinding() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ""
	}
	return m.active.binding
}

func (m *Manager) stopLocked() error {
	if m.active == nil {
		return nil
	}
	reg := m.active
	m.active = nil
	return reg.unregister()
}
