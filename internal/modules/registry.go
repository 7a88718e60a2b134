// Package modules keeps the ordered set of tool modules and their
// enable/start lifecycle.
package modules

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

// ErrUnknownModule is returned for a name or index that matches nothing.
var ErrUnknownModule = errors.New("unknown module")

type module struct {
	spec    Spec
	enabled bool
	status  Status
	err     error
}

// Registry is safe for concurrent use. Start and stop functions are called
// without the registry lock held.
type Registry struct {
	mu      sync.Mutex
	modules []*module
	store   EnabledStore
}

// NewRegistry returns an empty registry. store may be nil.
func NewRegistry(store EnabledStore) *Registry {
	return &Registry{store: store}
}

// Register appends a module. Names are unique case-insensitively.
func (r *Registry) Register(spec Spec) error {
	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Name == "" {
		return fmt.Errorf("module name is required")
	}
	if spec.Start == nil || spec.Stop == nil {
		return fmt.Errorf("module %q needs start and stop functions", spec.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findLocked(spec.Name) != nil {
		return fmt.Errorf("module %q already registered", spec.Name)
	}
	r.modules = append(r.modules, &module{spec: spec, enabled: spec.DefaultEnabled, status: StatusStopped})
	return nil
}

// ApplyEnabled loads persisted flags. Modules missing from flags keep their
// default.
func (r *Registry) ApplyEnabled(flags map[string]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.modules {
		if v, ok := flags[m.spec.Name]; ok {
			m.enabled = v
		}
	}
}

// Resolve maps a 1-based index or a case-insensitive name to a module name.
func (r *Registry) Resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, err := strconv.Atoi(ref); err == nil {
		if n >= 1 && n <= len(r.modules) {
			return r.modules[n-1].spec.Name, nil
		}
		return "", fmt.Errorf("%w: index %d", ErrUnknownModule, n)
	}
	if m := r.findLocked(ref); m != nil {
		return m.spec.Name, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownModule, ref)
}

// List returns every module in registration order.
func (r *Registry) List() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, 0, len(r.modules))
	for i, m := range r.modules {
		out = append(out, m.snapshot(i+1))
	}
	return out
}

// Get returns one module's snapshot.
func (r *Registry) Get(name string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.modules {
		if strings.EqualFold(m.spec.Name, name) {
			return m.snapshot(i + 1), true
		}
	}
	return Snapshot{}, false
}

// Enable marks the module enabled, persists the flags and starts it.
func (r *Registry) Enable(name string) error {
	m, err := r.setEnabled(name, true)
	if err != nil {
		return err
	}
	return r.start(m)
}

// Disable marks the module disabled, persists the flags and stops it.
func (r *Registry) Disable(name string) error {
	m, err := r.setEnabled(name, false)
	if err != nil {
		return err
	}
	return r.stop(m)
}

// Toggle flips the enabled flag and returns the new value.
func (r *Registry) Toggle(name string) (bool, error) {
	r.mu.Lock()
	m := r.findLocked(name)
	if m == nil {
		r.mu.Unlock()
		return false, fmt.Errorf("%w: %q", ErrUnknownModule, name)
	}
	next := !m.enabled
	r.mu.Unlock()

	if next {
		return true, r.Enable(name)
	}
	return false, r.Disable(name)
}

// ShowSettings runs the module's settings action.
func (r *Registry) ShowSettings(name string) error {
	r.mu.Lock()
	m := r.findLocked(name)
	r.mu.Unlock()
	if m == nil {
		return fmt.Errorf("%w: %q", ErrUnknownModule, name)
	}
	if m.spec.Settings == nil {
		return fmt.Errorf("module %q has no settings", m.spec.Name)
	}
	slog.Debug("[modules] showing settings", "name", m.spec.Name)
	return m.spec.Settings()
}

// AutoStart starts every enabled module that is not running.
func (r *Registry) AutoStart() error {
	r.mu.Lock()
	var pending []*module
	for _, m := range r.modules {
		if m.enabled && m.status != StatusRunning {
			pending = append(pending, m)
		}
	}
	r.mu.Unlock()

	var errs []error
	for _, m := range pending {
		errs = append(errs, r.start(m))
	}
	return errors.Join(errs...)
}

// StopAll stops every running module, continuing past failures.
func (r *Registry) StopAll() error {
	r.mu.Lock()
	var running []*module
	for _, m := range r.modules {
		if m.status == StatusRunning {
			running = append(running, m)
		}
	}
	r.mu.Unlock()

	var errs []error
	for i := len(running) - 1; i >= 0; i-- {
		errs = append(errs, r.stop(running[i]))
	}
	return errors.Join(errs...)
}

func (r *Registry) setEnabled(name string, enabled bool) (*module, error) {
	r.mu.Lock()
	m := r.findLocked(name)
	if m == nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrUnknownModule, name)
	}
	changed := m.enabled != enabled
	m.enabled = enabled
	flags := r.flagsLocked()
	r.mu.Unlock()

	if changed && r.store != nil {
		if err := r.store.SaveEnabled(flags); err != nil {
			slog.Warn("[WARN-CONFIG] failed to persist module states", "error", err)
		}
	}
	return m, nil
}

func (r *Registry) start(m *module) error {
	r.mu.Lock()
	if m.status == StatusRunning {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	err := guard(m.spec.Name, "start", m.spec.Start)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		m.status, m.err = StatusError, err
		slog.Error("[modules] start failed", "name", m.spec.Name, "error", err)
		return fmt.Errorf("start %s: %w", m.spec.Name, err)
	}
	m.status, m.err = StatusRunning, nil
	slog.Info("[modules] started", "name", m.spec.Name)
	return nil
}

// stop always leaves the module stopped, even when its stop function fails.
func (r *Registry) stop(m *module) error {
	r.mu.Lock()
	if m.status != StatusRunning {
		m.status, m.err = StatusStopped, nil
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	err := guard(m.spec.Name, "stop", m.spec.Stop)

	r.mu.Lock()
	defer r.mu.Unlock()
	m.status, m.err = StatusStopped, nil
	if err != nil {
		slog.Error("[modules] stop failed", "name", m.spec.Name, "error", err)
		return fmt.Errorf("stop %s: %w", m.spec.Name, err)
	}
	slog.Info("[modules] stopped", "name", m.spec.Name)
	return nil
}

// guard converts a panic in a module callback into an error.
func guard(name, op string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[DEBUG-PANIC] module callback panicked", "name", name, "op", op, "panic", rec)
			err = fmt.Errorf("%s panicked: %v", op, rec)
		}
	}()
	return fn()
}

func (r *Registry) findLocked(name string) *module {
	for _, m := range r.modules {
		if strings.EqualFold(m.spec.Name, strings.TrimSpace(name)) {
			return m
		}
	}
	return nil
}

func (r *Registry) flagsLocked() map[string]bool {
	flags := make(map[string]bool, len(r.modules))
	for _, m := range r.modules {
		flags[m.spec.Name] = m.enabled
	}
	return flags
}

func (m *module) snapshot(index int) Snapshot {
	s := Snapshot{
		Index:       index,
		Name:        m.spec.Name,
		Description: m.spec.Description,
		Enabled:     m.enabled,
		Status:      m.status,
		HasSettings: m.spec.Settings != nil,
	}
	if m.err != nil {
		s.Error = m.err.Error()
	}
	return s
}
