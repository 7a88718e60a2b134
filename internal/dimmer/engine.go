// Package dimmer lowers perceived screen brightness with a hardware gamma
// ramp or with translucent overlay windows, per selected monitor.
//
// An Engine is not safe for concurrent use. Every method runs on the UI
// thread; input hook events reach it through the Dispatcher.
package dimmer

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"tinytools/internal/display"
	"tinytools/internal/gamma"
	"tinytools/internal/inputhook"
	"tinytools/internal/overlay"
)

// ErrGammaUnavailable is reported when an explicit GammaRamp selection cannot
// be written to one or more selected monitors.
var ErrGammaUnavailable = errors.New("gamma ramp unavailable")

const (
	MinBrightness = 1
	MaxBrightness = 100
)

// OverlayBackend draws darkening windows. *overlay.Manager implements it.
type OverlayBackend interface {
	Show(m display.Monitor, opacity uint8) error
	Hide(handle uintptr) error
	HideAll() error
	Count() int
}

// Interceptor publishes system-wide wheel events. *inputhook.MouseWheel implements it.
type Interceptor interface {
	Start() error
	Stop() error
	Subscribe(func(inputhook.WheelEvent)) (unsubscribe func())
}

// Affordance is the engine's tray presence.
type Affordance interface {
	Show() error
	Close() error
}

// Dispatcher hands work to the UI thread. *uiloop.Loop implements it.
type Dispatcher interface {
	Post(func()) bool
}

// Options wires an Engine. Interceptor, Tray and Dispatcher are optional;
// without a Dispatcher wheel events are handled inline.
type Options struct {
	Topology    display.Provider
	Gamma       gamma.Device
	Overlay     OverlayBackend
	Interceptor Interceptor
	Tray        Affordance
	Dispatcher  Dispatcher

	Brightness    int
	Method        Method
	HotkeyEnabled bool
	// Excluded lists device names that start deselected.
	Excluded []string
}

// target is one monitor of the current scan plus the engine's per-monitor state.
type target struct {
	mon      display.Monitor
	selected bool

	original *gamma.Ramp
	captured bool
	applied  bool
}

// MonitorStatus is a read-only view of one monitor.
type MonitorStatus struct {
	display.Monitor
	Selected      bool `json:"selected"`
	GammaCaptured bool `json:"gamma_captured"`
	GammaApplied  bool `json:"gamma_applied"`
}

// State is a snapshot of the engine.
type State struct {
	Brightness int
	Method     Method
	// ActiveMethod is the backend in effect; Auto until one is resolved.
	ActiveMethod  Method
	Phase         Phase
	HotkeyEnabled bool
	// Downgraded is set once an Auto session fell back to the overlay.
	Downgraded bool
	Overlays   int
}

// Engine is the dimming orchestrator.
type Engine struct {
	topology display.Provider
	gamma    gamma.Device
	overlay  OverlayBackend
	hook     Interceptor
	tray     Affordance
	dispatch Dispatcher

	brightness    int
	method        Method
	active        Method
	phase         Phase
	hotkeyEnabled bool
	downgraded    bool
	warned        bool
	hookRunning   bool

	// excluded maps deviceKey to the spelling it was first given in.
	excluded map[string]string
	targets  []*target

	observers
	unsubscribe func()
}

// New builds a stopped engine. Brightness is clamped and an unknown method
// becomes Auto.
func New(opts Options) *Engine {
	if opts.Topology == nil {
		opts.Topology = display.Static(nil)
	}
	if opts.Gamma == nil {
		opts.Gamma = gamma.NewDevice()
	}
	if opts.Overlay == nil {
		opts.Overlay = overlay.NewManager()
	}
	if opts.Method < Auto || opts.Method > Overlay {
		opts.Method = Auto
	}

	e := &Engine{
		topology:      opts.Topology,
		gamma:         opts.Gamma,
		overlay:       opts.Overlay,
		hook:          opts.Interceptor,
		tray:          opts.Tray,
		dispatch:      opts.Dispatcher,
		brightness:    clampBrightness(opts.Brightness),
		method:        opts.Method,
		hotkeyEnabled: opts.HotkeyEnabled,
		excluded:      map[string]string{},
	}
	for _, name := range opts.Excluded {
		if _, dup := e.excluded[deviceKey(name)]; !dup {
			e.excluded[deviceKey(name)] = name
		}
	}
	if e.hook != nil {
		e.unsubscribe = e.hook.Subscribe(e.onWheel)
	}
	e.scan()
	return e
}

// deviceKey folds a device name; Windows compares them case-insensitively.
func deviceKey(name string) string { return strings.ToUpper(name) }

func clampBrightness(v int) int {
	return min(max(v, MinBrightness), MaxBrightness)
}

// Start probes gamma support, resolves the active backend, applies the
// current brightness, shows the tray and installs the wheel hook when
// enabled. Only an explicit GammaRamp failure is returned; tray and hook
// failures are logged.
func (e *Engine) Start() error {
	if e.phase != Stopped {
		return nil
	}
	e.phase = Starting
	e.downgraded = false
	e.warned = false
	e.scan()

	err := e.activate()

	if e.tray != nil {
		if trayErr := e.tray.Show(); trayErr != nil {
			slog.Warn("[dimmer] tray icon unavailable", "error", trayErr)
		}
	}
	if e.hotkeyEnabled {
		e.startHook()
	}

	e.phase = Running
	slog.Info("[dimmer] started",
		"brightness", e.brightness, "method", e.method.String(), "active", e.active.String(),
		"monitors", len(e.targets))
	return err
}

// Stop restores every captured gamma ramp, destroys all overlays, removes
// the hook and the tray icon. It never fails; teardown errors are logged.
func (e *Engine) Stop() {
	if e.phase == Stopped {
		return
	}
	var errs []error
	if e.hookRunning {
		if err := e.hook.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop wheel hook: %w", err))
		}
		e.hookRunning = false
	}
	if err := e.deactivate(); err != nil {
		errs = append(errs, err)
	}
	if e.tray != nil {
		if err := e.tray.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close tray: %w", err))
		}
	}
	e.active = Auto
	e.phase = Stopped

	if err := errors.Join(errs...); err != nil {
		slog.Warn("[dimmer] teardown incomplete", "error", err)
	}
	slog.Info("[dimmer] stopped")
}

// Close stops the engine and detaches it from the interceptor.
func (e *Engine) Close() {
	e.Stop()
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
}

// SetBrightness clamps v to [1,100]. An unchanged value is a no-op. A new
// value is rendered when running and always announced to observers.
func (e *Engine) SetBrightness(v int) error {
	v = clampBrightness(v)
	if v == e.brightness {
		return nil
	}
	e.brightness = v

	var err error
	if e.phase == Running {
		err = e.render()
	}
	e.notifyBrightness(v)
	return err
}

// SetMethod changes the user-selected method. While running, the previous
// backend is torn down and the new one resolved and applied. A new choice
// also clears an Auto downgrade.
func (e *Engine) SetMethod(m Method) error {
	if m < Auto || m > Overlay {
		m = Auto
	}
	if m == e.method {
		return nil
	}
	e.method = m
	e.downgraded = false
	e.warned = false

	var err error
	if e.phase == Running {
		if tearErr := e.deactivate(); tearErr != nil {
			slog.Warn("[dimmer] previous backend teardown incomplete", "error", tearErr)
		}
		e.active = Auto
		err = e.activate()
	}
	e.notifyMethod(m)
	return err
}

// SetHotkeyEnabled toggles the Ctrl+Shift+wheel gesture, installing or
// removing the hook immediately when running.
func (e *Engine) SetHotkeyEnabled(enabled bool) {
	if enabled == e.hotkeyEnabled {
		return
	}
	e.hotkeyEnabled = enabled
	if e.phase == Running {
		if enabled {
			e.startHook()
		} else {
			e.stopHook()
		}
	}
	e.notifyHotkey(enabled)
}

// UpdateSelectedMonitors replaces the selection with the named devices.
// Monitors leaving the selection are returned to full brightness at once;
// unknown names are ignored.
func (e *Engine) UpdateSelectedMonitors(deviceNames []string) error {
	want := make(map[string]bool, len(deviceNames))
	for _, name := range deviceNames {
		want[deviceKey(name)] = true
	}

	for _, t := range e.targets {
		was := t.selected
		key := deviceKey(t.mon.DeviceName)
		t.selected = want[key]
		if t.selected {
			delete(e.excluded, key)
		} else {
			e.excluded[key] = t.mon.DeviceName
		}
		if was && !t.selected && e.phase == Running {
			if err := e.release(t); err != nil {
				slog.Warn("[dimmer] reset of deselected monitor incomplete",
					"device", t.mon.DeviceName, "error", err)
			}
		}
	}

	var err error
	if e.phase == Running {
		err = e.activate()
	}
	e.notifySelection(e.Excluded())
	return err
}

// Rescan rebuilds the monitor list after a topology change. Selection
// survives by device name; new monitors start selected.
func (e *Engine) Rescan() error {
	if e.phase != Running {
		e.scan()
		return nil
	}
	if err := e.deactivate(); err != nil {
		slog.Warn("[dimmer] teardown before rescan incomplete", "error", err)
	}
	e.scan()
	return e.activate()
}

// State returns a snapshot.
func (e *Engine) State() State {
	return State{
		Brightness:    e.brightness,
		Method:        e.method,
		ActiveMethod:  e.active,
		Phase:         e.phase,
		HotkeyEnabled: e.hotkeyEnabled,
		Downgraded:    e.downgraded,
		Overlays:      e.overlay.Count(),
	}
}

// Monitors describes the current scan.
func (e *Engine) Monitors() []MonitorStatus {
	out := make([]MonitorStatus, 0, len(e.targets))
	for _, t := range e.targets {
		out = append(out, MonitorStatus{
			Monitor:       t.mon,
			Selected:      t.selected,
			GammaCaptured: t.captured,
			GammaApplied:  t.applied,
		})
	}
	return out
}

// Excluded returns the sorted device names currently deselected.
func (e *Engine) Excluded() []string {
	out := make([]string, 0, len(e.excluded))
	for _, name := range e.excluded {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// scan rebuilds the targets from a fresh enumeration. Handle and geometry
// come from the new scan; the captured ramp and whether it is still
// overwritten carry over by device name, so a ramp is captured once.
func (e *Engine) scan() {
	previous := make(map[string]*target, len(e.targets))
	for _, t := range e.targets {
		previous[deviceKey(t.mon.DeviceName)] = t
	}
	monitors := e.topology.Enumerate()
	targets := make([]*target, 0, len(monitors))
	for _, m := range monitors {
		key := deviceKey(m.DeviceName)
		_, excluded := e.excluded[key]
		t := &target{mon: m, selected: !excluded}
		if old, ok := previous[key]; ok {
			t.original, t.captured, t.applied = old.original, old.captured, old.applied
		}
		targets = append(targets, t)
	}
	e.targets = targets
}

// probe reports whether any selected monitor returns a gamma ramp.
func (e *Engine) probe() bool {
	for _, t := range e.targets {
		if t.selected && e.gamma.Probe(t.mon) {
			return true
		}
	}
	return false
}

// activate resolves the backend and renders. When the resolution changes the
// old backend is torn down first.
func (e *Engine) activate() error {
	next := Resolve(e.method, e.probe(), e.downgraded)
	if next != e.active {
		if e.active != Auto {
			if err := e.deactivate(); err != nil {
				slog.Warn("[dimmer] backend switch teardown incomplete", "error", err)
			}
		}
		slog.Info("[dimmer] backend resolved", "method", e.method.String(), "active", next.String())
		e.active = next
	}
	return e.render()
}

// render applies the current brightness with the active backend.
func (e *Engine) render() error {
	if e.active == GammaRamp {
		return e.renderGamma()
	}
	e.renderOverlay()
	return nil
}

func (e *Engine) renderGamma() error {
	var failed []string
	for _, t := range e.targets {
		if !t.selected {
			continue
		}
		if !e.applyGamma(t) {
			failed = append(failed, t.mon.DeviceName)
		}
	}
	if len(failed) == 0 {
		return nil
	}

	if e.method == Auto {
		e.downgrade(failed)
		return nil
	}

	err := fmt.Errorf("%w on %s", ErrGammaUnavailable, strings.Join(failed, ", "))
	if !e.warned {
		e.warned = true
		e.notifyWarning(err)
	}
	return err
}

// downgrade switches an Auto session to the overlay after a gamma write
// failed. Monitors already written are restored so none is dimmed twice.
func (e *Engine) downgrade(failed []string) {
	slog.Warn("[dimmer] gamma write failed under auto, switching to overlay", "devices", failed)
	for _, t := range e.targets {
		if err := e.restore(t); err != nil {
			slog.Warn("[dimmer] gamma restore failed", "device", t.mon.DeviceName, "error", err)
		}
	}
	e.downgraded = true
	e.active = Overlay
	e.renderOverlay()
}

func (e *Engine) renderOverlay() {
	if e.brightness >= MaxBrightness {
		if err := e.overlay.HideAll(); err != nil {
			slog.Warn("[dimmer] overlay teardown incomplete", "error", err)
		}
		return
	}
	opacity := overlay.Opacity(e.brightness)
	for _, t := range e.targets {
		var err error
		if t.selected {
			err = e.overlay.Show(t.mon, opacity)
		} else {
			err = e.overlay.Hide(t.mon.Handle)
		}
		if err != nil {
			slog.Warn("[dimmer] overlay update failed", "device", t.mon.DeviceName, "error", err)
		}
	}
}

// captureOriginal stores the monitor's ramp the first time it is needed.
func (e *Engine) captureOriginal(t *target) error {
	if t.captured {
		return nil
	}
	r, err := e.gamma.Read(t.mon)
	if err != nil {
		return err
	}
	t.original = &r
	t.captured = true
	return nil
}

// applyGamma writes a fresh ramp for the current brightness. A monitor whose
// ramp cannot be captured is never written, so it can always be restored.
func (e *Engine) applyGamma(t *target) bool {
	if err := e.captureOriginal(t); err != nil {
		slog.Debug("[dimmer] gamma capture failed", "device", t.mon.DeviceName, "error", err)
		return false
	}
	if err := e.gamma.Write(t.mon, gamma.Build(e.brightness)); err != nil {
		slog.Debug("[dimmer] gamma write failed", "device", t.mon.DeviceName, "error", err)
		return false
	}
	t.applied = true
	return true
}

// restore writes the captured ramp back. Monitors without a captured ramp,
// or not written since the last restore, are untouched.
func (e *Engine) restore(t *target) error {
	if !t.captured || !t.applied {
		return nil
	}
	if err := e.gamma.Write(t.mon, *t.original); err != nil {
		return fmt.Errorf("restore %s: %w", t.mon.DeviceName, err)
	}
	t.applied = false
	return nil
}

// release returns one monitor to full brightness on both backends.
func (e *Engine) release(t *target) error {
	return errors.Join(e.restore(t), e.overlay.Hide(t.mon.Handle))
}

// deactivate releases every monitor, continuing past failures.
func (e *Engine) deactivate() error {
	var errs []error
	for _, t := range e.targets {
		if err := e.restore(t); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.overlay.HideAll(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Engine) startHook() {
	if e.hook == nil || e.hookRunning {
		return
	}
	if err := e.hook.Start(); err != nil {
		slog.Warn("[dimmer] wheel hotkey unavailable", "error", err)
		return
	}
	e.hookRunning = true
}

func (e *Engine) stopHook() {
	if !e.hookRunning {
		return
	}
	e.hookRunning = false
	if err := e.hook.Stop(); err != nil {
		slog.Warn("[dimmer] wheel hook stop failed", "error", err)
	}
}

// onWheel runs on the hook thread. It only inspects the event and hands the
// adjustment to the UI thread.
func (e *Engine) onWheel(ev inputhook.WheelEvent) {
	if !ev.Ctrl || !ev.Shift || ev.Alt || ev.Delta == 0 {
		return
	}
	step := 1
	if ev.Delta < 0 {
		step = -1
	}
	nudge := func() {
		if e.phase != Running {
			return
		}
		if err := e.SetBrightness(e.brightness + step); err != nil {
			slog.Debug("[dimmer] wheel adjustment not fully applied", "error", err)
		}
	}
	if e.dispatch == nil {
		nudge()
		return
	}
	if !e.dispatch.Post(nudge) {
		slog.Debug("[dimmer] wheel adjustment dropped, ui loop unavailable")
	}
}
