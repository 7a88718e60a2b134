package main

import (
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"tinytools/internal/config"
	"tinytools/internal/dimmer"
	"tinytools/internal/journal"
)

// engineObserver persists and journals every accepted engine change. Its
// callbacks run on the ui loop and never block.
func (a *App) engineObserver() dimmer.Observer {
	return dimmer.Observer{
		BrightnessChanged: func(v int) {
			a.recordChange(journal.KindBrightness, strconv.Itoa(v))
			a.schedulePersist(func(d *config.DimmerConfig) { d.Brightness = v })
		},
		MethodChanged: func(m dimmer.Method) {
			a.recordChange(journal.KindMethod, m.String())
			a.schedulePersist(func(d *config.DimmerConfig) { d.Method = m.String() })
		},
		HotkeyChanged: func(enabled bool) {
			a.recordChange(journal.KindHotkey, onOff(enabled))
			a.schedulePersist(func(d *config.DimmerConfig) { d.HotkeyEnabled = enabled })
		},
		SelectionChanged: func(excluded []string) {
			a.recordChange(journal.KindSelection, strings.Join(excluded, ","))
			a.schedulePersist(func(d *config.DimmerConfig) { d.ExcludedMonitors = slices.Clone(excluded) })
		},
		Warning: func(err error) {
			slog.Warn("[dimmer] capability warning", "error", err)
			a.recordChange(journal.KindWarning, err.Error())
			a.notifyUser("Screen Dimmer", err.Error())
		},
	}
}

// schedulePersist queues a settings change for the next debounced save.
func (a *App) schedulePersist(mutate func(*config.DimmerConfig)) {
	a.persistMu.Lock()
	a.pendingPersist = append(a.pendingPersist, mutate)
	a.persistMu.Unlock()
	if a.persist != nil {
		a.persist(a.flushPersist)
	}
}

// flushPersist writes queued changes in one save.
func (a *App) flushPersist() {
	a.persistMu.Lock()
	pending := a.pendingPersist
	a.pendingPersist = nil
	a.persistMu.Unlock()
	if len(pending) == 0 {
		return
	}
	if _, err := a.store.Update(func(c *config.Config) {
		for _, mutate := range pending {
			mutate(&c.Dimmer)
		}
	}); err != nil {
		slog.Warn("[WARN-CONFIG] failed to save dimmer settings", "error", err)
		return
	}
	slog.Debug("[DEBUG-CONFIG] dimmer settings saved", "changes", len(pending))
}

// onConfigReload runs on the watcher's timer goroutine.
func (a *App) onConfigReload(cfg config.Config, err error) {
	if a.shuttingDown.Load() {
		return
	}
	if err != nil {
		slog.Warn("[WARN-CONFIG] settings reload failed, keeping current settings", "error", err)
		return
	}
	if !a.store.Replace(cfg) {
		slog.Debug("[DEBUG-CONFIG] settings change is our own save, ignoring")
		return
	}
	slog.Info("[DEBUG-CONFIG] settings file changed externally, applying", "path", a.store.Path())
	a.applyConfig(cfg)
}

// applyConfig moves the running process to cfg. Closer definitions are
// read only at startup.
func (a *App) applyConfig(cfg config.Config) {
	if a.sink != nil {
		if err := a.sink.SetLevel(cfg.LogLevel); err != nil {
			slog.Warn("[WARN-CONFIG] log level not applied", "error", err)
		}
	}

	d := cfg.Dimmer
	method, _ := dimmer.ParseMethod(d.Method)
	if err := a.onUI(func() { a.applyDimmerConfig(d, method) }); err != nil {
		slog.Warn("[WARN-CONFIG] dimmer settings not applied", "error", err)
	}

	a.configureToggleHotkey(d.ToggleHotkey)

	if a.registry == nil {
		return
	}
	flags := cfg.EnabledFlags()
	for _, m := range a.registry.List() {
		want, ok := flags[m.Name]
		if !ok || want == m.Enabled {
			continue
		}
		if err := a.setModuleEnabled(m.Name, want); err != nil {
			slog.Warn("[modules] settings change not applied", "name", m.Name, "error", err)
		}
	}
}

// applyDimmerConfig runs on the ui loop. Only differing fields are set so
// a reload does not re-render an unchanged engine.
func (a *App) applyDimmerConfig(d config.DimmerConfig, method dimmer.Method) {
	e := a.engine
	st := e.State()
	if st.Method != method {
		if err := e.SetMethod(method); err != nil {
			slog.Warn("[dimmer] method not fully applied", "error", err)
		}
	}
	if st.Brightness != d.Brightness {
		if err := e.SetBrightness(d.Brightness); err != nil {
			slog.Warn("[dimmer] brightness not fully applied", "error", err)
		}
	}
	if st.HotkeyEnabled != d.HotkeyEnabled {
		e.SetHotkeyEnabled(d.HotkeyEnabled)
	}
	if !slices.Equal(foldedNames(e.Excluded()), foldedNames(d.ExcludedMonitors)) {
		if err := e.UpdateSelectedMonitors(selectedExcept(e.Monitors(), d.ExcludedMonitors)); err != nil {
			slog.Warn("[dimmer] selection not fully applied", "error", err)
		}
	}
}

// selectedExcept returns the device names of monitors not in excluded.
func selectedExcept(monitors []dimmer.MonitorStatus, excluded []string) []string {
	out := make([]string, 0, len(monitors))
	for _, m := range monitors {
		if !containsFold(excluded, m.DeviceName) {
			out = append(out, m.DeviceName)
		}
	}
	return out
}

func containsFold(list []string, s string) bool {
	return slices.ContainsFunc(list, func(v string) bool { return strings.EqualFold(v, s) })
}

// foldedNames upper-cases, sorts and dedupes device names for comparison.
func foldedNames(in []string) []string {
	out := make([]string, 0, len(in))
	for _, name := range in {
		out = append(out, strings.ToUpper(name))
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
