package main

import (
	"errors"
	"fmt"
	"log/slog"

	"tinytools/internal/closer"
	"tinytools/internal/config"
	"tinytools/internal/dimmer"
	"tinytools/internal/journal"
	"tinytools/internal/modules"
	"tinytools/internal/tray"
)

// brightnessPresets are the tray menu shortcuts, brightest first.
var brightnessPresets = []int{100, 90, 80, 70, 60, 50, 40, 30, 20, 10}

// registerModules adds the configured closers followed by the dimmer.
func (a *App) registerModules(cfg config.Config) {
	for _, c := range cfg.Closers {
		rule, err := closer.NewRule(c.Name, c.Process, c.Hotkey)
		if err != nil {
			slog.Warn("[WARN-CONFIG] closer skipped", "name", c.Name, "error", err)
			continue
		}
		if c.Description != "" {
			rule.Description = c.Description
		}
		a.register(modules.Spec{
			Name:           rule.Name,
			Description:    rule.Description,
			DefaultEnabled: true,
			Start:          func() error { return a.closers.Enable(rule) },
			Stop:           func() error { return a.closers.Disable(rule.Name) },
		})
	}

	a.register(modules.Spec{
		Name:        config.DimmerModuleName,
		Description: "Dim screens with gamma ramps or overlays; Ctrl+Shift+wheel adjusts",
		Start:       a.startDimmer,
		Stop:        a.stopDimmer,
		Settings:    a.openSettings,
	})
}

func (a *App) register(spec modules.Spec) {
	if err := a.registry.Register(spec); err != nil {
		slog.Warn("[modules] register failed", "name", spec.Name, "error", err)
	}
}

// startDimmer starts the engine. An explicit gamma failure leaves the
// engine running and is surfaced through the Warning observer, so it does
// not fail the module.
func (a *App) startDimmer() error {
	var err error
	if doErr := a.onUI(func() { err = a.engine.Start() }); doErr != nil {
		return doErr
	}
	if errors.Is(err, dimmer.ErrGammaUnavailable) {
		slog.Warn("[dimmer] started without gamma support", "error", err)
		return nil
	}
	return err
}

func (a *App) stopDimmer() error {
	return a.onUI(func() { a.engine.Stop() })
}

func (a *App) showDimmerSettings() {
	if err := a.registry.ShowSettings(config.DimmerModuleName); err != nil {
		slog.Warn("[dimmer] settings unavailable", "error", err)
	}
}

// openSettings opens the settings file with the shell's default editor.
// External edits are picked up by the settings watcher.
func (a *App) openSettings() error {
	if err := openWithShell(a.store.Path()); err != nil {
		return fmt.Errorf("open %s: %w", a.store.Path(), err)
	}
	return nil
}

// setModuleEnabled enables or disables the named module and journals the
// change. It blocks on the ui loop for the dimmer.
func (a *App) setModuleEnabled(name string, enabled bool) error {
	var err error
	if enabled {
		err = a.registry.Enable(name)
	} else {
		err = a.registry.Disable(name)
	}
	a.recordChange(journal.KindModule, moduleChangeValue(name, enabled))
	return err
}

func (a *App) toggleModule(name string) (bool, error) {
	enabled, err := a.registry.Toggle(name)
	a.recordChange(journal.KindModule, moduleChangeValue(name, enabled))
	return enabled, err
}

func moduleChangeValue(name string, enabled bool) string {
	if enabled {
		return name + "=on"
	}
	return name + "=off"
}

// appMenu runs on the ui loop when the application icon is right-clicked.
func (a *App) appMenu() []tray.MenuItem {
	items := make([]tray.MenuItem, 0, 8)
	for _, m := range a.registry.List() {
		name := m.Name
		items = append(items, tray.MenuItem{
			Label:   m.Name,
			Checked: m.Enabled,
			Action: func() {
				go func() {
					if _, err := a.toggleModule(name); err != nil {
						slog.Warn("[modules] toggle failed", "name", name, "error", err)
					}
				}()
			},
		})
	}
	items = append(items,
		tray.Separator(),
		tray.MenuItem{Label: "Open settings file", Action: func() { go a.logOpenSettings() }},
		tray.MenuItem{Label: "Exit", Action: a.requestQuit},
	)
	return items
}

// dimmerMenu runs on the ui loop, so the engine is read directly.
func (a *App) dimmerMenu() []tray.MenuItem {
	current := a.engine.State().Brightness
	presets := make([]tray.MenuItem, 0, len(brightnessPresets))
	for _, v := range brightnessPresets {
		presets = append(presets, tray.MenuItem{
			Label:   fmt.Sprintf("%d%%", v),
			Checked: v == current,
			Action:  func() { a.setBrightnessOnUI(v) },
		})
	}
	return []tray.MenuItem{
		{Label: "Settings...", Action: func() { go a.showDimmerSettings() }},
		{Label: "Brightness", Children: presets},
		{Label: "Reset to 100%", Action: func() { a.setBrightnessOnUI(dimmer.MaxBrightness) }},
	}
}

func (a *App) setBrightnessOnUI(v int) {
	if err := a.engine.SetBrightness(v); err != nil {
		slog.Warn("[dimmer] brightness not fully applied", "value", v, "error", err)
	}
}

func (a *App) logOpenSettings() {
	if err := a.openSettings(); err != nil {
		slog.Warn("[app] settings file could not be opened", "error", err)
	}
}
