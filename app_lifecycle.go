package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/bep/debounce"

	"tinytools/internal/closer"
	"tinytools/internal/config"
	"tinytools/internal/dimmer"
	"tinytools/internal/display"
	"tinytools/internal/inputhook"
	"tinytools/internal/journal"
	"tinytools/internal/modules"
	"tinytools/internal/tray"
	"tinytools/internal/uiloop"
	"tinytools/internal/workerutil"
)

// startup brings the process up. Only a ui loop failure is fatal; every
// other component degrades to a logged warning.
func (a *App) startup() error {
	cfg := a.store.Snapshot()
	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.persist = debounce.New(a.opts.PersistDelay)

	a.openJournal()

	a.loop = uiloop.New(uiloop.Options{OnDisplayChange: a.onDisplayChange})
	if err := a.loop.Start(); err != nil {
		return fmt.Errorf("start ui loop: %w", err)
	}
	if err := a.loop.Do(func() { a.buildEngine(cfg.Dimmer) }); err != nil {
		return fmt.Errorf("build dimming engine: %w", err)
	}

	a.closers = closer.NewHub()
	a.registry = modules.NewRegistry(a.store)
	a.registerModules(cfg)
	a.registry.ApplyEnabled(cfg.EnabledFlags())
	if err := a.registry.AutoStart(); err != nil {
		slog.Warn("[modules] auto-start incomplete", "error", err)
		a.addStartupWarning("Some tools failed to start: " + err.Error())
	}

	a.toggleKey = newToggleKeyFn()
	a.configureToggleHotkey(cfg.Dimmer.ToggleHotkey)

	a.startPipeServer()
	a.startConfigWatcher()

	if message := a.consumeStartupWarnings(); message != "" {
		slog.Warn("[app] startup warnings", "message", message)
		a.notifyUser(appName, message)
	}
	slog.Info("[app] started", "modules", len(a.registry.List()), "settings", a.store.Path())
	return nil
}

// buildEngine runs on the ui loop; tray icons belong to the loop thread.
func (a *App) buildEngine(d config.DimmerConfig) {
	method, _ := dimmer.ParseMethod(d.Method)
	opts := dimmer.Options{
		Topology:      a.opts.Topology,
		Gamma:         a.opts.Gamma,
		Overlay:       a.opts.Overlay,
		Interceptor:   a.opts.Interceptor,
		Dispatcher:    a.loop,
		Brightness:    d.Brightness,
		Method:        method,
		HotkeyEnabled: d.HotkeyEnabled,
		Excluded:      d.ExcludedMonitors,
	}
	if opts.Topology == nil {
		opts.Topology = display.NewProvider()
	}
	if opts.Interceptor == nil {
		opts.Interceptor = inputhook.NewMouseWheel()
	}
	opts.Tray = newTrayIconFn(tray.Options{
		Tooltip: "Screen Dimmer",
		Menu:    a.dimmerMenu,
		OnClick: func() { go a.showDimmerSettings() },
	})
	a.engine = dimmer.New(opts)
	a.removeObserver = a.engine.AddObserver(a.engineObserver())

	a.appIcon = newTrayIconFn(tray.Options{
		Tooltip: appName,
		Menu:    a.appMenu,
	})
	if err := a.appIcon.Show(); err != nil {
		slog.Warn("[app] tray icon unavailable", "error", err)
	}
}

func (a *App) onDisplayChange() {
	if a.engine == nil {
		return
	}
	slog.Info("[dimmer] display configuration changed, rescanning")
	if err := a.engine.Rescan(); err != nil {
		slog.Warn("[dimmer] rescan incomplete", "error", err)
	}
}

// onUI runs fn on the ui loop and waits for it.
func (a *App) onUI(fn func()) error {
	if a.loop == nil || a.engine == nil {
		return errNoEngine
	}
	return a.loop.Do(fn)
}

func (a *App) openJournal() {
	if a.opts.NoJournal {
		return
	}
	path := a.opts.JournalPath
	if path == "" {
		path = filepath.Join(filepath.Dir(a.store.Path()), journal.FileName)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	j, err := journal.Open(ctx, path, journal.DefaultMaxEntries)
	if err != nil {
		slog.Warn("[journal] history unavailable", "path", path, "error", err)
		return
	}
	a.journal = j
	a.history = journal.NewWriter(j, 0)
	slog.Debug("[journal] opened", "path", path, "run", j.RunID())
}

func (a *App) startPipeServer() {
	if a.opts.PipeName == "" {
		return
	}
	a.pipeServer = newPipeServer(a.opts.PipeName, a)
	if err := a.pipeServer.Start(); err != nil {
		slog.Error("[ipc] pipe server failed", "error", err)
		a.addStartupWarning("Console pipe unavailable; tinyctl cannot connect. Error: " + err.Error())
		a.pipeServer = nil
		return
	}
	slog.Info("[ipc] pipe server listening", "pipe", a.pipeServer.PipeName())
}

func (a *App) startConfigWatcher() {
	if a.opts.NoWatcher {
		return
	}
	watcher := config.NewWatcher(a.store.Path(), a.opts.WatchDelay, a.onConfigReload)
	workerutil.RunWithPanicRecovery(a.ctx, "config-watcher", &a.bgWG, func(ctx context.Context) {
		if err := watcher.Run(ctx); err != nil {
			slog.Warn("[WARN-CONFIG] settings watcher stopped", "error", err)
		}
	}, workerutil.RecoveryOptions{
		IsShutdown: a.shuttingDown.Load,
	})
}

// configureToggleHotkey (re)binds the global hotkey that toggles the dimmer.
func (a *App) configureToggleHotkey(spec string) {
	if a.toggleKey == nil {
		return
	}
	if err := a.toggleKey.Stop(); err != nil {
		slog.Warn("[hotkey] unregister failed", "error", err)
	}
	if spec == "" {
		slog.Debug("[hotkey] dimmer toggle hotkey disabled")
		return
	}
	if err := a.toggleKey.Start(spec, a.onToggleHotkey); err != nil {
		slog.Warn("[hotkey] dimmer toggle hotkey registration failed", "binding", spec, "error", err)
		return
	}
	slog.Info("[hotkey] dimmer toggle hotkey registered", "binding", a.toggleKey.ActiveBinding())
}

// onToggleHotkey runs on the hotkey thread.
func (a *App) onToggleHotkey() {
	if a.shuttingDown.Load() {
		return
	}
	go func() {
		if _, err := a.toggleModule(config.DimmerModuleName); err != nil {
			slog.Warn("[hotkey] dimmer toggle failed", "error", err)
		}
	}()
}

// shutdown tears everything down in reverse order. It never fails; errors
// are logged. Must not be called from the ui loop.
func (a *App) shutdown() {
	a.shutdownOnce.Do(a.doShutdown)
}

func (a *App) doShutdown() {
	a.shuttingDown.Store(true)
	slog.Info("[app] shutting down")
	if a.cancel != nil {
		a.cancel()
	}

	var errs []error
	if a.pipeServer != nil {
		if err := a.pipeServer.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop pipe server: %w", err))
		}
	}
	if a.toggleKey != nil {
		if err := a.toggleKey.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop toggle hotkey: %w", err))
		}
	}
	if a.registry != nil {
		if err := a.registry.StopAll(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.loop != nil && a.engine != nil {
		if err := a.loop.Do(a.closeUI); err != nil {
			errs = append(errs, fmt.Errorf("close ui: %w", err))
		}
	}
	if a.loop != nil {
		if err := a.loop.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop ui loop: %w", err))
		}
	}
	a.flushPersist()

	if !waitWithTimeout(a.bgWG.Wait, shutdownWaitTimeout) {
		slog.Warn("[app] timed out waiting for background workers during shutdown")
	}
	if a.history != nil {
		a.history.Close()
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close journal: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		slog.Warn("[app] shutdown incomplete", "error", err)
	}
	slog.Info("[app] stopped")
}

// closeUI runs on the ui loop.
func (a *App) closeUI() {
	if a.removeObserver != nil {
		a.removeObserver()
		a.removeObserver = nil
	}
	a.engine.Close()
	if a.appIcon != nil {
		if err := a.appIcon.Close(); err != nil {
			slog.Warn("[app] tray icon close failed", "error", err)
		}
	}
}

func waitWithTimeout(waitFn func(), timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		waitFn()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
