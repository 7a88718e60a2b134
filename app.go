package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tinytools/internal/closer"
	"tinytools/internal/config"
	"tinytools/internal/dimmer"
	"tinytools/internal/display"
	"tinytools/internal/gamma"
	"tinytools/internal/hotkeys"
	"tinytools/internal/ipc"
	"tinytools/internal/journal"
	"tinytools/internal/logging"
	"tinytools/internal/modules"
	"tinytools/internal/tray"
	"tinytools/internal/uiloop"
)

const (
	appName = "TinyTools"

	// defaultPersistDelay lets a burst of wheel notches end in one save.
	defaultPersistDelay = 500 * time.Millisecond
	shutdownWaitTimeout = 10 * time.Second
)

// errNoEngine is reported when a command arrives before startup finished.
var errNoEngine = errors.New("screen dimmer not initialized")

// trayIcon is the part of *tray.Icon the app uses.
type trayIcon interface {
	Show() error
	Close() error
}

// hotkeyBinder is the part of *hotkeys.Manager the app uses.
type hotkeyBinder interface {
	Start(spec string, onTrigger func()) error
	Stop() error
	ActiveBinding() string
}

var (
	newTrayIconFn  = func(opts tray.Options) trayIcon { return tray.New(opts) }
	newPipeServer  = ipc.NewPipeServer
	showMessageFn  = showMessage
	openWithShell  = shellOpen
	newToggleKeyFn = func() hotkeyBinder { return hotkeys.NewManager() }
)

// appOptions selects the platform backends. Zero values use the real
// Windows implementations.
type appOptions struct {
	// PipeName is the console pipe; empty disables the pipe server.
	PipeName string
	// JournalPath overrides the history database location.
	JournalPath  string
	NoJournal    bool
	NoWatcher    bool
	PersistDelay time.Duration
	WatchDelay   time.Duration

	Topology    display.Provider
	Gamma       gamma.Device
	Overlay     dimmer.OverlayBackend
	Interceptor dimmer.Interceptor
}

// App owns every long-lived component of the tray process.
//
// Threading: engine and tray icons are touched only on the ui loop. Registry
// calls that start or stop the dimmer block on the loop, so they must never
// be made from it; tray actions hand such work to a goroutine.
type App struct {
	opts  appOptions
	store *config.Store
	sink  *logging.Sink

	loop      *uiloop.Loop
	engine    *dimmer.Engine
	appIcon   trayIcon
	registry  *modules.Registry
	closers   *closer.Hub
	toggleKey hotkeyBinder

	journal    *journal.Journal
	history    *journal.Writer
	pipeServer *ipc.PipeServer

	ctx    context.Context
	cancel context.CancelFunc
	bgWG   sync.WaitGroup

	// Engine changes waiting for the debounced save.
	persistMu      sync.Mutex
	pendingPersist []func(*config.DimmerConfig)
	persist        func(func())
	removeObserver func()

	startupWarnMu   sync.Mutex
	startupWarnings []string

	quitCh       chan struct{}
	quitOnce     sync.Once
	shutdownOnce sync.Once
	shuttingDown atomic.Bool
}

// NewApp wires an App around an already loaded settings store.
func NewApp(opts appOptions, store *config.Store, sink *logging.Sink) *App {
	if opts.PersistDelay <= 0 {
		opts.PersistDelay = defaultPersistDelay
	}
	return &App{
		opts:   opts,
		store:  store,
		sink:   sink,
		quitCh: make(chan struct{}),
	}
}

// requestQuit asks main to shut the process down. Safe from any goroutine.
func (a *App) requestQuit() {
	a.quitOnce.Do(func() {
		slog.Info("[app] exit requested")
		close(a.quitCh)
	})
}

// Quit is closed once an exit has been requested.
func (a *App) Quit() <-chan struct{} { return a.quitCh }

func (a *App) addStartupWarning(message string) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return
	}
	a.startupWarnMu.Lock()
	a.startupWarnings = append(a.startupWarnings, trimmed)
	a.startupWarnMu.Unlock()
}

func (a *App) consumeStartupWarnings() string {
	a.startupWarnMu.Lock()
	defer a.startupWarnMu.Unlock()
	if len(a.startupWarnings) == 0 {
		return ""
	}
	message := strings.Join(a.startupWarnings, "\n")
	a.startupWarnings = nil
	return message
}

// notifyUser shows a message box without blocking the caller.
func (a *App) notifyUser(title, text string) {
	if a.shuttingDown.Load() {
		return
	}
	go func() {
		if err := showMessageFn(title, text); err != nil {
			slog.Debug("[app] message box unavailable", "error", err)
		}
	}()
}

// recordChange queues a journal entry. Never blocks.
func (a *App) recordChange(kind journal.Kind, value string) {
	if a.history == nil {
		return
	}
	if !a.history.Submit(kind, value) {
		slog.Debug("[journal] entry dropped", "kind", kind)
	}
}
