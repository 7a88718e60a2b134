// Command tinytools is a Windows tray utility that bundles small tool
// modules: hotkey window closers and a screen dimmer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"tinytools/internal/config"
	"tinytools/internal/console"
	"tinytools/internal/ipc"
	"tinytools/internal/logging"
	"tinytools/internal/singleinstance"
)

type cliOptions struct {
	console bool
	debug   bool
}

const usageText = `TinyTools

Usage:
  tinytools              Start in the notification area (default)
  tinytools --console    Also open an interactive command console (-c)
  tinytools --debug      Mirror debug logging to a console window
  tinytools --help       Show this help (-h)

A second start while TinyTools is running prints its status; with --console
it opens a console attached to the running instance. See also tinyctl.
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func parseArgs(args []string, errOut io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("tinytools", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.Usage = func() { fmt.Fprint(errOut, usageText) }
	fs.BoolVar(&opts.console, "console", false, "open an interactive command console")
	fs.BoolVar(&opts.console, "c", false, "shorthand for --console")
	fs.BoolVar(&opts.debug, "debug", false, "mirror debug logging to the console")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return opts, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	return opts, nil
}

func run(args []string) int {
	if len(args) > 0 {
		// Flags can only be reported once a console exists.
		if err := ensureConsole(); err != nil {
			return 2
		}
	}
	opts, err := parseArgs(args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}

	mutexLock, err := singleinstance.TryLock(singleinstance.DefaultMutexName())
	if errors.Is(err, singleinstance.ErrAlreadyRunning) {
		return runSecondInstance(opts)
	}
	if err != nil {
		slog.Warn("[DEBUG-SINGLE] mutex creation failed, proceeding without single-instance guard", "error", err)
	}
	if mutexLock != nil {
		defer func() {
			if releaseErr := mutexLock.Release(); releaseErr != nil {
				slog.Warn("[DEBUG-SINGLE] mutex release failed", "error", releaseErr)
			}
		}()
	}

	configPath := config.DefaultPath()
	var warnings []string
	warnings = append(warnings, config.ConsumeDefaultPathWarnings()...)
	cfg, cfgErr := config.EnsureFile(configPath)
	if cfgErr != nil {
		cfg = config.DefaultConfig()
		warnings = append(warnings, "Failed to load settings. Running with defaults. Error: "+cfgErr.Error())
	}

	logOpts := logging.Options{Level: cfg.LogLevel, Dir: filepath.Dir(configPath)}
	if opts.debug {
		logOpts.Level = "debug"
		logOpts.Console = os.Stderr
	}
	sink, logErr := logging.New(logOpts)
	slog.SetDefault(sink.Logger())
	defer func() {
		if err := sink.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "close log file: %v\n", err)
		}
	}()
	if logErr != nil {
		slog.Warn("[logging] logger degraded", "error", logErr)
	}
	if cfgErr != nil {
		slog.Warn("[WARN-CONFIG] failed to load settings", "path", configPath, "error", cfgErr)
	}
	slog.Info("[app] starting", "args", args, "settings", configPath, "log", sink.Path())

	app := NewApp(appOptions{PipeName: ipc.DefaultPipeName()}, config.NewStore(configPath, cfg), sink)
	for _, w := range warnings {
		app.addStartupWarning(w)
	}
	defer app.shutdown()
	if err := app.startup(); err != nil {
		slog.Error("[app] startup failed", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.console {
		go func() {
			console.Run(ctx, app, console.Options{
				In:          os.Stdin,
				Out:         os.Stdout,
				Err:         os.Stderr,
				Interactive: console.IsInteractive(os.Stdin),
				Startup:     []string{"list"},
			})
			app.requestQuit()
		}()
	}

	select {
	case <-ctx.Done():
		slog.Info("[app] interrupted")
	case <-app.Quit():
	}
	return 0
}

// runSecondInstance talks to the running process instead of starting a
// competing one.
func runSecondInstance(opts cliOptions) int {
	slog.Info("[DEBUG-SINGLE] another instance is already running")
	remote := console.Remote(ipc.DefaultPipeName())
	if opts.console {
		return console.Run(context.Background(), remote, console.Options{
			In:          os.Stdin,
			Out:         os.Stdout,
			Err:         os.Stderr,
			Interactive: console.IsInteractive(os.Stdin),
			Startup:     []string{"list"},
		})
	}
	return console.RunLine(remote, "status", os.Stdout, os.Stderr)
}
