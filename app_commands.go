package main

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"go.yaml.in/yaml/v3"

	"tinytools/internal/config"
	"tinytools/internal/dimmer"
	"tinytools/internal/ipc"
	"tinytools/internal/logging"
)

const defaultHistoryRows = 20

type commandHandler func(a *App, args []string) ipc.Response

type command struct {
	usage   string
	summary string
	run     commandHandler
}

var commandOrder = []string{
	"help", "list", "enable", "disable", "toggle", "status",
	"brightness", "method", "monitors", "select", "hotkey",
	"history", "warnings", "settings", "loglevel", "reload", "shutdown",
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":       {"help", "Show this help", (*App).cmdHelp},
		"list":       {"list", "Show all tools and their status", (*App).cmdList},
		"enable":     {"enable <id|name>", "Enable a tool", (*App).cmdEnable},
		"disable":    {"disable <id|name>", "Disable a tool", (*App).cmdDisable},
		"toggle":     {"toggle <id|name>", "Toggle a tool", (*App).cmdToggle},
		"status":     {"status", "Show the screen dimmer state", (*App).cmdStatus},
		"brightness": {"brightness [v|+n|-n]", "Show or set the dimmer brightness (1-100)", (*App).cmdBrightness},
		"method":     {"method [auto|gamma|overlay]", "Show or set the dimming method", (*App).cmdMethod},
		"monitors":   {"monitors", "List monitors and their selection", (*App).cmdMonitors},
		"select":     {"select all|<id|device>...", "Choose the monitors to dim", (*App).cmdSelect},
		"hotkey":     {"hotkey [on|off]", "Show or set the Ctrl+Shift+wheel gesture", (*App).cmdHotkey},
		"history":    {"history [n]", "Show recent setting changes", (*App).cmdHistory},
		"warnings":   {"warnings", "Show recent warnings and errors", (*App).cmdWarnings},
		"settings":   {"settings [open]", "Show current settings, or open the file", (*App).cmdSettings},
		"loglevel":   {"loglevel [level]", "Show or set the log level", (*App).cmdLogLevel},
		"reload":     {"reload", "Re-read the settings file", (*App).cmdReload},
		"shutdown":   {"shutdown", "Exit the TinyTools process", (*App).cmdShutdown},
	}
}

// Execute implements ipc.Executor for the pipe server and the in-process
// console. It runs on caller goroutines, never on the ui loop.
func (a *App) Execute(req ipc.Request) ipc.Response {
	name := strings.ToLower(strings.TrimSpace(req.Command))
	cmd, ok := commands[name]
	if !ok {
		return ipc.Fail("Unknown command %q. Type 'help' for available commands.", req.Command)
	}
	slog.Debug("[ipc] command", "command", name, "args", req.Args)
	return cmd.run(a, req.Args)
}

func (a *App) cmdHelp([]string) ipc.Response {
	var b strings.Builder
	b.WriteString("Available Commands:\n")
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, name := range commandOrder {
		c := commands[name]
		fmt.Fprintf(tw, "  %s\t- %s\n", c.usage, c.summary)
	}
	fmt.Fprintf(tw, "  exit\t- Leave the console\n")
	tw.Flush()
	return ipc.OK("%s", b.String())
}

func (a *App) cmdList([]string) ipc.Response {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 1, ' ', 0)
	fmt.Fprintln(tw, "ID\t| Status\t| Tool Name\t| Description")
	for _, m := range a.registry.List() {
		status := "Disabled"
		if m.Enabled {
			status = "Enabled"
		}
		if m.Error != "" {
			status += " (error)"
		}
		fmt.Fprintf(tw, "%d\t| %s\t| %s\t| %s\n", m.Index, status, m.Name, m.Description)
	}
	tw.Flush()
	return ipc.OK("%s", b.String())
}

func (a *App) resolveModule(verb string, args []string) (string, *ipc.Response) {
	ref := strings.TrimSpace(strings.Join(args, " "))
	if ref == "" {
		resp := ipc.Fail("Please specify a tool ID or name. Example: %s 1", verb)
		return "", &resp
	}
	name, err := a.registry.Resolve(ref)
	if err != nil {
		resp := ipc.Fail("Invalid tool %q. Use 'list' to see available tools.", ref)
		return "", &resp
	}
	return name, nil
}

func (a *App) cmdEnable(args []string) ipc.Response {
	return a.switchModule("enable", args, true)
}

func (a *App) cmdDisable(args []string) ipc.Response {
	return a.switchModule("disable", args, false)
}

func (a *App) switchModule(verb string, args []string, enabled bool) ipc.Response {
	name, failed := a.resolveModule(verb, args)
	if failed != nil {
		return *failed
	}
	if snap, _ := a.registry.Get(name); snap.Enabled == enabled {
		return ipc.OK("%s is already %s.", name, enabledWord(enabled))
	}
	if err := a.setModuleEnabled(name, enabled); err != nil {
		return ipc.Fail("%s %s: %v", verb, name, err)
	}
	return ipc.OK("%s: %s", capitalize(enabledWord(enabled)), name)
}

func (a *App) cmdToggle(args []string) ipc.Response {
	name, failed := a.resolveModule("toggle", args)
	if failed != nil {
		return *failed
	}
	enabled, err := a.toggleModule(name)
	if err != nil {
		return ipc.Fail("toggle %s: %v", name, err)
	}
	return ipc.OK("%s: %s", capitalize(enabledWord(enabled)), name)
}

func (a *App) cmdStatus([]string) ipc.Response {
	var st dimmer.State
	var monitors []dimmer.MonitorStatus
	if err := a.onUI(func() {
		st = a.engine.State()
		monitors = a.engine.Monitors()
	}); err != nil {
		return ipc.Fail("status: %v", err)
	}
	selected := 0
	for _, m := range monitors {
		if m.Selected {
			selected++
		}
	}

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Screen Dimmer:\t%s\n", st.Phase)
	fmt.Fprintf(tw, "Brightness:\t%d%%\n", st.Brightness)
	active := st.ActiveMethod.String()
	if st.Downgraded {
		active += " (downgraded)"
	}
	fmt.Fprintf(tw, "Method:\t%s (active: %s)\n", st.Method, active)
	fmt.Fprintf(tw, "Wheel hotkey:\t%s\n", onOff(st.HotkeyEnabled))
	fmt.Fprintf(tw, "Monitors:\t%d selected of %d\n", selected, len(monitors))
	fmt.Fprintf(tw, "Overlays:\t%d\n", st.Overlays)
	if a.toggleKey != nil {
		if binding := a.toggleKey.ActiveBinding(); binding != "" {
			fmt.Fprintf(tw, "Toggle hotkey:\t%s\n", binding)
		}
	}
	fmt.Fprintf(tw, "Settings:\t%s\n", a.store.Path())
	if a.sink != nil {
		if path := a.sink.Path(); path != "" {
			fmt.Fprintf(tw, "Log file:\t%s (%s)\n", path, a.sink.Level())
		}
	}
	tw.Flush()
	return ipc.OK("%s", b.String())
}

func (a *App) cmdBrightness(args []string) ipc.Response {
	if len(args) == 0 {
		var v int
		if err := a.onUI(func() { v = a.engine.State().Brightness }); err != nil {
			return ipc.Fail("brightness: %v", err)
		}
		return ipc.OK("Brightness: %d%%", v)
	}
	raw := strings.TrimSuffix(strings.TrimSpace(args[0]), "%")
	n, err := strconv.Atoi(raw)
	if err != nil {
		return ipc.Fail("brightness: %q is not a number", args[0])
	}
	relative := strings.HasPrefix(raw, "+") || strings.HasPrefix(raw, "-")

	var got int
	var setErr error
	if err := a.onUI(func() {
		target := n
		if relative {
			target = a.engine.State().Brightness + n
		}
		setErr = a.engine.SetBrightness(target)
		got = a.engine.State().Brightness
	}); err != nil {
		return ipc.Fail("brightness: %v", err)
	}
	if setErr != nil {
		return ipc.Response{ExitCode: 1, Stdout: fmt.Sprintf("Brightness: %d%%", got), Stderr: setErr.Error()}
	}
	return ipc.OK("Brightness: %d%%", got)
}

func (a *App) cmdMethod(args []string) ipc.Response {
	if len(args) == 0 {
		var st dimmer.State
		if err := a.onUI(func() { st = a.engine.State() }); err != nil {
			return ipc.Fail("method: %v", err)
		}
		return ipc.OK("Method: %s (active: %s)", st.Method, st.ActiveMethod)
	}
	m, ok := dimmer.ParseMethod(args[0])
	if !ok {
		return ipc.Fail("method: unknown method %q (auto, gamma, overlay)", args[0])
	}
	var setErr error
	var st dimmer.State
	if err := a.onUI(func() {
		setErr = a.engine.SetMethod(m)
		st = a.engine.State()
	}); err != nil {
		return ipc.Fail("method: %v", err)
	}
	if setErr != nil {
		return ipc.Response{ExitCode: 1, Stdout: fmt.Sprintf("Method: %s", st.Method), Stderr: setErr.Error()}
	}
	return ipc.OK("Method: %s (active: %s)", st.Method, st.ActiveMethod)
}

func (a *App) cmdMonitors([]string) ipc.Response {
	var monitors []dimmer.MonitorStatus
	if err := a.onUI(func() { monitors = a.engine.Monitors() }); err != nil {
		return ipc.Fail("monitors: %v", err)
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSel\tDevice\tBounds\tGamma")
	for i, m := range monitors {
		sel := " "
		if m.Selected {
			sel = "*"
		}
		name := m.DeviceName
		if m.Primary {
			name += " (primary)"
		}
		gammaState := "-"
		switch {
		case m.GammaApplied:
			gammaState = "applied"
		case m.GammaCaptured:
			gammaState = "captured"
		}
		r := m.Bounds
		fmt.Fprintf(tw, "%d\t%s\t%s\t%dx%d@%d,%d\t%s\n", i+1, sel, name, r.Width(), r.Height(), r.Left, r.Top, gammaState)
	}
	tw.Flush()
	return ipc.OK("%s", b.String())
}

func (a *App) cmdSelect(args []string) ipc.Response {
	if len(args) == 0 {
		return ipc.Fail("select: name at least one monitor, or 'all'")
	}
	var (
		setErr   error
		unknown  []string
		excluded []string
	)
	if err := a.onUI(func() {
		monitors := a.engine.Monitors()
		names, missing := resolveMonitors(monitors, args)
		unknown = missing
		if len(missing) > 0 {
			return
		}
		setErr = a.engine.UpdateSelectedMonitors(names)
		excluded = a.engine.Excluded()
	}); err != nil {
		return ipc.Fail("select: %v", err)
	}
	if len(unknown) > 0 {
		return ipc.Fail("select: unknown monitor %s. Use 'monitors' to list them.", strings.Join(unknown, ", "))
	}
	out := "Selection updated."
	if len(excluded) > 0 {
		out += " Excluded: " + strings.Join(excluded, ", ")
	}
	if setErr != nil {
		return ipc.Response{ExitCode: 1, Stdout: out, Stderr: setErr.Error()}
	}
	return ipc.OK("%s", out)
}

// resolveMonitors maps 1-based indexes, device names or "all" to device
// names of the current scan.
func resolveMonitors(monitors []dimmer.MonitorStatus, refs []string) (names, unknown []string) {
	for _, ref := range refs {
		if strings.EqualFold(ref, "all") {
			names = names[:0]
			for _, m := range monitors {
				names = append(names, m.DeviceName)
			}
			continue
		}
		if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(monitors) {
			names = append(names, monitors[n-1].DeviceName)
			continue
		}
		idx := slices.IndexFunc(monitors, func(m dimmer.MonitorStatus) bool {
			return strings.EqualFold(m.DeviceName, ref)
		})
		if idx < 0 {
			unknown = append(unknown, ref)
			continue
		}
		names = append(names, monitors[idx].DeviceName)
	}
	return names, unknown
}

func (a *App) cmdHotkey(args []string) ipc.Response {
	if len(args) == 0 {
		var enabled bool
		if err := a.onUI(func() { enabled = a.engine.State().HotkeyEnabled }); err != nil {
			return ipc.Fail("hotkey: %v", err)
		}
		return ipc.OK("Wheel hotkey: %s", onOff(enabled))
	}
	var enabled bool
	switch strings.ToLower(args[0]) {
	case "on", "true", "1":
		enabled = true
	case "off", "false", "0":
	default:
		return ipc.Fail("hotkey: expected on or off, got %q", args[0])
	}
	if err := a.onUI(func() { a.engine.SetHotkeyEnabled(enabled) }); err != nil {
		return ipc.Fail("hotkey: %v", err)
	}
	return ipc.OK("Wheel hotkey: %s", onOff(enabled))
}

func (a *App) cmdHistory(args []string) ipc.Response {
	if a.journal == nil {
		return ipc.Fail("history: journal unavailable")
	}
	n := defaultHistoryRows
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			return ipc.Fail("history: %q is not a positive number", args[0])
		}
		n = v
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	entries, err := a.journal.Recent(ctx, n)
	if err != nil {
		return ipc.Fail("history: %v", err)
	}
	if len(entries) == 0 {
		return ipc.OK("No changes recorded.")
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		marker := ""
		if e.RunID != a.journal.RunID() {
			marker = " (earlier run)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s%s\n", e.At.Local().Format("2006-01-02 15:04:05"), e.Kind, e.Value, marker)
	}
	tw.Flush()
	return ipc.OK("%s", b.String())
}

func (a *App) cmdWarnings([]string) ipc.Response {
	if a.sink == nil {
		return ipc.OK("No warnings.")
	}
	entries := a.sink.Warnings()
	if len(entries) == 0 {
		return ipc.OK("No warnings.")
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %-7s %s\n", e.Time.Format("15:04:05"), logging.LevelName(e.Level), e.Message)
	}
	return ipc.OK("%s", b.String())
}

func (a *App) cmdSettings(args []string) ipc.Response {
	if len(args) > 0 {
		if !strings.EqualFold(args[0], "open") {
			return ipc.Fail("settings: unknown argument %q", args[0])
		}
		if err := a.openSettings(); err != nil {
			return ipc.Fail("settings: %v", err)
		}
		return ipc.OK("Opened %s", a.store.Path())
	}
	raw, err := yaml.Marshal(a.store.Snapshot())
	if err != nil {
		return ipc.Fail("settings: %v", err)
	}
	return ipc.OK("Current Settings (%s):\n%s", a.store.Path(), raw)
}

func (a *App) cmdLogLevel(args []string) ipc.Response {
	if a.sink == nil {
		return ipc.Fail("loglevel: logging not configured")
	}
	if len(args) == 0 {
		return ipc.OK("Log level: %s", a.sink.Level())
	}
	level := strings.ToLower(args[0])
	if err := a.sink.SetLevel(level); err != nil {
		return ipc.Fail("loglevel: %v", err)
	}
	if _, err := a.store.Update(func(c *config.Config) { c.LogLevel = a.sink.Level() }); err != nil {
		slog.Warn("[WARN-CONFIG] failed to save log level", "error", err)
	}
	return ipc.OK("Log level: %s", a.sink.Level())
}

func (a *App) cmdReload([]string) ipc.Response {
	cfg, err := config.Load(a.store.Path())
	if err != nil {
		return ipc.Fail("reload: %v", err)
	}
	a.store.Replace(cfg)
	a.applyConfig(cfg)
	return ipc.OK("Settings reloaded from %s", a.store.Path())
}

func (a *App) cmdShutdown([]string) ipc.Response {
	a.requestQuit()
	return ipc.OK("TinyTools is exiting.")
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
