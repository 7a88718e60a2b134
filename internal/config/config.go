package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"

	"tinytools/internal/hotkeys"
)

const (
	maxConfigFileBytes int64 = 1 << 20 // 1MB
	maxRenameRetry           = 10
	// Windows file lock releases (antivirus/indexing) typically settle quickly.
	// Use a short linear backoff: baseDelay * (1..maxRenameRetry).
	renameRetryBaseDelay = 10 * time.Millisecond

	minBrightness = 1
	maxBrightness = 100

	appDirName   = "TinyTools"
	settingsFile = "settings.yaml"
)

// defaultConfigDirFn is a test seam; tests override it to simulate
// directory-resolution failures in validateConfigPath.
var defaultConfigDirFn = defaultConfigDir
var userHomeDirFn = os.UserHomeDir

var defaultPathWarningState struct {
	mu       sync.Mutex
	messages []string
}

func recordDefaultPathWarning(message string) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return
	}
	defaultPathWarningState.mu.Lock()
	defaultPathWarningState.messages = append(defaultPathWarningState.messages, trimmed)
	defaultPathWarningState.mu.Unlock()
}

// ConsumeDefaultPathWarnings returns and clears path-resolution warnings
// accumulated during DefaultPath() calls.
func ConsumeDefaultPathWarnings() []string {
	defaultPathWarningState.mu.Lock()
	defer defaultPathWarningState.mu.Unlock()
	if len(defaultPathWarningState.messages) == 0 {
		return nil
	}
	out := slices.Clone(defaultPathWarningState.messages)
	defaultPathWarningState.messages = nil
	return out
}

// Config is the TinyTools settings file.
type Config struct {
	// LogLevel is one of off, error, warning, info, debug, trace.
	LogLevel string `yaml:"log_level" json:"log_level"`
	// Modules maps module names to their persisted enabled flag. Modules
	// absent from the map use their registered default.
	Modules map[string]bool `yaml:"modules,omitempty" json:"modules,omitempty"`
	Dimmer  DimmerConfig    `yaml:"dimmer" json:"dimmer"`
	Closers []CloserConfig  `yaml:"closers,omitempty" json:"closers,omitempty"`
}

// DimmerConfig holds the screen dimmer settings.
type DimmerConfig struct {
	Brightness    int    `yaml:"brightness" json:"brightness"`
	Method        string `yaml:"method" json:"method"`
	HotkeyEnabled bool   `yaml:"hotkey_enabled" json:"hotkey_enabled"`
	// Enabled mirrors the dimmer's entry in Modules. It is read only when
	// Modules has no entry for the dimmer.
	Enabled          bool     `yaml:"enabled" json:"enabled"`
	ExcludedMonitors []string `yaml:"excluded_monitors,omitempty" json:"excluded_monitors,omitempty"`
	// ToggleHotkey is a global hotkey that toggles the dimmer module.
	// Empty disables the binding.
	ToggleHotkey string `yaml:"toggle_hotkey" json:"toggle_hotkey"`
}

// CloserConfig describes one hotkey-driven window closer.
type CloserConfig struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Process     string `yaml:"process" json:"process"`
	Hotkey      string `yaml:"hotkey" json:"hotkey"`
}

// DimmerModuleName is the registry name of the screen dimmer. Its Modules
// entry and DimmerConfig.Enabled are kept in step.
const DimmerModuleName = "Screen Dimmer"

// EnabledFlags returns the persisted module flags, filling the dimmer's entry
// from DimmerConfig.Enabled when Modules lacks it.
func (c Config) EnabledFlags() map[string]bool {
	flags := maps.Clone(c.Modules)
	if flags == nil {
		flags = map[string]bool{}
	}
	if _, ok := flags[DimmerModuleName]; !ok {
		flags[DimmerModuleName] = c.Dimmer.Enabled
	}
	return flags
}

var validLogLevels = []string{"off", "error", "warning", "info", "debug", "trace"}

var validMethods = []string{"auto", "gamma", "overlay"}

// DefaultConfig returns the settings used when no file exists.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Dimmer: DimmerConfig{
			Brightness:    maxBrightness,
			Method:        "auto",
			HotkeyEnabled: true,
			ToggleHotkey:  "Ctrl+Alt+F9",
		},
		Closers: []CloserConfig{
			{
				Name:        "Notepad3 Hotkey",
				Description: "Closes Notepad3 with Ctrl+W",
				Process:     "notepad3.exe",
				Hotkey:      "Ctrl+W",
			},
			{
				Name:        "Calculator Hotkey",
				Description: "Closes the classic calculator with Ctrl+W",
				Process:     "win32calc.exe",
				Hotkey:      "Ctrl+W",
			},
		},
	}
}

// DefaultPath resolves the settings file path, preferring LOCALAPPDATA over
// APPDATA, falling back to ~/.config when both are unset, and then to
// os.TempDir() if the home directory cannot be resolved.
func DefaultPath() string {
	base := strings.TrimSpace(os.Getenv("LOCALAPPDATA"))
	if base == "" {
		base = strings.TrimSpace(os.Getenv("APPDATA"))
	}
	if base == "" {
		home, err := userHomeDirFn()
		if err != nil {
			slog.Warn("[WARN-CONFIG] using temp dir as config path fallback", "error", err)
			recordDefaultPathWarning(
				"Settings path fallback: failed to resolve LOCALAPPDATA/APPDATA/home directory. Using temp directory; settings may not persist.",
			)
			base = os.TempDir()
		} else {
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, appDirName, settingsFile)
}

// Load reads the settings file. A missing or empty file yields defaults.
// Parse and size errors return defaults together with the error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, errors.New("config path required")
	}

	raw, err := readLimitedFile(path, maxConfigFileBytes)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		slog.Warn("[WARN-CONFIG] failed to parse config, using defaults", "path", path, "error", err)
		return DefaultConfig(), err
	}
	applyDefaultsAndValidate(&cfg)
	return cfg, nil
}

// EnsureFile writes default config if missing and returns loaded config.
func EnsureFile(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		if _, err := Save(path, cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// Clone returns a deep copy of src. Nil collections stay nil.
func Clone(src Config) Config {
	dst := src
	if src.Modules != nil {
		dst.Modules = maps.Clone(src.Modules)
	}
	dst.Dimmer.ExcludedMonitors = slices.Clone(src.Dimmer.ExcludedMonitors)
	dst.Closers = slices.Clone(src.Closers)
	return dst
}

// Save normalizes cfg, writes it atomically and returns what was written.
func Save(path string, cfg Config) (Config, error) {
	normalizedPath, err := validateConfigPath(path)
	if err != nil {
		return cfg, err
	}
	cfg = Clone(cfg)
	applyDefaultsAndValidate(&cfg)

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return cfg, fmt.Errorf("save config: marshal: %w", err)
	}
	if err := atomicWrite(normalizedPath, raw); err != nil {
		return cfg, err
	}
	slog.Debug("[DEBUG-CONFIG] config saved", "path", path)
	return cfg, nil
}

// atomicWrite writes config data using temp-file + rename to avoid partial
// writes and retries rename on Windows to tolerate transient file locks.
func atomicWrite(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("save config: mkdir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".settings.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("save config: create temp: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			if closeErr := tmpFile.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
				slog.Warn("[WARN-CONFIG] failed to close temp file", "path", tmpPath, "error", closeErr)
			}
		}
		if err != nil {
			if removeErr := os.Remove(tmpPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
				slog.Warn("[WARN-CONFIG] failed to remove temp file", "path", tmpPath, "error", removeErr)
			}
		}
	}()

	if err = tmpFile.Chmod(0o600); err != nil {
		return fmt.Errorf("save config: chmod temp: %w", err)
	}
	if _, err = tmpFile.Write(data); err != nil {
		return fmt.Errorf("save config: write: %w", err)
	}
	if err = tmpFile.Sync(); err != nil {
		return fmt.Errorf("save config: sync: %w", err)
	}
	err = tmpFile.Close()
	tmpFile = nil
	if err != nil {
		return fmt.Errorf("save config: close: %w", err)
	}

	if err = renameFileWithRetry(tmpPath, path); err != nil {
		return fmt.Errorf("save config: rename: %w", err)
	}
	return nil
}

// validateConfigPath normalizes path and enforces that config writes stay
// inside the default config directory.
func validateConfigPath(path string) (string, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return "", errors.New("config path required")
	}
	absolutePath, err := filepath.Abs(trimmedPath)
	if err != nil {
		return "", fmt.Errorf("save config: resolve path: %w", err)
	}

	expectedDir, err := defaultConfigDirFn()
	if err != nil {
		return "", fmt.Errorf("save config: resolve config dir: %w", err)
	}
	absoluteExpectedDir, err := filepath.Abs(expectedDir)
	if err != nil {
		return "", fmt.Errorf("save config: resolve config dir: %w", err)
	}
	if !pathWithinDir(absolutePath, absoluteExpectedDir) {
		return "", fmt.Errorf("save config: path outside config directory: %q", absolutePath)
	}

	return absolutePath, nil
}

func defaultConfigDir() (string, error) {
	return filepath.Dir(DefaultPath()), nil
}

// pathWithinDir blocks directory traversal by ensuring path is under dir.
// It also rejects Windows cross-drive escapes because filepath.Rel returns
// an absolute path when roots differ.
func pathWithinDir(path string, dir string) bool {
	relativePath, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	if relativePath == "." {
		return true
	}
	if relativePath == ".." || strings.HasPrefix(relativePath, ".."+string(os.PathSeparator)) {
		return false
	}
	return !filepath.IsAbs(relativePath)
}

// applyDefaultsAndValidate normalizes cfg in place. Invalid values are
// replaced with defaults and logged; settings never fail to load.
// MUTATES: cfg is directly modified.
func applyDefaultsAndValidate(cfg *Config) {
	defaults := DefaultConfig()
	if isZeroConfig(*cfg) {
		*cfg = defaults
		return
	}

	level := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if level == "" {
		level = defaults.LogLevel
	} else if !slices.Contains(validLogLevels, level) {
		slog.Warn("[WARN-CONFIG] unknown log_level, using default", "value", cfg.LogLevel, "default", defaults.LogLevel)
		level = defaults.LogLevel
	}
	cfg.LogLevel = level

	normalizeDimmer(&cfg.Dimmer)
	cfg.Closers = sanitizeClosers(cfg.Closers)
}

func normalizeDimmer(d *DimmerConfig) {
	d.Brightness = min(max(d.Brightness, minBrightness), maxBrightness)

	method := strings.ToLower(strings.TrimSpace(d.Method))
	if !slices.Contains(validMethods, method) {
		if method != "" {
			slog.Warn("[WARN-CONFIG] unknown dimmer.method, using auto", "value", d.Method)
		}
		method = "auto"
	}
	d.Method = method

	d.ExcludedMonitors = normalizeDeviceNames(d.ExcludedMonitors)

	toggle := strings.TrimSpace(d.ToggleHotkey)
	if toggle != "" {
		binding, err := hotkeys.ParseBinding(toggle)
		if err != nil {
			slog.Warn("[WARN-CONFIG] invalid dimmer.toggle_hotkey, binding disabled", "value", toggle, "error", err)
			toggle = ""
		} else {
			toggle = binding.Normalized()
		}
	}
	d.ToggleHotkey = toggle
}

// normalizeDeviceNames trims, drops blanks and removes case-insensitive
// duplicates while keeping first-seen order.
func normalizeDeviceNames(names []string) []string {
	if names == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		key := strings.ToUpper(trimmed)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

// sanitizeClosers drops entries that cannot run: missing name or process,
// an unparsable hotkey, or a duplicate name.
func sanitizeClosers(entries []CloserConfig) []CloserConfig {
	if entries == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(entries))
	out := make([]CloserConfig, 0, len(entries))
	for i, entry := range entries {
		entry.Name = strings.TrimSpace(entry.Name)
		entry.Process = strings.TrimSpace(entry.Process)
		entry.Description = strings.TrimSpace(entry.Description)
		if entry.Name == "" || entry.Process == "" {
			slog.Warn("[WARN-CONFIG] closer entry skipped: name and process are required", "index", i)
			continue
		}
		binding, err := hotkeys.ParseBinding(entry.Hotkey)
		if err != nil {
			slog.Warn("[WARN-CONFIG] closer entry skipped: invalid hotkey",
				"name", entry.Name, "hotkey", entry.Hotkey, "error", err)
			continue
		}
		entry.Hotkey = binding.Normalized()
		key := strings.ToLower(entry.Name)
		if _, dup := seen[key]; dup {
			slog.Warn("[WARN-CONFIG] closer entry skipped: duplicate name", "name", entry.Name)
			continue
		}
		seen[key] = struct{}{}
		out = append(out, entry)
	}
	return out
}

func readLimitedFile(path string, maxBytes int64) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	limited := io.LimitReader(file, maxBytes+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > maxBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", maxBytes)
	}
	return raw, nil
}

func isZeroConfig(cfg Config) bool {
	return reflect.DeepEqual(cfg, Config{})
}

func renameFileWithRetry(sourcePath string, targetPath string) error {
	var lastErr error
	for attempt := range maxRenameRetry {
		err := os.Rename(sourcePath, targetPath)
		if err == nil {
			return nil
		}
		lastErr = err
		if runtime.GOOS != "windows" {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * renameRetryBaseDelay)
	}
	return lastErr
}
