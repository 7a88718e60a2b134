package config

import (
	"maps"
	"reflect"
	"sync"
)

// Store owns the in-memory settings and their file. All writers go through
// Update so the file and the snapshot never diverge.
type Store struct {
	path string

	mu  sync.Mutex
	cfg Config
	// lastSaved is the normalized config most recently written by this
	// process; reloads equal to it are our own writes echoing back.
	lastSaved Config
	saveFn    func(path string, cfg Config) (Config, error)
}

// NewStore wraps an already loaded config.
func NewStore(path string, cfg Config) *Store {
	return &Store{
		path:      path,
		cfg:       Clone(cfg),
		lastSaved: Clone(cfg),
		saveFn:    Save,
	}
}

// Path returns the settings file path.
func (s *Store) Path() string { return s.path }

// Snapshot returns a deep copy of the current settings.
func (s *Store) Snapshot() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Clone(s.cfg)
}

// Update applies mutate to a copy of the settings and persists the result.
// On save failure the in-memory settings still advance so that the running
// process keeps the user's latest choice.
func (s *Store) Update(mutate func(*Config)) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := Clone(s.cfg)
	mutate(&next)
	saved, err := s.saveFn(s.path, next)
	s.cfg = Clone(saved)
	if err != nil {
		return Clone(saved), err
	}
	s.lastSaved = Clone(saved)
	return Clone(saved), nil
}

// SaveEnabled persists module enabled flags.
func (s *Store) SaveEnabled(flags map[string]bool) error {
	_, err := s.Update(func(c *Config) {
		c.Modules = maps.Clone(flags)
		if v, ok := flags[DimmerModuleName]; ok {
			c.Dimmer.Enabled = v
		}
	})
	return err
}

// Replace installs a config read back from disk. It reports false when cfg
// equals what this process last wrote, so callers can skip re-applying.
func (s *Store) Replace(cfg Config) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reflect.DeepEqual(normalizedForCompare(cfg), normalizedForCompare(s.lastSaved)) {
		return false
	}
	s.cfg = Clone(cfg)
	s.lastSaved = Clone(cfg)
	return true
}

// normalizedForCompare maps nil and empty collections to the same value;
// YAML round trips do not preserve the distinction.
func normalizedForCompare(cfg Config) Config {
	out := Clone(cfg)
	if len(out.Modules) == 0 {
		out.Modules = nil
	}
	if len(out.Dimmer.ExcludedMonitors) == 0 {
		out.Dimmer.ExcludedMonitors = nil
	}
	if len(out.Closers) == 0 {
		out.Closers = nil
	}
	return out
}
