package modules

// Spec declares one tool module. Start and Stop are required; Settings is
// optional.
type Spec struct {
	Name           string
	Description    string
	DefaultEnabled bool

	Start    func() error
	Stop     func() error
	Settings func() error
}

// Status is the runtime state of a module.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusError   Status = "error"
)

// Snapshot is a read-only view of a registered module.
type Snapshot struct {
	// Index is the 1-based position used by the console shell.
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
	Status      Status `json:"status"`
	HasSettings bool   `json:"has_settings"`
	// Error is set only when Status is StatusError.
	Error string `json:"error,omitempty"`
}

// Running reports whether the module is started.
func (s Snapshot) Running() bool { return s.Status == StatusRunning }

// EnabledStore persists which modules are enabled.
type EnabledStore interface {
	SaveEnabled(flags map[string]bool) error
}
