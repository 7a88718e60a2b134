package logging

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultRecentCapacity is the number of warnings kept for the console.
const DefaultRecentCapacity = 50

// Entry is one captured log record.
type Entry struct {
	Time    time.Time  `json:"time"`
	Level   slog.Level `json:"level"`
	Message string     `json:"message"`
	Group   string     `json:"group,omitempty"`
}

// Recent is a fixed-size ring of the latest captured records.
type Recent struct {
	mu    sync.Mutex
	buf   []Entry
	next  int
	count int
}

// NewRecent returns a ring holding up to capacity entries.
func NewRecent(capacity int) *Recent {
	if capacity <= 0 {
		capacity = DefaultRecentCapacity
	}
	return &Recent{buf: make([]Entry, capacity)}
}

// Add is an EntryCallback.
func (r *Recent) Add(ts time.Time, level slog.Level, msg string, group string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = Entry{Time: ts, Level: level, Message: msg, Group: group}
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Snapshot returns the captured entries, oldest first.
func (r *Recent) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, r.count)
	start := (r.next - r.count + len(r.buf)) % len(r.buf)
	for i := range r.count {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}
