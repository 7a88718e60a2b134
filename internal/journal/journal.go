// Package journal records accepted state changes (brightness, method,
// hotkey, monitor selection, module toggles) in a SQLite file so the console
// shell can show recent history across restarts.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Kind classifies a journal entry.
type Kind string

const (
	KindBrightness Kind = "brightness"
	KindMethod     Kind = "method"
	KindHotkey     Kind = "hotkey"
	KindSelection  Kind = "selection"
	KindModule     Kind = "module"
	KindWarning    Kind = "warning"
)

const (
	// FileName is the journal database name inside the settings directory.
	FileName = "history.db"

	// DefaultMaxEntries bounds the table; older rows are pruned on Open.
	DefaultMaxEntries = 5000

	busyTimeoutMillis = 2000
)

const schema = `
CREATE TABLE IF NOT EXISTS changes (
	seq    INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT    NOT NULL,
	at     INTEGER NOT NULL,
	kind   TEXT    NOT NULL,
	value  TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS changes_at ON changes(at);
`

// Entry is one recorded change.
type Entry struct {
	Seq   int64     `json:"seq"`
	RunID string    `json:"run_id"`
	At    time.Time `json:"at"`
	Kind  Kind      `json:"kind"`
	Value string    `json:"value"`
}

// Journal is a handle on the history database. Safe for concurrent use.
type Journal struct {
	db    *sql.DB
	runID string
	now   func() time.Time
}

// Open creates or opens the database at path and prunes it to maxEntries
// rows. maxEntries <= 0 uses DefaultMaxEntries.
func Open(ctx context.Context, path string, maxEntries int) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal path required")
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("open journal: mkdir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		filepath.ToSlash(path), busyTimeoutMillis)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// A single connection serializes writers; SQLite allows one at a time anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("open journal: schema: %w", err)
	}

	j := &Journal{db: db, runID: uuid.NewString(), now: time.Now}
	if err := j.prune(ctx, maxEntries); err != nil {
		slog.Warn("[journal] prune failed", "error", err)
	}
	slog.Debug("[journal] opened", "path", path, "run", j.runID)
	return j, nil
}

// RunID identifies the current process run.
func (j *Journal) RunID() string { return j.runID }

// Record appends one entry for the current run.
func (j *Journal) Record(ctx context.Context, kind Kind, value string) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO changes (run_id, at, kind, value) VALUES (?, ?, ?, ?)`,
		j.runID, j.now().UnixMilli(), string(kind), value)
	if err != nil {
		return fmt.Errorf("record %s: %w", kind, err)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT seq, run_id, at, kind, value FROM changes ORDER BY seq DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, n)
	for rows.Next() {
		var (
			e    Entry
			at   int64
			kind string
		)
		if err := rows.Scan(&e.Seq, &e.RunID, &at, &kind, &e.Value); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.At = time.UnixMilli(at)
		e.Kind = Kind(kind)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// Close releases the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) prune(ctx context.Context, keep int) error {
	_, err := j.db.ExecContext(ctx,
		`DELETE FROM changes WHERE seq <= (SELECT seq FROM changes ORDER BY seq DESC LIMIT 1 OFFSET ?)`,
		keep)
	return err
}

func closeQuietly(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Debug("[journal] close after failed open", "error", err)
	}
}
