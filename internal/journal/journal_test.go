package journal

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openTestJournal(t *testing.T, maxEntries int) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", FileName)
	j, err := Open(context.Background(), path, maxEntries)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := j.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return j, path
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), "", 0); err == nil {
		t.Fatal("Open(\"\") expected error")
	}
}

func TestRecordAndRecent(t *testing.T) {
	j, _ := openTestJournal(t, 0)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	j.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	writes := []struct {
		kind  Kind
		value string
	}{
		{KindBrightness, "80"},
		{KindMethod, "overlay"},
		{KindBrightness, "60"},
	}
	for _, w := range writes {
		if err := j.Record(ctx, w.kind, w.value); err != nil {
			t.Fatalf("Record(%s) error = %v", w.kind, err)
		}
	}

	got, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d entries", len(got))
	}
	if got[0].Kind != KindBrightness || got[0].Value != "60" {
		t.Fatalf("newest = %+v, want brightness 60", got[0])
	}
	if got[1].Kind != KindMethod || got[1].Value != "overlay" {
		t.Fatalf("second = %+v, want method overlay", got[1])
	}
	if got[0].RunID != j.RunID() {
		t.Fatalf("RunID = %q, want %q", got[0].RunID, j.RunID())
	}
	if !got[0].At.Equal(base.Add(3 * time.Second)) {
		t.Fatalf("At = %v, want %v", got[0].At, base.Add(3*time.Second))
	}
}

func TestRecentNonPositive(t *testing.T) {
	j, _ := openTestJournal(t, 0)
	got, err := j.Recent(context.Background(), 0)
	if err != nil || got != nil {
		t.Fatalf("Recent(0) = %v, %v; want nil, nil", got, err)
	}
}

func TestReopenKeepsHistoryWithNewRunID(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), FileName)

	first, err := Open(ctx, path, 0)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := first.Record(ctx, KindHotkey, "off"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	firstRun := first.RunID()
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second, err := Open(ctx, path, 0)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer second.Close()
	if second.RunID() == firstRun {
		t.Fatal("reopen reused the run id")
	}
	got, err := second.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 1 || got[0].RunID != firstRun {
		t.Fatalf("Recent() = %+v, want the earlier run's entry", got)
	}
}

func TestOpenPrunesOldestEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), FileName)

	j, err := Open(ctx, path, 0)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	for i := range 10 {
		if err := j.Record(ctx, KindBrightness, string(rune('a'+i))); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	pruned, err := Open(ctx, path, 3)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer pruned.Close()
	got, err := pruned.Recent(ctx, 100)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("kept %d entries, want 3", len(got))
	}
	if got[0].Value != "j" || got[2].Value != "h" {
		t.Fatalf("kept %+v, want newest three", got)
	}
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []pending
	block   chan struct{}
	err     error
}

func (f *fakeRecorder) Record(_ context.Context, kind Kind, value string) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, pending{kind: kind, value: value})
	return f.err
}

func TestWriterPreservesOrderAndFlushesOnClose(t *testing.T) {
	rec := &fakeRecorder{}
	w := NewWriter(rec, 16)
	for _, v := range []string{"90", "80", "70"} {
		if !w.Submit(KindBrightness, v) {
			t.Fatalf("Submit(%s) dropped", v)
		}
	}
	w.Close()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.entries) != 3 {
		t.Fatalf("recorded %d entries, want 3", len(rec.entries))
	}
	for i, want := range []string{"90", "80", "70"} {
		if rec.entries[i].value != want {
			t.Fatalf("entry %d = %q, want %q", i, rec.entries[i].value, want)
		}
	}
}

func TestWriterDropsWhenFull(t *testing.T) {
	rec := &fakeRecorder{block: make(chan struct{})}
	w := NewWriter(rec, 1)

	// The first entry is taken by the worker and blocks; the second fills
	// the queue.
	w.Submit(KindMethod, "gamma")
	deadline := time.Now().Add(2 * time.Second)
	for !w.Submit(KindMethod, "overlay") {
		if time.Now().After(deadline) {
			t.Fatal("queue never drained to accept the second entry")
		}
		time.Sleep(time.Millisecond)
	}
	if w.Submit(KindMethod, "auto") {
		t.Fatal("Submit() accepted an entry into a full queue")
	}
	close(rec.block)
	w.Close()
}

func TestWriterSubmitAfterClose(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("ignored")}
	w := NewWriter(rec, 0)
	w.Close()
	w.Close()
	if w.Submit(KindHotkey, "on") {
		t.Fatal("Submit() after Close() = true")
	}
}
