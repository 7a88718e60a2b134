package modules

import (
	"errors"
	"maps"
	"strings"
	"testing"
)

type recorder struct {
	calls []string
}

func (r *recorder) spec(name string, enabled bool, startErr error) Spec {
	return Spec{
		Name:           name,
		Description:    name + " tool",
		DefaultEnabled: enabled,
		Start: func() error {
			r.calls = append(r.calls, "start "+name)
			return startErr
		},
		Stop: func() error {
			r.calls = append(r.calls, "stop "+name)
			return nil
		},
	}
}

type memStore struct {
	saved []map[string]bool
	err   error
}

func (m *memStore) SaveEnabled(flags map[string]bool) error {
	m.saved = append(m.saved, maps.Clone(flags))
	return m.err
}

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry(nil)
	rec := &recorder{}
	tests := []struct {
		name    string
		spec    Spec
		wantErr string
	}{
		{name: "empty name", spec: Spec{Name: " "}, wantErr: "name is required"},
		{name: "missing funcs", spec: Spec{Name: "x"}, wantErr: "start and stop"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Register(tt.spec); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Register() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
	if err := r.Register(rec.spec("Dimmer", false, nil)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(rec.spec("dimmer", false, nil)); err == nil {
		t.Fatal("duplicate name accepted")
	}
}

func TestAutoStartAndStopAll(t *testing.T) {
	rec := &recorder{}
	r := NewRegistry(nil)
	_ = r.Register(rec.spec("A", true, nil))
	_ = r.Register(rec.spec("B", false, nil))
	_ = r.Register(rec.spec("C", true, nil))
	r.ApplyEnabled(map[string]bool{"C": false, "B": true, "ghost": true})

	if err := r.AutoStart(); err != nil {
		t.Fatalf("AutoStart() error = %v", err)
	}
	if err := r.StopAll(); err != nil {
		t.Fatalf("StopAll() error = %v", err)
	}
	want := []string{"start A", "start B", "stop B", "stop A"}
	if strings.Join(rec.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", rec.calls, want)
	}
}

func TestTogglePersistsAndRuns(t *testing.T) {
	rec := &recorder{}
	store := &memStore{}
	r := NewRegistry(store)
	_ = r.Register(rec.spec("Screen Dimmer", false, nil))

	enabled, err := r.Toggle("screen dimmer")
	if err != nil || !enabled {
		t.Fatalf("Toggle() = %v, %v; want true, nil", enabled, err)
	}
	snap, _ := r.Get("Screen Dimmer")
	if !snap.Enabled || !snap.Running() {
		t.Fatalf("snapshot = %+v, want enabled and running", snap)
	}

	enabled, err = r.Toggle("Screen Dimmer")
	if err != nil || enabled {
		t.Fatalf("Toggle() = %v, %v; want false, nil", enabled, err)
	}
	if len(store.saved) != 2 || store.saved[0]["Screen Dimmer"] != true || store.saved[1]["Screen Dimmer"] != false {
		t.Fatalf("saved = %v", store.saved)
	}
}

func TestEnableStartFailureIsRecorded(t *testing.T) {
	rec := &recorder{}
	r := NewRegistry(&memStore{})
	_ = r.Register(rec.spec("Hook", false, errors.New("hook refused")))

	if err := r.Enable("Hook"); err == nil {
		t.Fatal("Enable() error = nil, want start failure")
	}
	snap, _ := r.Get("Hook")
	if !snap.Enabled || snap.Status != StatusError || snap.Error != "hook refused" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if err := r.Disable("Hook"); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}
	if snap, _ = r.Get("Hook"); snap.Status != StatusStopped {
		t.Fatalf("status = %s, want stopped", snap.Status)
	}
}

func TestPanickingStartBecomesError(t *testing.T) {
	r := NewRegistry(nil)
	_ = r.Register(Spec{
		Name:  "Boom",
		Start: func() error { panic("boom") },
		Stop:  func() error { return nil },
	})
	if err := r.Enable("Boom"); err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("Enable() error = %v, want panic converted to error", err)
	}
}

func TestResolve(t *testing.T) {
	rec := &recorder{}
	r := NewRegistry(nil)
	_ = r.Register(rec.spec("Notepad3 Hotkey", true, nil))
	_ = r.Register(rec.spec("Screen Dimmer", false, nil))

	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{ref: "1", want: "Notepad3 Hotkey"},
		{ref: "2", want: "Screen Dimmer"},
		{ref: "screen dimmer", want: "Screen Dimmer"},
		{ref: "3", wantErr: true},
		{ref: "0", wantErr: true},
		{ref: "missing", wantErr: true},
	}
	for _, tt := range tests {
		got, err := r.Resolve(tt.ref)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownModule) {
				t.Errorf("Resolve(%q) error = %v, want ErrUnknownModule", tt.ref, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("Resolve(%q) = %q, %v; want %q", tt.ref, got, err, tt.want)
		}
	}
}

func TestShowSettings(t *testing.T) {
	rec := &recorder{}
	r := NewRegistry(nil)
	opened := 0
	s := rec.spec("Screen Dimmer", false, nil)
	s.Settings = func() error { opened++; return nil }
	_ = r.Register(s)
	_ = r.Register(rec.spec("Plain", false, nil))

	if err := r.ShowSettings("Screen Dimmer"); err != nil || opened != 1 {
		t.Fatalf("ShowSettings() = %v, opened=%d", err, opened)
	}
	if err := r.ShowSettings("Plain"); err == nil {
		t.Fatal("ShowSettings on a module without settings succeeded")
	}
	if list := r.List(); !list[0].HasSettings || list[1].HasSettings {
		t.Fatalf("HasSettings flags wrong: %+v", list)
	}
}
