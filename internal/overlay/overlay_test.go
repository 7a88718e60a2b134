package overlay

import (
	"errors"
	"testing"

	"tinytools/internal/display"
)

func TestOpacity(t *testing.T) {
	tests := []struct {
		brightness int
		want       uint8
	}{
		{brightness: 10, want: 207},
		{brightness: 50, want: 115},
		{brightness: 40, want: 138},
		{brightness: 99, want: 2},
		{brightness: 1, want: 228},
		{brightness: -20, want: 255},
		{brightness: 100, want: 0},
		{brightness: 120, want: 0},
	}
	for _, tt := range tests {
		if got := Opacity(tt.brightness); got != tt.want {
			t.Errorf("Opacity(%d) = %d, want %d", tt.brightness, got, tt.want)
		}
	}
}

type fakeSurface struct {
	next       uintptr
	created    int
	updated    int
	destroyed  []uintptr
	failCreate bool
	failDelete map[uintptr]bool
}

func (f *fakeSurface) create(display.Monitor, uint8) (uintptr, error) {
	if f.failCreate {
		return 0, errors.New("create failed")
	}
	f.next++
	f.created++
	return f.next, nil
}

func (f *fakeSurface) update(uintptr, display.Rect, uint8) error {
	f.updated++
	return nil
}

func (f *fakeSurface) destroy(hwnd uintptr) error {
	f.destroyed = append(f.destroyed, hwnd)
	if f.failDelete[hwnd] {
		return errors.New("destroy failed")
	}
	return nil
}

var (
	left  = display.Monitor{Handle: 1, DeviceName: `\\.\DISPLAY1`, Bounds: display.Rect{Right: 1920, Bottom: 1080}}
	right = display.Monitor{Handle: 2, DeviceName: `\\.\DISPLAY2`, Bounds: display.Rect{Left: 1920, Right: 3840, Bottom: 1080}}
)

func TestShowCreatesOncePerMonitor(t *testing.T) {
	fs := &fakeSurface{}
	m := newManager(fs)

	if err := m.Show(left, 100); err != nil {
		t.Fatalf("Show() error = %v", err)
	}
	if err := m.Show(left, 100); err != nil {
		t.Fatalf("Show() repeat error = %v", err)
	}
	if err := m.Show(left, 150); err != nil {
		t.Fatalf("Show() new opacity error = %v", err)
	}
	if err := m.Show(right, 150); err != nil {
		t.Fatalf("Show() second monitor error = %v", err)
	}

	if fs.created != 2 {
		t.Fatalf("created = %d, want 2", fs.created)
	}
	if fs.updated != 1 {
		t.Fatalf("updated = %d, want 1 (unchanged Show must not touch the window)", fs.updated)
	}
	if w, ok := m.windows[left.Handle]; !ok || w.opacity != 150 {
		t.Fatalf("window for left monitor = %+v, want opacity 150", w)
	}
}

func TestShowCreateFailureLeavesNoWindow(t *testing.T) {
	m := newManager(&fakeSurface{failCreate: true})
	if err := m.Show(left, 10); err == nil {
		t.Fatal("Show() error = nil, want create failure")
	}
	if m.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", m.Count())
	}
}

func TestHideAllContinuesPastFailures(t *testing.T) {
	fs := &fakeSurface{failDelete: map[uintptr]bool{1: true}}
	m := newManager(fs)
	_ = m.Show(left, 50)
	_ = m.Show(right, 50)

	if err := m.HideAll(); err == nil {
		t.Fatal("HideAll() error = nil, want the destroy failure reported")
	}
	if len(fs.destroyed) != 2 {
		t.Fatalf("destroyed = %v, want both windows attempted", fs.destroyed)
	}
	if m.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", m.Count())
	}
}

func TestHideUnknownHandleIsNoop(t *testing.T) {
	fs := &fakeSurface{}
	m := newManager(fs)
	if err := m.Hide(42); err != nil {
		t.Fatalf("Hide() error = %v", err)
	}
	if len(fs.destroyed) != 0 {
		t.Fatalf("destroyed = %v, want none", fs.destroyed)
	}
}
