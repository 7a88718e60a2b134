package display

import "testing"

func TestFallbackReplacesEmptyBounds(t *testing.T) {
	got := Fallback(Rect{})
	if len(got) != 1 {
		t.Fatalf("Fallback returned %d monitors, want 1", len(got))
	}
	m := got[0]
	if m.DeviceName != VirtualDeviceName || !m.Primary {
		t.Fatalf("unexpected fallback monitor: %+v", m)
	}
	if m.Bounds.Width() != 1920 || m.Bounds.Height() != 1080 {
		t.Fatalf("fallback bounds = %+v, want 1920x1080", m.Bounds)
	}
}

func TestFallbackKeepsVirtualBounds(t *testing.T) {
	bounds := Rect{Left: -1280, Top: 0, Right: 1920, Bottom: 1080}
	got := Fallback(bounds)
	if got[0].Bounds != bounds || got[0].WorkArea != bounds {
		t.Fatalf("Fallback(%+v) = %+v", bounds, got[0])
	}
}

func TestStaticEnumerateReturnsFreshCopies(t *testing.T) {
	s := Static{
		{Handle: 1, DeviceName: `\\.\DISPLAY1`, Primary: true},
		{Handle: 2, DeviceName: `\\.\DISPLAY2`},
	}
	first := s.Enumerate()
	first[0].DeviceName = "mutated"

	second := s.Enumerate()
	if second[0].DeviceName != `\\.\DISPLAY1` {
		t.Fatalf("Enumerate aliased a previous scan: %q", second[0].DeviceName)
	}
	if len(second) != 2 {
		t.Fatalf("Enumerate returned %d monitors, want 2", len(second))
	}
}

func TestStaticEmptyFallsBack(t *testing.T) {
	got := Static(nil).Enumerate()
	if len(got) != 1 || got[0].DeviceName != VirtualDeviceName {
		t.Fatalf("empty Static = %+v, want virtual desktop fallback", got)
	}
}
