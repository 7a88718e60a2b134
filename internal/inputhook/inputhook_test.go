package inputhook

import (
	"testing"
)

func TestNotches(t *testing.T) {
	tests := []struct {
		raw  int16
		want int
	}{
		{raw: 120, want: 1},
		{raw: -120, want: -1},
		{raw: 240, want: 2},
		{raw: 30, want: 1},
		{raw: -15, want: -1},
		{raw: 0, want: 0},
		{raw: 250, want: 2},
	}
	for _, tt := range tests {
		if got := Notches(tt.raw); got != tt.want {
			t.Errorf("Notches(%d) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestPublishReachesEverySubscriber(t *testing.T) {
	w := NewMouseWheel()
	var a, b []WheelEvent
	w.Subscribe(func(ev WheelEvent) { a = append(a, ev) })
	unsubscribe := w.Subscribe(func(ev WheelEvent) { b = append(b, ev) })

	ev := WheelEvent{Delta: 1, Ctrl: true, Shift: true}
	w.publish(ev)
	unsubscribe()
	w.publish(ev)

	if len(a) != 2 {
		t.Fatalf("first listener got %d events, want 2", len(a))
	}
	if len(b) != 1 || b[0] != ev {
		t.Fatalf("second listener got %v, want exactly one %v", b, ev)
	}
}

func TestPublishSurvivesPanickingListener(t *testing.T) {
	w := NewMouseWheel()
	got := 0
	w.Subscribe(func(WheelEvent) { panic("boom") })
	w.Subscribe(func(WheelEvent) { got++ })

	w.publish(WheelEvent{Delta: -1})
	if got != 1 {
		t.Fatalf("healthy listener called %d times, want 1", got)
	}
}

func TestObserveThenChainAlwaysChains(t *testing.T) {
	tests := []struct {
		name    string
		observe func()
	}{
		{name: "normal", observe: func() {}},
		{name: "panicking observer", observe: func() { panic("boom") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			ret := observeThenChain(tt.observe, func() uintptr {
				calls++
				return 7
			})
			if calls != 1 {
				t.Fatalf("next called %d times, want 1", calls)
			}
			if ret != 7 {
				t.Fatalf("return = %d, want the chained result 7", ret)
			}
		})
	}
}

func TestObserveThenChainDeliversBeforeForwarding(t *testing.T) {
	w := NewMouseWheel()
	var order []string
	w.Subscribe(func(WheelEvent) { order = append(order, "listener") })

	observeThenChain(
		func() { w.publish(WheelEvent{Delta: 1, Ctrl: true, Shift: true}) },
		func() uintptr { order = append(order, "next"); return 0 },
	)
	if len(order) != 2 || order[0] != "listener" || order[1] != "next" {
		t.Fatalf("order = %v, want [listener next]", order)
	}
}

func TestKeyboardFilter(t *testing.T) {
	k := &KeyboardHook{}
	if k.filter(KeyEvent{VKey: 'W'}) {
		t.Fatal("nil Filter blocked a key")
	}

	k.Filter = func(ev KeyEvent) bool { return ev.Ctrl && ev.VKey == 'W' }
	if !k.filter(KeyEvent{VKey: 'W', Ctrl: true, Down: true}) {
		t.Fatal("Ctrl+W not blocked")
	}

	k.Filter = func(KeyEvent) bool { panic("boom") }
	if k.filter(KeyEvent{VKey: 'W'}) {
		t.Fatal("panicking Filter blocked a key")
	}
}
