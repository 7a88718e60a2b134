// Package inputhook installs system-wide low-level input hooks.
//
// The wheel hook only observes: every event is chained onward to the rest of
// the input pipeline after listeners run. The keyboard hook may block the
// keystrokes its filter claims.
package inputhook

import (
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ErrHookInstall is returned when the OS refuses to install a hook.
var ErrHookInstall = errors.New("input hook install failed")

// WheelDelta is the raw wheel delta of one notch.
const WheelDelta = 120

// WheelEvent is one vertical wheel movement with the modifier state at the
// time of the event. Delta is in notches; positive scrolls away from the user.
type WheelEvent struct {
	Delta int
	Ctrl  bool
	Shift bool
	Alt   bool
}

// Notches converts a raw wheel delta into whole notches. A partial notch
// from a high-resolution wheel counts as one in its direction.
func Notches(raw int16) int {
	n := int(raw) / WheelDelta
	switch {
	case n == 0 && raw > 0:
		return 1
	case n == 0 && raw < 0:
		return -1
	}
	return n
}

// KeyEvent is one keyboard transition seen by a KeyboardHook.
type KeyEvent struct {
	VKey  uint32
	Down  bool
	Ctrl  bool
	Shift bool
	Alt   bool
}

// stopper tears down an installed hook thread.
type stopper interface {
	stop() error
}

// MouseWheel observes wheel events system-wide and republishes them to
// subscribers. Listeners run on the hook thread and must return quickly.
type MouseWheel struct {
	mu        sync.Mutex
	listeners map[int]func(WheelEvent)
	nextID    int
	hook      stopper
}

// NewMouseWheel returns an idle interceptor.
func NewMouseWheel() *MouseWheel {
	return &MouseWheel{listeners: map[int]func(WheelEvent){}}
}

// Subscribe registers fn and returns a function that removes it.
func (w *MouseWheel) Subscribe(fn func(WheelEvent)) (unsubscribe func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.listeners, id)
	}
}

// Running reports whether the hook is installed.
func (w *MouseWheel) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hook != nil
}

// publish delivers ev to every listener. A panicking listener is logged and
// does not stop delivery to the others.
func (w *MouseWheel) publish(ev WheelEvent) {
	w.mu.Lock()
	fns := make([]func(WheelEvent), 0, len(w.listeners))
	for _, fn := range w.listeners {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		callListener(fn, ev)
	}
}

func callListener(fn func(WheelEvent), ev WheelEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[DEBUG-PANIC] wheel listener panicked",
				"panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn(ev)
}

// observeThenChain runs observe and then always returns next(), even when
// observe panics. Hook procedures use it so that chaining can never be skipped.
func observeThenChain(observe func(), next func() uintptr) (ret uintptr) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[DEBUG-PANIC] hook procedure panicked", "panic", r)
		}
		ret = next()
	}()
	observe()
	return 0
}

// KeyboardHook runs Filter for every keystroke system-wide. A true result
// blocks the keystroke; false passes it on.
type KeyboardHook struct {
	Filter func(KeyEvent) bool

	mu   sync.Mutex
	hook stopper
}

// filter evaluates Filter with panic recovery; a panic never blocks input.
func (k *KeyboardHook) filter(ev KeyEvent) (block bool) {
	if k.Filter == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[DEBUG-PANIC] keyboard filter panicked", "panic", r)
			block = false
		}
	}()
	return k.Filter(ev)
}

// Running reports whether the hook is installed.
func (k *KeyboardHook) Running() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.hook != nil
}
