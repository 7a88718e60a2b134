package dimmer

import (
	"log/slog"
	"runtime/debug"
)

// Observer receives engine notifications synchronously, in registration
// order, on the UI thread. Nil fields are skipped.
type Observer struct {
	BrightnessChanged func(int)
	MethodChanged     func(Method)
	HotkeyChanged     func(bool)
	// SelectionChanged receives the deselected device names.
	SelectionChanged func([]string)
	// Warning receives capability failures meant for the user, at most once
	// per explicit method selection.
	Warning func(error)
}

type observerEntry struct {
	id int
	Observer
}

type observers struct {
	list   []observerEntry
	nextID int
}

// AddObserver registers o and returns a function that removes it.
func (s *observers) AddObserver(o Observer) (remove func()) {
	id := s.nextID
	s.nextID++
	s.list = append(s.list, observerEntry{id: id, Observer: o})
	return func() {
		for i, entry := range s.list {
			if entry.id == id {
				s.list = append(s.list[:i:i], s.list[i+1:]...)
				return
			}
		}
	}
}

func (s *observers) each(fn func(Observer)) {
	for _, entry := range append([]observerEntry(nil), s.list...) {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("[DEBUG-PANIC] dimmer observer panicked",
						"panic", r, "stack", string(debug.Stack()))
				}
			}()
			fn(entry.Observer)
		}()
	}
}

func (s *observers) notifyBrightness(v int) {
	s.each(func(o Observer) {
		if o.BrightnessChanged != nil {
			o.BrightnessChanged(v)
		}
	})
}

func (s *observers) notifyMethod(m Method) {
	s.each(func(o Observer) {
		if o.MethodChanged != nil {
			o.MethodChanged(m)
		}
	})
}

func (s *observers) notifyHotkey(enabled bool) {
	s.each(func(o Observer) {
		if o.HotkeyChanged != nil {
			o.HotkeyChanged(enabled)
		}
	})
}

func (s *observers) notifySelection(excluded []string) {
	s.each(func(o Observer) {
		if o.SelectionChanged != nil {
			o.SelectionChanged(excluded)
		}
	})
}

func (s *observers) notifyWarning(err error) {
	s.each(func(o Observer) {
		if o.Warning != nil {
			o.Warning(err)
		}
	})
}
