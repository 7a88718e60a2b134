//go:build windows

package hotkeys

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"tinytools/internal/win32"
)

var (
	procRegisterHotKey   = win32.User32.NewProc("RegisterHotKey")
	procUnregisterHotKey = win32.User32.NewProc("UnregisterHotKey")
)

// maxHotkeyID is the upper bound for application-defined hotkey IDs.
const maxHotkeyID int32 = 0xBFFF

var nextHotkeyID int32 = 0x4000

// registration is one live hotkey and the thread whose queue receives it.
type registration struct {
	id       int32
	threadID uint32
	doneCh   chan struct{}
	binding  string
}

type loopReady struct {
	threadID uint32
	err      error
}

func register(binding Binding, onTrigger func()) (*registration, error) {
	if err := win32.Load(); err != nil {
		return nil, err
	}
	id := atomic.AddInt32(&nextHotkeyID, 1)
	if id > maxHotkeyID {
		return nil, fmt.Errorf("hotkey ID range exhausted (ID=%d)", id)
	}

	readyCh := make(chan loopReady, 1)
	doneCh := make(chan struct{})
	go runHotkeyLoop(id, binding, onTrigger, readyCh, doneCh)

	ready := <-readyCh
	if ready.err != nil {
		return nil, ready.err
	}
	return &registration{id: id, threadID: ready.threadID, doneCh: doneCh, binding: binding.Normalized()}, nil
}

// unregister quits the registering thread's loop, which unregisters the
// hotkey on its way out.
func (r *registration) unregister() error {
	stopErr := win32.PostQuit(r.threadID)
	timer := time.NewTimer(2 * time.Second)
	defer timer.Stop()
	select {
	case <-r.doneCh:
	case <-timer.C:
		slog.Warn("[hotkey] message loop stop timed out, thread may leak", "hotkeyID", r.id)
		stopErr = errors.Join(stopErr, fmt.Errorf("hotkey message loop stop timed out (hotkeyID=%d)", r.id))
	}
	return stopErr
}

// runHotkeyLoop registers the hotkey on a locked thread; RegisterHotKey
// with a nil window posts WM_HOTKEY to the registering thread's queue.
func runHotkeyLoop(id int32, binding Binding, onTrigger func(), readyCh chan<- loopReady, doneCh chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(doneCh)

	threadID, err := win32.CurrentThreadID()
	if err != nil {
		readyCh <- loopReady{err: err}
		return
	}
	win32.EnsureQueue()

	res, _, callErr := procRegisterHotKey.Call(0, uintptr(id), uintptr(binding.Modifiers()), uintptr(binding.Key()))
	if res == 0 {
		readyCh <- loopReady{err: callErr}
		return
	}
	defer func() {
		if res, _, err := procUnregisterHotKey.Call(0, uintptr(id)); res == 0 {
			slog.Error("[hotkey] UnregisterHotKey on loop exit failed", "error", err, "hotkeyID", id)
		}
	}()

	readyCh <- loopReady{threadID: threadID}

	err = win32.Pump(func(msg *win32.Msg) bool {
		if msg.Message == win32.WMHotkey && int32(msg.WParam) == id {
			go onTrigger()
			return true
		}
		return false
	})
	if err != nil {
		slog.Warn("[hotkey] message loop ended with error", "error", err, "hotkeyID", id)
	}
}
