//go:build windows

package inputhook

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"tinytools/internal/win32"
)

var (
	procSetWindowsHookExW   = win32.User32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = win32.User32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = win32.User32.NewProc("CallNextHookEx")
)

const (
	whKeyboardLL = 13
	whMouseLL    = 14

	hookStopTimeout = 2 * time.Second
)

// msllHookStruct mirrors MSLLHOOKSTRUCT.
type msllHookStruct struct {
	Pt        win32.Point
	MouseData uint32
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

// kbdllHookStruct mirrors KBDLLHOOKSTRUCT.
type kbdllHookStruct struct {
	VKCode    uint32
	ScanCode  uint32
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

// Low-level hook procedures receive no user data, so the installed owner of
// each hook type is published here. At most one of each is installed.
var (
	activeWheel    atomic.Pointer[MouseWheel]
	activeKeyboard atomic.Pointer[KeyboardHook]

	callbacksOnce sync.Once
	mouseCallback uintptr
	keyCallback   uintptr
)

func initCallbacks() {
	callbacksOnce.Do(func() {
		mouseCallback = syscall.NewCallback(mouseProc)
		keyCallback = syscall.NewCallback(keyboardProc)
	})
}

func callNext(nCode int32, wParam, lParam uintptr) uintptr {
	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

func mouseProc(nCode int32, wParam, lParam uintptr) uintptr {
	return observeThenChain(func() {
		if nCode < 0 || wParam != win32.WMMouseWheel {
			return
		}
		w := activeWheel.Load()
		if w == nil {
			return
		}
		info := (*msllHookStruct)(unsafe.Pointer(lParam))
		w.publish(WheelEvent{
			Delta: Notches(int16(info.MouseData >> 16)),
			Ctrl:  win32.KeyDown(win32.VKControl),
			Shift: win32.KeyDown(win32.VKShift),
			Alt:   win32.KeyDown(win32.VKMenu),
		})
	}, func() uintptr { return callNext(nCode, wParam, lParam) })
}

func keyboardProc(nCode int32, wParam, lParam uintptr) uintptr {
	if nCode >= 0 {
		if k := activeKeyboard.Load(); k != nil {
			info := (*kbdllHookStruct)(unsafe.Pointer(lParam))
			ev := KeyEvent{
				VKey:  info.VKCode,
				Down:  wParam == win32.WMKeyDown || wParam == win32.WMSysKeyDown,
				Ctrl:  win32.KeyDown(win32.VKControl),
				Shift: win32.KeyDown(win32.VKShift),
				Alt:   win32.KeyDown(win32.VKMenu),
			}
			if k.filter(ev) {
				return 1
			}
		}
	}
	return callNext(nCode, wParam, lParam)
}

// hookThread owns one installed hook and the message loop that services it.
type hookThread struct {
	threadID uint32
	doneCh   chan struct{}
}

type hookReady struct {
	threadID uint32
	err      error
}

func startHookThread(idHook int, proc uintptr) (*hookThread, error) {
	if err := win32.Load(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHookInstall, err)
	}
	readyCh := make(chan hookReady, 1)
	doneCh := make(chan struct{})
	go runHookLoop(idHook, proc, readyCh, doneCh)

	ready := <-readyCh
	if ready.err != nil {
		return nil, ready.err
	}
	return &hookThread{threadID: ready.threadID, doneCh: doneCh}, nil
}

func runHookLoop(idHook int, proc uintptr, readyCh chan<- hookReady, doneCh chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(doneCh)

	threadID, err := win32.CurrentThreadID()
	if err != nil {
		readyCh <- hookReady{err: err}
		return
	}
	win32.EnsureQueue()

	hook, _, callErr := procSetWindowsHookExW.Call(uintptr(idHook), proc, win32.ModuleHandle(), 0)
	if hook == 0 {
		readyCh <- hookReady{err: fmt.Errorf("%w: SetWindowsHookEx(%d): %v", ErrHookInstall, idHook, callErr)}
		return
	}
	defer func() {
		if res, _, err := procUnhookWindowsHookEx.Call(hook); res == 0 {
			slog.Warn("[hook] UnhookWindowsHookEx failed", "error", err, "id", idHook)
		}
	}()

	readyCh <- hookReady{threadID: threadID}

	if err := win32.Pump(nil); err != nil {
		slog.Warn("[hook] message loop ended with error", "error", err, "id", idHook)
	}
}

func (h *hookThread) stop() error {
	stopErr := win32.PostQuit(h.threadID)

	timer := time.NewTimer(hookStopTimeout)
	defer timer.Stop()
	select {
	case <-h.doneCh:
	case <-timer.C:
		slog.Warn("[hook] message loop stop timed out, thread may leak", "threadID", h.threadID)
		stopErr = errors.Join(stopErr, errors.New("hook message loop stop timed out"))
	}
	return stopErr
}

// Start installs the wheel hook. Calling Start while installed is a no-op.
func (w *MouseWheel) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.hook != nil {
		return nil
	}
	if !activeWheel.CompareAndSwap(nil, w) {
		return fmt.Errorf("%w: another wheel interceptor is installed", ErrHookInstall)
	}
	initCallbacks()
	h, err := startHookThread(whMouseLL, mouseCallback)
	if err != nil {
		activeWheel.Store(nil)
		return err
	}
	w.hook = h
	slog.Info("[hook] wheel interceptor installed")
	return nil
}

// Stop uninstalls the wheel hook. Calling Stop while idle is a no-op.
func (w *MouseWheel) Stop() error {
	w.mu.Lock()
	h := w.hook
	w.hook = nil
	w.mu.Unlock()
	if h == nil {
		return nil
	}
	activeWheel.CompareAndSwap(w, nil)
	err := h.stop()
	slog.Info("[hook] wheel interceptor removed")
	return err
}

// Start installs the keyboard hook. Calling Start while installed is a no-op.
func (k *KeyboardHook) Start() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.hook != nil {
		return nil
	}
	if !activeKeyboard.CompareAndSwap(nil, k) {
		return fmt.Errorf("%w: another keyboard hook is installed", ErrHookInstall)
	}
	initCallbacks()
	h, err := startHookThread(whKeyboardLL, keyCallback)
	if err != nil {
		activeKeyboard.Store(nil)
		return err
	}
	k.hook = h
	return nil
}

// Stop uninstalls the keyboard hook.
func (k *KeyboardHook) Stop() error {
	k.mu.Lock()
	h := k.hook
	k.hook = nil
	k.mu.Unlock()
	if h == nil {
		return nil
	}
	activeKeyboard.CompareAndSwap(k, nil)
	return h.stop()
}
