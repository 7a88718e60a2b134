//go:build windows

package uiloop

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"tinytools/internal/win32"
)

const (
	className = "TinyToolsUILoop"
	wmRun     = win32.WMApp + 1

	stopTimeout = 2 * time.Second
)

// Window procedures get no user pointer without SetWindowLongPtr, and only
// one loop exists per process, so the running loop is published here.
var (
	current atomic.Pointer[Loop]

	registerOnce sync.Once
	registerErr  error
)

func loopWndProc(hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr {
	switch msg {
	case wmRun:
		if l := current.Load(); l != nil {
			l.drain()
		}
		return 0
	case win32.WMDisplayChange:
		if l := current.Load(); l != nil {
			slog.Info("[ui] display configuration changed")
			l.displayChanged()
		}
		return 0
	}
	return win32.DefWindowProc(hwnd, msg, wParam, lParam)
}

type native struct {
	hwnd     uintptr
	threadID uint32
}

type ready struct {
	n   *native
	err error
}

func startNative(l *Loop, doneCh chan struct{}) (*native, error) {
	if err := win32.Load(); err != nil {
		return nil, err
	}
	if !current.CompareAndSwap(nil, l) && current.Load() != l {
		return nil, errors.New("another ui loop is running")
	}
	registerOnce.Do(func() {
		registerErr = win32.RegisterClass(className, syscall.NewCallback(loopWndProc), 0)
	})
	if registerErr != nil {
		current.Store(nil)
		return nil, registerErr
	}

	readyCh := make(chan ready, 1)
	go run(readyCh, doneCh)
	r := <-readyCh
	if r.err != nil {
		current.Store(nil)
		return nil, r.err
	}
	return r.n, nil
}

func run(readyCh chan<- ready, doneCh chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(doneCh)

	threadID, err := win32.CurrentThreadID()
	if err != nil {
		readyCh <- ready{err: err}
		return
	}
	win32.EnsureQueue()

	// A top-level hidden window, not HWND_MESSAGE, so that WM_DISPLAYCHANGE
	// broadcasts reach it.
	hwnd, err := win32.CreateWindow(0, className, "TinyTools", 0, 0, 0, 0, 0, 0)
	if err != nil {
		readyCh <- ready{err: fmt.Errorf("create ui loop window: %w", err)}
		return
	}
	defer func() {
		if err := win32.DestroyWindow(hwnd); err != nil {
			slog.Debug("[ui] destroy loop window failed", "error", err)
		}
	}()

	readyCh <- ready{n: &native{hwnd: hwnd, threadID: threadID}}

	if err := win32.Pump(nil); err != nil {
		slog.Warn("[ui] message loop ended with error", "error", err)
	}
}

func (n *native) wake() error {
	return win32.PostMessage(n.hwnd, wmRun, 0, 0)
}

func (n *native) quit(doneCh chan struct{}) error {
	defer current.Store(nil)
	stopErr := win32.PostQuit(n.threadID)

	timer := time.NewTimer(stopTimeout)
	defer timer.Stop()
	select {
	case <-doneCh:
	case <-timer.C:
		slog.Warn("[ui] message loop stop timed out", "threadID", n.threadID)
		stopErr = errors.Join(stopErr, errors.New("ui loop stop timed out"))
	}
	return stopErr
}
