//go:build windows

package win32

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	User32   = windows.NewLazySystemDLL("user32.dll")
	Kernel32 = windows.NewLazySystemDLL("kernel32.dll")
	Shell32  = windows.NewLazySystemDLL("shell32.dll")
	Gdi32    = windows.NewLazySystemDLL("gdi32.dll")

	procGetMessageW        = User32.NewProc("GetMessageW")
	procPeekMessageW       = User32.NewProc("PeekMessageW")
	procTranslateMessage   = User32.NewProc("TranslateMessage")
	procDispatchMessageW   = User32.NewProc("DispatchMessageW")
	procPostThreadMessageW = User32.NewProc("PostThreadMessageW")
	procPostMessageW       = User32.NewProc("PostMessageW")
	procSendMessageW       = User32.NewProc("SendMessageW")
	procDefWindowProcW     = User32.NewProc("DefWindowProcW")
	procRegisterClassExW   = User32.NewProc("RegisterClassExW")
	procCreateWindowExW    = User32.NewProc("CreateWindowExW")
	procDestroyWindow      = User32.NewProc("DestroyWindow")
	procGetKeyState        = User32.NewProc("GetKeyState")
	procGetModuleHandleW   = Kernel32.NewProc("GetModuleHandleW")
	procGetCurrentThreadID = Kernel32.NewProc("GetCurrentThreadId")
)

// Messages used across packages.
const (
	WMDestroy       = 0x0002
	WMPaint         = 0x000F
	WMClose         = 0x0010
	WMQuit          = 0x0012
	WMDisplayChange = 0x007E
	WMNCHitTest     = 0x0084
	WMKeyDown       = 0x0100
	WMSysKeyDown    = 0x0104
	WMCommand       = 0x0111
	WMMouseActivate = 0x0021
	WMMouseWheel    = 0x020A
	WMHotkey        = 0x0312
	WMUser          = 0x0400
	WMApp           = 0x8000

	pmNoRemove = 0x0000
)

// Virtual keys read by GetKeyState.
const (
	VKShift   = 0x10
	VKControl = 0x11
	VKMenu    = 0x12
)

// Point mirrors POINT.
type Point struct {
	X, Y int32
}

// Msg mirrors MSG. The layout must match winuser.h on 32- and 64-bit Windows.
type Msg struct {
	Hwnd     uintptr
	Message  uint32
	WParam   uintptr
	LParam   uintptr
	Time     uint32
	Pt       Point
	LPrivate uint32
}

// WndClassEx mirrors WNDCLASSEXW.
type WndClassEx struct {
	Size       uint32
	Style      uint32
	WndProc    uintptr
	ClsExtra   int32
	WndExtra   int32
	Instance   uintptr
	Icon       uintptr
	Cursor     uintptr
	Background uintptr
	MenuName   *uint16
	ClassName  *uint16
	IconSm     uintptr
}

// callErr turns a failed LazyProc result into an error, substituting a named
// error when the call left no last-error code.
func callErr(name string, err error) error {
	if err == nil || errors.Is(err, syscall.Errno(0)) {
		return fmt.Errorf("%s failed", name)
	}
	return fmt.Errorf("%s: %w", name, err)
}

// Load checks that the core DLLs resolve so later LazyProc calls cannot panic.
func Load() error {
	if err := User32.Load(); err != nil {
		return fmt.Errorf("user32.dll is unavailable: %w", err)
	}
	if err := Kernel32.Load(); err != nil {
		return fmt.Errorf("kernel32.dll is unavailable: %w", err)
	}
	return nil
}

// CurrentThreadID returns the calling OS thread's ID.
func CurrentThreadID() (uint32, error) {
	tid, _, err := procGetCurrentThreadID.Call()
	if tid == 0 {
		return 0, callErr("GetCurrentThreadId", err)
	}
	return uint32(tid), nil
}

// EnsureQueue forces creation of the calling thread's message queue so that
// PostThreadMessage can reach it.
func EnsureQueue() {
	var msg Msg
	procPeekMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0, pmNoRemove)
}

// PostQuit posts WM_QUIT to a thread's queue.
func PostQuit(threadID uint32) error {
	if threadID == 0 {
		return errors.New("cannot post WM_QUIT: threadID is 0")
	}
	res, _, err := procPostThreadMessageW.Call(uintptr(threadID), WMQuit, 0, 0)
	if res == 0 {
		return callErr("PostThreadMessageW", err)
	}
	return nil
}

// PostMessage posts msg to a window without waiting.
func PostMessage(hwnd uintptr, msg uint32, wParam, lParam uintptr) error {
	res, _, err := procPostMessageW.Call(hwnd, uintptr(msg), wParam, lParam)
	if res == 0 {
		return callErr("PostMessageW", err)
	}
	return nil
}

// SendMessage delivers msg synchronously.
func SendMessage(hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr {
	ret, _, _ := procSendMessageW.Call(hwnd, uintptr(msg), wParam, lParam)
	return ret
}

// Pump runs GetMessage/DispatchMessage until WM_QUIT. Messages that onThread
// consumes (returns true) are not dispatched; onThread may be nil.
func Pump(onThread func(*Msg) bool) error {
	for {
		var msg Msg
		ret, _, err := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		switch int32(ret) {
		case -1:
			return callErr("GetMessageW", err)
		case 0:
			return nil
		}
		if onThread != nil && onThread(&msg) {
			continue
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&msg)))
	}
}

// DefWindowProc forwards to DefWindowProcW.
func DefWindowProc(hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr {
	ret, _, _ := procDefWindowProcW.Call(hwnd, uintptr(msg), wParam, lParam)
	return ret
}

// ModuleHandle returns the executable's instance handle.
func ModuleHandle() uintptr {
	h, _, _ := procGetModuleHandleW.Call(0)
	return h
}

// RegisterClass registers a window class backed by wndProc. wndProc must be
// a callback created once with syscall.NewCallback.
func RegisterClass(name string, wndProc uintptr, background uintptr) error {
	className, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return err
	}
	wc := WndClassEx{
		WndProc:    wndProc,
		Instance:   ModuleHandle(),
		Background: background,
		ClassName:  className,
	}
	wc.Size = uint32(unsafe.Sizeof(wc))
	atom, _, callErrno := procRegisterClassExW.Call(uintptr(unsafe.Pointer(&wc)))
	if atom == 0 {
		return callErr("RegisterClassExW("+name+")", callErrno)
	}
	return nil
}

// CreateWindow wraps CreateWindowExW.
func CreateWindow(exStyle uint32, class, title string, style uint32, x, y, w, h int32, parent uintptr) (uintptr, error) {
	classPtr, err := windows.UTF16PtrFromString(class)
	if err != nil {
		return 0, err
	}
	titlePtr, err := windows.UTF16PtrFromString(title)
	if err != nil {
		return 0, err
	}
	hwnd, _, callErrno := procCreateWindowExW.Call(
		uintptr(exStyle),
		uintptr(unsafe.Pointer(classPtr)),
		uintptr(unsafe.Pointer(titlePtr)),
		uintptr(style),
		uintptr(x), uintptr(y), uintptr(w), uintptr(h),
		parent, 0, ModuleHandle(), 0,
	)
	if hwnd == 0 {
		return 0, callErr("CreateWindowExW("+class+")", callErrno)
	}
	return hwnd, nil
}

// DestroyWindow wraps DestroyWindow.
func DestroyWindow(hwnd uintptr) error {
	res, _, err := procDestroyWindow.Call(hwnd)
	if res == 0 {
		return callErr("DestroyWindow", err)
	}
	return nil
}

// KeyDown reports whether vk is held according to GetKeyState.
func KeyDown(vk int) bool {
	ret, _, _ := procGetKeyState.Call(uintptr(vk))
	return uint16(ret)&0x8000 != 0
}
