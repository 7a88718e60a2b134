//go:build windows

package overlay

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"tinytools/internal/display"
	"tinytools/internal/win32"
)

var (
	procSetLayeredWindowAttributes = win32.User32.NewProc("SetLayeredWindowAttributes")
	procShowWindow                 = win32.User32.NewProc("ShowWindow")
	procSetWindowPos               = win32.User32.NewProc("SetWindowPos")
	procBeginPaint                 = win32.User32.NewProc("BeginPaint")
	procEndPaint                   = win32.User32.NewProc("EndPaint")
	procFillRect                   = win32.User32.NewProc("FillRect")
	procGetStockObject             = win32.Gdi32.NewProc("GetStockObject")
)

const (
	className = "TinyToolsDimOverlay"

	wsPopup = 0x80000000

	wsExTopmost     = 0x00000008
	wsExTransparent = 0x00000020
	wsExToolWindow  = 0x00000080
	wsExLayered     = 0x00080000
	wsExNoActivate  = 0x08000000

	lwaAlpha         = 0x2
	swShowNoActivate = 4
	blackBrush       = 4
	maNoActivate     = 3
	htTransparent    = ^uintptr(0) // -1

	swpNoActivate = 0x0010
	swpShowWindow = 0x0040
)

var hwndTopmost = ^uintptr(0) // (HWND)-1

type rect32 struct{ Left, Top, Right, Bottom int32 }

type paintStruct struct {
	HDC       uintptr
	Erase     int32
	Paint     rect32
	Restore   int32
	IncUpdate int32
	Reserved  [32]byte
}

var (
	registerOnce sync.Once
	registerErr  error
)

func overlayWndProc(hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr {
	switch msg {
	case win32.WMPaint:
		var ps paintStruct
		hdc, _, _ := procBeginPaint.Call(hwnd, uintptr(unsafe.Pointer(&ps)))
		if hdc != 0 {
			brush, _, _ := procGetStockObject.Call(blackBrush)
			procFillRect.Call(hdc, uintptr(unsafe.Pointer(&ps.Paint)), brush)
		}
		procEndPaint.Call(hwnd, uintptr(unsafe.Pointer(&ps)))
		return 0
	case win32.WMMouseActivate:
		return maNoActivate
	case win32.WMNCHitTest:
		return htTransparent
	}
	return win32.DefWindowProc(hwnd, msg, wParam, lParam)
}

type nativeSurface struct{}

func newSurface() surface { return nativeSurface{} }

func registerClass() error {
	registerOnce.Do(func() {
		if registerErr = win32.Load(); registerErr != nil {
			return
		}
		brush, _, _ := procGetStockObject.Call(blackBrush)
		registerErr = win32.RegisterClass(className, syscall.NewCallback(overlayWndProc), brush)
	})
	return registerErr
}

func (nativeSurface) create(m display.Monitor, opacity uint8) (uintptr, error) {
	if err := registerClass(); err != nil {
		return 0, err
	}
	b := m.Bounds
	hwnd, err := win32.CreateWindow(
		wsExLayered|wsExTransparent|wsExToolWindow|wsExTopmost|wsExNoActivate,
		className, "", wsPopup,
		b.Left, b.Top, b.Width(), b.Height(), 0,
	)
	if err != nil {
		return 0, err
	}
	if err := setAlpha(hwnd, opacity); err != nil {
		_ = win32.DestroyWindow(hwnd)
		return 0, err
	}
	procShowWindow.Call(hwnd, swShowNoActivate)
	return hwnd, nil
}

func (nativeSurface) update(hwnd uintptr, b display.Rect, opacity uint8) error {
	if err := setAlpha(hwnd, opacity); err != nil {
		return err
	}
	res, _, err := procSetWindowPos.Call(hwnd, hwndTopmost,
		uintptr(b.Left), uintptr(b.Top), uintptr(b.Width()), uintptr(b.Height()),
		swpNoActivate|swpShowWindow)
	if res == 0 {
		return fmt.Errorf("SetWindowPos: %w", err)
	}
	return nil
}

func (nativeSurface) destroy(hwnd uintptr) error {
	return win32.DestroyWindow(hwnd)
}

func setAlpha(hwnd uintptr, opacity uint8) error {
	res, _, err := procSetLayeredWindowAttributes.Call(hwnd, 0, uintptr(opacity), lwaAlpha)
	if res == 0 {
		return fmt.Errorf("SetLayeredWindowAttributes: %w", err)
	}
	return nil
}
