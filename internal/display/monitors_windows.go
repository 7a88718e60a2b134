//go:build windows

package display

import (
	"log/slog"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procEnumDisplayMonitors = user32.NewProc("EnumDisplayMonitors")
	procGetMonitorInfoW     = user32.NewProc("GetMonitorInfoW")
	procGetSystemMetrics    = user32.NewProc("GetSystemMetrics")
)

const (
	smXVirtualScreen  = 76
	smYVirtualScreen  = 77
	smCXVirtualScreen = 78
	smCYVirtualScreen = 79

	monitorInfoFPrimary = 0x1
)

type rect32 struct {
	Left, Top, Right, Bottom int32
}

// monitorInfoExW mirrors MONITORINFOEXW.
type monitorInfoExW struct {
	Size    uint32
	Monitor rect32
	Work    rect32
	Flags   uint32
	Device  [32]uint16
}

// Win32 enumerates monitors with EnumDisplayMonitors.
type Win32 struct{}

// NewProvider returns the OS topology provider.
func NewProvider() Provider { return Win32{} }

// enumProc is created once; syscall callbacks are a finite process resource.
var (
	enumMu     sync.Mutex
	enumResult []Monitor
	enumProc   uintptr
	enumOnce   sync.Once
)

func monitorEnumCallback(hMonitor, hdc, lprc, data uintptr) uintptr {
	var mi monitorInfoExW
	mi.Size = uint32(unsafe.Sizeof(mi))
	ret, _, _ := procGetMonitorInfoW.Call(hMonitor, uintptr(unsafe.Pointer(&mi)))
	if ret == 0 {
		return 1
	}
	enumResult = append(enumResult, Monitor{
		Handle:     hMonitor,
		DeviceName: windows.UTF16ToString(mi.Device[:]),
		Bounds:     Rect(mi.Monitor),
		WorkArea:   Rect(mi.Work),
		Primary:    mi.Flags&monitorInfoFPrimary != 0,
	})
	return 1
}

// Enumerate implements Provider. A failing or empty enumeration degrades to a
// single monitor spanning the virtual desktop.
func (Win32) Enumerate() []Monitor {
	if err := user32.Load(); err != nil {
		slog.Warn("[display] user32.dll unavailable, using virtual desktop", "error", err)
		return Fallback(Rect{})
	}
	enumOnce.Do(func() {
		enumProc = syscall.NewCallback(monitorEnumCallback)
	})

	enumMu.Lock()
	defer enumMu.Unlock()
	enumResult = nil

	ret, _, err := procEnumDisplayMonitors.Call(0, 0, enumProc, 0)
	monitors := enumResult
	enumResult = nil
	if ret == 0 {
		slog.Warn("[display] EnumDisplayMonitors failed, using virtual desktop", "error", err)
		return Fallback(virtualBounds())
	}
	if len(monitors) == 0 {
		slog.Warn("[display] no monitors reported, using virtual desktop")
		return Fallback(virtualBounds())
	}
	return monitors
}

func virtualBounds() Rect {
	x, _, _ := procGetSystemMetrics.Call(smXVirtualScreen)
	y, _, _ := procGetSystemMetrics.Call(smYVirtualScreen)
	w, _, _ := procGetSystemMetrics.Call(smCXVirtualScreen)
	h, _, _ := procGetSystemMetrics.Call(smCYVirtualScreen)
	return Rect{
		Left:   int32(x),
		Top:    int32(y),
		Right:  int32(x) + int32(w),
		Bottom: int32(y) + int32(h),
	}
}
