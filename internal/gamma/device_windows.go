//go:build windows

package gamma

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"tinytools/internal/display"
)

var (
	gdi32  = windows.NewLazySystemDLL("gdi32.dll")
	user32 = windows.NewLazySystemDLL("user32.dll")

	procCreateDCW          = gdi32.NewProc("CreateDCW")
	procDeleteDC           = gdi32.NewProc("DeleteDC")
	procGetDeviceGammaRamp = gdi32.NewProc("GetDeviceGammaRamp")
	procSetDeviceGammaRamp = gdi32.NewProc("SetDeviceGammaRamp")
	procGetDC              = user32.NewProc("GetDC")
	procReleaseDC          = user32.NewProc("ReleaseDC")
)

// Win32 is the GDI-backed Device.
type Win32 struct{}

// NewDevice returns the OS gamma device.
func NewDevice() Device { return Win32{} }

// openDC returns a device context for m and the function that releases it.
// The virtual-desktop fallback monitor uses the screen DC.
func openDC(m display.Monitor) (uintptr, func(), error) {
	if m.DeviceName == "" || m.DeviceName == display.VirtualDeviceName {
		hdc, _, err := procGetDC.Call(0)
		if hdc == 0 {
			return 0, nil, fmt.Errorf("GetDC(screen): %w", err)
		}
		return hdc, func() { procReleaseDC.Call(0, hdc) }, nil
	}

	name, err := windows.UTF16PtrFromString(m.DeviceName)
	if err != nil {
		return 0, nil, fmt.Errorf("device name %q: %w", m.DeviceName, err)
	}
	hdc, _, callErr := procCreateDCW.Call(
		uintptr(unsafe.Pointer(name)),
		uintptr(unsafe.Pointer(name)),
		0,
		0,
	)
	if hdc == 0 {
		return 0, nil, fmt.Errorf("CreateDC(%s): %w", m.DeviceName, callErr)
	}
	return hdc, func() { procDeleteDC.Call(hdc) }, nil
}

// Probe implements Device.
func (d Win32) Probe(m display.Monitor) bool {
	_, err := d.Read(m)
	return err == nil
}

// Read implements Device.
func (Win32) Read(m display.Monitor) (Ramp, error) {
	var r Ramp
	if err := gdi32.Load(); err != nil {
		return r, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	hdc, release, err := openDC(m)
	if err != nil {
		return r, err
	}
	defer release()

	ok, _, callErr := procGetDeviceGammaRamp.Call(hdc, uintptr(unsafe.Pointer(&r)))
	if ok == 0 {
		return r, fmt.Errorf("%w: GetDeviceGammaRamp(%s): %v", ErrUnsupported, m.DeviceName, callErr)
	}
	return r, nil
}

// Write implements Device.
func (Win32) Write(m display.Monitor, r Ramp) error {
	if err := gdi32.Load(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	hdc, release, err := openDC(m)
	if err != nil {
		return err
	}
	defer release()

	ok, _, callErr := procSetDeviceGammaRamp.Call(hdc, uintptr(unsafe.Pointer(&r)))
	if ok == 0 {
		return fmt.Errorf("%w: SetDeviceGammaRamp(%s): %v", ErrUnsupported, m.DeviceName, callErr)
	}
	return nil
}
