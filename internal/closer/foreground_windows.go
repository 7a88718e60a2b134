//go:build windows

package closer

import (
	"path/filepath"

	"golang.org/x/sys/windows"

	"tinytools/internal/win32"
)

// foregroundProcess returns the foreground window and its executable name.
func foregroundProcess() (uintptr, string, bool) {
	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return 0, "", false
	}
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil || pid == 0 {
		return 0, "", false
	}
	proc, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return 0, "", false
	}
	defer windows.CloseHandle(proc)

	buf := make([]uint16, windows.MAX_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(proc, 0, &buf[0], &size); err != nil {
		return 0, "", false
	}
	return uintptr(hwnd), filepath.Base(windows.UTF16ToString(buf[:size])), true
}

// closeWindow posts WM_CLOSE so the hook thread never waits on the target.
func closeWindow(hwnd uintptr) error {
	return win32.PostMessage(hwnd, win32.WMClose, 0, 0)
}
