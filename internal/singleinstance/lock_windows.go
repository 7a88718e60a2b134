//go:build windows

package singleinstance

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sys/windows"
)

// acquire creates the named mutex owned by this process. The kernel drops
// it when the process exits, so a crashed tray never blocks the next start.
func acquire(name string) (func() error, error) {
	name16, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("invalid mutex name %q: %w", name, err)
	}
	h, err := windows.CreateMutex(nil, true, name16)
	if err != nil {
		closeQuietly(h)
		if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("CreateMutex %q: %w", name, err)
	}
	return func() error {
		return windows.CloseHandle(h)
	}, nil
}

func closeQuietly(h windows.Handle) {
	if h == 0 {
		return
	}
	if err := windows.CloseHandle(h); err != nil {
		slog.Debug("[DEBUG-SINGLE] close mutex handle failed", "error", err)
	}
}
