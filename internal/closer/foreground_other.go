//go:build !windows

package closer

import "errors"

func foregroundProcess() (uintptr, string, bool) { return 0, "", false }

func closeWindow(uintptr) error { return errors.New("closing windows requires Windows") }
