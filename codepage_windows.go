//go:build windows

package main

import (
	"fmt"
	"os"

	"tinytools/internal/win32"
)

const cpUTF8 = 65001

var (
	procSetConsoleOutputCP = win32.Kernel32.NewProc("SetConsoleOutputCP")
	procSetConsoleCP       = win32.Kernel32.NewProc("SetConsoleCP")
	procGetConsoleWindow   = win32.Kernel32.NewProc("GetConsoleWindow")
	procAttachConsole      = win32.Kernel32.NewProc("AttachConsole")
	procAllocConsole       = win32.Kernel32.NewProc("AllocConsole")
)

// attachParentProcess is ATTACH_PARENT_PROCESS, (DWORD)-1.
const attachParentProcess = uintptr(^uint32(0))

func setConsoleUTF8() {
	procSetConsoleOutputCP.Call(cpUTF8)
	procSetConsoleCP.Call(cpUTF8)
}

// ensureConsole gives the GUI-subsystem binary a console for --console and
// --debug: the launching terminal when there is one, a new window otherwise.
// The standard handles are rebound because they were invalid at startup.
func ensureConsole() error {
	if hwnd, _, _ := procGetConsoleWindow.Call(); hwnd != 0 {
		setConsoleUTF8()
		return nil
	}
	if ok, _, _ := procAttachConsole.Call(attachParentProcess); ok == 0 {
		if ok, _, err := procAllocConsole.Call(); ok == 0 {
			return fmt.Errorf("AllocConsole: %w", err)
		}
	}
	out, err := os.OpenFile("CONOUT$", os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open console output: %w", err)
	}
	in, err := os.OpenFile("CONIN$", os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open console input: %w", err)
	}
	os.Stdout, os.Stderr, os.Stdin = out, out, in
	setConsoleUTF8()
	return nil
}
