//go:build !windows

package main

import (
	"errors"
	"log/slog"
)

var errNoShell = errors.New("requires the Windows shell")

// showMessage logs instead; there is no desktop to show a box on.
func showMessage(title, text string) error {
	slog.Warn("[app] "+title, "message", text)
	return nil
}

func shellOpen(string) error { return errNoShell }
