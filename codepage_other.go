//go:build !windows

package main

// ensureConsole is a no-op; the process already has its terminal.
func ensureConsole() error { return nil }
