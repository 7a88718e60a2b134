// Package win32 holds the user32/kernel32/shell32 declarations shared by the
// packages that own windows, hooks or message loops.
package win32
