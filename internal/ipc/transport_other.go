//go:build !windows

package ipc

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// socketPath maps a pipe name onto a unix socket in the temp directory.
func socketPath(pipeName string) string {
	base := pipeName[strings.LastIndexAny(pipeName, `\/`)+1:]
	return filepath.Join(os.TempDir(), base+".sock")
}

func listenPipe(pipeName string) (net.Listener, error) {
	path := socketPath(pipeName)
	// A stale socket from a crashed process blocks Listen.
	_ = os.Remove(path)
	return net.Listen("unix", path)
}

func dialPipe(pipeName string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", socketPath(pipeName), timeout)
}
