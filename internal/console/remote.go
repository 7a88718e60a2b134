package console

import (
	"log/slog"

	"tinytools/internal/ipc"
)

// sendFn is a test seam for the pipe client.
var sendFn = ipc.Send

// Remote returns an Executor that forwards each command to the tray process
// listening on pipeName. Transport failures become exit code 1 responses.
func Remote(pipeName string) ipc.Executor {
	return ipc.ExecutorFunc(func(req ipc.Request) ipc.Response {
		resp, err := sendFn(pipeName, req)
		if err != nil {
			if ipc.IsConnectionError(err) {
				slog.Debug("[ipc] tray process unreachable", "pipe", pipeName, "error", err)
				return ipc.Fail("TinyTools is not running (%s)", pipeName)
			}
			return ipc.Fail("%s: %v", req.Command, err)
		}
		return resp
	})
}
