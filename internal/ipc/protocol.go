package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"tinytools/internal/userutil"
)

var pipeNamePattern = regexp.MustCompile(`(?i)^\\\\\.\\pipe\\tinytools-[a-z0-9._-]{1,128}$`)

const (
	defaultPipePrefix = `\\.\pipe\tinytools-`
	// PipeEnvVar overrides the pipe name for both server and client.
	PipeEnvVar = "TINYTOOLS_PIPE"
)

// Request is one console command sent to the tray process.
type Request struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Response is the result of one command. ExitCode 0 means success.
type Response struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
}

// Executor handles a request and returns a response.
type Executor interface {
	Execute(req Request) Response
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(Request) Response

// Execute implements Executor.
func (f ExecutorFunc) Execute(req Request) Response { return f(req) }

// OK returns a successful response with formatted stdout.
func OK(format string, args ...any) Response {
	return Response{Stdout: fmt.Sprintf(format, args...)}
}

// Fail returns exit code 1 with formatted stderr.
func Fail(format string, args ...any) Response {
	return Response{ExitCode: 1, Stderr: fmt.Sprintf(format, args...)}
}

// DefaultPipeName returns the pipe path to use. TINYTOOLS_PIPE wins when it
// passes validation; otherwise the name is derived from the current user.
func DefaultPipeName() string {
	if v, ok := trustedPipeNameFromEnv(); ok {
		return v
	}
	return userutil.ObjectName(defaultPipePrefix)
}

func trustedPipeNameFromEnv() (string, bool) {
	value := strings.TrimSpace(os.Getenv(PipeEnvVar))
	if value == "" {
		return "", false
	}
	if !pipeNamePattern.MatchString(value) {
		slog.Warn("[ipc] pipe override rejected: value does not match allowed pattern", "env", PipeEnvVar, "value", value)
		return "", false
	}
	return value, true
}

func decodeRequest(raw []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Request{}, err
	}
	req.Command = strings.ToLower(strings.TrimSpace(req.Command))
	if req.Args == nil {
		req.Args = []string{}
	}
	return req, nil
}

func decodeResponse(raw []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// readFrame returns one newline-terminated frame of at most limit bytes from
// a reader sized limit+1. A final frame without a newline is accepted; an
// empty stream is io.EOF.
func readFrame(r *bufio.Reader, limit int, what string) ([]byte, error) {
	raw, err := r.ReadSlice('\n')
	switch {
	case err == nil:
		return raw, nil
	case errors.Is(err, bufio.ErrBufferFull):
		return nil, fmt.Errorf("%s exceeds %d bytes", what, limit)
	case errors.Is(err, io.EOF) && len(raw) > 0:
		return raw, nil
	default:
		return nil, err
	}
}
