package ipc

import (
	"bufio"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestReadRequestFrameWithinLimit(t *testing.T) {
	payload := `{"command":"list"}` + "\n"
	reader := bufio.NewReaderSize(strings.NewReader(payload), maxPipeRequestBytes+1)

	raw, err := readRequestFrame(reader)
	if err != nil {
		t.Fatalf("readRequestFrame() error = %v", err)
	}
	if string(raw) != payload {
		t.Fatalf("readRequestFrame() = %q, want %q", string(raw), payload)
	}
}

func TestReadRequestFrameRejectsOversizedRequest(t *testing.T) {
	oversized := strings.Repeat("a", maxPipeRequestBytes+1) + "\n"
	reader := bufio.NewReaderSize(strings.NewReader(oversized), maxPipeRequestBytes+1)

	if _, err := readRequestFrame(reader); err == nil {
		t.Fatalf("readRequestFrame() expected size error")
	}
}

func TestReadRequestFrameAcceptsEOFWithoutDelimiter(t *testing.T) {
	payload := `{"command":"status"}`
	reader := bufio.NewReaderSize(strings.NewReader(payload), maxPipeRequestBytes+1)

	raw, err := readRequestFrame(reader)
	if err != nil {
		t.Fatalf("readRequestFrame() error = %v", err)
	}
	if string(raw) != payload {
		t.Fatalf("readRequestFrame() = %q, want %q", string(raw), payload)
	}
}

func TestReadRequestFrameReturnsEOFOnEmptyInput(t *testing.T) {
	reader := bufio.NewReaderSize(strings.NewReader(""), maxPipeRequestBytes+1)

	if _, err := readRequestFrame(reader); err != io.EOF {
		t.Fatalf("readRequestFrame() error = %v, want io.EOF", err)
	}
}

// startLoopbackServer runs a PipeServer on a TCP loopback listener and points
// the client dialer at it.
func startLoopbackServer(t *testing.T, exec Executor) *PipeServer {
	t.Helper()
	var addr atomic.Value
	srv := NewPipeServer(`\\.\pipe\tinytools-test`, exec)
	srv.listen = func(string) (net.Listener, error) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err == nil {
			addr.Store(ln.Addr().String())
		}
		return ln, err
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	originalDial := dialFn
	dialFn = func(_ string, timeout time.Duration) (net.Conn, error) {
		return net.DialTimeout("tcp", addr.Load().(string), timeout)
	}
	t.Cleanup(func() {
		dialFn = originalDial
		if err := srv.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})
	return srv
}

func TestSendRoundTrip(t *testing.T) {
	seen := make(chan Request, 1)
	startLoopbackServer(t, ExecutorFunc(func(req Request) Response {
		seen <- req
		return OK("brightness %s%%\n", req.Args[0])
	}))

	resp, err := Send("", Request{Command: "Brightness", Args: []string{"40"}})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.ExitCode != 0 || resp.Stdout != "brightness 40%\n" {
		t.Fatalf("Send() = %+v", resp)
	}
	if got := <-seen; got.Command != "brightness" {
		t.Fatalf("server saw command %q, want normalized brightness", got.Command)
	}
}

func TestServerRecoversFromHandlerPanic(t *testing.T) {
	startLoopbackServer(t, ExecutorFunc(func(req Request) Response {
		if req.Command == "boom" {
			panic("handler exploded")
		}
		return OK("fine\n")
	}))

	resp, err := Send("", Request{Command: "boom"})
	if err != nil {
		t.Fatalf("Send(boom) error = %v", err)
	}
	if resp.ExitCode != 1 || !strings.Contains(resp.Stderr, "internal error") {
		t.Fatalf("Send(boom) = %+v, want internal error", resp)
	}

	resp, err = Send("", Request{Command: "ok"})
	if err != nil || resp.Stdout != "fine\n" {
		t.Fatalf("server unusable after panic: %+v, %v", resp, err)
	}
}

func TestServerRejectsMalformedRequest(t *testing.T) {
	startLoopbackServer(t, ExecutorFunc(func(Request) Response {
		t.Error("executor called for malformed request")
		return Response{}
	}))

	resp, err := sendRaw(t, "not json\n")
	if err != nil {
		t.Fatalf("sendRaw() error = %v", err)
	}
	if resp.ExitCode != 1 || !strings.Contains(resp.Stderr, "invalid request") {
		t.Fatalf("response = %+v", resp)
	}
}

func sendRaw(t *testing.T, payload string) (Response, error) {
	t.Helper()
	conn, err := dialFn("", time.Second)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(payload)); err != nil {
		return Response{}, err
	}
	raw, err := readDelimitedFrame(bufio.NewReader(conn), maxPipeResponseBytes)
	if err != nil {
		return Response{}, err
	}
	return decodeResponse(raw)
}

func TestStartValidation(t *testing.T) {
	if err := NewPipeServer("x", nil).Start(); err == nil {
		t.Fatal("Start() without router expected error")
	}

	srv := NewPipeServer("x", ExecutorFunc(func(Request) Response { return Response{} }))
	srv.listen = func(string) (net.Listener, error) { return nil, errors.New("pipe busy") }
	if err := srv.Start(); err == nil || !strings.Contains(err.Error(), "pipe busy") {
		t.Fatalf("Start() error = %v, want listen error", err)
	}
	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop() on unstarted server error = %v", err)
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "dial op", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: true},
		{name: "read op", err: &net.OpError{Op: "read", Err: errors.New("reset")}, want: false},
		{name: "open path", err: &os.PathError{Op: "open", Path: `\\.\pipe\x`, Err: os.ErrNotExist}, want: true},
		{name: "not exist", err: os.ErrNotExist, want: true},
		{name: "other", err: errors.New("decode"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConnectionError(tt.err); got != tt.want {
				t.Fatalf("IsConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
