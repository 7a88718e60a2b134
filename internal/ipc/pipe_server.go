package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"runtime/debug"
	"sync"
	"time"
)

const (
	// Commands that wait on the ui loop finish well inside this.
	commandDeadline      = 30 * time.Second
	maxPipeRequestBytes  = 16 * 1024
	maxConcurrentClients = 8

	acceptBackoffMin = 10 * time.Millisecond
	acceptBackoffMax = time.Second
)

var errServerBusy = errors.New("TinyTools is busy with other console clients, try again")

// PipeServer serves console commands over a per-user named pipe. Each
// connection carries exactly one request line and one response line.
type PipeServer struct {
	pipeName string
	exec     Executor
	listen   func(name string) (net.Listener, error)

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	running  bool

	clients chan struct{}
	wg      sync.WaitGroup
}

// NewPipeServer returns a stopped server for pipeName; empty means
// DefaultPipeName.
func NewPipeServer(pipeName string, exec Executor) *PipeServer {
	if pipeName == "" {
		pipeName = DefaultPipeName()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &PipeServer{
		pipeName: pipeName,
		exec:     exec,
		listen:   listenPipe,
		ctx:      ctx,
		cancel:   cancel,
		clients:  make(chan struct{}, maxConcurrentClients),
	}
}

func (s *PipeServer) PipeName() string { return s.pipeName }

// Start opens the pipe and begins accepting clients.
func (s *PipeServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.running:
		return errors.New("pipe server already started")
	case s.exec == nil:
		return errors.New("pipe server requires an executor")
	}

	ln, err := s.listen(s.pipeName)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.pipeName, err)
	}
	s.listener = ln
	s.running = true
	s.wg.Go(func() { s.accept(ln) })
	return nil
}

// Stop closes the listener and waits for in-flight commands.
func (s *PipeServer) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()

	s.cancel()
	var err error
	if ln != nil {
		if closeErr := ln.Close(); closeErr != nil {
			err = fmt.Errorf("close pipe listener: %w", closeErr)
		}
	}
	s.wg.Wait()
	return err
}

func (s *PipeServer) accept(ln net.Listener) {
	backoff := acceptBackoffMin
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			slog.Debug("[ipc] accept failed", "error", err, "retryIn", backoff)
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, acceptBackoffMax)
			continue
		}
		backoff = acceptBackoffMin

		select {
		case s.clients <- struct{}{}:
		default:
			slog.Warn("[ipc] too many console clients, rejecting connection", "limit", maxConcurrentClients)
			reply(conn, Fail("%v\n", errServerBusy))
			closeConn(conn)
			continue
		}
		s.wg.Go(func() {
			defer func() { <-s.clients }()
			s.serve(conn)
		})
	}
}

// serve answers a single request on conn and closes it.
func (s *PipeServer) serve(conn net.Conn) {
	defer closeConn(conn)
	if err := conn.SetDeadline(time.Now().Add(commandDeadline)); err != nil {
		slog.Warn("[ipc] failed to set connection deadline", "error", err)
		return
	}

	raw, err := readRequestFrame(bufio.NewReaderSize(conn, maxPipeRequestBytes+1))
	if errors.Is(err, io.EOF) {
		slog.Debug("[ipc] client closed without a request")
		return
	}
	var req Request
	if err == nil {
		req, err = decodeRequest(raw)
	}
	if err != nil {
		reply(conn, Fail("invalid request: %v\n", err))
		return
	}

	started := time.Now()
	resp := s.run(req)
	slog.Debug("[ipc] command served",
		"command", req.Command, "args", req.Args, "exitCode", resp.ExitCode, "elapsed", time.Since(started))
	reply(conn, resp)
}

// run keeps a panicking command from taking the server down.
func (s *PipeServer) run(req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[DEBUG-PANIC] console command panicked",
				"command", req.Command, "panic", r, "stack", string(debug.Stack()))
			resp = Fail("internal error while running %q\n", req.Command)
		}
	}()
	return s.exec.Execute(req)
}

// reply writes resp as one JSON line.
func reply(conn net.Conn, resp Response) {
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		slog.Debug("[ipc] failed to write response", "error", err, "exitCode", resp.ExitCode)
	}
}

func closeConn(conn net.Conn) {
	if err := conn.Close(); err != nil {
		slog.Debug("[ipc] connection close failed", "error", err)
	}
}

func readRequestFrame(r *bufio.Reader) ([]byte, error) {
	return readFrame(r, maxPipeRequestBytes, "request")
}
