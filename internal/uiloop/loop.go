// Package uiloop runs the process's single UI thread. Windows, overlays and
// the dimming engine are only touched from functions handed to the loop.
package uiloop

import (
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ErrStopped is returned by Do when the loop is not running.
var ErrStopped = errors.New("ui loop is not running")

// Options configures a Loop.
type Options struct {
	// OnDisplayChange runs on the loop thread when the monitor layout changes.
	OnDisplayChange func()
}

// Loop serializes work onto one OS thread.
type Loop struct {
	opts Options

	mu      sync.Mutex
	queue   []func()
	running bool
	doneCh  chan struct{}
	native  *native
}

// New returns a stopped Loop.
func New(opts Options) *Loop {
	return &Loop{opts: opts}
}

// Start launches the loop thread and waits until it can accept work.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return nil
	}
	doneCh := make(chan struct{})
	n, err := startNative(l, doneCh)
	if err != nil {
		return err
	}
	l.native = n
	l.doneCh = doneCh
	l.running = true
	return nil
}

// Stop ends the loop and waits for its thread to exit. Queued work that has
// not run yet is dropped.
func (l *Loop) Stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = false
	n, doneCh := l.native, l.doneCh
	l.queue = nil
	l.mu.Unlock()

	return n.quit(doneCh)
}

// Done is closed when the loop thread exits.
func (l *Loop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.doneCh == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return l.doneCh
}

// Post queues fn to run on the loop thread and returns immediately. It is
// safe to call from any goroutine, including OS hook callbacks.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		slog.Debug("[ui] post dropped, loop not running")
		return false
	}
	l.queue = append(l.queue, fn)
	n := l.native
	l.mu.Unlock()

	if err := n.wake(); err != nil {
		slog.Warn("[ui] wake failed", "error", err)
	}
	return true
}

// Do runs fn on the loop thread and waits for it. It must not be called
// from the loop thread itself.
func (l *Loop) Do(fn func()) error {
	l.mu.Lock()
	doneCh := l.doneCh
	l.mu.Unlock()

	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-doneCh:
		return ErrStopped
	}
}

// drain runs every queued function on the loop thread.
func (l *Loop) drain() {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, fn := range batch {
		runGuarded(fn)
	}
}

func (l *Loop) displayChanged() {
	if l.opts.OnDisplayChange != nil {
		runGuarded(l.opts.OnDisplayChange)
	}
}

func runGuarded(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[DEBUG-PANIC] ui task panicked",
				"panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}
