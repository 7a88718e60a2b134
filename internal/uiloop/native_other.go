//go:build !windows

package uiloop

import "runtime"

// native drives the loop with a wake channel on a locked goroutine.
type native struct {
	wakeCh chan struct{}
	quitCh chan struct{}
}

func startNative(l *Loop, doneCh chan struct{}) (*native, error) {
	n := &native{
		wakeCh: make(chan struct{}, 1),
		quitCh: make(chan struct{}),
	}
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(doneCh)
		for {
			select {
			case <-n.quitCh:
				return
			case <-n.wakeCh:
				l.drain()
			}
		}
	}()
	return n, nil
}

func (n *native) wake() error {
	select {
	case n.wakeCh <- struct{}{}:
	default:
	}
	return nil
}

func (n *native) quit(doneCh chan struct{}) error {
	close(n.quitCh)
	<-doneCh
	return nil
}
