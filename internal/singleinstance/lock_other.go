//go:build !windows

package singleinstance

import "sync"

// Without named mutexes the lock only excludes holders inside this process.
var held sync.Map

func acquire(name string) (func() error, error) {
	if _, busy := held.LoadOrStore(name, struct{}{}); busy {
		return nil, ErrAlreadyRunning
	}
	return func() error {
		held.Delete(name)
		return nil
	}, nil
}
