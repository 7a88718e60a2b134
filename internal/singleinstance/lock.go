// Package singleinstance keeps one TinyTools tray process per user.
package singleinstance

import (
	"errors"
	"sync"

	"tinytools/internal/userutil"
)

// ErrAlreadyRunning is returned by TryLock when another instance holds the mutex.
var ErrAlreadyRunning = errors.New("another instance is already running")

// MutexPrefix is the kernel object prefix for the tray process lock.
const MutexPrefix = `Global\TinyTools-`

// DefaultMutexName returns the per-user mutex name. It mirrors the naming of
// ipc.DefaultPipeName so one user gets one tray process and one pipe.
func DefaultMutexName() string {
	return userutil.ObjectName(MutexPrefix)
}

// Lock is a held instance lock. The zero value and nil are released locks.
type Lock struct {
	once    sync.Once
	release func() error
}

// TryLock acquires name, or returns ErrAlreadyRunning.
func TryLock(name string) (*Lock, error) {
	if name == "" {
		return nil, errors.New("mutex name is required")
	}
	release, err := acquire(name)
	if err != nil {
		return nil, err
	}
	return &Lock{release: release}, nil
}

// Release frees the lock. Safe on a nil receiver and idempotent.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	var err error
	l.once.Do(func() {
		if l.release != nil {
			err = l.release()
		}
	})
	return err
}
