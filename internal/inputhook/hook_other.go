//go:build !windows

package inputhook

import "fmt"

var errUnsupported = fmt.Errorf("%w: low-level hooks require Windows", ErrHookInstall)

// Start implements the interceptor contract; hooks are Windows-only.
func (w *MouseWheel) Start() error { return errUnsupported }

// Stop is a no-op off Windows.
func (w *MouseWheel) Stop() error { return nil }

// Start implements the hook contract; hooks are Windows-only.
func (k *KeyboardHook) Start() error { return errUnsupported }

// Stop is a no-op off Windows.
func (k *KeyboardHook) Stop() error { return nil }
