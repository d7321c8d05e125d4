package helpers

import "time"

// Closed reports whether a done-style channel has been closed within the timeout.
func Closed(ch <-chan struct{}, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case <-ch:
		return true
	case <-deadline.C:
		return false
	}
}
