// Package pool recycles the timers used for bounded waits, which the engine
// creates on every request with a response timeout and on every close.
package pool

import (
	"sync"
	"time"
)

var timers sync.Pool

// GetTimer returns a running timer that fires after d.
// Hand it back with PutTimer once the wait is over.
func GetTimer(d time.Duration) *time.Timer {
	t, ok := timers.Get().(*time.Timer)
	if !ok {
		return time.NewTimer(d)
	}

	// pooled timers are stopped and drained by PutTimer
	t.Reset(d)

	return t
}

// PutTimer stops t and returns it to the pool. t must not be used afterwards.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	timers.Put(t)
}

// WaitClosed waits until ch is closed or d elapses, and reports whether ch
// was closed. A non-positive d waits without bound.
func WaitClosed(ch <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		<-ch
		return true
	}

	t := GetTimer(d)
	defer PutTimer(t)

	select {
	case <-ch:
		return true
	case <-t.C:
		return false
	}
}
