// Package keylock provides named mutual exclusion. Holders of different keys
// never block one another; holders of the same key are totally ordered.
package keylock

import (
	"context"
	"errors"
)

// ErrBusy is returned when a lock could not be acquired before ctx ended
var ErrBusy = errors.New("lock is busy")

// Locker acquires exclusive sections keyed by name.
// The returned release func is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
