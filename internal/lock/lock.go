// Package lock provides the store-wide mutual exclusion used by the mutation
// coordinator. Acquisition waits at most a bounded time and fails fast with
// ErrTimeout rather than queueing callers.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when the lock could not be acquired within the wait.
var ErrTimeout = errors.New("lock: acquisition timed out")

// Release gives the lock back. It is safe to call more than once.
type Release func()

// Locker is a store-wide mutex with bounded acquisition.
type Locker interface {
	// Acquire blocks for at most wait. It returns ErrTimeout when the wait
	// elapses, or the context error if ctx ends first.
	Acquire(ctx context.Context, wait time.Duration) (Release, error)
}
