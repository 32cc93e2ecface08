package lock

import (
	"context"
	"sync"
	"time"
)

// Local is an in-process lock backed by a single-slot channel.
type Local struct {
	slot chan struct{}
}

var _ Locker = (*Local)(nil)

func NewLocal() *Local {
	return &Local{slot: make(chan struct{}, 1)}
}

func (l *Local) Acquire(ctx context.Context, wait time.Duration) (Release, error) {
	select {
	case l.slot <- struct{}{}:
		return l.release(), nil
	default:
	}
	if wait <= 0 {
		return nil, ErrTimeout
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case l.slot <- struct{}{}:
		return l.release(), nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Local) release() Release {
	var once sync.Once
	return func() {
		once.Do(func() { <-l.slot })
	}
}
