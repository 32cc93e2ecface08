package version

import (
	"context"
	"sync/atomic"
)

// Local is an in-process token.
type Local struct {
	v atomic.Uint64
}

var _ Token = (*Local)(nil)

// NewLocal starts the token at seed. Seeding from the process start time
// keeps versions from repeating across restarts when the read cache outlives
// the process.
func NewLocal(seed uint64) *Local {
	l := &Local{}
	l.v.Store(seed)
	return l
}

func (l *Local) Current(context.Context) (uint64, error) { return l.v.Load(), nil }

func (l *Local) Bump(context.Context) (uint64, error) { return l.v.Add(1), nil }
