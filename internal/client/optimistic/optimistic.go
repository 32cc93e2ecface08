// Package optimistic applies device-side mutations immediately and settles
// them once the server answers. Each run moves from Applied to either
// Confirmed or RolledBack; a rollback restores the pre-mutation snapshot
// (or a caller-supplied compensation) in memory and on disk.
package optimistic

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vbonduro/stockcount/internal/client/localcache"
)

type State int

const (
	Applied State = iota
	Confirmed
	RolledBack
)

func (s State) String() string {
	switch s {
	case Applied:
		return "applied"
	case Confirmed:
		return "confirmed"
	case RolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Cell is one persisted, in-memory view keyed by a namespaced cache key.
type Cell[S any] struct {
	key   string
	store *localcache.Store

	mu     sync.Mutex
	value  S
	at     time.Time
	loaded bool
}

func NewCell[S any](store *localcache.Store, key string) *Cell[S] {
	return &Cell[S]{key: key, store: store}
}

func (c *Cell[S]) Key() string { return c.key }

// Value returns the in-memory value, loading it from disk on first use.
func (c *Cell[S]) Value() (S, time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked()
}

func (c *Cell[S]) loadLocked() (S, time.Duration, bool) {
	if c.loaded {
		return c.value, time.Since(c.at), true
	}
	var v S
	age, ok := c.store.Get(c.key, &v)
	if ok {
		c.value, c.at, c.loaded = v, time.Now().Add(-age), true
	}
	return v, age, ok
}

// Set replaces the value in memory and on disk.
func (c *Cell[S]) Set(v S) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(v)
}

func (c *Cell[S]) setLocked(v S) {
	c.value, c.at, c.loaded = v, time.Now(), true
	if err := c.store.Put(c.key, v); err != nil {
		slog.Warn("failed to persist local view", "key", c.key, "error", err)
	}
}

// Forget drops the in-memory value so the next read comes from disk or the
// server.
func (c *Cell[S]) Forget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero S
	c.value, c.loaded = zero, false
}

// Action is one optimistic mutation of a Cell's state.
type Action[S any] struct {
	Name string

	// Apply returns the optimistic state. It must not modify its argument,
	// which is kept as the rollback snapshot.
	Apply func(S) S

	// Compensate computes the rolled-back state from the current state and
	// the snapshot. Nil restores the snapshot.
	Compensate func(current, snapshot S) S

	// Remote performs the server mutation.
	Remote func(ctx context.Context) error

	// Invalidates lists key prefixes of other views the mutation makes stale.
	// They are dropped when the action is applied and again once the server
	// confirms, since a view refetched in between still shows the old data.
	Invalidates []string
}

// Event reports a state transition to the user-facing layer.
type Event struct {
	Action string
	State  State
	Err    error
}

type Notifier interface {
	Notify(Event)
}

type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

// Invalidator drops cached views whose keys start with prefix.
type Invalidator interface {
	InvalidatePrefix(prefix string)
}

// Pending tracks one run until the server answers.
type Pending struct {
	done  chan struct{}
	state State
	err   error
}

// Done is closed once the run is Confirmed or RolledBack.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the run settles and returns its final state.
func (p *Pending) Wait() (State, error) {
	<-p.done
	return p.state, p.err
}

// Run applies a to cell immediately, then calls the server in the
// background. The background call is not canceled with ctx.
func Run[S any](ctx context.Context, cell *Cell[S], a Action[S], inv Invalidator, n Notifier) *Pending {
	cell.mu.Lock()
	snapshot, _, _ := cell.loadLocked()
	cell.setLocked(a.Apply(snapshot))
	cell.mu.Unlock()

	invalidate(inv, a.Invalidates)
	notify(n, Event{Action: a.Name, State: Applied})

	p := &Pending{done: make(chan struct{}), state: Applied}
	bg := context.WithoutCancel(ctx)
	go func() {
		defer close(p.done)
		if err := a.Remote(bg); err != nil {
			cell.mu.Lock()
			current := cell.value
			if a.Compensate != nil {
				cell.setLocked(a.Compensate(current, snapshot))
			} else {
				cell.setLocked(snapshot)
			}
			cell.mu.Unlock()

			p.state, p.err = RolledBack, err
			slog.Info("optimistic mutation rolled back", "action", a.Name, "key", cell.key, "error", err)
			notify(n, Event{Action: a.Name, State: RolledBack, Err: err})
			return
		}
		invalidate(inv, a.Invalidates)
		p.state = Confirmed
		notify(n, Event{Action: a.Name, State: Confirmed})
	}()
	return p
}

func invalidate(inv Invalidator, prefixes []string) {
	if inv == nil {
		return
	}
	for _, prefix := range prefixes {
		inv.InvalidatePrefix(prefix)
	}
}

func notify(n Notifier, e Event) {
	if n != nil {
		n.Notify(e)
	}
}
