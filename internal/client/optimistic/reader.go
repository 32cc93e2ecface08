package optimistic

import (
	"context"
	"log/slog"
	"time"
)

// Refresh tracks one background revalidation.
type Refresh struct {
	done chan struct{}
	err  error
}

func (r *Refresh) Done() <-chan struct{} { return r.done }

// Wait blocks until the fetch finishes. The error is only returned when no
// cached value was shown.
func (r *Refresh) Wait() error {
	<-r.done
	return r.err
}

// Render receives each value to display along with its age.
type Render[S any] func(value S, age time.Duration)

// Load renders the cached value for cell synchronously, when there is one,
// then fetches a fresh value in the background and renders it too. A failed
// fetch is swallowed when a cached value was shown and passed to onError
// otherwise.
func Load[S any](ctx context.Context, cell *Cell[S], fetch func(context.Context) (S, error), render Render[S], onError func(error)) *Refresh {
	cached, age, ok := cell.Value()
	if ok {
		render(cached, age)
	}

	r := &Refresh{done: make(chan struct{})}
	bg := context.WithoutCancel(ctx)
	go func() {
		defer close(r.done)
		v, err := fetch(bg)
		if err != nil {
			if ok {
				slog.Debug("background refresh failed; keeping cached view", "key", cell.key, "error", err)
				return
			}
			r.err = err
			if onError != nil {
				onError(err)
			}
			return
		}
		cell.Set(v)
		render(v, 0)
	}()
	return r
}
