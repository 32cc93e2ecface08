package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vbonduro/stockcount/internal/cache"
	"github.com/vbonduro/stockcount/internal/db"
	"github.com/vbonduro/stockcount/internal/lock"
	"github.com/vbonduro/stockcount/internal/store"
	"github.com/vbonduro/stockcount/internal/version"
)

// memProvider is an in-memory cache provider for tests.
type memProvider struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.m[key]
	return v, ok, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[key] = value
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, key)
	return nil
}

func (p *memProvider) Close(context.Context) error { return nil }

type testEnv struct {
	store   *store.Store
	locker  *lock.Local
	version *version.Local
	cache   *cache.Cache
	coord   *Coordinator
	queries *Queries
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	env := &testEnv{
		store:   store.New(d),
		locker:  lock.NewLocal(),
		version: version.NewLocal(100),
	}
	env.cache, err = cache.New(cache.Options{
		Provider: &memProvider{m: make(map[string][]byte)},
		Version:  env.version,
	})
	require.NoError(t, err)

	env.coord = NewCoordinator(env.store, env.locker, env.version, 50*time.Millisecond, nil, slog.Default())
	env.queries, err = NewQueries(env.store.Catalog, env.store.CountLog, env.cache, "msgpack", 0)
	require.NoError(t, err)
	return env
}

func (e *testEnv) currentVersion(t *testing.T) uint64 {
	t.Helper()
	v, err := e.version.Current(context.Background())
	require.NoError(t, err)
	return v
}
