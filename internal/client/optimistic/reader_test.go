package optimistic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type renders struct {
	mu     sync.Mutex
	values [][]string
}

func (r *renders) render(v []string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *renders) all() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.values...)
}

func TestLoadRendersCachedThenFresh(t *testing.T) {
	store, _ := openStore(t)
	require.NoError(t, store.Put("products:A1", []string{"old"}))
	cell := NewCell[[]string](store, "products:A1")
	r := &renders{}

	release := make(chan struct{})
	refresh := Load(context.Background(), cell, func(context.Context) ([]string, error) {
		<-release
		return []string{"new"}, nil
	}, r.render, nil)

	assert.Equal(t, [][]string{{"old"}}, r.all(), "cached value is rendered synchronously")
	close(release)
	require.NoError(t, refresh.Wait())
	assert.Equal(t, [][]string{{"old"}, {"new"}}, r.all())

	var persisted []string
	_, ok := store.Get("products:A1", &persisted)
	require.True(t, ok)
	assert.Equal(t, []string{"new"}, persisted)
}

func TestLoadSwallowsErrorWhenCached(t *testing.T) {
	store, _ := openStore(t)
	require.NoError(t, store.Put("products:A1", []string{"old"}))
	cell := NewCell[[]string](store, "products:A1")
	r := &renders{}
	var surfaced error

	refresh := Load(context.Background(), cell, func(context.Context) ([]string, error) {
		return nil, errors.New("offline")
	}, r.render, func(err error) { surfaced = err })

	assert.NoError(t, refresh.Wait())
	assert.NoError(t, surfaced)
	assert.Equal(t, [][]string{{"old"}}, r.all())
}

func TestLoadSurfacesErrorWithoutCache(t *testing.T) {
	store, _ := openStore(t)
	cell := NewCell[[]string](store, "products:A1")
	r := &renders{}
	var surfaced error
	offline := errors.New("offline")

	refresh := Load(context.Background(), cell, func(context.Context) ([]string, error) {
		return nil, offline
	}, r.render, func(err error) { surfaced = err })

	assert.ErrorIs(t, refresh.Wait(), offline)
	assert.ErrorIs(t, surfaced, offline)
	assert.Empty(t, r.all())
}
