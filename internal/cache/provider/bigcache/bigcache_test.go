package bigcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(Config{LifeWindow: time.Minute, MaxEntriesInWindow: 1000, HardMaxCacheSizeMB: 8})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestGetMissingIsNotAnError(t *testing.T) {
	p := newProvider(t)
	b, ok, err := p.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, b)
}

func TestDelMissingIsNotAnError(t *testing.T) {
	p := newProvider(t)
	assert.NoError(t, p.Del(context.Background(), "missing"))
}

func TestSetGetDel(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()

	ok, err := p.Set(ctx, "k", []byte("v"), 1, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	b, ok, err := p.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), b)

	require.NoError(t, p.Del(ctx, "k"))
	_, ok, err = p.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
