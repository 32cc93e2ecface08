package version

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "stockcount:version"

func newRedis(t *testing.T) (*miniredis.Miniredis, goredis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisCurrentStartsAtZero(t *testing.T) {
	_, client := newRedis(t)
	v, err := NewRedis(client, testKey).Current(context.Background())
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestRedisBumpIsSharedAcrossReplicas(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	a := NewRedis(client, testKey)
	b := NewRedis(client, testKey)

	v1, err := a.Bump(ctx)
	require.NoError(t, err)
	v2, err := b.Bump(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v1)
	assert.Equal(t, uint64(2), v2)

	cur, err := a.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), cur)

	raw, err := mr.Get(testKey)
	require.NoError(t, err)
	assert.Equal(t, "2", raw)
}

func TestRedisConcurrentBumpsAreDistinct(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()

	var mu sync.Mutex
	seen := make(map[uint64]bool)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := NewRedis(client, testKey).Bump(ctx)
			if err != nil {
				return
			}
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 20)
}

func TestRedisCurrentRejectsGarbage(t *testing.T) {
	mr, client := newRedis(t)
	require.NoError(t, mr.Set(testKey, "not-a-number"))

	_, err := NewRedis(client, testKey).Current(context.Background())
	assert.ErrorContains(t, err, "parse")
}

func TestRedisErrorsPropagate(t *testing.T) {
	mr, client := newRedis(t)
	tok := NewRedis(client, testKey)
	mr.Close()

	_, err := tok.Current(context.Background())
	assert.Error(t, err)
	_, err = tok.Bump(context.Background())
	assert.Error(t, err)
}
