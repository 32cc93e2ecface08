package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "stockcount:lock"

func newRedis(t *testing.T) (*miniredis.Miniredis, goredis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisAcquireRelease(t *testing.T) {
	mr, client := newRedis(t)
	l := NewRedis(client, testKey, time.Minute)
	ctx := context.Background()

	release, err := l.Acquire(ctx, time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists(testKey))
	assert.Equal(t, time.Minute, mr.TTL(testKey))

	release()
	assert.False(t, mr.Exists(testKey))

	release, err = l.Acquire(ctx, time.Second)
	require.NoError(t, err)
	release()
}

func TestRedisFailsFastWhenHeld(t *testing.T) {
	_, client := newRedis(t)
	holder := NewRedis(client, testKey, time.Minute)
	other := NewRedis(client, testKey, time.Minute)
	ctx := context.Background()

	release, err := holder.Acquire(ctx, time.Second)
	require.NoError(t, err)
	defer release()

	start := time.Now()
	_, err = other.Acquire(ctx, 0)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), pollInterval)

	start = time.Now()
	_, err = other.Acquire(ctx, 120*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 120*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestRedisPollsUntilReleased(t *testing.T) {
	_, client := newRedis(t)
	holder := NewRedis(client, testKey, time.Minute)
	other := NewRedis(client, testKey, time.Minute)
	ctx := context.Background()

	release, err := holder.Acquire(ctx, time.Second)
	require.NoError(t, err)
	go func() {
		time.Sleep(80 * time.Millisecond)
		release()
	}()

	release2, err := other.Acquire(ctx, 2*time.Second)
	require.NoError(t, err)
	release2()
}

func TestRedisReleaseOnlyDeletesOwnToken(t *testing.T) {
	mr, client := newRedis(t)
	l := NewRedis(client, testKey, time.Second)
	ctx := context.Background()

	stale, err := l.Acquire(ctx, 0)
	require.NoError(t, err)

	// The first holder's lease runs out and another replica takes the lock.
	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists(testKey))
	current, err := l.Acquire(ctx, 0)
	require.NoError(t, err)
	token, err := mr.Get(testKey)
	require.NoError(t, err)

	stale()
	got, err := mr.Get(testKey)
	require.NoError(t, err)
	assert.Equal(t, token, got)

	current()
	assert.False(t, mr.Exists(testKey))
}

func TestRedisReleaseIsIdempotent(t *testing.T) {
	mr, client := newRedis(t)
	l := NewRedis(client, testKey, time.Minute)
	ctx := context.Background()

	release, err := l.Acquire(ctx, 0)
	require.NoError(t, err)
	release()

	held, err := l.Acquire(ctx, 0)
	require.NoError(t, err)
	defer held()
	release()

	assert.True(t, mr.Exists(testKey), "second release must not free the new holder's lock")
}

func TestRedisHonorsContext(t *testing.T) {
	_, client := newRedis(t)
	l := NewRedis(client, testKey, time.Minute)

	release, err := l.Acquire(context.Background(), 0)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisErrorIsNotTimeout(t *testing.T) {
	mr, client := newRedis(t)
	l := NewRedis(client, testKey, time.Minute)
	mr.Close()

	_, err := l.Acquire(context.Background(), 0)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestRedisMutualExclusionAcrossReplicas(t *testing.T) {
	_, client := newRedis(t)
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := NewRedis(client, testKey, time.Minute)
			release, err := l.Acquire(context.Background(), 5*time.Second)
			if err != nil {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}
