package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLease = 30 * time.Second
	pollInterval = 50 * time.Millisecond
)

// releaseScript deletes the key only if it still holds our token, so a
// holder whose lease expired cannot release someone else's lock.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lock shared by all replicas that point at the same Redis key.
// The lease bounds how long a crashed holder can keep the store locked.
type Redis struct {
	rdb   goredis.UniversalClient
	key   string
	lease time.Duration
}

var _ Locker = (*Redis)(nil)

func NewRedis(client goredis.UniversalClient, key string, lease time.Duration) *Redis {
	if lease <= 0 {
		lease = defaultLease
	}
	return &Redis{rdb: client, key: key, lease: lease}
}

func (r *Redis) Acquire(ctx context.Context, wait time.Duration) (Release, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := r.rdb.SetNX(ctx, r.key, token, r.lease).Result()
		if err != nil {
			return nil, fmt.Errorf("lock: redis setnx: %w", err)
		}
		if ok {
			return r.release(token), nil
		}
		if !time.Now().Before(deadline) {
			return nil, ErrTimeout
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (r *Redis) release(token string) Release {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			// A failed release is covered by the lease expiring.
			_ = releaseScript.Run(ctx, r.rdb, []string{r.key}, token).Err()
		})
	}
}
