package version

import (
	"context"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"
)

// Redis keeps the token in a Redis key so all replicas share it and it
// survives restarts.
type Redis struct {
	rdb goredis.UniversalClient
	key string
}

var _ Token = (*Redis)(nil)

func NewRedis(client goredis.UniversalClient, key string) *Redis {
	return &Redis{rdb: client, key: key}
}

// Current returns 0 when the key does not exist yet.
func (r *Redis) Current(ctx context.Context) (uint64, error) {
	res, err := r.rdb.Get(ctx, r.key).Result()
	if err == goredis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("version: redis get: %w", err)
	}
	v, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("version: parse %q: %w", res, err)
	}
	return v, nil
}

func (r *Redis) Bump(ctx context.Context) (uint64, error) {
	v, err := r.rdb.Incr(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("version: redis incr: %w", err)
	}
	return uint64(v), nil
}
