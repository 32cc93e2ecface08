// Package cache implements the server's versioned read cache.
//
// Entries are keyed by (operation, store version, query). A
// committed mutation bumps the store version, which moves every later read to
// fresh keys; older entries are never consulted again and age out by TTL.
// The cache is strictly best-effort: provider failures, corrupt entries and
// decode errors all degrade to a live read.
//
// Read pattern:
//
//	rows, err := cache.Read(ctx, c, codec, "getProducts", location, isEmpty, liveRead)
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vbonduro/stockcount/internal/cache/codec"
	"github.com/vbonduro/stockcount/internal/cache/provider"
	"github.com/vbonduro/stockcount/internal/metrics"
	"github.com/vbonduro/stockcount/internal/version"
)

const (
	defaultTTL = time.Minute
	keyHashLen = 16
)

// Options configure a Cache. Version is required; a nil Provider disables
// caching so every read goes live.
type Options struct {
	Provider provider.Provider
	Version  version.Token

	// TTLs maps operation name to entry lifetime; DefaultTTL covers the rest.
	TTLs       map[string]time.Duration
	DefaultTTL time.Duration

	Logger  Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

type Cache struct {
	provider   provider.Provider
	version    version.Token
	ttls       map[string]time.Duration
	defaultTTL time.Duration
	log        Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	group      singleflight.Group
}

func New(opts Options) (*Cache, error) {
	if opts.Version == nil {
		return nil, errors.New("cache: version token is required")
	}
	c := &Cache{
		provider:   opts.Provider,
		version:    opts.Version,
		ttls:       opts.TTLs,
		defaultTTL: coalesce(opts.DefaultTTL, defaultTTL),
		log:        coalesce[Logger](opts.Logger, NopLogger{}),
		metrics:    opts.Metrics,
		now:        opts.Now,
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

func (c *Cache) Enabled() bool { return c != nil && c.provider != nil }

// TTL returns the lifetime used for entries of operation op.
func (c *Cache) TTL(op string) time.Duration {
	if ttl, ok := c.ttls[op]; ok && ttl > 0 {
		return ttl
	}
	return c.defaultTTL
}

func (c *Cache) Close(ctx context.Context) error {
	if c.provider == nil {
		return nil
	}
	return c.provider.Close(ctx)
}

// NormalizeQuery lowercases, trims and collapses inner whitespace. Only use
// it for query text the live read folds the same way.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// Key hashes (op, storeVersion, query) to a bounded-length key.
func Key(op string, storeVersion uint64, query string) string {
	var b strings.Builder
	b.WriteString(op)
	b.WriteByte(0)
	b.WriteString(strconv.FormatUint(storeVersion, 10))
	b.WriteByte(0)
	b.WriteString(query)
	sum := sha256.Sum256([]byte(b.String()))
	return "rc:" + op + ":" + hex.EncodeToString(sum[:])[:keyHashLen]
}

// Read returns the cached result of op for query at the current store
// version, or runs live and caches its result when empty reports false.
// query is used verbatim: two queries share an entry only if live answers
// them identically.
//
// Concurrent misses on the same key share one live call, and may share the
// returned value; callers must treat it as read-only. The shared call is not
// canceled with any one caller's context; a caller whose context ends stops
// waiting and gets its context error.
func Read[V any](
	ctx context.Context,
	c *Cache,
	cd codec.Codec[V],
	op, query string,
	empty func(V) bool,
	live func(context.Context) (V, error),
) (V, error) {
	if !c.Enabled() {
		return live(ctx)
	}

	ver, err := c.version.Current(ctx)
	if err != nil {
		c.log.Warn("version snapshot failed; reading live", Fields{"op": op, "err": err})
		c.metrics.CacheResult(op, "error")
		return live(ctx)
	}
	key := Key(op, ver, query)

	if v, ok := lookup(ctx, c, cd, op, key, ver); ok {
		return v, nil
	}

	fillCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		v, err := live(fillCtx)
		if err != nil {
			return v, err
		}
		if !empty(v) {
			store(fillCtx, c, cd, op, key, ver, v)
		}
		return v, nil
	})

	var zero V
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func lookup[V any](ctx context.Context, c *Cache, cd codec.Codec[V], op, key string, ver uint64) (V, bool) {
	var zero V

	raw, ok, err := c.provider.Get(ctx, key)
	if err != nil {
		c.log.Debug("cache get failed", Fields{"op": op, "key": key, "err": err})
		c.metrics.CacheResult(op, "error")
		return zero, false
	}
	if !ok {
		c.metrics.CacheResult(op, "miss")
		return zero, false
	}

	entryVer, writtenAt, payload, err := decodeEnvelope(raw)
	if err != nil || entryVer != ver {
		c.selfHeal(ctx, op, key, "corrupt")
		return zero, false
	}
	age := c.now().Sub(time.UnixMilli(writtenAt))
	if age > c.TTL(op) {
		_ = c.provider.Del(ctx, key)
		c.metrics.CacheResult(op, "miss")
		return zero, false
	}

	v, err := cd.Decode(payload)
	if err != nil {
		c.selfHeal(ctx, op, key, "value_decode")
		return zero, false
	}
	c.metrics.CacheResult(op, "hit")
	return v, true
}

func store[V any](ctx context.Context, c *Cache, cd codec.Codec[V], op, key string, ver uint64, v V) {
	payload, err := cd.Encode(v)
	if err != nil {
		c.log.Debug("cache encode failed", Fields{"op": op, "err": err})
		return
	}
	b := encodeEnvelope(ver, c.now().UnixMilli(), payload)
	ok, err := c.provider.Set(ctx, key, b, int64(len(b)), c.TTL(op))
	if err != nil {
		c.log.Debug("cache put failed", Fields{"op": op, "key": key, "err": err})
		return
	}
	if !ok {
		c.log.Debug("cache put rejected by provider", Fields{"op": op, "key": key})
	}
}

// selfHeal drops an unreadable entry so the next read repopulates it.
func (c *Cache) selfHeal(ctx context.Context, op, key, reason string) {
	_ = c.provider.Del(ctx, key)
	c.log.Debug("dropped unreadable cache entry", Fields{"op": op, "key": key, "reason": reason})
	c.metrics.CacheResult(op, "error")
}

// coalesce returns def when v is the zero value of T.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
