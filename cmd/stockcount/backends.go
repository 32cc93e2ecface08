package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/vbonduro/stockcount/internal/cache"
	cachelogrus "github.com/vbonduro/stockcount/internal/cache/log/logrus"
	cacheslog "github.com/vbonduro/stockcount/internal/cache/log/slog"
	cachezap "github.com/vbonduro/stockcount/internal/cache/log/zap"
	"github.com/vbonduro/stockcount/internal/cache/provider"
	"github.com/vbonduro/stockcount/internal/cache/provider/bigcache"
	redisprovider "github.com/vbonduro/stockcount/internal/cache/provider/redis"
	"github.com/vbonduro/stockcount/internal/cache/provider/ristretto"
	"github.com/vbonduro/stockcount/internal/config"
	"github.com/vbonduro/stockcount/internal/lock"
	"github.com/vbonduro/stockcount/internal/version"
)

const (
	redisLockKey    = "stockcount:lock"
	redisVersionKey = "stockcount:version"
	redisCachePfx   = "stockcount:"
)

// backends holds the pluggable lock, version and cache implementations
// chosen by configuration.
type backends struct {
	redis       goredis.UniversalClient
	locker      lock.Locker
	version     version.Token
	provider    provider.Provider
	cacheLogger cache.Logger
	closers     []func()
}

func newBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{}

	if cfg.NeedsRedis() {
		b.redis = goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		b.closers = append(b.closers, func() { _ = b.redis.Close() })
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := b.redis.Ping(pingCtx).Err(); err != nil {
			b.close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
	}

	switch cfg.LockBackend {
	case "redis":
		b.locker = lock.NewRedis(b.redis, redisLockKey, cfg.LockLease)
	default:
		b.locker = lock.NewLocal()
	}

	switch cfg.VersionBackend {
	case "redis":
		b.version = version.NewRedis(b.redis, redisVersionKey)
	default:
		b.version = version.NewLocal(uint64(time.Now().UnixNano()))
	}

	logBackend, err := newCacheLogger(cfg, logger)
	if err != nil {
		b.close()
		return nil, err
	}
	b.cacheLogger = logBackend

	switch cfg.CacheProvider {
	case "ristretto":
		p, err := ristretto.New(ristretto.DefaultConfig())
		if err != nil {
			b.close()
			return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
		}
		b.provider = p
	case "bigcache":
		p, err := bigcache.New(bigcache.Config{
			LifeWindow:   cfg.CatalogTTL,
			MaxEntrySize: 4096,
		})
		if err != nil {
			b.close()
			return nil, fmt.Errorf("failed to create bigcache: %w", err)
		}
		b.provider = p
	case "redis":
		p, err := redisprovider.New(redisprovider.Config{Client: b.redis, Prefix: redisCachePfx})
		if err != nil {
			b.close()
			return nil, fmt.Errorf("failed to create redis cache: %w", err)
		}
		b.provider = p
	case "none":
		logger.Info("read cache disabled")
	}
	return b, nil
}

// newCacheLogger adapts the configured logging library to cache.Logger.
func newCacheLogger(cfg *config.Config, logger *slog.Logger) (cache.Logger, error) {
	switch cfg.CacheLogBackend {
	case "zap":
		zcfg := zap.NewProductionConfig()
		if cfg.LogLevel == "debug" {
			zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		}
		zl, err := zcfg.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build zap logger: %w", err)
		}
		return cachezap.Logger{L: zl.Named("cache")}, nil
	case "logrus":
		l := logrus.New()
		l.SetFormatter(&logrus.JSONFormatter{})
		if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
			l.SetLevel(lvl)
		}
		return cachelogrus.Logger{E: l.WithField("component", "cache")}, nil
	case "none":
		return cache.NopLogger{}, nil
	default:
		return cacheslog.Logger{L: logger.With("component", "cache")}, nil
	}
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}
