package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	DBPath     string `env:"DB_PATH"     envDefault:"/data/stockcount.db"`
	LogLevel   string `env:"LOG_LEVEL"   envDefault:"info"`
	LogFile    string `env:"LOG_FILE"`

	// LockBackend and VersionBackend are "local" or "redis". Running more
	// than one replica requires redis for both.
	LockBackend    string        `env:"LOCK_BACKEND"    envDefault:"local"`
	LockWait       time.Duration `env:"LOCK_WAIT"       envDefault:"10s"`
	LockLease      time.Duration `env:"LOCK_LEASE"      envDefault:"30s"`
	VersionBackend string        `env:"VERSION_BACKEND" envDefault:"local"`

	CacheProvider      string        `env:"CACHE_PROVIDER"        envDefault:"ristretto"`
	CacheCodec         string        `env:"CACHE_CODEC"           envDefault:"msgpack"`
	CacheMaxEntryBytes int           `env:"CACHE_MAX_ENTRY_BYTES" envDefault:"4194304"`
	CacheLogBackend    string        `env:"CACHE_LOG_BACKEND"     envDefault:"slog"`
	HistoryTTL         time.Duration `env:"HISTORY_TTL"           envDefault:"30s"`
	CatalogTTL         time.Duration `env:"CATALOG_TTL"           envDefault:"5m"`

	RedisAddr     string `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"       envDefault:"0"`

	// BootstrapOperator is "username:password[:Display Name]", provisioned
	// at startup when set.
	BootstrapOperator string `env:"BOOTSTRAP_OPERATOR"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if err := oneOf("LOCK_BACKEND", c.LockBackend, "local", "redis"); err != nil {
		return err
	}
	if err := oneOf("VERSION_BACKEND", c.VersionBackend, "local", "redis"); err != nil {
		return err
	}
	if err := oneOf("CACHE_PROVIDER", c.CacheProvider, "ristretto", "bigcache", "redis", "none"); err != nil {
		return err
	}
	if err := oneOf("CACHE_CODEC", c.CacheCodec, "msgpack", "cbor", "json"); err != nil {
		return err
	}
	if err := oneOf("CACHE_LOG_BACKEND", c.CacheLogBackend, "slog", "zap", "logrus", "none"); err != nil {
		return err
	}
	if c.LockWait <= 0 {
		return fmt.Errorf("LOCK_WAIT must be positive, got %s", c.LockWait)
	}
	if c.LockBackend == "redis" && c.LockLease <= c.LockWait {
		return fmt.Errorf("LOCK_LEASE (%s) must exceed LOCK_WAIT (%s)", c.LockLease, c.LockWait)
	}
	return nil
}

// NeedsRedis reports whether any backend talks to Redis.
func (c *Config) NeedsRedis() bool {
	return c.LockBackend == "redis" || c.VersionBackend == "redis" || c.CacheProvider == "redis"
}

func oneOf(name, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s: unsupported value %q (want one of %v)", name, value, allowed)
}
