package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vbonduro/stockcount/internal/cache"
	"github.com/vbonduro/stockcount/internal/config"
	"github.com/vbonduro/stockcount/internal/db"
	"github.com/vbonduro/stockcount/internal/logging"
	"github.com/vbonduro/stockcount/internal/metrics"
	"github.com/vbonduro/stockcount/internal/service"
	"github.com/vbonduro/stockcount/internal/store"
	"github.com/vbonduro/stockcount/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()
	st := store.New(database)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	b, err := newBackends(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize backends", "error", err)
		return
	}
	defer b.close()

	readCache, err := cache.New(cache.Options{
		Provider: b.provider,
		Version:  b.version,
		TTLs: map[string]time.Duration{
			service.OpGetHistory:      cfg.HistoryTTL,
			service.OpGetProducts:     cfg.CatalogTTL,
			service.OpSearchProducts:  cfg.CatalogTTL,
			service.OpSearchLocations: cfg.CatalogTTL,
			service.OpLookupBarcode:   cfg.CatalogTTL,
		},
		DefaultTTL: cfg.CatalogTTL,
		Logger:     b.cacheLogger,
		Metrics:    m,
	})
	if err != nil {
		logger.Error("failed to initialize read cache", "error", err)
		return
	}
	defer func() {
		if err := readCache.Close(context.Background()); err != nil {
			logger.Error("failed to close read cache", "error", err)
		}
	}()

	queries, err := service.NewQueries(st.Catalog, st.CountLog, readCache, cfg.CacheCodec, cfg.CacheMaxEntryBytes)
	if err != nil {
		logger.Error("failed to initialize queries", "error", err)
		return
	}
	auth := service.NewAuth(st.Operators, logger)
	if err := auth.Bootstrap(ctx, cfg.BootstrapOperator); err != nil {
		logger.Error("failed to provision operator", "error", err)
		return
	}

	server := web.NewServer(web.Services{
		Coordinator: service.NewCoordinator(st, b.locker, b.version, cfg.LockWait, m, logger),
		Queries:     queries,
		Warmer:      service.NewWarmer(queries, st.Catalog, 0, logger),
		Auth:        auth,
	}, reg, logger)

	logger.Info("starting server",
		"addr", cfg.ListenAddr,
		"lock_backend", cfg.LockBackend,
		"version_backend", cfg.VersionBackend,
		"cache_provider", cfg.CacheProvider,
		"cache_codec", cfg.CacheCodec,
	)
	srv := server.HTTPServer(cfg.ListenAddr)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}
}
