package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/ocr-batch/internal/cache"
	"github.com/joseph-ayodele/ocr-batch/internal/common"
)

// cachehealth checks the configured cache backend and purges expired entries.
func main() {
	cfg := common.LoadConfig()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, closeFn, err := cache.Open(ctx, cfg.Cache, logger)
	if err != nil {
		logger.Error("open cache", "backend", cfg.Cache.Backend, "error", err)
		os.Exit(1)
	}
	defer closeFn()

	if p, ok := store.(cache.Pinger); ok {
		start := time.Now()
		if err := p.Ping(ctx); err != nil {
			logger.Error("cache ping failed", "backend", cfg.Cache.Backend, "error", err)
			os.Exit(1)
		}
		logger.Info("cache ping ok", "backend", cfg.Cache.Backend, "elapsed_ms", time.Since(start).Milliseconds())
	}

	if p, ok := store.(cache.Purger); ok {
		n, err := p.PurgeExpired(ctx)
		if err != nil {
			logger.Error("purge failed", "backend", cfg.Cache.Backend, "error", err)
			os.Exit(1)
		}
		logger.Info("expired entries purged", "backend", cfg.Cache.Backend, "removed", n)
	}
}
