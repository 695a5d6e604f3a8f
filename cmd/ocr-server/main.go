package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joseph-ayodele/ocr-batch/internal/async"
	"github.com/joseph-ayodele/ocr-batch/internal/cache"
	"github.com/joseph-ayodele/ocr-batch/internal/common"
	"github.com/joseph-ayodele/ocr-batch/internal/dedupe"
	"github.com/joseph-ayodele/ocr-batch/internal/extract"
	"github.com/joseph-ayodele/ocr-batch/internal/metrics"
	"github.com/joseph-ayodele/ocr-batch/internal/pipeline"
	"github.com/joseph-ayodele/ocr-batch/internal/ratelimit"
	"github.com/joseph-ayodele/ocr-batch/internal/scope"
	"github.com/joseph-ayodele/ocr-batch/internal/server"
)

func main() {
	cfg := common.LoadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := cache.Open(ctx, cfg.Cache, logger)
	if err != nil {
		logger.Error("failed to open cache", "backend", cfg.Cache.Backend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	seq := cache.SequenceFor(cfg.Cache.Backend, store, logger)

	extractor, closeExtractor, err := extract.FromConfig(ctx, cfg.OCR, cfg.Vertex, logger)
	if err != nil {
		logger.Error("failed to build extractor", "engine", cfg.OCR.Engine, "error", err)
		os.Exit(1)
	}
	defer closeExtractor()

	scopes, err := scope.NewManager(cfg.OCR.WorkDir, logger)
	if err != nil {
		logger.Error("failed to prepare work dir", "dir", cfg.OCR.WorkDir, "error", err)
		os.Exit(1)
	}

	pool := async.NewPool(logger,
		async.WithWorkers(cfg.OCR.Workers),
		async.WithQueueSize(cfg.Limits.MaxImages*4),
	)
	m := metrics.New()

	processor, err := pipeline.NewProcessor(pipeline.Deps{
		Logger:    logger,
		Dedupe:    dedupe.NewEngine(store, cfg.Cache.TTL, logger),
		Scopes:    scopes,
		Sequence:  seq,
		Extractor: extractor,
		Pool:      pool,
		Metrics:   m,
		Limits: common.BatchLimits{
			MaxImages:    cfg.Limits.MaxImages,
			MaxFileBytes: cfg.Limits.MaxFileBytes,
		},
	})
	if err != nil {
		logger.Error("failed to build processor", "error", err)
		os.Exit(1)
	}

	srv := server.New(server.Options{
		Logger:            logger,
		Processor:         processor,
		Limiter:           ratelimit.New(ratelimit.PerMinute(cfg.Limits.PerMinute), ratelimit.PerHour(cfg.Limits.PerHour)),
		Metrics:           m,
		RequestTimeout:    cfg.Server.RequestTimeout,
		TrustProxyHeaders: cfg.Limits.TrustProxyHeaders,
		CacheBackend:      cfg.Cache.Backend,
		Engine:            extractor.Engine(),
	})
	httpServer := srv.NewHTTPServer(cfg.Server.HTTPAddr)

	var health *server.HealthServer
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		health = server.NewHealthServer(logger)
		go func() {
			if err := health.Serve(lis); err != nil {
				logger.Error("grpc health serve error", "error", err)
			}
		}()
	}

	logger.Info("ocr-batch listening",
		"addr", cfg.Server.HTTPAddr,
		"workers", pool.Workers(),
		"cache", cfg.Cache.Backend,
		"engine", extractor.Engine(),
	)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if health != nil {
		health.Stop(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	pool.Shutdown(shutdownCtx)
	logger.Info("stopped")
}
