package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/ocr-batch/internal/common"
	"github.com/joseph-ayodele/ocr-batch/internal/entity"
	"github.com/joseph-ayodele/ocr-batch/internal/extract"
	"github.com/joseph-ayodele/ocr-batch/internal/pipeline"
)

// runocr extracts text from local image files with the configured engine,
// without the HTTP service or the cache.
func main() {
	cfg := common.LoadConfig()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		logger.Error("usage", "cmd", "runocr <image> [image...]")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.RequestTimeout)
	defer cancel()

	x, closeFn, err := extract.FromConfig(ctx, cfg.OCR, cfg.Vertex, logger)
	if err != nil {
		logger.Error("build extractor", "error", err)
		os.Exit(1)
	}
	defer closeFn()

	failed := 0
	for _, path := range os.Args[1:] {
		start := time.Now()
		res, err := x.Extract(ctx, path)
		out := pipeline.Classify(res)
		if err != nil {
			failed++
			out = entity.Failure(err.Error())
		}
		logger.Info("text extraction done",
			"path", path,
			"outcome", out.Kind,
			"method", res.Method,
			"confidence", res.Confidence,
			"bytes", len(res.Text),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		fmt.Printf("== %s\n%s\n", path, out.Render())
	}
	if failed > 0 {
		os.Exit(1)
	}
}
