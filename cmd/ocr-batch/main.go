package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joseph-ayodele/ocr-batch/constants"
	"github.com/joseph-ayodele/ocr-batch/internal/entity"
	"github.com/joseph-ayodele/ocr-batch/internal/export"
	"github.com/joseph-ayodele/ocr-batch/internal/ingest"
	"github.com/joseph-ayodele/ocr-batch/internal/report"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		serverURL  = flag.String("server", "http://localhost:8000", "OCR service base URL")
		dir        = flag.String("dir", "", "directory of images to upload (required)")
		out        = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		skipHidden = flag.Bool("skip-hidden", true, "skip hidden files and directories")
		chunk      = flag.Int("chunk", constants.DefaultMaxImages, "images per request")
		maxBytes   = flag.Int64("max-file-bytes", constants.DefaultMaxFileBytes, "skip files larger than this")
		watch      = flag.Bool("watch", false, "keep running and upload images added to dir")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *chunk <= 0 || *chunk > constants.DefaultMaxImages {
		printError("Error: --chunk must be within 1..%d\n", constants.DefaultMaxImages)
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "ocr-results.xlsx")
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, stats, err := ingest.ScanDirectory(ctx, *dir, *skipHidden, *maxBytes)
	if err != nil {
		logger.Error("failed to scan directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	for _, r := range results {
		if r.Err != "" {
			logger.Warn("skipping file", "path", r.Path, "reason", r.Err)
		}
	}
	paths := ingest.Uploadable(results)
	logger.Info("scan complete",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"uploading", len(paths),
	)

	client := ingest.NewClient(*serverURL, logger)
	exporter := export.NewService(logger)

	var batches []*report.BatchResult
	batches, failures := uploadAll(ctx, client, logger, ingest.Chunk(paths, *chunk), batches)
	if err := writeXLSX(exporter, *out, batches); err != nil {
		logger.Error("failed to write export", "output", *out, "error", err)
		os.Exit(1)
	}
	printSummary(batches, failures, *out)

	if *watch {
		batchCh, errCh, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:      []string{*dir},
			SkipHidden: *skipHidden,
			Debounce:   time.Second,
		}, logger)
		if err != nil {
			logger.Error("failed to start watcher", "error", err)
			os.Exit(1)
		}
		logger.Info("watching for new images", "dir", *dir)
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errCh:
				if ok {
					logger.Warn("watch error", "error", err)
				}
			case group, ok := <-batchCh:
				if !ok {
					return
				}
				var n int
				batches, n = uploadAll(ctx, client, logger, ingest.Chunk(group, *chunk), batches)
				failures += n
				if err := writeXLSX(exporter, *out, batches); err != nil {
					logger.Error("failed to write export", "output", *out, "error", err)
				}
				printSummary(batches, failures, *out)
			}
		}
	}
	if failures > 0 {
		os.Exit(1)
	}
}

func uploadAll(ctx context.Context, c *ingest.Client, logger *slog.Logger, chunks [][]string, batches []*report.BatchResult) ([]*report.BatchResult, int) {
	failures := 0
	for i, group := range chunks {
		res, err := c.Upload(ctx, group)
		if err != nil {
			logger.Error("batch upload failed", "chunk", i+1, "images", len(group), "error", err)
			failures++
			continue
		}
		logger.Info("batch done",
			"chunk", i+1,
			"images", res.ImageCount,
			"cache_hits", res.CacheHits,
			"cache_misses", res.CacheMisses,
			"time_taken_s", res.TimeTaken,
		)
		batches = append(batches, res)
	}
	return batches, failures
}

func writeXLSX(s *export.Service, path string, batches []*report.BatchResult) error {
	data, err := s.BatchesXLSX(batches)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func printSummary(batches []*report.BatchResult, failedChunks int, out string) {
	var images, hits, misses int
	kinds := map[entity.OutcomeKind]int{}
	for _, b := range batches {
		images += b.ImageCount
		hits += b.CacheHits
		misses += b.CacheMisses
		for k, n := range b.Tally() {
			kinds[k] += n
		}
	}
	fmt.Printf("batches: %d (failed: %d)\n", len(batches), failedChunks)
	fmt.Printf("images: %d  cache hits: %d  cache misses: %d\n", images, hits, misses)
	fmt.Printf("text: %d  no text: %d  errors: %d\n",
		kinds[entity.OutcomeSuccess], kinds[entity.OutcomeNoText], kinds[entity.OutcomeError])
	fmt.Printf("written: %s\n", out)
}
