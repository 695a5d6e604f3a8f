package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/ocr-batch/internal/async"
	"github.com/joseph-ayodele/ocr-batch/internal/common"
	"github.com/joseph-ayodele/ocr-batch/internal/dedupe"
	"github.com/joseph-ayodele/ocr-batch/internal/entity"
	"github.com/joseph-ayodele/ocr-batch/internal/extract"
	"github.com/joseph-ayodele/ocr-batch/internal/metrics"
	"github.com/joseph-ayodele/ocr-batch/internal/ocr"
	"github.com/joseph-ayodele/ocr-batch/internal/report"
	"github.com/joseph-ayodele/ocr-batch/internal/scope"
)

// Deps wires a Processor. Pool and Metrics are optional.
type Deps struct {
	Logger    *slog.Logger
	Dedupe    *dedupe.Engine
	Scopes    *scope.Manager
	Sequence  scope.Sequence
	Extractor extract.TextExtractor
	Pool      *async.Pool
	Metrics   *metrics.Metrics
	Limits    common.BatchLimits
}

// Processor runs one batch: dedup against the batch and the cache, extract the
// remaining unique images concurrently, and assemble the response.
type Processor struct {
	Logger    *slog.Logger
	dedupe    *dedupe.Engine
	scopes    *scope.Manager
	seq       scope.Sequence
	extractor extract.TextExtractor
	pool      *async.Pool
	metrics   *metrics.Metrics
	limits    common.BatchLimits
}

func NewProcessor(d Deps) (*Processor, error) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Scopes == nil {
		return nil, errors.New("pipeline: scope manager is required")
	}
	if d.Extractor == nil {
		return nil, errors.New("pipeline: extractor is required")
	}
	if d.Dedupe == nil {
		d.Dedupe = dedupe.NewEngine(nil, 0, d.Logger)
	}
	if d.Sequence == nil {
		d.Sequence = scope.Global()
	}
	if d.Limits.MaxImages <= 0 || d.Limits.MaxFileBytes <= 0 {
		d.Limits = common.DefaultBatchLimits()
	}
	return &Processor{
		Logger:    d.Logger,
		dedupe:    d.Dedupe,
		scopes:    d.Scopes,
		seq:       d.Sequence,
		extractor: d.Extractor,
		pool:      d.Pool,
		metrics:   d.Metrics,
		limits:    d.Limits,
	}, nil
}

func (p *Processor) Limits() common.BatchLimits { return p.limits }

// ProcessBatch validates the whole batch before any processing starts, then
// runs Process. Validation failures are returned as *common.AppError.
func (p *Processor) ProcessBatch(ctx context.Context, items []entity.ImageItem) (*report.BatchResult, error) {
	if err := common.ValidateBatch(items, p.limits); err != nil {
		return nil, err
	}
	return p.Process(ctx, items), nil
}

// Process never fails as a whole: every per-image failure becomes an error
// outcome for that image only.
func (p *Processor) Process(ctx context.Context, items []entity.ImageItem) *report.BatchResult {
	start := time.Now()
	logger := common.LoggerFromContext(ctx, p.Logger)

	plan := p.dedupe.Plan(ctx, items)
	logger.Info("batch planned",
		"images", len(items),
		"to_extract", len(plan.Tasks),
		"cache_hits", plan.Hits(),
	)

	extracted := make([]entity.Outcome, len(items))
	var g errgroup.Group
	for _, idx := range plan.Tasks {
		entry := plan.Entries[idx]
		item := items[idx]
		g.Go(func() error {
			extracted[idx] = p.runUnit(ctx, logger, item, entry.Fingerprint)
			return nil
		})
	}
	_ = g.Wait()

	outcomes := plan.Resolve(extracted)
	out := make([]report.Item, len(items))
	for i, item := range items {
		out[i] = report.Item{
			Filename: item.Filename,
			Outcome:  outcomes[i],
			CacheHit: plan.Entries[i].CacheHit(),
		}
	}
	res := report.Build(out, start, time.Now())
	p.metrics.Batch(res.ImageCount, res.CacheHits, res.CacheMisses)

	logger.Info("batch processed",
		"images", res.ImageCount,
		"cache_hits", res.CacheHits,
		"cache_misses", res.CacheMisses,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res
}

// runUnit extracts one unique image inside its own scoped file.
func (p *Processor) runUnit(ctx context.Context, logger *slog.Logger, item entity.ImageItem, fp dedupe.Fingerprint) (out entity.Outcome) {
	start := time.Now()
	done := p.metrics.Started()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("unit panicked", "file", item.Filename, "panic", r, "stack", string(debug.Stack()))
			out = entity.Failure(fmt.Sprintf("panic: %v", r))
		}
		done()
		p.metrics.Extraction(string(out.Kind), time.Since(start))
	}()

	id, err := p.seq.NextID(ctx)
	if err != nil {
		logger.Error("allocate resource id failed", "file", item.Filename, "error", err)
		return entity.Failure(fmt.Sprintf("allocate resource id: %v", err))
	}

	var res extract.TextExtractionResult
	work := func(ctx context.Context) error {
		return p.scopes.With(ctx, id, item, func(ctx context.Context, path string) error {
			var err error
			res, err = p.extractor.Extract(ctx, path)
			return err
		})
	}
	if p.pool != nil {
		err = p.pool.Do(ctx, work)
	} else {
		err = work(ctx)
	}
	if err != nil {
		logger.Warn("extraction failed", "file", item.Filename, "id", id.String(), "error", err)
		return entity.Failure(err.Error())
	}

	out = Classify(res)
	logger.Debug("extraction done",
		"file", item.Filename,
		"id", id.String(),
		"method", res.Method,
		"outcome", out.Kind,
		"confidence", res.Confidence,
	)
	// The request may be gone by now; the result is still worth caching.
	p.dedupe.Store(context.WithoutCancel(ctx), fp, out)
	return out
}

// Classify maps an extraction result onto an outcome using its status.
// Recognized text is kept verbatim even when it looks like a sentinel or the
// error prefix; blank text counts as no text.
func Classify(res extract.TextExtractionResult) entity.Outcome {
	switch res.Status {
	case ocr.StatusLowConfidence:
		return entity.NoText(true)
	case ocr.StatusNoText:
		return entity.NoText(false)
	}
	t := strings.TrimSpace(res.Text)
	if t == "" {
		return entity.NoText(false)
	}
	return entity.Success(t)
}
