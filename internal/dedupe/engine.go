package dedupe

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/ocr-batch/internal/entity"
)

// Cache is the subset of the shared cache the engine needs.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
}

// Source says how an item of a batch gets its outcome.
type Source int

const (
	// SourceExtract items are cache misses and must be extracted.
	SourceExtract Source = iota
	// SourceBatch items repeat the bytes of an earlier item in the same batch.
	SourceBatch
	// SourceCache items were found in the shared cache.
	SourceCache
)

func (s Source) String() string {
	switch s {
	case SourceBatch:
		return "batch"
	case SourceCache:
		return "cache"
	default:
		return "extract"
	}
}

// Entry is the dedup decision for one item, at the same index as the item.
type Entry struct {
	Index       int
	Fingerprint Fingerprint
	Source      Source
	// Primary is the index of the first item with this fingerprint. It equals
	// Index for first occurrences.
	Primary int
	// Outcome is set for cache hits and for duplicates of a cache hit.
	Outcome  entity.Outcome
	Resolved bool
}

// CacheHit reports whether the item needs no extraction of its own.
func (e Entry) CacheHit() bool { return e.Source != SourceExtract }

// Plan is the result of deduplicating one batch.
type Plan struct {
	Entries []Entry
	// Tasks holds the indexes of items to extract, in arrival order.
	Tasks []int
}

func (p Plan) Hits() int { return len(p.Entries) - len(p.Tasks) }

func (p Plan) Misses() int { return len(p.Tasks) }

// Engine fingerprints items and consults the shared cache. A nil cache or a
// failing one degrades to intra-batch dedup only.
type Engine struct {
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewEngine(cache Cache, ttl time.Duration, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cache: cache, ttl: ttl, logger: logger}
}

// Plan walks items in order. The first occurrence of a fingerprint is looked
// up in the cache; later occurrences reuse it without touching the cache.
func (e *Engine) Plan(ctx context.Context, items []entity.ImageItem) Plan {
	plan := Plan{Entries: make([]Entry, len(items))}
	first := make(map[Fingerprint]int, len(items))

	for i, item := range items {
		fp := Compute(item.Data)
		entry := Entry{Index: i, Fingerprint: fp, Primary: i}

		if p, seen := first[fp]; seen {
			entry.Source = SourceBatch
			entry.Primary = p
			if prior := plan.Entries[p]; prior.Resolved {
				entry.Outcome = prior.Outcome
				entry.Resolved = true
			}
			plan.Entries[i] = entry
			e.logger.Debug("duplicate within batch", "file", item.Filename, "primary", p)
			continue
		}
		first[fp] = i

		if out, ok := e.Lookup(ctx, fp); ok {
			entry.Source = SourceCache
			entry.Outcome = out
			entry.Resolved = true
			e.logger.Debug("cache hit", "file", item.Filename, "fingerprint", fp.Hex())
		} else {
			entry.Source = SourceExtract
			plan.Tasks = append(plan.Tasks, i)
		}
		plan.Entries[i] = entry
	}
	return plan
}

// Lookup returns the cached outcome for fp. Cache errors are logged and
// reported as a miss.
func (e *Engine) Lookup(ctx context.Context, fp Fingerprint) (entity.Outcome, bool) {
	if e.cache == nil {
		return entity.Outcome{}, false
	}
	v, ok, err := e.cache.Get(ctx, fp.CacheKey())
	if err != nil {
		e.logger.Warn("cache lookup failed, treating as miss", "fingerprint", fp.Hex(), "error", err)
		return entity.Outcome{}, false
	}
	if !ok {
		return entity.Outcome{}, false
	}
	return entity.ParseCached(v), true
}

// Store writes a cacheable outcome for fp. Error outcomes are skipped. It
// returns whether the write happened.
func (e *Engine) Store(ctx context.Context, fp Fingerprint, out entity.Outcome) bool {
	if e.cache == nil || !out.Cacheable() {
		return false
	}
	if err := e.cache.SetWithTTL(ctx, fp.CacheKey(), out.Render(), e.ttl); err != nil {
		e.logger.Warn("cache store failed", "fingerprint", fp.Hex(), "error", err)
		return false
	}
	return true
}

// Resolve fills in every item's outcome. extracted is indexed like the batch
// and only read at the indexes listed in Tasks; duplicates copy their primary.
func (p Plan) Resolve(extracted []entity.Outcome) []entity.Outcome {
	out := make([]entity.Outcome, len(p.Entries))
	for i, entry := range p.Entries {
		if entry.Resolved {
			out[i] = entry.Outcome
			continue
		}
		var o entity.Outcome
		if entry.Primary < len(extracted) {
			o = extracted[entry.Primary]
		}
		if o.Kind == "" {
			o = entity.Failure("no result produced")
		}
		out[i] = o
	}
	return out
}
