package dedupe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joseph-ayodele/ocr-batch/internal/cache"
	"github.com/joseph-ayodele/ocr-batch/internal/entity"
)

type failingCache struct{ sets int }

func (f *failingCache) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}

func (f *failingCache) SetWithTTL(context.Context, string, string, time.Duration) error {
	f.sets++
	return errors.New("connection refused")
}

func item(name, data string) entity.ImageItem {
	return entity.ImageItem{Filename: name, Data: []byte(data), ContentType: "image/png", Size: int64(len(data))}
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := Compute([]byte("same"))
	b := Compute([]byte("same"))
	c := Compute([]byte("other"))
	if a != b {
		t.Fatalf("equal bytes must give equal fingerprints")
	}
	if a == c {
		t.Fatalf("different bytes gave the same fingerprint")
	}
	if len(a.Hex()) != 64 || a.CacheKey() != "ocr:"+a.Hex() {
		t.Fatalf("unexpected key %q", a.CacheKey())
	}
}

func TestPlan_IntraBatchDuplicate(t *testing.T) {
	e := NewEngine(cache.NewMemoryStore(), time.Minute, nil)
	plan := e.Plan(context.Background(), []entity.ImageItem{
		item("1.png", "AAA"), item("2.png", "BBB"), item("3.png", "AAA"),
	})

	if len(plan.Tasks) != 2 || plan.Tasks[0] != 0 || plan.Tasks[1] != 1 {
		t.Fatalf("tasks = %v, want [0 1]", plan.Tasks)
	}
	if plan.Hits() != 1 || plan.Misses() != 2 {
		t.Fatalf("hits/misses = %d/%d", plan.Hits(), plan.Misses())
	}
	dup := plan.Entries[2]
	if dup.Source != SourceBatch || dup.Primary != 0 || !dup.CacheHit() {
		t.Fatalf("unexpected duplicate entry %+v", dup)
	}

	extracted := make([]entity.Outcome, 3)
	extracted[0] = entity.Success("hello")
	extracted[1] = entity.Failure("boom")
	out := plan.Resolve(extracted)
	if out[2].Render() != "hello" || out[0].Render() != "hello" {
		t.Fatalf("duplicate should copy primary, got %+v", out)
	}
	if out[1].Kind != entity.OutcomeError {
		t.Fatalf("failure lost: %+v", out[1])
	}
}

func TestPlan_CacheHitAndStorePolicy(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	e := NewEngine(store, time.Minute, nil)

	fp := Compute([]byte("AAA"))
	if !e.Store(ctx, fp, entity.Success("cached text")) {
		t.Fatalf("success should be stored")
	}
	if e.Store(ctx, Compute([]byte("ERR")), entity.Failure("bad")) {
		t.Fatalf("errors must never be stored")
	}
	if !e.Store(ctx, Compute([]byte("EMPTY")), entity.NoText(true)) {
		t.Fatalf("no-text should be stored")
	}

	plan := e.Plan(ctx, []entity.ImageItem{item("a.png", "AAA"), item("b.png", "AAA"), item("c.png", "ERR"), item("d.png", "EMPTY")})
	if plan.Entries[0].Source != SourceCache {
		t.Fatalf("expected cache hit, got %v", plan.Entries[0].Source)
	}
	if !plan.Entries[1].Resolved || plan.Entries[1].Outcome.Text != "cached text" {
		t.Fatalf("duplicate of cache hit should resolve immediately: %+v", plan.Entries[1])
	}
	if plan.Entries[2].Source != SourceExtract {
		t.Fatalf("errored fingerprint must be re-extracted")
	}
	if got := plan.Entries[3].Outcome; got.Kind != entity.OutcomeNoText || !got.LowConfidence {
		t.Fatalf("no-text round trip lost: %+v", got)
	}
	if plan.Hits()+plan.Misses() != 4 {
		t.Fatalf("hits+misses = %d", plan.Hits()+plan.Misses())
	}
}

func TestPlan_CacheUnavailableDegrades(t *testing.T) {
	fc := &failingCache{}
	e := NewEngine(fc, time.Minute, nil)
	plan := e.Plan(context.Background(), []entity.ImageItem{item("a", "x"), item("b", "x"), item("c", "y")})
	if plan.Misses() != 2 || plan.Hits() != 1 {
		t.Fatalf("hits/misses = %d/%d", plan.Hits(), plan.Misses())
	}
	if e.Store(context.Background(), Compute([]byte("x")), entity.Success("t")) {
		t.Fatalf("store against a failing cache should report false")
	}
	if fc.sets != 1 {
		t.Fatalf("sets = %d", fc.sets)
	}
}

func TestPlan_NilCache(t *testing.T) {
	e := NewEngine(nil, time.Minute, nil)
	plan := e.Plan(context.Background(), []entity.ImageItem{item("a", "x")})
	if plan.Misses() != 1 {
		t.Fatalf("misses = %d", plan.Misses())
	}
}
