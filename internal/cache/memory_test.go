package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/ocr-batch/constants"
	"github.com/joseph-ayodele/ocr-batch/internal/common"
	"github.com/joseph-ayodele/ocr-batch/internal/scope"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := NewMemoryStoreWithClock(clk.Now)

	if err := s.SetWithTTL(ctx, "k", "v", 300*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	clk.Advance(299 * time.Second)
	if v, ok, _ := s.Get(ctx, "k"); !ok || v != "v" {
		t.Fatalf("expected hit before expiry, got %q %v", v, ok)
	}
	clk.Advance(time.Second)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("expected miss at expiry")
	}
}

func TestMemoryStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.SetWithTTL(ctx, "k", "first", time.Minute)
	_ = s.SetWithTTL(ctx, "k", "second", time.Minute)
	if v, _, _ := s.Get(ctx, "k"); v != "second" {
		t.Fatalf("last write should win, got %q", v)
	}
}

func TestMemoryStore_IncrementConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	const n = 200

	seen := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.Increment(ctx, "seq")
			if err != nil {
				t.Errorf("increment: %v", err)
				return
			}
			seen <- v
		}()
	}
	wg.Wait()
	close(seen)

	uniq := make(map[int64]bool)
	for v := range seen {
		if uniq[v] {
			t.Fatalf("duplicate counter value %d", v)
		}
		uniq[v] = true
	}
	if len(uniq) != n {
		t.Fatalf("got %d values, want %d", len(uniq), n)
	}
}

func TestMemoryStore_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Unix(0, 0)}
	s := NewMemoryStoreWithClock(clk.Now)
	_ = s.SetWithTTL(ctx, "short", "a", time.Second)
	_ = s.SetWithTTL(ctx, "long", "b", time.Hour)
	_ = s.SetWithTTL(ctx, "forever", "c", 0)
	clk.Advance(time.Minute)

	n, err := s.PurgeExpired(ctx)
	if err != nil || n != 1 {
		t.Fatalf("purge = %d, %v; want 1", n, err)
	}
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
}

func TestCounterSequence(t *testing.T) {
	ctx := context.Background()
	seq := NewCounterSequence(NewMemoryStore(), "ids")
	a, _ := seq.NextID(ctx)
	b, _ := seq.NextID(ctx)
	if a.N != 1 || b.N != 2 || a.Instance != "" {
		t.Fatalf("ids = %v, %v", a, b)
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := NewMemoryStore().Get(ctx, "k"); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestSequenceFor(t *testing.T) {
	ctx := context.Background()
	if _, ok := SequenceFor(common.CacheMemory, NewMemoryStore(), nil).(*scope.AtomicSequence); !ok {
		t.Fatal("a local backend should use the process sequence")
	}

	store := NewMemoryStore()
	seq := SequenceFor(common.CachePostgres, store, nil)
	id, err := seq.NextID(ctx)
	if err != nil || id != (scope.ID{N: 1}) {
		t.Fatalf("shared id = %v err=%v", id, err)
	}
	if n, _ := store.Increment(ctx, constants.ScopeSequenceCounter); n != 2 {
		t.Fatalf("counter = %d, want the sequence to draw from the store", n)
	}
}
