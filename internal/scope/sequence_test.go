package scope

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/joseph-ayodele/ocr-batch/internal/entity"
)

// flakySequence fails while down is set and counts from 1 otherwise.
type flakySequence struct {
	down atomic.Bool
	n    atomic.Int64
}

func (f *flakySequence) NextID(context.Context) (ID, error) {
	if f.down.Load() {
		return ID{}, errors.New("counter store unreachable")
	}
	return ID{N: f.n.Add(1)}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFallbackSequence_UsesPrimaryWhenHealthy(t *testing.T) {
	seq := NewFallbackSequence(&flakySequence{}, quietLogger())
	id, err := seq.NextID(context.Background())
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	if id != (ID{N: 1}) {
		t.Fatalf("id = %v, want primary id 1", id)
	}
}

func TestFallbackSequence_PrimaryDown(t *testing.T) {
	primary := &flakySequence{}
	primary.down.Store(true)
	seq := NewFallbackSequence(primary, quietLogger())

	const n = 200
	var mu sync.Mutex
	seen := make(map[ID]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := seq.NextID(context.Background())
			if err != nil {
				t.Errorf("next id: %v", err)
				return
			}
			if id.Instance == "" {
				t.Errorf("fallback id %v has no instance token", id)
			}
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != n {
		t.Fatalf("got %d unique ids, want %d", len(seen), n)
	}

	// Once the primary recovers its ids must not collide with local ones.
	primary.down.Store(false)
	id, err := seq.NextID(context.Background())
	if err != nil || seen[id] || id.Instance != "" {
		t.Fatalf("recovered id = %v err=%v", id, err)
	}
}

func TestFallbackSequence_InstancesDoNotCollide(t *testing.T) {
	down := &flakySequence{}
	down.down.Store(true)
	a := NewFallbackSequence(down, quietLogger())
	b := NewFallbackSequence(down, quietLogger())

	ida, _ := a.NextID(context.Background())
	idb, _ := b.NextID(context.Background())
	if ida.N != idb.N {
		t.Fatalf("expected both instances to start at the same local count, got %v and %v", ida, idb)
	}
	if Name(ida, ".png") == Name(idb, ".png") {
		t.Fatalf("two instances produced the same file name %q", Name(ida, ".png"))
	}

	m := newManager(t)
	item := entity.ImageItem{Filename: "a.png", Data: []byte("x")}
	err := m.With(context.Background(), ida, item, func(ctx context.Context, _ string) error {
		return m.With(ctx, idb, item, func(context.Context, string) error { return nil })
	})
	if err != nil {
		t.Fatalf("nested scopes from two instances: %v", err)
	}
	assertEmpty(t, m.Dir())
}
