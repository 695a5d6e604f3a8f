package async

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_RunsAndReturnsErrors(t *testing.T) {
	p := NewPool(nil, WithWorkers(2))
	defer p.Shutdown(context.Background())

	boom := errors.New("boom")
	if err := p.Do(context.Background(), func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if err := p.Do(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("err = %v", err)
	}
}

func TestPool_RecoversPanics(t *testing.T) {
	p := NewPool(nil, WithWorkers(1))
	defer p.Shutdown(context.Background())

	err := p.Do(context.Background(), func(context.Context) error { panic("kaboom") })
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("err = %v", err)
	}
	// the worker must survive the panic
	if err := p.Do(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("worker did not survive panic: %v", err)
	}
}

func TestPool_BoundedConcurrency(t *testing.T) {
	p := NewPool(nil, WithWorkers(3), WithQueueSize(64))
	defer p.Shutdown(context.Background())

	var cur, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Do(context.Background(), func(context.Context) error {
				n := cur.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				cur.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()
	if peak.Load() > 3 {
		t.Fatalf("peak concurrency %d exceeds workers", peak.Load())
	}
}

func TestPool_SkipsCanceledTasks(t *testing.T) {
	p := NewPool(nil, WithWorkers(1))
	defer p.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := p.Do(ctx, func(context.Context) error { ran = true; return nil })
	if !errors.Is(err, context.Canceled) || ran {
		t.Fatalf("err=%v ran=%v", err, ran)
	}
}

func TestPool_ClosedRejects(t *testing.T) {
	p := NewPool(nil, WithWorkers(1))
	p.Shutdown(context.Background())
	p.Shutdown(context.Background())
	if err := p.Do(context.Background(), func(context.Context) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v", err)
	}
}
