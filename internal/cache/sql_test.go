package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func openTestSQLite(t *testing.T) *SQLStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	s, err := OpenSQLite(context.Background(), dsn, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLStore_GetSet(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := s.SetWithTTL(ctx, "k", "hello", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetWithTTL(ctx, "k", "world", time.Minute); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || v != "world" {
		t.Fatalf("get = %q %v %v", v, ok, err)
	}
}

func TestSQLStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s.now = clk.Now

	_ = s.SetWithTTL(ctx, "k", "v", 300*time.Second)
	_ = s.SetWithTTL(ctx, "forever", "v", 0)
	clk.Advance(301 * time.Second)

	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("expected expired entry to miss")
	}
	if _, ok, _ := s.Get(ctx, "forever"); !ok {
		t.Fatalf("entry without ttl should not expire")
	}
	n, err := s.PurgeExpired(ctx)
	if err != nil || n != 1 {
		t.Fatalf("purge = %d %v", n, err)
	}
}

func TestSQLStore_Increment(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	var wg sync.WaitGroup
	results := make(chan int64, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.Increment(ctx, "seq")
			if err != nil {
				t.Errorf("increment: %v", err)
				return
			}
			results <- n
		}()
	}
	wg.Wait()
	close(results)

	seen := map[int64]bool{}
	for n := range results {
		if seen[n] {
			t.Fatalf("duplicate value %d", n)
		}
		seen[n] = true
	}
	for i := int64(1); i <= 20; i++ {
		if !seen[i] {
			t.Fatalf("missing value %d", i)
		}
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestSQLStore_MigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	if err := s.SetWithTTL(ctx, "k", "kept", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := s.Increment(ctx, "seq"); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := s.migrate(ctx); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if v, ok, err := s.Get(ctx, "k"); err != nil || !ok || v != "kept" {
		t.Fatalf("entry after migrate = %q %v %v", v, ok, err)
	}
	if n, err := s.Increment(ctx, "seq"); err != nil || n != 2 {
		t.Fatalf("counter after migrate = %d %v", n, err)
	}
}
