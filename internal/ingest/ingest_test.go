package ingest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/ocr-batch/constants"
	"github.com/joseph-ayodele/ocr-batch/internal/entity"
	"github.com/joseph-ayodele/ocr-batch/internal/report"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = byte('a' + i%26)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.png"), 4)
	writeFile(t, filepath.Join(root, "a.JPG"), 4)
	writeFile(t, filepath.Join(root, "notes.txt"), 4)
	writeFile(t, filepath.Join(root, "big.png"), 64)
	writeFile(t, filepath.Join(root, ".hidden", "c.png"), 4)
	writeFile(t, filepath.Join(root, "sub", "d.heic"), 4)

	results, stats, err := ScanDirectory(context.Background(), root, true, 32)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if stats.Matched != 4 || stats.Skipped != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	got := Uploadable(results)
	want := []string{
		filepath.Join(root, "a.JPG"),
		filepath.Join(root, "b.png"),
		filepath.Join(root, "sub", "d.heic"),
	}
	if len(got) != len(want) {
		t.Fatalf("uploadable = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("uploadable[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestChunk(t *testing.T) {
	paths := make([]string, 120)
	chunks := Chunk(paths, constants.DefaultMaxImages)
	if len(chunks) != 3 || len(chunks[0]) != 50 || len(chunks[2]) != 20 {
		t.Fatalf("chunks = %d/%d/%d", len(chunks), len(chunks[0]), len(chunks[len(chunks)-1]))
	}
	if Chunk(nil, 50) != nil {
		t.Fatal("expected no chunks for no paths")
	}
}

// echoHandler answers like the extract endpoint, reporting each part's size.
func echoHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		files := r.MultipartForm.File[constants.UploadFieldName]
		items := make([]report.Item, len(files))
		for i, fh := range files {
			items[i] = report.Item{
				Filename: fh.Filename,
				Outcome:  entity.Success(fh.Header.Get("Content-Type")),
			}
		}
		now := time.Now()
		b, _ := report.Build(items, now, now).MarshalJSON()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
	}
}

func TestClient_Upload(t *testing.T) {
	srv := httptest.NewServer(echoHandler(t))
	defer srv.Close()

	dir := t.TempDir()
	png := filepath.Join(dir, "one.png")
	heic := filepath.Join(dir, "two.heic")
	writeFile(t, png, 8)
	writeFile(t, heic, 8)

	res, err := NewClient(srv.URL, discardLogger()).Upload(context.Background(), []string{png, heic})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.ImageCount != 2 || res.Results[0].Key != "one.png" {
		t.Fatalf("result = %+v", res)
	}
	if res.Results[0].Value != "image/png" || res.Results[1].Value != "image/heic" {
		t.Fatalf("content types = %q, %q", res.Results[0].Value, res.Results[1].Value)
	}
}

func TestClient_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	echo := echoHandler(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"detail":"Rate limit exceeded: 10 per minute"}`)
			return
		}
		echo(w, r)
	}))
	defer srv.Close()

	p := filepath.Join(t.TempDir(), "a.png")
	writeFile(t, p, 4)
	if _, err := NewClient(srv.URL, discardLogger()).Upload(context.Background(), []string{p}); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_, _ = io.WriteString(w, `{"detail":"Maximum 50 images allowed per request"}`)
	}))
	defer srv.Close()

	p := filepath.Join(t.TempDir(), "a.png")
	writeFile(t, p, 4)
	_, err := NewClient(srv.URL, discardLogger()).Upload(context.Background(), []string{p})
	se, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusRequestEntityTooLarge || se.Detail != "Maximum 50 images allowed per request" {
		t.Fatalf("status error = %+v", se)
	}
}

func TestStartWatcher(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batches, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, Debounce: 50 * time.Millisecond}, discardLogger())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	writeFile(t, filepath.Join(root, "notes.txt"), 4)
	writeFile(t, filepath.Join(root, "new.png"), 4)

	select {
	case got := <-batches:
		if len(got) != 1 || filepath.Base(got[0]) != "new.png" {
			t.Fatalf("batch = %v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no batch emitted")
	}
}
