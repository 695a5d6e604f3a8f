package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	m := New()
	m.Batch(3, 1, 2)
	m.Extraction("success", 200*time.Millisecond)
	m.Extraction("error", time.Second)
	m.RateLimited()
	m.Rejected("EMPTY_BATCH")
	done := m.Started()
	done()

	if got := testutil.ToFloat64(m.images); got != 3 {
		t.Fatalf("images = %v", got)
	}
	if got := testutil.ToFloat64(m.extractions.WithLabelValues("error")); got != 1 {
		t.Fatalf("error extractions = %v", got)
	}
	if got := testutil.ToFloat64(m.inflight); got != 0 {
		t.Fatalf("inflight = %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "ocr_cache_hits_total 1") {
		t.Fatalf("exposition missing cache hits:\n%s", rec.Body.String())
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.Batch(1, 0, 1)
	m.Extraction("success", time.Second)
	m.RateLimited()
	m.Rejected("x")
	m.Started()()
	if m.Registry() != nil {
		t.Fatalf("nil metrics should have no registry")
	}
}
