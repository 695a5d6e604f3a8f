package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	batches     prometheus.Counter
	images      prometheus.Counter
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	extractions *prometheus.CounterVec
	duration    prometheus.Histogram
	rateLimited prometheus.Counter
	rejected    *prometheus.CounterVec
	inflight    prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ocr_batches_total",
			Help: "Batches accepted for processing.",
		}),
		images: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ocr_images_total",
			Help: "Images received in accepted batches.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ocr_cache_hits_total",
			Help: "Images resolved without extraction.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ocr_cache_misses_total",
			Help: "Images that needed extraction.",
		}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ocr_extractions_total",
			Help: "Extractions by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ocr_extraction_duration_seconds",
			Help:    "Wall time of one extraction unit.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ocr_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ocr_requests_rejected_total",
			Help: "Batches rejected before processing, by code.",
		}, []string{"code"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ocr_extractions_inflight",
			Help: "Extraction units currently running.",
		}),
	}
	reg.MustRegister(
		m.batches, m.images, m.cacheHits, m.cacheMisses,
		m.extractions, m.duration, m.rateLimited, m.rejected, m.inflight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Batch(images, hits, misses int) {
	if m == nil {
		return
	}
	m.batches.Inc()
	m.images.Add(float64(images))
	m.cacheHits.Add(float64(hits))
	m.cacheMisses.Add(float64(misses))
}

// Extraction records one finished unit.
func (m *Metrics) Extraction(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}

// Started marks a unit as running; call the returned func when it ends.
func (m *Metrics) Started() func() {
	if m == nil {
		return func() {}
	}
	m.inflight.Inc()
	return m.inflight.Dec
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *Metrics) Rejected(code string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(code).Inc()
}
