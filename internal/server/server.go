package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/joseph-ayodele/ocr-batch/constants"
	"github.com/joseph-ayodele/ocr-batch/internal/common"
	"github.com/joseph-ayodele/ocr-batch/internal/entity"
	"github.com/joseph-ayodele/ocr-batch/internal/metrics"
	"github.com/joseph-ayodele/ocr-batch/internal/ratelimit"
	"github.com/joseph-ayodele/ocr-batch/internal/report"
)

// BatchProcessor is what the extract endpoint drives.
type BatchProcessor interface {
	Process(ctx context.Context, items []entity.ImageItem) *report.BatchResult
	Limits() common.BatchLimits
}

type Options struct {
	Logger            *slog.Logger
	Processor         BatchProcessor
	Limiter           *ratelimit.Limiter // nil disables rate limiting
	Metrics           *metrics.Metrics
	RequestTimeout    time.Duration
	TrustProxyHeaders bool

	// Reported by /health.
	CacheBackend string
	Engine       string
}

// Server is the HTTP surface of the OCR service.
type Server struct {
	logger    *slog.Logger
	processor BatchProcessor
	limiter   *ratelimit.Limiter
	metrics   *metrics.Metrics
	opts      Options
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		logger:    opts.Logger,
		processor: opts.Processor,
		limiter:   opts.Limiter,
		metrics:   opts.Metrics,
		opts:      opts,
	}
}

// Handler returns the routed handler with request ids and client identity
// attached to every request.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("POST "+constants.ExtractTextPath, s.rateLimit(http.HandlerFunc(s.handleExtract)))
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return s.withRequestContext(mux)
}

// NewHTTPServer wraps Handler in an http.Server listening on addr.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
