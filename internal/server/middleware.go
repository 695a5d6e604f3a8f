package server

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/ocr-batch/internal/common"
)

const requestIDHeader = "X-Request-ID"

func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		client := s.clientKey(r)
		logger := s.logger.With("request_id", rid, "client", client)

		ctx := common.WithRequestID(r.Context(), rid)
		ctx = common.WithClient(ctx, client)
		ctx = common.WithLogger(ctx, logger)

		w.Header().Set(requestIDHeader, rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientKey identifies the caller for rate limiting: the remote host, or the
// first X-Forwarded-For hop when proxy headers are trusted.
func (s *Server) clientKey(r *http.Request) string {
	if s.opts.TrustProxyHeaders {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := common.ClientFromContext(r.Context())
		d := s.limiter.Allow(client)
		if !d.Allowed {
			retry := int(math.Ceil(d.RetryAfter.Seconds()))
			if retry < 1 {
				retry = 1
			}
			common.LoggerFromContext(r.Context(), s.logger).Warn("rate limit exceeded", "rule", d.Rule.String(), "retry_after_s", retry)
			s.metrics.RateLimited()
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			writeDetail(w, http.StatusTooManyRequests, fmt.Sprintf("Rate limit exceeded: %s", d.Rule))
			return
		}
		next.ServeHTTP(w, r)
	})
}
