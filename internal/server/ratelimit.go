package server

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/siri1404/NeuroRAG/internal/metrics"
)

// rateLimiter rejects requests beyond the configured rate with 429. A
// single process-wide token bucket is enough; per-client fairness is the
// job of the fronting proxy.
func (s *Server) rateLimiter() func(http.Handler) http.Handler {
	burst := s.cfg.RateBurst
	if burst < 1 {
		burst = int(s.cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
	}
	limiter := rate.NewLimiter(rate.Limit(s.cfg.RateLimit), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				metrics.RateLimitRequestsTotal.WithLabelValues("limited").Inc()
				s.respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()
			next.ServeHTTP(w, r)
		})
	}
}
