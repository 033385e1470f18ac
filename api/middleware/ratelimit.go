package middleware

import (
	"net/http"
	"time"

	"github.com/gpuoptimizer/revenue-core/api/responses"
	"github.com/gpuoptimizer/revenue-core/internal/guard"
	pkgerrors "github.com/gpuoptimizer/revenue-core/pkg/errors"
	"github.com/gpuoptimizer/revenue-core/pkg/logger"
	"github.com/gpuoptimizer/revenue-core/pkg/metrics"
)

// RateLimit denies requests once the caller's IP exceeds limit within
// window. State lives in the shared limiter, so distinct scopes with
// the same limiter share nothing because the identifier is prefixed by
// scope.
func RateLimit(limiter *guard.RateLimiter, scope string, limit int, window time.Duration, m *metrics.Metrics, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if !limiter.Allow(scope+":"+ip, limit, window) {
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{"client_ip": ip, "scope": scope})
					logg.Warn(ctx, "rate_limit.denied")
				}
				m.IncRateLimited(scope)
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded, try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
