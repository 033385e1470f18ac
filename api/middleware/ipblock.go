package middleware

import (
	"net/http"

	"github.com/gpuoptimizer/revenue-core/api/responses"
	"github.com/gpuoptimizer/revenue-core/internal/guard"
	pkgerrors "github.com/gpuoptimizer/revenue-core/pkg/errors"
	"github.com/gpuoptimizer/revenue-core/pkg/logger"
	"github.com/gpuoptimizer/revenue-core/pkg/metrics"
)

// IPBlock refuses requests from addresses with an active block. A
// blocklist lookup failure fails open: availability over enforcement.
func IPBlock(blocklist *guard.Blocklist, m *metrics.Metrics, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := ClientIP(r)

			blocked, err := blocklist.IsBlocked(ctx, ip)
			if err != nil {
				if logg != nil {
					logCtx := logg.WithClientIP(ctx, ip)
					logg.Warn(logCtx, "blocklist lookup failed, allowing request")
				}
				next.ServeHTTP(w, r)
				return
			}
			if blocked {
				if logg != nil {
					logCtx := logg.WithClientIP(ctx, ip)
					logg.Warn(logCtx, "blocked ip refused")
				}
				m.IncBlockedHit()
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "access denied"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
