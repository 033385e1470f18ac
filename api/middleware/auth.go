package middleware

import (
	"net/http"
	"strings"

	"github.com/gpuoptimizer/revenue-core/api/responses"
	"github.com/gpuoptimizer/revenue-core/pkg/apikey"
	pkgerrors "github.com/gpuoptimizer/revenue-core/pkg/errors"
	"github.com/gpuoptimizer/revenue-core/pkg/logger"
)

// APIKeyAuth extracts the caller's API key from the Authorization
// bearer header or the X-API-Key header and stashes it in the request
// context. A malformed key is refused before any handler runs; an
// absent key passes through so handlers accepting the key in the body
// can still authenticate.
func APIKeyAuth(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := bearerToken(r)
			if key == "" {
				key = r.Header.Get("X-API-Key")
			}
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			if !apikey.IsValid(key) {
				if logg != nil {
					ctx = logg.WithClientIP(ctx, ClientIP(r))
					logg.Warn(ctx, "auth.malformed_api_key")
				}
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid API key"))
				return
			}

			next.ServeHTTP(w, r.WithContext(withAPIKey(ctx, key)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
