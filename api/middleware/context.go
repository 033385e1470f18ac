package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type ctxKeyAPIKey struct{}

// APIKeyFromContext returns the API key extracted by APIKeyAuth, if any.
func APIKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(ctxKeyAPIKey{}).(string)
	return key
}

func withAPIKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ctxKeyAPIKey{}, key)
}

// ClientIP resolves the caller address, honoring the first
// X-Forwarded-For hop when a proxy fronts the service.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.SplitN(forwarded, ",", 2)[0])
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
