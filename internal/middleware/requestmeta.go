package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// RequestIDHeader carries the request id on responses.
const RequestIDHeader = "X-Request-ID"

// RequestMeta holds request-derived data for tracking and rate limiting.
type RequestMeta struct {
	ClientIP  string
	UserAgent string
	RequestID string
}

type requestMetaKey struct{}

// ContextWithRequestMeta returns a context carrying meta.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext returns the request metadata stored by Metadata.
func RequestMetaFromContext(ctx context.Context) (RequestMeta, bool) {
	meta, ok := ctx.Value(requestMetaKey{}).(RequestMeta)

	return meta, ok
}

// Metadata is a router middleware that stores client IP, user agent and a request id
// in the request context. newID mints request ids.
func Metadata(newID func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			meta := RequestMeta{
				ClientIP:  ClientIP(r),
				UserAgent: r.Header.Get("User-Agent"),
				RequestID: newID(),
			}

			w.Header().Set(RequestIDHeader, meta.RequestID)

			next.ServeHTTP(w, r.WithContext(ContextWithRequestMeta(r.Context(), meta)))
		})
	}
}

// ClientIP returns the first X-Forwarded-For entry, or the connection address.
// The header is trusted as sent.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
