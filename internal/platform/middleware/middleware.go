// Package middleware carries the request-scoped plumbing applied ahead of the
// privilege guard handlers: correlation IDs, a per-request "now", and client
// metadata for the audit trail.
package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"lexguard/pkg/requestcontext"
)

// RequestID assigns a correlation ID to every request, honoring an inbound
// X-Request-ID when present.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestTime captures the current time at the start of the request so all
// operations within one request share the same "now" in audit entries and
// expiry checks.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientMetadata extracts the client IP and a parsed user-agent summary and
// stores them in the context for the audit trail.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIPFromRequest(r)
		summary := summarizeUserAgent(r.Header.Get("User-Agent"))
		ctx := requestcontext.WithClientMetadata(r.Context(), ip, summary)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// summarizeUserAgent reduces a raw User-Agent header to "Browser x.y (OS)".
// The raw header is too high-entropy to persist alongside audit entries.
func summarizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name == "" {
		return "unknown"
	}
	if os := ua.OS(); os != "" {
		return fmt.Sprintf("%s %s (%s)", name, version, os)
	}
	return fmt.Sprintf("%s %s", name, version)
}

func clientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}
	return "unknown"
}
