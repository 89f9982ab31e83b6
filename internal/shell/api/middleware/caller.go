// Package middleware provides HTTP middleware for the deployer API.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"unicode"
)

// HeaderUserID carries the caller identity set by the fronting proxy.
const HeaderUserID = "X-User-ID"

// maxCallerLen bounds the identity copied into logs and history.
const maxCallerLen = 128

type contextKey struct{}

// =============================================================================
// Context
// =============================================================================

// WithCaller stores the caller identity in ctx.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, contextKey{}, caller)
}

// CallerFromContext returns the caller identity, or "" when none was sent.
func CallerFromContext(ctx context.Context) string {
	caller, _ := ctx.Value(contextKey{}).(string)
	return caller
}

// =============================================================================
// Caller Middleware
// =============================================================================

// CallerConfig holds configuration for the caller middleware.
type CallerConfig struct {
	// Header overrides HeaderUserID.
	Header string

	Logger *slog.Logger
}

// CallerMiddleware copies the caller identity header into the request
// context. The identity is used for log attribution only and is never
// checked, so requests without it are passed through unchanged.
type CallerMiddleware struct {
	config CallerConfig
}

// NewCallerMiddleware creates a new caller middleware with the given config.
func NewCallerMiddleware(cfg CallerConfig) *CallerMiddleware {
	if cfg.Header == "" {
		cfg.Header = HeaderUserID
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CallerMiddleware{config: cfg}
}

// Handler returns the middleware handler function.
func (m *CallerMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(m.config.Header)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		caller := sanitizeCaller(raw)
		if caller != raw {
			m.config.Logger.Debug("caller identity sanitized",
				"header", m.config.Header,
				"path", r.URL.Path,
			)
		}
		if caller != "" {
			r = r.WithContext(WithCaller(r.Context(), caller))
		}

		next.ServeHTTP(w, r)
	})
}

// sanitizeCaller strips control characters and surrounding space, and
// truncates to maxCallerLen runes.
func sanitizeCaller(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)

	if runes := []rune(s); len(runes) > maxCallerLen {
		s = string(runes[:maxCallerLen])
	}
	return s
}
