package auth

import (
	"net/http"
	"strings"

	"github.com/example/fiction-portal/internal/platform/api"
	"github.com/example/fiction-portal/internal/platform/httpserver"
)

// RequireAdmin allows the request only when RequireUser already put role=admin
// into the context.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ := RoleFromContext(r.Context())
		if !strings.EqualFold(strings.TrimSpace(role), "admin") {
			rid := httpserver.RequestIDFromContext(r.Context())
			api.Forbidden(w, "FORBIDDEN", "admin role required", rid)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireToken gates service-to-service endpoints with a shared bearer token.
// Used by the catalog store; empty expected token disables the check (dev mode).
func RequireToken(expected string) func(next http.Handler) http.Handler {
	expected = strings.TrimSpace(expected)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expected == "" {
				next.ServeHTTP(w, r)
				return
			}
			tok, ok := bearerToken(r)
			if !ok || tok != expected {
				rid := httpserver.RequestIDFromContext(r.Context())
				api.Unauthorized(w, "UNAUTHORIZED", "invalid service token", rid)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
