package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	defaultRequestIDHeader = "X-Request-Id"

	// Inbound ids beyond this length are discarded and reminted; they end up
	// in every log line and error envelope.
	maxRequestIDLen = 128
)

type ctxKeyRequestID struct{}

// RequestIDFromContext returns the request id set by RequestIDMiddleware,
// or "" outside a request.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return v
}

// RequestIDMiddleware reuses a caller-supplied id when it is sane and mints a
// uuid otherwise. The id is echoed on the response and stored in the context.
func RequestIDMiddleware(headerName string) func(next http.Handler) http.Handler {
	if strings.TrimSpace(headerName) == "" {
		headerName = defaultRequestIDHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := sanitizeRequestID(r.Header.Get(headerName))
			if rid == "" {
				rid = uuid.NewString()
			}
			w.Header().Set(headerName, rid)
			ctx := context.WithValue(r.Context(), ctxKeyRequestID{}, rid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sanitizeRequestID(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > maxRequestIDLen {
		return ""
	}
	return v
}
