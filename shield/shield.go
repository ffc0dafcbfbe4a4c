// Package shield is the HTTP middleware stack in front of the recorder's
// control API.
//
//	r := chi.NewRouter()
//	for _, mw := range shield.Default() {
//		r.Use(mw)
//	}
package shield

import "net/http"

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// MaxRequestBody caps control API request bodies.
const MaxRequestBody = 1 << 20

// Default returns HeadToGet, SecurityHeaders, MaxBody and TraceID, outermost
// first.
func Default() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(APIHeaders()),
		MaxBody(MaxRequestBody),
		TraceID,
	}
}
