package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/wsrecorder/idgen"
	"github.com/hazyhaar/wsrecorder/kit"
)

var newTraceID = idgen.NanoID(8)

// TraceID tags each request with a trace ID, echoed in X-Trace-ID. An
// incoming X-Trace-ID is kept. The ID lands in the context via kit and in a
// request-scoped logger under LoggerKey.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = newTraceID()
		}
		w.Header().Set("X-Trace-ID", traceID)

		logger := slog.Default().With(
			"trace_id", traceID,
			"method", r.Method,
			"path", r.URL.Path,
		)
		logger.Debug("shield: request")

		ctx := kit.WithTraceID(r.Context(), traceID)
		ctx = context.WithValue(ctx, LoggerKey, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetLogger returns the request logger, or slog.Default outside a request.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
