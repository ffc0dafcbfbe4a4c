package transport

import (
	"context"
	"log/slog"
)

// Router fans events out to every configured emitter. One failure does not
// block the others; failures are logged and the first is returned.
type Router struct {
	emitters []Emitter
	logger   *slog.Logger
}

// NewRouter creates a fan-out router.
func NewRouter(logger *slog.Logger, emitters ...Emitter) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{emitters: emitters, logger: logger}
}

func (r *Router) Emit(ctx context.Context, event string, payload any) error {
	var firstErr error
	for _, e := range r.emitters {
		if err := e.Emit(ctx, event, payload); err != nil {
			r.logger.Warn("transport: emit failed", "event", event, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// On registers h on every socket among the router's emitters.
func (r *Router) On(event string, h Handler) {
	for _, e := range r.emitters {
		if s, ok := e.(Socket); ok {
			s.On(event, h)
		}
	}
}

func (r *Router) Close() error {
	var firstErr error
	for _, e := range r.emitters {
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
