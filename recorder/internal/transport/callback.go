package transport

import "context"

// EmitFunc handles an event in-process.
type EmitFunc func(ctx context.Context, event string, payload any) error

// Callback delivers events as Go function calls with no serialisation,
// for hosts embedding the recorder in the same binary.
type Callback struct {
	fn EmitFunc
}

// NewCallback creates a Callback emitter. A nil fn discards events.
func NewCallback(fn EmitFunc) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Emit(ctx context.Context, event string, payload any) error {
	if c.fn == nil {
		return nil
	}
	return c.fn(ctx, event, payload)
}

func (c *Callback) Close() error { return nil }
