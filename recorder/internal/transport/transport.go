// Package transport delivers recorder events to the outside world: a
// realtime socket, stdout, webhooks or in-process callbacks.
package transport

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/hazyhaar/wsrecorder/idgen"
)

// ErrNotConnected is returned by a socket emitter with no live connection.
var ErrNotConnected = errors.New("transport: not connected")

// Socket lifecycle events, dispatched to handlers registered with On.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
)

// Emitter publishes events. Implementations must be safe for concurrent use.
type Emitter interface {
	Emit(ctx context.Context, event string, payload any) error
	Close() error
}

// Handler receives the data of an inbound event. Lifecycle events carry
// no data.
type Handler func(ctx context.Context, data json.RawMessage)

// Socket is a bidirectional Emitter.
type Socket interface {
	Emitter
	On(event string, h Handler)
}

// Envelope is the wire frame shared by every transport.
type Envelope struct {
	ID    string          `json:"id,omitempty"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func newEnvelope(gen idgen.Generator, event string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{ID: gen(), Event: event, Data: data}, nil
}
