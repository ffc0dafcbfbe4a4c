package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hazyhaar/wsrecorder/idgen"
)

// WebSocket is a Socket over a gorilla/websocket client connection. Run
// keeps it connected, reconnecting with exponential backoff.
type WebSocket struct {
	url          string
	header       http.Header
	dialer       *websocket.Dialer
	writeTimeout time.Duration
	minBackoff   time.Duration
	maxBackoff   time.Duration
	newID        idgen.Generator
	logger       *slog.Logger

	mu   sync.Mutex // guards conn and serialises writes
	conn *websocket.Conn

	hmu      sync.RWMutex
	handlers map[string][]Handler

	done      chan struct{}
	closeOnce sync.Once
}

// WebSocketOption configures a WebSocket.
type WebSocketOption func(*WebSocket)

// WithHeader sets headers sent on the handshake.
func WithHeader(h http.Header) WebSocketOption {
	return func(w *WebSocket) { w.header = h }
}

// WithReconnectBackoff bounds the delay between reconnect attempts.
// Defaults: 500ms to 30s.
func WithReconnectBackoff(min, max time.Duration) WebSocketOption {
	return func(w *WebSocket) { w.minBackoff, w.maxBackoff = min, max }
}

// WithWriteTimeout bounds each frame write. Default: 10s.
func WithWriteTimeout(d time.Duration) WebSocketOption {
	return func(w *WebSocket) { w.writeTimeout = d }
}

// WithSocketLogger sets a custom logger.
func WithSocketLogger(l *slog.Logger) WebSocketOption {
	return func(w *WebSocket) { w.logger = l }
}

// NewWebSocket creates a socket for url (ws:// or wss://). Call Run to
// connect.
func NewWebSocket(url string, opts ...WebSocketOption) *WebSocket {
	w := &WebSocket{
		url:          url,
		dialer:       websocket.DefaultDialer,
		writeTimeout: 10 * time.Second,
		minBackoff:   500 * time.Millisecond,
		maxBackoff:   30 * time.Second,
		newID:        idgen.Default,
		logger:       slog.Default(),
		handlers:     make(map[string][]Handler),
		done:         make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// On registers h for event. Handlers run on the read goroutine.
func (w *WebSocket) On(event string, h Handler) {
	w.hmu.Lock()
	w.handlers[event] = append(w.handlers[event], h)
	w.hmu.Unlock()
}

// Connected reports whether a connection is live.
func (w *WebSocket) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn != nil
}

// Emit writes one envelope. It fails with ErrNotConnected between
// connections; the caller decides whether to retry.
func (w *WebSocket) Emit(_ context.Context, event string, payload any) error {
	env, err := newEnvelope(w.newID, event, payload)
	if err != nil {
		return fmt.Errorf("websocket: marshal: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return ErrNotConnected
	}
	w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	if err := w.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("websocket: write %s: %w", event, err)
	}
	return nil
}

// Run connects and reads until ctx is cancelled or Close is called.
func (w *WebSocket) Run(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
		case <-w.done:
		}
		w.dropConn()
	}()

	backoff := w.minBackoff
	for {
		if w.stopped(ctx) {
			return
		}

		conn, _, err := w.dialer.DialContext(ctx, w.url, w.header)
		if err != nil {
			w.logger.Warn("websocket: dial failed", "url", w.url, "error", err, "retry_in", backoff)
			if !w.sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, w.maxBackoff)
			continue
		}
		backoff = w.minBackoff

		w.mu.Lock()
		w.conn = conn
		w.mu.Unlock()
		// Close raced with the dial.
		if w.stopped(ctx) {
			w.dropConn()
			return
		}

		w.dispatch(ctx, EventConnect, nil)
		err = w.readLoop(ctx, conn)
		w.dropConn()
		w.dispatch(ctx, EventDisconnect, nil)

		if w.stopped(ctx) {
			return
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			w.logger.Warn("websocket: connection lost", "error", err)
		}
		if !w.sleep(ctx, backoff) {
			return
		}
	}
}

func (w *WebSocket) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			var syn *json.SyntaxError
			var typ *json.UnmarshalTypeError
			if errors.As(err, &syn) || errors.As(err, &typ) {
				w.logger.Warn("websocket: malformed frame", "error", err)
				continue
			}
			return err
		}
		if env.Event == "" {
			continue
		}
		w.dispatch(ctx, env.Event, env.Data)
	}
}

func (w *WebSocket) dispatch(ctx context.Context, event string, data json.RawMessage) {
	w.hmu.RLock()
	hs := w.handlers[event]
	w.hmu.RUnlock()
	for _, h := range hs {
		h(ctx, data)
	}
}

func (w *WebSocket) dropConn() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
}

func (w *WebSocket) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-w.done:
		return true
	default:
		return false
	}
}

func (w *WebSocket) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-w.done:
		return false
	}
}

// Close stops Run and closes the live connection, if any.
func (w *WebSocket) Close() error {
	w.closeOnce.Do(func() { close(w.done) })
	w.dropConn()
	return nil
}
