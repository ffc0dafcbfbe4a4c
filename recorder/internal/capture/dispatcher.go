// Package capture receives DOM events from the page and feeds them to the
// recording session. The page side is capture.js, injected into every
// document; it reports each event through a CDP runtime binding.
package capture

import (
	"context"
	_ "embed"
	"log/slog"
	"sync/atomic"

	"github.com/hazyhaar/wsrecorder/recorder/action"
	"github.com/hazyhaar/wsrecorder/recorder/internal/normalize"
)

//go:embed capture.js
var Script string

// BindingName is the window function capture.js calls with each event.
const BindingName = "__recorder_binding"

// Appender is the session surface the dispatcher needs.
type Appender interface {
	Append(ctx context.Context, rec action.Record) (bool, error)
}

// Dispatcher serialises page events through one consumer goroutine.
type Dispatcher struct {
	sess   Appender
	norm   *normalize.Normalizer
	hotkey *Hotkey
	ch     chan normalize.Event
	logger *slog.Logger

	appended atomic.Int64
	dropped  atomic.Int64
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithHotkey routes keydown events to h before capture.
func WithHotkey(h *Hotkey) DispatcherOption { return func(d *Dispatcher) { d.hotkey = h } }

// WithQueueSize sets the event queue capacity. Default: 1024.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) { d.ch = make(chan normalize.Event, n) }
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher creates a Dispatcher appending to sess.
func NewDispatcher(sess Appender, norm *normalize.Normalizer, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sess:   sess,
		norm:   norm,
		ch:     make(chan normalize.Event, 1024),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Submit queues ev without blocking. It reports false when the queue is
// full and the event was dropped.
func (d *Dispatcher) Submit(ev normalize.Event) bool {
	select {
	case d.ch <- ev:
		return true
	default:
		if d.dropped.Add(1)%100 == 1 {
			d.logger.Warn("capture: queue full, dropping events", "dropped", d.dropped.Load())
		}
		return false
	}
}

// Run consumes queued events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.ch:
			d.Handle(ctx, ev)
		}
	}
}

// Handle processes one event synchronously.
func (d *Dispatcher) Handle(ctx context.Context, ev normalize.Event) {
	if action.Kind(ev.Type).IsCaptured() {
		ok, err := d.sess.Append(ctx, d.norm.Normalize(ev))
		if err != nil {
			d.logger.Error("capture: append", "type", ev.Type, "error", err)
		} else if ok {
			d.appended.Add(1)
		}
	}
	if d.hotkey != nil {
		d.hotkey.Observe(ctx, ev)
	}
}

// Stats returns the number of appended and dropped events.
func (d *Dispatcher) Stats() (appended, dropped int64) {
	return d.appended.Load(), d.dropped.Load()
}
