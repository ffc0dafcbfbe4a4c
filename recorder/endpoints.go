package recorder

import (
	"context"
	"errors"
	"time"

	"github.com/hazyhaar/wsrecorder/kit"
	"github.com/hazyhaar/wsrecorder/recorder/action"
)

// Service names shared by the MCP tools and the host registry.
const (
	ServiceToggle = "recorder_toggle"
	ServiceStatus = "recorder_status"
	ServiceBuffer = "recorder_buffer"
	ServiceReset  = "recorder_reset"

	// ToolEvents is MCP only: it takes raw page events as arguments.
	ToolEvents = "recorder_events"
)

// ErrEventType rejects an event without a type.
var ErrEventType = errors.New("recorder: event type is required")

type ToggleResult struct {
	Recording bool `json:"recording"`
}

type BufferResult struct {
	Count   int           `json:"count"`
	History action.Buffer `json:"history"`
}

type ResetResult struct {
	Reset bool `json:"reset"`
}

// EventsResult counts events queued for capture and events dropped
// because the queue was full.
type EventsResult struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
}

type eventsArgs struct {
	Events []Event `json:"events"`
}

// submitEvents queues events for capture. Nothing is queued when one of
// them has no type.
func (r *Recorder) submitEvents(events []Event) (EventsResult, error) {
	var res EventsResult
	for _, ev := range events {
		if ev.Type == "" {
			return res, ErrEventType
		}
	}
	for _, ev := range events {
		if r.Submit(ev) {
			res.Accepted++
		} else {
			res.Dropped++
		}
	}
	return res, nil
}

type service struct {
	name        string
	description string
	endpoint    kit.Endpoint
	// interactive calls may wait on the user, so no deadline is imposed.
	interactive bool
}

func (r *Recorder) services() []service {
	svcs := []service{
		{ServiceToggle, "Start recording, or stop it and prompt for a name before emitting the script.",
			func(ctx context.Context, _ any) (any, error) {
				on, err := r.Toggle(ctx)
				if err != nil {
					return nil, err
				}
				return ToggleResult{Recording: on}, nil
			}, true},
		{ServiceStatus, "Report whether recording is on, the buffered action count and the page location.",
			func(ctx context.Context, _ any) (any, error) { return r.Status(ctx) }, false},
		{ServiceBuffer, "Return the actions recorded so far, keyed by timestamp.",
			func(ctx context.Context, _ any) (any, error) {
				b, err := r.Buffer(ctx)
				if err != nil {
					return nil, err
				}
				return BufferResult{Count: len(b), History: b}, nil
			}, false},
		{ServiceReset, "Discard the actions recorded so far without emitting them.",
			func(ctx context.Context, _ any) (any, error) {
				if err := r.Reset(ctx); err != nil {
					return nil, err
				}
				return ResetResult{Reset: true}, nil
			}, false},
	}
	for i := range svcs {
		svcs[i].endpoint = kit.Chain(r.logCall(svcs[i].name))(svcs[i].endpoint)
	}
	return svcs
}

func (r *Recorder) logCall(name string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			attrs := []any{
				"service", name,
				"transport", kit.GetTransport(ctx),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if id := kit.GetTraceID(ctx); id != "" {
				attrs = append(attrs, "trace_id", id)
			}
			if err != nil {
				r.logger.Warn("recorder: call failed", append(attrs, "error", err)...)
			} else {
				r.logger.Debug("recorder: call", attrs...)
			}
			return resp, err
		}
	}
}
