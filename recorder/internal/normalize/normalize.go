// Package normalize turns raw DOM events reported by the page capture script
// into action records.
package normalize

import (
	"time"

	"github.com/hazyhaar/wsrecorder/recorder/action"
	"github.com/hazyhaar/wsrecorder/recorder/internal/locator"
)

// Event is a DOM event as reported by the capture script. Only the fields
// relevant to the event's type are populated.
type Event struct {
	Type     string  `json:"type"`
	TagName  string  `json:"tagName"`
	Value    *string `json:"value"` // nil when the target has no value or a falsy one
	Location string  `json:"location"`

	// Lineage runs from event.target up to the document.
	Lineage []locator.Ancestor `json:"lineage"`

	// Keyboard.
	Key     string `json:"key"`
	Code    string `json:"code"`
	KeyCode int    `json:"keyCode"`

	// Pointer.
	Button  int     `json:"button"`
	ClientX float64 `json:"clientX"`
	ClientY float64 `json:"clientY"`
	ScreenX float64 `json:"screenX"`
	ScreenY float64 `json:"screenY"`

	// Window scroll offsets, sampled for every event.
	ScrollX float64 `json:"scrollX"`
	ScrollY float64 `json:"scrollY"`

	// Modifier state, used by the hotkey controller.
	CtrlKey  bool `json:"ctrlKey"`
	AltKey   bool `json:"altKey"`
	ShiftKey bool `json:"shiftKey"`
	MetaKey  bool `json:"metaKey"`
}

// Normalizer builds action records. The zero value is not usable; use New.
type Normalizer struct {
	now func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// New creates a Normalizer reading the wall clock.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{now: time.Now}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Normalize converts ev into a record. It never fails: unknown event types
// get an empty additionalInfo.
func (n *Normalizer) Normalize(ev Event) action.Record {
	kind := action.Kind(ev.Type)
	return action.Record{
		TagName:        ev.TagName,
		Action:         kind,
		Value:          value(ev.Value),
		Selector:       locator.Of(locator.FromLineage(ev.Lineage)),
		Location:       ev.Location,
		Timestamp:      action.FormatTimestamp(n.now()),
		AdditionalInfo: info(kind, ev),
	}
}

// value maps an absent or empty element value to null.
func value(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	s := *v
	return &s
}

func info(kind action.Kind, ev Event) action.Info {
	switch action.ShapeOf(kind) {
	case action.ShapeScroll:
		return action.ScrollInfo{ScrollX: ev.ScrollX, ScrollY: ev.ScrollY}
	case action.ShapeKey:
		return action.KeyInfo{Key: ev.Key, Code: ev.Code, KeyCode: ev.KeyCode}
	case action.ShapePointer:
		return action.PointerInfo{
			Button:  ev.Button,
			ClientX: ev.ClientX,
			ClientY: ev.ClientY,
			ScreenX: ev.ScreenX,
			ScreenY: ev.ScreenY,
		}
	default:
		return action.EmptyInfo{}
	}
}
