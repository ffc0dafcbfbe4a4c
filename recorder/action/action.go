// Package action defines the records produced by the recorder. It is the
// public contract: anything consuming finalized scripts (replayers, script
// stores, test generators) imports this package.
package action

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind is the DOM event type a record was captured from.
type Kind string

const (
	Click     Kind = "click"
	DblClick  Kind = "dblclick"
	MouseDown Kind = "mousedown"
	MouseUp   Kind = "mouseup"
	MouseOver Kind = "mouseover"
	MouseOut  Kind = "mouseout"
	KeyDown   Kind = "keydown"
	KeyUp     Kind = "keyup"
	KeyPress  Kind = "keypress"
	Input     Kind = "input"
	Change    Kind = "change"
	Scroll    Kind = "scroll"
)

// Captured is the fixed set of event types the page script listens for,
// in registration order.
var Captured = []Kind{
	Click, DblClick, MouseDown, MouseUp, MouseOver, MouseOut,
	KeyDown, KeyUp, KeyPress, Input, Change, Scroll,
}

// IsCaptured reports whether k belongs to the captured set.
func (k Kind) IsCaptured() bool {
	for _, c := range Captured {
		if c == k {
			return true
		}
	}
	return false
}

// TimestampLayout is the ISO-8601 form used for Record.Timestamp and buffer
// keys: UTC, millisecond precision, trailing Z.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Record is one captured interaction.
type Record struct {
	TagName        string  `json:"tagName,omitempty"`
	Action         Kind    `json:"action"`
	Value          *string `json:"value"`
	Selector       *string `json:"selector"`
	Location       string  `json:"location"`
	Timestamp      string  `json:"timestamp"`
	AdditionalInfo Info    `json:"additionalInfo"`
}

// UnmarshalJSON decodes additionalInfo into the variant matching Action.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var raw struct {
		plain
		AdditionalInfo json.RawMessage `json:"additionalInfo"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Record(raw.plain)

	info := NewInfo(r.Action)
	if len(raw.AdditionalInfo) > 0 && string(raw.AdditionalInfo) != "null" {
		if err := json.Unmarshal(raw.AdditionalInfo, info); err != nil {
			return fmt.Errorf("action: decode additionalInfo for %q: %w", r.Action, err)
		}
	}
	r.AdditionalInfo = deref(info)
	return nil
}

// Buffer is the in-progress action log, keyed by record timestamp.
type Buffer map[string]Record

// Put inserts rec under its timestamp, replacing any record captured in
// the same millisecond.
func (b Buffer) Put(rec Record) {
	b[rec.Timestamp] = rec
}

// Script is the finalization payload emitted on the transport.
type Script struct {
	Name    string `json:"name"`
	History Buffer `json:"history"`
}

// MarshalScript serialises a Script to JSON.
func MarshalScript(s *Script) ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalScript deserialises a Script from JSON.
func UnmarshalScript(data []byte) (*Script, error) {
	var s Script
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.History == nil {
		s.History = Buffer{}
	}
	return &s, nil
}

// String returns a pointer to s, for the nullable Value and Selector fields.
func String(s string) *string { return &s }
