package action

import (
	"encoding/json"
	"testing"
	"time"
)

func TestShapeOf(t *testing.T) {
	cases := map[Kind]Shape{
		Scroll:    ShapeScroll,
		KeyDown:   ShapeKey,
		KeyUp:     ShapeKey,
		KeyPress:  ShapeKey,
		Click:     ShapePointer,
		DblClick:  ShapePointer,
		MouseDown: ShapePointer,
		MouseUp:   ShapePointer,
		MouseOver: ShapeEmpty,
		MouseOut:  ShapeEmpty,
		Input:     ShapeEmpty,
		Change:    ShapeEmpty,
		"focus":   ShapeEmpty,
	}
	for k, want := range cases {
		if got := ShapeOf(k); got != want {
			t.Errorf("ShapeOf(%q) = %d, want %d", k, got, want)
		}
	}
}

func TestIsCaptured(t *testing.T) {
	if len(Captured) != 12 {
		t.Fatalf("Captured: got %d kinds, want 12", len(Captured))
	}
	for _, k := range Captured {
		if !k.IsCaptured() {
			t.Errorf("%q should be captured", k)
		}
	}
	if Kind("focus").IsCaptured() {
		t.Error("focus should not be captured")
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 123456789, time.FixedZone("CET", 3600))
	got := FormatTimestamp(ts)
	if got != "2024-03-09T13:05:07.123Z" {
		t.Errorf("FormatTimestamp: got %q", got)
	}
}

func TestRecordJSON_EmptyInfoEncodesAsObject(t *testing.T) {
	rec := Record{Action: Input, Location: "https://example.com", Timestamp: "t", AdditionalInfo: EmptyInfo{}}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if string(m["additionalInfo"]) != "{}" {
		t.Errorf("additionalInfo: got %s, want {}", m["additionalInfo"])
	}
	if string(m["value"]) != "null" || string(m["selector"]) != "null" {
		t.Errorf("nullable fields: value=%s selector=%s", m["value"], m["selector"])
	}
	if _, ok := m["tagName"]; ok {
		t.Error("empty tagName should be omitted")
	}
}

func TestRecordUnmarshal_DecodesVariantByKind(t *testing.T) {
	payload := `{"tagName":"INPUT","action":"keydown","value":"ab","selector":"/html/body/input",
		"location":"https://example.com/","timestamp":"2024-01-01T00:00:00.000Z",
		"additionalInfo":{"key":"b","code":"KeyB","keyCode":66}}`

	var rec Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		t.Fatal(err)
	}
	info, ok := rec.AdditionalInfo.(KeyInfo)
	if !ok {
		t.Fatalf("AdditionalInfo: got %T, want KeyInfo", rec.AdditionalInfo)
	}
	if info.Code != "KeyB" || info.KeyCode != 66 {
		t.Errorf("KeyInfo: got %+v", info)
	}
	if rec.Value == nil || *rec.Value != "ab" {
		t.Errorf("Value: got %v", rec.Value)
	}
}

func TestScriptWirePayload(t *testing.T) {
	buf := Buffer{}
	buf.Put(Record{Action: Scroll, Location: "https://example.com", Timestamp: "2024-01-01T00:00:00.000Z",
		AdditionalInfo: ScrollInfo{ScrollX: 10, ScrollY: 20}})

	data, err := MarshalScript(&Script{Name: "foo", History: buf})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"name":"foo","history":{"2024-01-01T00:00:00.000Z":{"action":"scroll","value":null,"selector":null,` +
		`"location":"https://example.com","timestamp":"2024-01-01T00:00:00.000Z","additionalInfo":{"scrollX":10,"scrollY":20}}}}`
	if string(data) != want {
		t.Errorf("wire payload:\n got  %s\n want %s", data, want)
	}

	got, err := UnmarshalScript(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.History["2024-01-01T00:00:00.000Z"].AdditionalInfo != (ScrollInfo{ScrollX: 10, ScrollY: 20}) {
		t.Errorf("decoded info: got %+v", got.History["2024-01-01T00:00:00.000Z"].AdditionalInfo)
	}
}

func TestBufferPut_SameTimestampOverwrites(t *testing.T) {
	buf := Buffer{}
	buf.Put(Record{Action: Click, Timestamp: "t1"})
	buf.Put(Record{Action: DblClick, Timestamp: "t1"})
	if len(buf) != 1 {
		t.Fatalf("len: got %d, want 1", len(buf))
	}
	if buf["t1"].Action != DblClick {
		t.Errorf("later record should win, got %q", buf["t1"].Action)
	}
}
