package capture

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/wsrecorder/recorder/action"
	"github.com/hazyhaar/wsrecorder/recorder/internal/locator"
	"github.com/hazyhaar/wsrecorder/recorder/internal/normalize"
)

type fakeSession struct {
	mu        sync.Mutex
	recording bool
	records   []action.Record
	toggles   atomic.Int32
	gate      chan struct{} // when set, Toggle blocks until closed
}

func (f *fakeSession) Append(_ context.Context, rec action.Record) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.recording {
		return false, nil
	}
	f.records = append(f.records, rec)
	return true, nil
}

func (f *fakeSession) Toggle(context.Context) (bool, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.toggles.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recording = !f.recording
	return f.recording, nil
}

func (f *fakeSession) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func chordEvent() normalize.Event {
	return normalize.Event{Type: "keydown", Key: "r", Code: "KeyR", KeyCode: 82, CtrlKey: true, AltKey: true}
}

func TestDispatcher_GatedByRecording(t *testing.T) {
	sess := &fakeSession{}
	d := NewDispatcher(sess, normalize.New())
	ctx := context.Background()

	d.Handle(ctx, normalize.Event{Type: "click", TagName: "A"})
	if sess.count() != 0 {
		t.Fatal("events must not be appended while stopped")
	}

	sess.recording = true
	d.Handle(ctx, normalize.Event{
		Type: "click", TagName: "A",
		Lineage: []locator.Ancestor{
			{NodeType: 1, NodeName: "A"},
			{NodeType: 1, NodeName: "BODY"},
			{NodeType: 1, NodeName: "HTML"},
			{NodeType: 9, NodeName: "#document"},
		},
	})
	if sess.count() != 1 {
		t.Fatalf("got %d records, want 1", sess.count())
	}
	if sel := sess.records[0].Selector; sel == nil || *sel != "/html/body/a" {
		t.Errorf("selector: got %v", sel)
	}
	if n, _ := d.Stats(); n != 1 {
		t.Errorf("appended stat: got %d", n)
	}
}

func TestDispatcher_IgnoresUncapturedTypes(t *testing.T) {
	sess := &fakeSession{recording: true}
	d := NewDispatcher(sess, normalize.New())
	d.Handle(context.Background(), normalize.Event{Type: "focus"})
	if sess.count() != 0 {
		t.Error("focus is not in the captured set")
	}
}

func TestDispatcher_RunAndSubmit(t *testing.T) {
	sess := &fakeSession{recording: true}
	d := NewDispatcher(sess, normalize.New(), WithQueueSize(8))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { d.Run(ctx); close(done) }()

	for range 5 {
		if !d.Submit(normalize.Event{Type: "input", Value: action.String("x")}) {
			t.Fatal("submit should not drop with room in the queue")
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for sess.count() < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sess.count() != 5 {
		t.Errorf("got %d records, want 5", sess.count())
	}
	cancel()
	<-done
}

func TestDispatcher_SubmitDropsWhenFull(t *testing.T) {
	d := NewDispatcher(&fakeSession{}, normalize.New(), WithQueueSize(1))
	if !d.Submit(normalize.Event{Type: "click"}) {
		t.Fatal("first submit should fit")
	}
	if d.Submit(normalize.Event{Type: "click"}) {
		t.Fatal("second submit should be dropped")
	}
	if _, dropped := d.Stats(); dropped != 1 {
		t.Errorf("dropped: got %d, want 1", dropped)
	}
}

func TestChord_Matches(t *testing.T) {
	tests := []struct {
		name string
		ev   normalize.Event
		want bool
	}{
		{"ctrl+alt+r", chordEvent(), true},
		{"with shift", func() normalize.Event { e := chordEvent(); e.ShiftKey = true; return e }(), true},
		{"no alt", func() normalize.Event { e := chordEvent(); e.AltKey = false; return e }(), false},
		{"no ctrl", func() normalize.Event { e := chordEvent(); e.CtrlKey = false; return e }(), false},
		{"other key", func() normalize.Event { e := chordEvent(); e.Code = "KeyT"; return e }(), false},
		{"keyup", func() normalize.Event { e := chordEvent(); e.Type = "keyup"; return e }(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultChord.Matches(tt.ev); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseChord(t *testing.T) {
	tests := []struct {
		in   string
		want Chord
	}{
		{"ctrl+alt+r", DefaultChord},
		{"Control + Alt + R", DefaultChord},
		{"shift+meta+5", Chord{Shift: true, Meta: true, Code: "Digit5"}},
		{"alt+F2", Chord{Alt: true, Code: "F2"}},
		{"ctrl+alt+keyr", DefaultChord},
		{"ctrl+DIGIT7", Chord{Ctrl: true, Code: "Digit7"}},
		{"alt+arrowup", Chord{Alt: true, Code: "ArrowUp"}},
	}
	for _, tt := range tests {
		got, err := ParseChord(tt.in)
		if err != nil {
			t.Errorf("%q: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: got %+v, want %+v", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"hyper+r", "ctrl+", "ctrl+alt", "shift", "ctrl+alt+rr", "ctrl+keyrr", "alt+f13"} {
		if _, err := ParseChord(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

func TestHotkey_Command(t *testing.T) {
	h := NewHotkey(DefaultChord, &fakeSession{}, nil)
	cmd := h.Command()
	if cmd.Description != "INIT/STOP RECORD" {
		t.Errorf("description: got %q", cmd.Description)
	}
	want := []Key{{Key: "control"}, {Key: "alt"}, {Key: "r"}}
	if len(cmd.Keys) != len(want) {
		t.Fatalf("keys: got %+v", cmd.Keys)
	}
	for i := range want {
		if cmd.Keys[i] != want[i] {
			t.Errorf("key %d: got %+v, want %+v", i, cmd.Keys[i], want[i])
		}
	}
	raw, err := json.Marshal(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `{"key":"control","upercase":false}`) {
		t.Errorf("wire form: got %s", raw)
	}
	if got := DefaultChord.String(); got != "control+alt+r" {
		t.Errorf("String: got %q", got)
	}
}

func TestHotkey_TogglesAndIgnoresPressDuringToggle(t *testing.T) {
	sess := &fakeSession{gate: make(chan struct{})}
	h := NewHotkey(DefaultChord, sess, nil)
	ctx := context.Background()

	if !h.Observe(ctx, chordEvent()) {
		t.Fatal("first press should start a toggle")
	}
	if h.Observe(ctx, chordEvent()) {
		t.Error("press during an in-flight toggle should be ignored")
	}
	close(sess.gate)
	h.Wait()

	if sess.toggles.Load() != 1 {
		t.Errorf("got %d toggles, want 1", sess.toggles.Load())
	}
	if !sess.recording {
		t.Error("one toggle should start recording")
	}

	if !h.Observe(ctx, chordEvent()) {
		t.Fatal("press after completion should toggle again")
	}
	h.Wait()
	if sess.recording {
		t.Error("second toggle should stop recording")
	}
}

func TestDispatcher_HotkeyRoutedAfterCapture(t *testing.T) {
	sess := &fakeSession{}
	h := NewHotkey(DefaultChord, sess, nil)
	d := NewDispatcher(sess, normalize.New(), WithHotkey(h))

	d.Handle(context.Background(), chordEvent())
	h.Wait()

	if !sess.recording {
		t.Fatal("chord should start recording")
	}
	if sess.count() != 0 {
		t.Error("the starting chord is not itself recorded")
	}
}

type failingAppender struct{}

func (failingAppender) Append(context.Context, action.Record) (bool, error) {
	return false, errors.New("disk full")
}

func TestDispatcher_AppendErrorIsLogged(t *testing.T) {
	d := NewDispatcher(failingAppender{}, normalize.New())
	d.Handle(context.Background(), normalize.Event{Type: "click"})
	if n, _ := d.Stats(); n != 0 {
		t.Errorf("failed append must not count, got %d", n)
	}
}

func TestScript_ListensToCapturedSet(t *testing.T) {
	for _, k := range action.Captured {
		if !strings.Contains(Script, "'"+string(k)+"'") {
			t.Errorf("capture.js does not listen for %q", k)
		}
	}
	if !strings.Contains(Script, BindingName) {
		t.Error("capture.js must report through the binding")
	}
	if !strings.Contains(Script, "addEventListener(type, report, true)") {
		t.Error("listeners must use the capturing phase")
	}
}

// scriptHarness stubs the page globals capture.js touches, installs the
// script and fires one change event per case into its document listener.
const scriptHarness = `
const listeners = {};
const sent = [];
globalThis.Node = { DOCUMENT_NODE: 9 };
globalThis.KeyboardEvent = class {};
globalThis.MouseEvent = class {};
globalThis.document = {
  nodeType: 9, nodeName: '#document', parentNode: null, previousSibling: null,
  addEventListener: (type, fn) => { listeners[type] = fn; },
};
globalThis.window = {
  location: { href: 'https://shop.test/' }, scrollX: 0, scrollY: 0,
  __recorder_binding: (s) => sent.push(JSON.parse(s)),
};
(SCRIPT)();
const el = (tag, value) => {
  const o = { nodeType: 1, nodeName: tag, tagName: tag, parentNode: document, previousSibling: null };
  if (value !== undefined) o.value = value;
  return o;
};
const cases = [['LI', 0], ['PROGRESS', 0], ['INPUT', ''], ['INPUT', 'abc'], ['DIV', undefined], ['DATA', 42]];
for (const [tag, v] of cases) listeners.change({ type: 'change', target: el(tag, v) });
process.stdout.write(JSON.stringify(sent));
`

func TestScript_ValueMapping(t *testing.T) {
	node, err := exec.LookPath("node")
	if err != nil {
		t.Skip("node not installed")
	}
	src := strings.Replace(scriptHarness, "SCRIPT", Script, 1)
	out, err := exec.CommandContext(t.Context(), node, "-e", src).Output()
	if err != nil {
		t.Fatalf("node: %v", err)
	}
	var events []normalize.Event
	if err := json.Unmarshal(out, &events); err != nil {
		t.Fatalf("decode %s: %v", out, err)
	}

	want := []*string{nil, nil, nil, action.String("abc"), nil, action.String("42")}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, ev := range events {
		switch {
		case want[i] == nil && ev.Value != nil:
			t.Errorf("%s: got value %q, want null", ev.TagName, *ev.Value)
		case want[i] != nil && (ev.Value == nil || *ev.Value != *want[i]):
			t.Errorf("%s: got value %v, want %q", ev.TagName, ev.Value, *want[i])
		}
		if ev.Location != "https://shop.test/" {
			t.Errorf("location: got %q", ev.Location)
		}
	}
}
