package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hazyhaar/wsrecorder/recorder/internal/normalize"
)

// Chord is a keyboard shortcut matched on keydown. Modifiers set to true
// must be held; the others are ignored.
type Chord struct {
	Ctrl  bool
	Alt   bool
	Shift bool
	Meta  bool
	Code  string // KeyboardEvent.code, e.g. "KeyR"
}

// DefaultChord is Control+Alt+R.
var DefaultChord = Chord{Ctrl: true, Alt: true, Code: "KeyR"}

// Matches reports whether ev is a keydown of c.
func (c Chord) Matches(ev normalize.Event) bool {
	if ev.Type != "keydown" || ev.Code != c.Code {
		return false
	}
	return (!c.Ctrl || ev.CtrlKey) &&
		(!c.Alt || ev.AltKey) &&
		(!c.Shift || ev.ShiftKey) &&
		(!c.Meta || ev.MetaKey)
}

// Key is one entry of a command's key list, in the host's discovery format.
// The JSON name "upercase" is the host's spelling.
type Key struct {
	Key       string `json:"key"`
	Uppercase bool   `json:"upercase"`
}

// Keys lists the chord as lowercase key names, modifiers first.
func (c Chord) Keys() []Key {
	var keys []Key
	if c.Ctrl {
		keys = append(keys, Key{Key: "control"})
	}
	if c.Alt {
		keys = append(keys, Key{Key: "alt"})
	}
	if c.Shift {
		keys = append(keys, Key{Key: "shift"})
	}
	if c.Meta {
		keys = append(keys, Key{Key: "meta"})
	}
	key := strings.ToLower(c.Code)
	switch {
	case strings.HasPrefix(key, "key"):
		key = strings.TrimPrefix(key, "key")
	case strings.HasPrefix(key, "digit"):
		key = strings.TrimPrefix(key, "digit")
	}
	return append(keys, Key{Key: key})
}

func (c Chord) String() string {
	names := make([]string, 0, 5)
	for _, k := range c.Keys() {
		names = append(names, k.Key)
	}
	return strings.Join(names, "+")
}

var modifiers = map[string]func(*Chord){
	"ctrl":    func(c *Chord) { c.Ctrl = true },
	"control": func(c *Chord) { c.Ctrl = true },
	"alt":     func(c *Chord) { c.Alt = true },
	"option":  func(c *Chord) { c.Alt = true },
	"shift":   func(c *Chord) { c.Shift = true },
	"meta":    func(c *Chord) { c.Meta = true },
	"cmd":     func(c *Chord) { c.Meta = true },
	"super":   func(c *Chord) { c.Meta = true },
}

// namedCodes maps lowercase names to KeyboardEvent.code values that are
// neither letters nor digits.
var namedCodes = func() map[string]string {
	m := map[string]string{}
	for _, code := range []string{
		"Enter", "Escape", "Space", "Tab", "Backspace", "Delete", "Insert",
		"Home", "End", "PageUp", "PageDown",
		"ArrowUp", "ArrowDown", "ArrowLeft", "ArrowRight",
		"Minus", "Equal", "BracketLeft", "BracketRight", "Backslash",
		"Semicolon", "Quote", "Backquote", "Comma", "Period", "Slash",
	} {
		m[strings.ToLower(code)] = code
	}
	for i := 1; i <= 12; i++ {
		code := fmt.Sprintf("F%d", i)
		m[strings.ToLower(code)] = code
	}
	return m
}()

// keyCode resolves the last part of a chord to a KeyboardEvent.code.
func keyCode(p string) (string, bool) {
	lower := strings.ToLower(p)
	isLetter := func(b byte) bool { return b >= 'a' && b <= 'z' }
	isDigit := func(b byte) bool { return b >= '0' && b <= '9' }
	switch {
	case len(lower) == 1 && isLetter(lower[0]):
		return "Key" + strings.ToUpper(lower), true
	case len(lower) == 1 && isDigit(lower[0]):
		return "Digit" + lower, true
	case len(lower) == 4 && strings.HasPrefix(lower, "key") && isLetter(lower[3]):
		return "Key" + strings.ToUpper(lower[3:]), true
	case len(lower) == 6 && strings.HasPrefix(lower, "digit") && isDigit(lower[5]):
		return "Digit" + lower[5:], true
	}
	code, ok := namedCodes[lower]
	return code, ok
}

// ParseChord parses "ctrl+alt+r" style shortcuts. The last part is a
// letter, a digit, or a KeyboardEvent.code such as "KeyR", "Digit5" or
// "F2", matched case-insensitively.
func ParseChord(s string) (Chord, error) {
	var c Chord
	parts := strings.Split(strings.TrimSpace(s), "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		set, isModifier := modifiers[strings.ToLower(p)]
		if i < len(parts)-1 {
			if !isModifier {
				return Chord{}, fmt.Errorf("capture: unknown modifier %q in %q", p, s)
			}
			set(&c)
			continue
		}
		if p == "" || isModifier {
			return Chord{}, fmt.Errorf("capture: missing key in %q", s)
		}
		code, ok := keyCode(p)
		if !ok {
			return Chord{}, fmt.Errorf("capture: unknown key %q in %q", p, s)
		}
		c.Code = code
	}
	return c, nil
}

// Command describes a keyboard command for discovery by the host.
type Command struct {
	Description string `json:"description"`
	Keys        []Key  `json:"keys"`
}

// Toggler flips the recording state.
type Toggler interface {
	Toggle(ctx context.Context) (bool, error)
}

// Hotkey toggles recording when its chord is pressed. Presses that arrive
// while a toggle it started is still running are ignored.
type Hotkey struct {
	chord  Chord
	sess   Toggler
	logger *slog.Logger

	busy atomic.Bool
	wg   sync.WaitGroup
}

// NewHotkey binds chord to sess.Toggle.
func NewHotkey(chord Chord, sess Toggler, logger *slog.Logger) *Hotkey {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hotkey{chord: chord, sess: sess, logger: logger}
}

// Command returns the descriptor advertised to the host.
func (h *Hotkey) Command() Command {
	return Command{Description: "INIT/STOP RECORD", Keys: h.chord.Keys()}
}

// Observe starts a toggle when ev matches the chord. It returns at once;
// the toggle runs on its own goroutine since stopping may wait on a prompt.
func (h *Hotkey) Observe(ctx context.Context, ev normalize.Event) bool {
	if !h.chord.Matches(ev) {
		return false
	}
	if !h.busy.CompareAndSwap(false, true) {
		h.logger.Debug("capture: hotkey ignored, toggle in progress")
		return false
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.busy.Store(false)
		recording, err := h.sess.Toggle(ctx)
		if err != nil {
			h.logger.Error("capture: hotkey toggle", "error", err)
			return
		}
		h.logger.Info("capture: hotkey toggled recording", "recording", recording)
	}()
	return true
}

// Wait blocks until in-flight toggles finish.
func (h *Hotkey) Wait() { h.wg.Wait() }
