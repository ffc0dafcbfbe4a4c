package browser

import (
	"strings"
	"testing"
)

func TestShouldBlock(t *testing.T) {
	set := map[string]bool{"images": true, "fonts": true, "xhr": true}
	tests := []struct {
		resType string
		want    bool
	}{
		{"Image", true},
		{"Font", true},
		{"XHR", true},
		{"Stylesheet", false},
		{"Document", false},
		{"Media", false},
	}
	for _, tt := range tests {
		if got := shouldBlock(set, tt.resType); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.resType, got, tt.want)
		}
	}
}

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{"": ModeHeadful, "headful": ModeHeadful, "xvfb": ModeXvfb, "headless": ModeHeadless}
	for in, want := range tests {
		got, err := ParseMode(in)
		if err != nil {
			t.Errorf("%q: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("%q: got %v, want %v", in, got, want)
		}
	}
	if _, err := ParseMode("kiosk"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestConfigDefaults(t *testing.T) {
	m := NewManager(Config{})
	if m.cfg.XvfbDisplay != ":99" {
		t.Errorf("XvfbDisplay: got %q", m.cfg.XvfbDisplay)
	}
	if m.cfg.Logger == nil {
		t.Error("Logger should default")
	}
	if m.Browser() != nil {
		t.Error("no browser before Start")
	}
}

func TestStartAfterClose(t *testing.T) {
	m := NewManager(Config{})
	m.Close()
	if _, err := m.Start(t.Context()); err == nil || !strings.Contains(err.Error(), "closed") {
		t.Errorf("got %v, want closed error", err)
	}
}

func TestPromptScriptResolvesNullOnCancel(t *testing.T) {
	if !strings.HasPrefix(promptJS, "(title, label, placeholder, showCancel) =>") {
		t.Error("prompt.js must be a function taking the dialog options")
	}
	if !strings.Contains(promptJS, "done(null)") {
		t.Error("cancel must resolve to null")
	}
}
