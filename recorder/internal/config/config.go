// Package config handles recorder configuration from a YAML file and
// RECORDER_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level recorder configuration.
type Config struct {
	Module      string            `yaml:"module"`
	Browser     BrowserConfig     `yaml:"browser"`
	Store       StoreConfig       `yaml:"store"`
	Hotkey      string            `yaml:"hotkey"`
	TitleMarker string            `yaml:"title_marker"`
	Prompt      PromptConfig      `yaml:"prompt"`
	Transports  []TransportConfig `yaml:"transports"`
	HTTP        HTTPConfig        `yaml:"http"`
	Watch       WatchConfig       `yaml:"watch"`
	QueueSize   int               `yaml:"queue_size"`
}

// BrowserConfig controls Chrome.
type BrowserConfig struct {
	Remote           string   `yaml:"remote"`
	Mode             string   `yaml:"mode"` // headful | xvfb | headless
	Stealth          bool     `yaml:"stealth"`
	ResourceBlocking []string `yaml:"resource_blocking"`
	XvfbDisplay      string   `yaml:"xvfb_display"`
	StartURL         string   `yaml:"start_url"`
}

// StoreConfig locates the state database. Path ":memory:" keeps state in
// process.
type StoreConfig struct {
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busy_timeout"` // default 10s
	Synchronous string        `yaml:"synchronous"`  // OFF | NORMAL | FULL | EXTRA, default NORMAL
}

// PromptConfig selects how recordings are named.
type PromptConfig struct {
	Mode string `yaml:"mode"` // browser | terminal | static
	Name string `yaml:"name"` // for static
}

// TransportConfig defines an output for finalized scripts.
type TransportConfig struct {
	Type string `yaml:"type"` // websocket | stdout | webhook
	URL  string `yaml:"url"`

	// Headers are sent with the websocket handshake.
	Headers      map[string]string `yaml:"headers"`
	WriteTimeout time.Duration     `yaml:"write_timeout"`
}

// HTTPConfig controls the control API listener. Empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// WatchConfig controls polling of the state database for changes made
// by other processes.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Module == "" {
		c.Module = "RECORDER"
	}
	if c.Browser.Mode == "" {
		c.Browser.Mode = "headful"
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Store.Path == "" {
		c.Store.Path = "recorder.db"
	}
	if c.Store.BusyTimeout <= 0 {
		c.Store.BusyTimeout = 10 * time.Second
	}
	if c.Store.Synchronous == "" {
		c.Store.Synchronous = "NORMAL"
	}
	if c.Hotkey == "" {
		c.Hotkey = "ctrl+alt+r"
	}
	if c.TitleMarker == "" {
		c.TitleMarker = "🔴 Recording - "
	}
	if c.Prompt.Mode == "" {
		c.Prompt.Mode = "browser"
	}
	if len(c.Transports) == 0 {
		c.Transports = []TransportConfig{{Type: "stdout"}}
	}
	if c.Watch.Interval <= 0 {
		c.Watch.Interval = time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
}

// ApplyEnv overrides fields from RECORDER_* variables read through getenv.
// RECORDER_SOCKET_URL adds a websocket transport.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Module, "RECORDER_MODULE")
	set(&c.Browser.Remote, "RECORDER_BROWSER_REMOTE")
	set(&c.Browser.Mode, "RECORDER_BROWSER_MODE")
	set(&c.Browser.StartURL, "RECORDER_START_URL")
	set(&c.Store.Path, "RECORDER_STORE_PATH")
	set(&c.Hotkey, "RECORDER_HOTKEY")
	set(&c.Prompt.Mode, "RECORDER_PROMPT_MODE")
	set(&c.Prompt.Name, "RECORDER_PROMPT_NAME")
	set(&c.HTTP.Addr, "RECORDER_HTTP_ADDR")

	if v := getenv("RECORDER_BROWSER_STEALTH"); v != "" {
		c.Browser.Stealth = v == "1" || strings.EqualFold(v, "true")
	}
	if v := getenv("RECORDER_SOCKET_URL"); v != "" {
		c.Transports = append(c.Transports, TransportConfig{Type: "websocket", URL: v})
	}
}

// Validate checks enumerations and required fields.
func (c *Config) Validate() error {
	switch c.Prompt.Mode {
	case "browser", "terminal":
	case "static":
		if c.Prompt.Name == "" {
			return fmt.Errorf("config: prompt.name is required in static mode")
		}
	default:
		return fmt.Errorf("config: unknown prompt.mode %q", c.Prompt.Mode)
	}

	switch strings.ToUpper(c.Store.Synchronous) {
	case "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		return fmt.Errorf("config: unknown store.synchronous %q", c.Store.Synchronous)
	}

	for i, t := range c.Transports {
		switch t.Type {
		case "stdout":
		case "websocket", "webhook":
			if t.URL == "" {
				return fmt.Errorf("config: transports[%d]: %s requires url", i, t.Type)
			}
		default:
			return fmt.Errorf("config: transports[%d]: unknown type %q", i, t.Type)
		}
	}
	return nil
}
