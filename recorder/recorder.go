// Package recorder assembles the interaction recorder: a browser tab whose
// DOM events are captured, gated by a persisted recording flag, buffered
// by timestamp and, when recording stops, named and emitted as a script.
//
//	rec, err := recorder.New(cfg)
//	if err != nil { ... }
//	defer rec.Close()
//	if err := rec.Start(ctx); err != nil { ... }
package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/wsrecorder/dbopen"
	"github.com/hazyhaar/wsrecorder/recorder/action"
	"github.com/hazyhaar/wsrecorder/recorder/internal/browser"
	"github.com/hazyhaar/wsrecorder/recorder/internal/capture"
	"github.com/hazyhaar/wsrecorder/recorder/internal/config"
	"github.com/hazyhaar/wsrecorder/recorder/internal/finalize"
	"github.com/hazyhaar/wsrecorder/recorder/internal/normalize"
	"github.com/hazyhaar/wsrecorder/recorder/internal/session"
	"github.com/hazyhaar/wsrecorder/recorder/internal/store"
	"github.com/hazyhaar/wsrecorder/recorder/internal/transport"
	"github.com/hazyhaar/wsrecorder/watch"
)

type (
	// Config is the recorder configuration.
	Config = config.Config
	// Event is a raw DOM event as reported by the page.
	Event = normalize.Event
	// Emitter publishes finalized scripts.
	Emitter = transport.Emitter
	// Prompter asks the user for a recording name.
	Prompter      = finalize.Prompter
	PromptOptions = finalize.PromptOptions
	PromptResult  = finalize.PromptResult
	// Titler reads and writes the recorded page title.
	Titler = session.Titler
	// Command is the keyboard command descriptor.
	Command = capture.Command
)

// ErrNoTab is returned by page operations before a tab is open.
var ErrNoTab = errors.New("recorder: no browser tab")

// StaticPrompt answers every naming prompt with name; "" cancels.
func StaticPrompt(name string) Prompter { return finalize.Static{Value: name} }

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config { return config.Default() }

// LoadConfig reads path, or returns DefaultConfig when path is empty, then
// applies RECORDER_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// Status is a snapshot of the recorder.
type Status struct {
	Module    string `json:"module"`
	Recording bool   `json:"recording"`
	Buffered  int    `json:"buffered"`
	Location  string `json:"location,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Appended  int64  `json:"appended"`
	Dropped   int64  `json:"dropped"`
}

// Option configures a Recorder.
type Option func(*Recorder)

func WithLogger(l *slog.Logger) Option { return func(r *Recorder) { r.logger = l } }

// WithEmitter replaces the transports listed in the configuration.
func WithEmitter(e Emitter) Option { return func(r *Recorder) { r.emitter = e } }

// WithPrompter replaces the prompt selected by the configuration.
func WithPrompter(p Prompter) Option { return func(r *Recorder) { r.prompter = p } }

// WithTitler replaces the browser tab as title port.
func WithTitler(t Titler) Option { return func(r *Recorder) { r.titler = t } }

// WithoutBrowser skips launching Chrome. Events then arrive through Submit
// or the HTTP events route.
func WithoutBrowser() Option { return func(r *Recorder) { r.noBrowser = true } }

// WithClock sets the timestamp source of captured actions.
func WithClock(now func() time.Time) Option { return func(r *Recorder) { r.now = now } }

// Recorder owns every component of one recording module.
type Recorder struct {
	cfg    *Config
	logger *slog.Logger
	now    func() time.Time

	db    *sql.DB
	store store.Store

	sess   *session.Session
	fin    *finalize.Finalizer
	chord  capture.Chord
	hotkey *capture.Hotkey
	disp   *capture.Dispatcher

	emitter  Emitter
	sockets  []*transport.WebSocket
	prompter Prompter
	titler   Titler

	noBrowser bool

	mu  sync.RWMutex
	mgr *browser.Manager
	tab *browser.Tab

	wg sync.WaitGroup
}

// New validates cfg and builds the pipeline. Nothing runs until Start.
func New(cfg *Config, opts ...Option) (*Recorder, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Recorder{cfg: cfg, logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}

	chord, err := capture.ParseChord(cfg.Hotkey)
	if err != nil {
		return nil, fmt.Errorf("recorder: hotkey: %w", err)
	}

	if err := r.openStore(); err != nil {
		return nil, err
	}

	if r.emitter == nil {
		r.emitter, r.sockets = buildTransports(cfg.Transports, r.logger)
	}
	if r.prompter == nil {
		r.prompter = r.defaultPrompter()
	}
	if r.titler == nil {
		r.titler = tabTitler{r}
	}

	sc := store.NewContext(cfg.Module, r.store)
	r.sess = session.New(sc,
		session.WithTitler(r.titler),
		session.WithMarker(cfg.TitleMarker),
		session.WithFinalizer(func(ctx context.Context) error { return r.fin.Run(ctx) }),
		session.WithLogger(r.logger),
	)
	r.fin = finalize.New(cfg.Module, r.prompter, r.emitter, r.sess, finalize.WithLogger(r.logger))
	r.chord = chord
	r.hotkey = capture.NewHotkey(chord, r.sess, r.logger)

	var nopts []normalize.Option
	if r.now != nil {
		nopts = append(nopts, normalize.WithClock(r.now))
	}
	r.disp = capture.NewDispatcher(r.sess, normalize.New(nopts...),
		capture.WithHotkey(r.hotkey),
		capture.WithQueueSize(cfg.QueueSize),
		capture.WithDispatcherLogger(r.logger),
	)
	return r, nil
}

func (r *Recorder) openStore() error {
	if r.cfg.Store.Path == ":memory:" {
		r.store = store.NewMemory()
		return nil
	}
	db, err := dbopen.Open(r.cfg.Store.Path,
		dbopen.WithMkdirAll(),
		dbopen.WithBusyTimeout(int(r.cfg.Store.BusyTimeout.Milliseconds())),
		dbopen.WithSynchronous(strings.ToUpper(r.cfg.Store.Synchronous)),
		dbopen.WithSchema(store.Schema))
	if err != nil {
		return fmt.Errorf("recorder: open store: %w", err)
	}
	r.db = db
	r.store = store.NewSQLite(db)
	return nil
}

func (r *Recorder) defaultPrompter() Prompter {
	switch r.cfg.Prompt.Mode {
	case "static":
		return finalize.Static{Value: r.cfg.Prompt.Name}
	case "terminal":
		return finalize.NewTerminal(os.Stdin, os.Stderr)
	default:
		return finalize.PrompterFunc(func(ctx context.Context, opts finalize.PromptOptions) (finalize.PromptResult, error) {
			tab := r.currentTab()
			if tab == nil {
				return finalize.PromptResult{}, ErrNoTab
			}
			return tab.Prompter().Prompt(ctx, opts)
		})
	}
}

// Module returns the module name.
func (r *Recorder) Module() string { return r.cfg.Module }

// DB returns the state database, nil for an in-memory store.
func (r *Recorder) DB() *sql.DB { return r.db }

// Start launches the dispatcher, the transports and, unless disabled, the
// browser tab. Cancelling ctx stops the background work; Close releases
// the resources afterwards.
func (r *Recorder) Start(ctx context.Context) error {
	if s, ok := r.emitter.(transport.Socket); ok {
		r.bindSocket(s)
	}
	for _, ws := range r.sockets {
		r.wg.Go(func() { ws.Run(ctx) })
	}
	r.wg.Go(func() { r.disp.Run(ctx) })

	if !r.noBrowser {
		if err := r.startBrowser(ctx); err != nil {
			return err
		}
	}

	if err := r.sess.RestoreDecorationIfRecording(ctx); err != nil {
		r.logger.Warn("recorder: restore decoration", "error", err)
	}

	if r.db != nil {
		w := watch.New(r.db, watch.Options{
			Interval:   r.cfg.Watch.Interval,
			Detector:   watch.MaxColumnDetector(store.Table, "updated_at"),
			RunAtStart: true,
			Logger:     r.logger,
		})
		r.wg.Go(func() {
			w.OnChange(ctx, func() error { return r.sess.SyncDecoration(ctx) })
		})
	}

	r.logger.Info("recorder: started",
		"module", r.cfg.Module,
		"hotkey", r.chord.String(),
		"browser", !r.noBrowser)
	return nil
}

func (r *Recorder) startBrowser(ctx context.Context) error {
	bc := r.cfg.Browser
	mode, err := browser.ParseMode(bc.Mode)
	if err != nil {
		return err
	}
	mgr := browser.NewManager(browser.Config{
		RemoteURL:        bc.Remote,
		Mode:             mode,
		Stealth:          bc.Stealth,
		ResourceBlocking: bc.ResourceBlocking,
		XvfbDisplay:      bc.XvfbDisplay,
		Logger:           r.logger,
	})
	r.mu.Lock()
	r.mgr = mgr
	r.mu.Unlock()

	if _, err := mgr.Start(ctx); err != nil {
		return err
	}
	tab, err := browser.OpenTab(ctx, mgr, bc.StartURL, func(page *rod.Page) error {
		return capture.Attach(ctx, page, r.disp, r.onLoad, r.logger)
	})
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.tab = tab
	r.mu.Unlock()
	return nil
}

// onLoad runs after every navigation; a fresh document comes without the
// marker.
func (r *Recorder) onLoad(ctx context.Context) {
	if err := r.sess.RestoreDecorationIfRecording(ctx); err != nil {
		r.logger.Warn("recorder: restore decoration after load", "error", err)
	}
}

func (r *Recorder) bindSocket(s transport.Socket) {
	s.On(transport.EventConnect, func(context.Context, json.RawMessage) {
		r.logger.Info("recorder: socket connected", "module", r.cfg.Module)
	})
	s.On(transport.EventDisconnect, func(context.Context, json.RawMessage) {
		r.logger.Warn("recorder: socket disconnected", "module", r.cfg.Module)
	})
	s.On(r.cfg.Module+":event", func(_ context.Context, data json.RawMessage) {
		r.logger.Info("recorder: inbound event", "module", r.cfg.Module, "data", string(data))
	})
}

func (r *Recorder) currentTab() *browser.Tab {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tab
}

// Toggle starts or stops recording and returns the new state. Stopping
// waits for the naming prompt and the emit.
func (r *Recorder) Toggle(ctx context.Context) (bool, error) {
	return r.sess.Toggle(ctx)
}

// Submit queues a raw page event. It reports false when the queue is full.
func (r *Recorder) Submit(ev Event) bool { return r.disp.Submit(ev) }

// Buffer returns the in-progress recording.
func (r *Recorder) Buffer(ctx context.Context) (action.Buffer, error) {
	return r.sess.Buffer(ctx)
}

// Reset discards the in-progress recording without emitting it.
func (r *Recorder) Reset(ctx context.Context) error {
	if err := r.sess.ResetBuffer(ctx); err != nil {
		return err
	}
	r.logger.Info("recorder: buffer reset", "module", r.cfg.Module)
	return nil
}

// Command returns the hotkey descriptor.
func (r *Recorder) Command() Command { return r.hotkey.Command() }

// Status reports the recording flag, buffer size and page location.
func (r *Recorder) Status(ctx context.Context) (Status, error) {
	recording, err := r.sess.Recording(ctx)
	if err != nil {
		return Status{}, err
	}
	buf, err := r.sess.Buffer(ctx)
	if err != nil {
		return Status{}, err
	}
	appended, dropped := r.disp.Stats()
	st := Status{
		Module:    r.cfg.Module,
		Recording: recording,
		Buffered:  len(buf),
		SessionID: r.sess.ID(),
		Appended:  appended,
		Dropped:   dropped,
	}
	if tab := r.currentTab(); tab != nil {
		if loc, err := tab.Location(ctx); err == nil {
			st.Location = loc
		}
	}
	return st, nil
}

// Close waits for background work and releases the browser, transports
// and database. Cancel the Start context first.
func (r *Recorder) Close() error {
	r.hotkey.Wait()
	r.wg.Wait()

	var errs []error
	errs = append(errs, r.emitter.Close())

	r.mu.Lock()
	if r.tab != nil {
		errs = append(errs, r.tab.Close())
		r.tab = nil
	}
	if r.mgr != nil {
		errs = append(errs, r.mgr.Close())
		r.mgr = nil
	}
	r.mu.Unlock()

	if r.db != nil {
		errs = append(errs, r.db.Close())
	}
	return errors.Join(errs...)
}

// tabTitler forwards to the current tab.
type tabTitler struct{ r *Recorder }

func (t tabTitler) Title(ctx context.Context) (string, error) {
	tab := t.r.currentTab()
	if tab == nil {
		return "", ErrNoTab
	}
	return tab.Title(ctx)
}

func (t tabTitler) SetTitle(ctx context.Context, title string) error {
	tab := t.r.currentTab()
	if tab == nil {
		return ErrNoTab
	}
	return tab.SetTitle(ctx, title)
}
