// Package finalize turns a stopped recording into a named script: prompt for
// a name, emit {name, history} on the transport, then clear the buffer.
package finalize

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/wsrecorder/recorder/action"
)

// PromptOptions describes the naming dialog.
type PromptOptions struct {
	Title       string
	InputLabel  string
	Placeholder string
	ShowCancel  bool
}

// DefaultPrompt is the dialog shown when a recording stops.
var DefaultPrompt = PromptOptions{
	Title:       "Enter recording title",
	InputLabel:  "Recording title",
	Placeholder: "Enter the name for this recording",
	ShowCancel:  true,
}

// PromptResult carries the entered value; Value is empty on cancel.
type PromptResult struct {
	Value string
}

// Prompter asks the user for a recording name.
type Prompter interface {
	Prompt(ctx context.Context, opts PromptOptions) (PromptResult, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, opts PromptOptions) (PromptResult, error)

func (f PrompterFunc) Prompt(ctx context.Context, opts PromptOptions) (PromptResult, error) {
	return f(ctx, opts)
}

// Emitter publishes an event on the realtime transport.
type Emitter interface {
	Emit(ctx context.Context, event string, payload any) error
}

// Buffer is the recording buffer the finalizer drains.
type Buffer interface {
	Buffer(ctx context.Context) (action.Buffer, error)
	ResetBuffer(ctx context.Context) error
}

// Outcome reports what Finalize did.
type Outcome int

const (
	Failed Outcome = iota
	Emitted
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Emitted:
		return "emitted"
	case Cancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

// EventName is the transport event carrying finalized scripts for module.
func EventName(module string) string { return module + ".make:script" }

// Finalizer drains a Buffer into a named script.
type Finalizer struct {
	module   string
	prompter Prompter
	emitter  Emitter
	buf      Buffer
	prompt   PromptOptions
	logger   *slog.Logger
}

// Option configures a Finalizer.
type Option func(*Finalizer)

// WithPrompt overrides DefaultPrompt.
func WithPrompt(p PromptOptions) Option { return func(f *Finalizer) { f.prompt = p } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(f *Finalizer) { f.logger = l } }

// New creates a Finalizer for module.
func New(module string, p Prompter, e Emitter, b Buffer, opts ...Option) *Finalizer {
	f := &Finalizer{
		module:   module,
		prompter: p,
		emitter:  e,
		buf:      b,
		prompt:   DefaultPrompt,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Finalize prompts for a name. With a name it emits the whole buffer and
// then clears it; on cancel nothing is emitted and the buffer is kept. The
// buffer is only cleared after a successful emit.
func (f *Finalizer) Finalize(ctx context.Context) (Outcome, error) {
	res, err := f.prompter.Prompt(ctx, f.prompt)
	if err != nil {
		return Failed, fmt.Errorf("finalize: prompt: %w", err)
	}
	if res.Value == "" {
		f.logger.Info("finalize: recording cancelled, buffer kept")
		return Cancelled, nil
	}

	history, err := f.buf.Buffer(ctx)
	if err != nil {
		return Failed, fmt.Errorf("finalize: read buffer: %w", err)
	}

	event := EventName(f.module)
	script := &action.Script{Name: res.Value, History: history}
	if err := f.emitter.Emit(ctx, event, script); err != nil {
		return Failed, fmt.Errorf("finalize: emit %s: %w", event, err)
	}

	if err := f.buf.ResetBuffer(ctx); err != nil {
		return Emitted, fmt.Errorf("finalize: clear buffer: %w", err)
	}
	f.logger.Info("finalize: script emitted", "name", res.Value, "actions", len(history), "event", event)
	return Emitted, nil
}

// Run is Finalize with the outcome dropped, for use as a session finalizer.
func (f *Finalizer) Run(ctx context.Context) error {
	_, err := f.Finalize(ctx)
	return err
}
