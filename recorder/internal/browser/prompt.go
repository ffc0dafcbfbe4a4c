package browser

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/hazyhaar/wsrecorder/recorder/internal/finalize"
)

//go:embed prompt.js
var promptJS string

// Prompter shows the naming dialog inside the recorded page.
type Prompter struct {
	tab *Tab
}

// Prompter returns a finalize.Prompter drawing its dialog in t.
func (t *Tab) Prompter() *Prompter { return &Prompter{tab: t} }

// Prompt renders a modal and waits for the user. Cancel, Escape or an
// empty field yield an empty value.
func (p *Prompter) Prompt(ctx context.Context, opts finalize.PromptOptions) (finalize.PromptResult, error) {
	res, err := p.tab.Page.Context(ctx).Eval(promptJS,
		opts.Title, opts.InputLabel, opts.Placeholder, opts.ShowCancel)
	if err != nil {
		return finalize.PromptResult{}, fmt.Errorf("browser: prompt: %w", err)
	}
	if res.Value.Nil() {
		return finalize.PromptResult{}, nil
	}
	return finalize.PromptResult{Value: res.Value.Str()}, nil
}
