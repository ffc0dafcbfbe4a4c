package finalize

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Static answers every prompt with the same value. An empty value behaves
// like a cancelled dialog.
type Static struct {
	Value string
}

func (s Static) Prompt(context.Context, PromptOptions) (PromptResult, error) {
	return PromptResult{Value: s.Value}, nil
}

// Terminal prompts on a line-oriented terminal. An empty line or EOF
// cancels.
type Terminal struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// NewTerminal reads answers from in and writes the dialog to out.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

func (t *Terminal) Prompt(_ context.Context, opts PromptOptions) (PromptResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "%s\n%s (%s): ", opts.Title, opts.InputLabel, opts.Placeholder)

	line, err := t.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return PromptResult{}, fmt.Errorf("finalize: read answer: %w", err)
	}
	return PromptResult{Value: strings.TrimRight(line, "\r\n")}, nil
}
