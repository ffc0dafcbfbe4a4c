package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/wsrecorder/idgen"
)

// Stdout writes one JSON envelope per line to an io.Writer (default os.Stdout).
type Stdout struct {
	mu    sync.Mutex
	enc   *json.Encoder
	newID idgen.Generator
}

// NewStdout creates a Stdout emitter. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{enc: json.NewEncoder(w), newID: idgen.Default}
}

func (s *Stdout) Emit(_ context.Context, event string, payload any) error {
	env, err := newEnvelope(s.newID, event, payload)
	if err != nil {
		return fmt.Errorf("stdout: marshal: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(env)
}

func (s *Stdout) Close() error { return nil }
