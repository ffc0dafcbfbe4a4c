// Package session owns the recording state machine: the persisted
// isRecording flag, the in-progress action buffer and the page title marker.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hazyhaar/wsrecorder/idgen"
	"github.com/hazyhaar/wsrecorder/recorder/action"
	"github.com/hazyhaar/wsrecorder/recorder/internal/store"
)

// Storage keys, scoped to the recorder module.
const (
	KeyRecording = "isRecording"
	KeyBuffer    = "record_temp"
)

// DefaultMarker prefixes the page title while recording.
const DefaultMarker = "🔴 Recording - "

// Titler reads and writes the title of the recorded page.
type Titler interface {
	Title(ctx context.Context) (string, error)
	SetTitle(ctx context.Context, title string) error
}

// FinalizeFunc runs after a successful stop, once the title is restored.
type FinalizeFunc func(ctx context.Context) error

// Session is the recording state machine. Toggles are serialised; appends
// may run concurrently with each other and with a toggle.
type Session struct {
	store    *store.Context
	titler   Titler
	finalize FinalizeFunc
	marker   string
	newID    idgen.Generator
	logger   *slog.Logger

	mu sync.Mutex // serialises Toggle

	idMu sync.Mutex
	id   string
}

// Option configures a Session.
type Option func(*Session)

// WithTitler sets the page title port. Without one, decoration is skipped.
func WithTitler(t Titler) Option { return func(s *Session) { s.titler = t } }

// WithFinalizer sets the function run after a stop.
func WithFinalizer(f FinalizeFunc) Option { return func(s *Session) { s.finalize = f } }

// WithMarker overrides DefaultMarker.
func WithMarker(m string) Option { return func(s *Session) { s.marker = m } }

// WithIDGenerator overrides the recording ID generator.
func WithIDGenerator(g idgen.Generator) Option { return func(s *Session) { s.newID = g } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.logger = l } }

// New creates a Session persisting its state through sc.
func New(sc *store.Context, opts ...Option) *Session {
	s := &Session{
		store:  sc,
		marker: DefaultMarker,
		newID:  idgen.Prefixed("rec_", idgen.Default),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Recording reads the persisted flag.
func (s *Session) Recording(ctx context.Context) (bool, error) {
	return store.GetVariable(ctx, s.store, KeyRecording, false, false, false)
}

// ID returns the identifier of the current recording, or "" when stopped
// or when recording was resumed from a previous process.
func (s *Session) ID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return s.id
}

// Toggle stops when recording and starts otherwise. It returns the state
// after the call; on a persistence error the state is unchanged.
func (s *Session) Toggle(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recording, err := s.Recording(ctx)
	if err != nil {
		s.logger.Error("session: read recording flag", "error", err)
		return false, err
	}
	if recording {
		if err := s.stop(ctx); err != nil {
			return true, err
		}
		return false, nil
	}
	if err := s.start(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Session) start(ctx context.Context) error {
	if err := s.store.SetStorage(ctx, KeyRecording, true, false); err != nil {
		s.logger.Error("session: start recording", "error", err)
		return err
	}
	id := s.newID()
	s.setID(id)
	s.decorate(ctx)
	s.logger.Info("session: recording started", "id", id)
	return nil
}

func (s *Session) stop(ctx context.Context) error {
	if err := s.store.SetStorage(ctx, KeyRecording, false, false); err != nil {
		s.logger.Error("session: stop recording", "error", err)
		return err
	}
	id := s.ID()
	s.setID("")
	s.undecorate(ctx)
	s.logger.Info("session: recording stopped", "id", id)

	if s.finalize != nil {
		if err := s.finalize(ctx); err != nil {
			s.logger.Error("session: finalize", "id", id, "error", err)
		}
	}
	return nil
}

func (s *Session) setID(id string) {
	s.idMu.Lock()
	s.id = id
	s.idMu.Unlock()
}

// Append inserts rec into the buffer at its timestamp. It reports false
// without touching the buffer when the persisted flag is off.
func (s *Session) Append(ctx context.Context, rec action.Record) (bool, error) {
	recording, err := s.Recording(ctx)
	if err != nil {
		return false, err
	}
	if !recording {
		return false, nil
	}

	err = store.UpdateVariable(ctx, s.store, KeyBuffer, action.Buffer{}, false,
		func(b action.Buffer) (action.Buffer, error) {
			if b == nil {
				b = action.Buffer{}
			}
			b.Put(rec)
			return b, nil
		})
	if err != nil {
		return false, fmt.Errorf("session: append: %w", err)
	}
	return true, nil
}

// Buffer returns the persisted buffer, empty when none exists.
func (s *Session) Buffer(ctx context.Context) (action.Buffer, error) {
	b, err := store.GetVariable(ctx, s.store, KeyBuffer, action.Buffer{}, false, false)
	if err != nil {
		return nil, err
	}
	if b == nil {
		b = action.Buffer{}
	}
	return b, nil
}

// ResetBuffer replaces the buffer with an empty one.
func (s *Session) ResetBuffer(ctx context.Context) error {
	return s.store.SetStorage(ctx, KeyBuffer, action.Buffer{}, false)
}

// RestoreDecorationIfRecording re-applies the title marker when the
// persisted flag is on. Safe to call any number of times.
func (s *Session) RestoreDecorationIfRecording(ctx context.Context) error {
	recording, err := s.Recording(ctx)
	if err != nil {
		return err
	}
	if recording {
		s.decorate(ctx)
	}
	return nil
}

// SyncDecoration makes the title match the persisted flag: marked while
// recording, unmarked otherwise. It follows toggles made by another process
// sharing the store.
func (s *Session) SyncDecoration(ctx context.Context) error {
	recording, err := s.Recording(ctx)
	if err != nil {
		return err
	}
	if recording {
		s.decorate(ctx)
	} else {
		s.undecorate(ctx)
	}
	return nil
}

func (s *Session) decorate(ctx context.Context) {
	if s.titler == nil {
		return
	}
	title, err := s.titler.Title(ctx)
	if err != nil {
		s.logger.Warn("session: read title", "error", err)
		return
	}
	if strings.Contains(title, s.marker) {
		return
	}
	if err := s.titler.SetTitle(ctx, s.marker+title); err != nil {
		s.logger.Warn("session: decorate title", "error", err)
	}
}

func (s *Session) undecorate(ctx context.Context) {
	if s.titler == nil {
		return
	}
	title, err := s.titler.Title(ctx)
	if err != nil {
		s.logger.Warn("session: read title", "error", err)
		return
	}
	if !strings.Contains(title, s.marker) {
		return
	}
	if err := s.titler.SetTitle(ctx, strings.Replace(title, s.marker, "", 1)); err != nil {
		s.logger.Warn("session: restore title", "error", err)
	}
}
