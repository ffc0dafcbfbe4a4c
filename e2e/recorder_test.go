// Package e2e runs recorders against each other through the connectivity
// router, the way two processes on one host share control.
package e2e

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/wsrecorder/connectivity"
	"github.com/hazyhaar/wsrecorder/recorder"
	"github.com/hazyhaar/wsrecorder/shield"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type discard struct{}

func (discard) Emit(context.Context, string, any) error { return nil }
func (discard) Close() error                            { return nil }

type title struct {
	mu sync.Mutex
	s  string
}

func (t *title) Title(context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s, nil
}

func (t *title) SetTitle(_ context.Context, s string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s = s
	return nil
}

func startRecorder(t *testing.T, storePath string) *recorder.Recorder {
	t.Helper()
	cfg := recorder.DefaultConfig()
	cfg.Store.Path = storePath
	cfg.Watch.Interval = 20 * time.Millisecond

	rec, err := recorder.New(cfg,
		recorder.WithoutBrowser(),
		recorder.WithLogger(quiet),
		recorder.WithEmitter(discard{}),
		recorder.WithPrompter(recorder.StaticPrompt("")),
		recorder.WithTitler(&title{s: "page"}),
	)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := rec.Start(ctx); err != nil {
		cancel()
		t.Fatal(err)
	}
	t.Cleanup(func() {
		cancel()
		rec.Close()
	})
	return rec
}

func recording(t *testing.T, rec *recorder.Recorder) bool {
	t.Helper()
	st, err := rec.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return st.Recording
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// TestRouteToggleToPeer routes recorder_toggle from one recorder to
// another over HTTP, switches it off, then back to local.
func TestRouteToggleToPeer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Peer: serves its registry over HTTP.
	peer := startRecorder(t, ":memory:")
	peerReg := connectivity.New(connectivity.WithLogger(quiet))
	peer.RegisterConnectivity(peerReg)
	mux := chi.NewRouter()
	for _, mw := range shield.Default() {
		mux.Use(mw)
	}
	peer.RegisterHTTP(mux, peerReg)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// Local: routes table in its state database.
	local := startRecorder(t, filepath.Join(t.TempDir(), "local.db"))
	reg := connectivity.New(connectivity.WithLogger(quiet))
	defer reg.Close()
	reg.RegisterTransport("http", connectivity.HTTPFactory())
	local.RegisterConnectivity(reg)

	if err := local.WatchRoutes(ctx, reg); err != nil {
		t.Fatal(err)
	}
	db := local.DB()

	endpoint := srv.URL + "/api/v1/connectivity/" + recorder.ServiceToggle
	if _, err := db.Exec(`INSERT INTO routes (service_name, strategy, endpoint) VALUES (?, 'http', ?)`,
		recorder.ServiceToggle, endpoint); err != nil {
		t.Fatal(err)
	}
	eventually(t, "http route", func() bool {
		info, ok := reg.Inspect(recorder.ServiceToggle)
		return ok && info.Strategy == "http"
	})

	raw, err := reg.Call(ctx, recorder.ServiceToggle, nil)
	if err != nil {
		t.Fatal(err)
	}
	var tr recorder.ToggleResult
	if err := json.Unmarshal(raw, &tr); err != nil || !tr.Recording {
		t.Fatalf("remote toggle = %s err=%v", raw, err)
	}
	if !recording(t, peer) || recording(t, local) {
		t.Fatal("toggle should have reached the peer only")
	}

	// Switched off.
	if _, err := db.Exec(`UPDATE routes SET strategy = 'noop' WHERE service_name = ?`, recorder.ServiceToggle); err != nil {
		t.Fatal(err)
	}
	eventually(t, "noop route", func() bool {
		info, _ := reg.Inspect(recorder.ServiceToggle)
		return info.Strategy == "noop"
	})
	if raw, err := reg.Call(ctx, recorder.ServiceToggle, nil); err != nil || raw != nil {
		t.Fatalf("noop call = %s err=%v", raw, err)
	}
	if !recording(t, peer) || recording(t, local) {
		t.Fatal("noop must not toggle anything")
	}

	// Back to local.
	if _, err := db.Exec(`DELETE FROM routes WHERE service_name = ?`, recorder.ServiceToggle); err != nil {
		t.Fatal(err)
	}
	eventually(t, "route removed", func() bool {
		info, _ := reg.Inspect(recorder.ServiceToggle)
		return info.Strategy == "local"
	})
	if _, err := reg.Call(ctx, recorder.ServiceToggle, nil); err != nil {
		t.Fatal(err)
	}
	if !recording(t, local) {
		t.Fatal("local toggle expected")
	}
}
