package recorder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/wsrecorder/connectivity"
	"github.com/hazyhaar/wsrecorder/shield"
)

// RegisterHTTP mounts the control API on mux:
//
//	GET    /api/v1/recorder/status
//	POST   /api/v1/recorder/toggle
//	GET    /api/v1/recorder/buffer
//	DELETE /api/v1/recorder/buffer
//	GET    /api/v1/recorder/command
//	POST   /api/v1/recorder/events
//
// With a non-nil reg it also serves the registry, so another recorder can
// route calls here with the "http" strategy:
//
//	GET  /api/v1/connectivity/modules
//	GET  /api/v1/connectivity/services
//	POST /api/v1/connectivity/{service}
func (r *Recorder) RegisterHTTP(mux chi.Router, reg *connectivity.Router) {
	eps := make(map[string]func(http.ResponseWriter, *http.Request))
	for _, s := range r.services() {
		ep := s.endpoint
		eps[s.name] = func(w http.ResponseWriter, req *http.Request) {
			resp, err := ep(req.Context(), nil)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, resp)
		}
	}

	mux.Route("/api/v1/recorder", func(mux chi.Router) {
		mux.Get("/status", eps[ServiceStatus])
		mux.Post("/toggle", eps[ServiceToggle])
		mux.Get("/buffer", eps[ServiceBuffer])
		mux.Delete("/buffer", eps[ServiceReset])
		mux.Get("/command", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, r.Command())
		})
		mux.Post("/events", r.handleEvents)
	})

	if reg == nil {
		return
	}
	mux.Route("/api/v1/connectivity", func(mux chi.Router) {
		mux.Get("/modules", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, reg.Modules())
		})
		mux.Get("/services", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, slices.Collect(reg.Services()))
		})
		mux.Post("/{service}", func(w http.ResponseWriter, req *http.Request) {
			service := chi.URLParam(req, "service")
			payload, ok := readBody(w, req)
			if !ok {
				return
			}
			resp, err := reg.Call(req.Context(), service, payload)
			if err != nil {
				var nf *connectivity.ErrServiceNotFound
				if errors.As(err, &nf) {
					writeError(w, http.StatusNotFound, err)
					return
				}
				shield.GetLogger(req.Context()).Warn("recorder: connectivity call", "service", service, "error", err)
				writeError(w, http.StatusBadGateway, err)
				return
			}
			if len(resp) == 0 {
				resp = []byte("null")
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(resp)
		})
	})
}

// handleEvents takes one event object or an array of them, in the format
// the page capture script reports.
func (r *Recorder) handleEvents(w http.ResponseWriter, req *http.Request) {
	body, ok := readBody(w, req)
	if !ok {
		return
	}
	body = bytes.TrimSpace(body)

	var (
		events []Event
		err    error
	)
	if len(body) > 0 && body[0] == '[' {
		err = json.Unmarshal(body, &events)
	} else {
		var ev Event
		err = json.Unmarshal(body, &ev)
		events = []Event{ev}
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode events: %w", err))
		return
	}

	res, err := r.submitEvents(events)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

// readBody reads at most shield.MaxRequestBody bytes whether or not the
// shield stack is mounted. It writes the error response itself.
func readBody(w http.ResponseWriter, req *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, shield.MaxRequestBody))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
		} else {
			writeError(w, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		}
		return nil, false
	}
	return body, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
