package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/wsrecorder/connectivity"
	"github.com/hazyhaar/wsrecorder/shield"
)

func newServer(t *testing.T, h *harness) (*httptest.Server, *connectivity.Router) {
	t.Helper()
	reg := connectivity.New(connectivity.WithLogger(quiet))
	h.rec.RegisterConnectivity(reg)

	mux := chi.NewRouter()
	for _, mw := range shield.Default() {
		mux.Use(mw)
	}
	h.rec.RegisterHTTP(mux, reg)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, reg
}

func do(t *testing.T, method, url, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestHTTPControlAPI(t *testing.T) {
	h := newHarness(t, "via-http", nil)
	srv, _ := newServer(t, h)
	api := srv.URL + "/api/v1/recorder"

	var st Status
	if code := do(t, http.MethodGet, api+"/status", "", &st); code != http.StatusOK || st.Recording {
		t.Fatalf("status %d %+v", code, st)
	}

	var tr ToggleResult
	if code := do(t, http.MethodPost, api+"/toggle", "", &tr); code != http.StatusOK || !tr.Recording {
		t.Fatalf("toggle %d %+v", code, tr)
	}

	events := `[
		{"type":"input","tagName":"INPUT","value":"bob","location":"https://x/",
		 "lineage":[{"nodeType":1,"nodeName":"INPUT"},{"nodeType":9,"nodeName":"#document"}]},
		{"type":"change","tagName":"INPUT","value":"","location":"https://x/"}
	]`
	var er EventsResult
	if code := do(t, http.MethodPost, api+"/events", events, &er); code != http.StatusAccepted || er.Accepted != 2 {
		t.Fatalf("events %d %+v", code, er)
	}
	eventually(t, "two buffered", func() bool { return buffered(t, h.rec) == 2 })

	var br BufferResult
	if code := do(t, http.MethodGet, api+"/buffer", "", &br); code != http.StatusOK || br.Count != 2 {
		t.Fatalf("buffer %d %+v", code, br)
	}
	for _, rec := range br.History {
		if rec.Action == "change" && rec.Value != nil {
			t.Errorf("empty value should be null, got %q", *rec.Value)
		}
	}

	var rr ResetResult
	if code := do(t, http.MethodDelete, api+"/buffer", "", &rr); code != http.StatusOK || !rr.Reset {
		t.Fatalf("reset %d %+v", code, rr)
	}
	if n := buffered(t, h.rec); n != 0 {
		t.Fatalf("buffered after reset = %d", n)
	}

	var cmd Command
	if code := do(t, http.MethodGet, api+"/command", "", &cmd); code != http.StatusOK || cmd.Keys[0].Key != "control" {
		t.Fatalf("command %d %+v", code, cmd)
	}
}

func TestHTTPEventsValidation(t *testing.T) {
	h := newHarness(t, "x", nil)
	srv, _ := newServer(t, h)
	api := srv.URL + "/api/v1/recorder/events"

	if code := do(t, http.MethodPost, api, `{"type":`, nil); code != http.StatusBadRequest {
		t.Fatalf("malformed: %d", code)
	}
	if code := do(t, http.MethodPost, api, `{"tagName":"A"}`, nil); code != http.StatusBadRequest {
		t.Fatalf("missing type: %d", code)
	}
	var er EventsResult
	if code := do(t, http.MethodPost, api, `{"type":"mouseover"}`, &er); code != http.StatusAccepted || er.Accepted != 1 {
		t.Fatalf("single: %d %+v", code, er)
	}
}

func TestHTTPEventsBodyLimitWithoutShield(t *testing.T) {
	h := newHarness(t, "x", nil)
	mux := chi.NewRouter()
	h.rec.RegisterHTTP(mux, nil)
	api := "/api/v1/recorder/events"

	big := `{"type":"input","value":"` + strings.Repeat("a", shield.MaxRequestBody) + `"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, api, strings.NewReader(big)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized body: got %d, want 413", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, api, iotest.ErrReader(errors.New("connection reset"))))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("read error: got %d, want 400", rec.Code)
	}
}

func TestHTTPConnectivity(t *testing.T) {
	h := newHarness(t, "x", nil)
	srv, _ := newServer(t, h)
	api := srv.URL + "/api/v1/connectivity"

	var st Status
	if code := do(t, http.MethodPost, api+"/"+ServiceStatus, "", &st); code != http.StatusOK || st.Module != "RECORDER" {
		t.Fatalf("status via registry: %d %+v", code, st)
	}
	if code := do(t, http.MethodPost, api+"/nope", "", nil); code != http.StatusNotFound {
		t.Fatalf("unknown service: %d", code)
	}

	var mods []connectivity.Module
	if code := do(t, http.MethodGet, api+"/modules", "", &mods); code != http.StatusOK || len(mods) != 1 {
		t.Fatalf("modules: %d %+v", code, mods)
	}
	if mods[0].Name != "RECORDER" || len(mods[0].Services) != 4 || len(mods[0].Commands) != 1 {
		t.Fatalf("module = %+v", mods[0])
	}

	var svcs []connectivity.ServiceInfo
	if code := do(t, http.MethodGet, api+"/services", "", &svcs); code != http.StatusOK || len(svcs) != 4 {
		t.Fatalf("services: %d %+v", code, svcs)
	}
}

func TestConnectivityToggle(t *testing.T) {
	h := newHarness(t, "registry", nil)
	reg := connectivity.New(connectivity.WithLogger(quiet))
	h.rec.RegisterConnectivity(reg)

	raw, err := reg.Call(context.Background(), ServiceToggle, nil)
	if err != nil {
		t.Fatal(err)
	}
	var tr ToggleResult
	if err := json.Unmarshal(raw, &tr); err != nil || !tr.Recording {
		t.Fatalf("toggle = %s err=%v", raw, err)
	}
}

func TestMCPTools(t *testing.T) {
	h := newHarness(t, "x", nil)

	impl := &mcp.Implementation{Name: "recorder-test", Version: "0.1.0"}
	srv := mcp.NewServer(impl, nil)
	h.rec.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()
	session, err := mcp.NewClient(impl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(tools.Tools) != 5 {
		t.Fatalf("tools = %d", len(tools.Tools))
	}

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: ServiceToggle, Arguments: map[string]any{}})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %+v", res.Content)
	}
	var tr ToggleResult
	if err := json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &tr); err != nil || !tr.Recording {
		t.Fatalf("toggle via mcp: %+v err=%v", tr, err)
	}

	res, err = session.CallTool(ctx, &mcp.CallToolParams{Name: ToolEvents, Arguments: map[string]any{
		"events": []any{map[string]any{"type": "click", "tagName": "BUTTON", "location": "https://x/"}},
	}})
	if err != nil {
		t.Fatal(err)
	}
	var er EventsResult
	if res.IsError || json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &er) != nil || er.Accepted != 1 {
		t.Fatalf("events via mcp: %+v", res.Content)
	}
	eventually(t, "event buffered", func() bool { return buffered(t, h.rec) == 1 })

	res, err = session.CallTool(ctx, &mcp.CallToolParams{Name: ToolEvents, Arguments: map[string]any{
		"events": []any{map[string]any{"tagName": "A"}},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("event without type should be a tool error")
	}
}
