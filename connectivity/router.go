// Package connectivity is the host registry: modules announce themselves,
// register their services as local handlers, and callers reach a service by
// name without knowing whether it runs in this process, in another recorder
// behind HTTP, or is switched off. A routes table in SQLite overrides the
// default local dispatch and is reloaded at runtime.
//
//	reg := connectivity.New()
//	reg.RegisterTransport("http", connectivity.HTTPFactory())
//	reg.RegisterLocal("recorder_toggle", handler)
//	go reg.Watch(ctx, db, time.Second)
//
//	resp, err := reg.Call(ctx, "recorder_toggle", nil)
package connectivity

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Handler is a service function: bytes in, bytes out. Local functions and
// remote clients share the signature.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// TransportFactory builds a Handler for a remote endpoint from a route's
// config JSON. The close function, which may be nil, runs when the route
// is replaced or removed.
type TransportFactory func(endpoint string, config json.RawMessage) (handler Handler, close func(), err error)

// Module describes a registered module surface.
type Module struct {
	Name     string   `json:"name"`
	Location string   `json:"location,omitempty"`
	Services []string `json:"services"`
	Commands []any    `json:"commands,omitempty"`
}

type route struct {
	Service  string
	Strategy string
	Endpoint string
	Config   json.RawMessage
}

// fingerprint changes whenever the route must be rebuilt.
func (rt route) fingerprint() string {
	return rt.Strategy + "|" + rt.Endpoint + "|" + string(rt.Config)
}

type remote struct {
	handler Handler
	close   func()
}

// Router dispatches service calls. Safe for concurrent use.
type Router struct {
	mu        sync.RWMutex
	locals    map[string]Handler
	remotes   map[string]remote
	routes    map[string]route
	factories map[string]TransportFactory
	modules   map[string]Module
	logger    *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New creates an empty Router.
func New(opts ...Option) *Router {
	r := &Router{
		locals:    make(map[string]Handler),
		remotes:   make(map[string]remote),
		routes:    make(map[string]route),
		factories: make(map[string]TransportFactory),
		modules:   make(map[string]Module),
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RegisterLocal registers an in-process handler for service.
func (r *Router) RegisterLocal(service string, h Handler) {
	r.mu.Lock()
	r.locals[service] = h
	r.mu.Unlock()
}

// RegisterTransport registers the factory used by routes whose strategy
// is protocol.
func (r *Router) RegisterTransport(protocol string, f TransportFactory) {
	r.mu.Lock()
	r.factories[protocol] = f
	r.mu.Unlock()
}

// RegisterModule records m, replacing any module of the same name.
func (r *Router) RegisterModule(m Module) {
	r.mu.Lock()
	r.modules[m.Name] = m
	r.mu.Unlock()
	r.logger.Info("connectivity: module registered", "module", m.Name, "location", m.Location, "services", len(m.Services))
}

// Modules returns the registered modules sorted by name.
func (r *Router) Modules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Module, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b Module) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// Call dispatches to service. A noop route succeeds with a nil response,
// a remote route wins over a local handler, and anything else falls back
// to the local handler.
func (r *Router) Call(ctx context.Context, service string, payload []byte) ([]byte, error) {
	r.mu.RLock()
	rem, hasRemote := r.remotes[service]
	local := r.locals[service]
	rt, hasRoute := r.routes[service]
	r.mu.RUnlock()

	switch {
	case hasRoute && rt.Strategy == "noop":
		r.logger.DebugContext(ctx, "connectivity: noop", "service", service)
		return nil, nil
	case hasRemote:
		r.logger.DebugContext(ctx, "connectivity: remote", "service", service, "endpoint", rt.Endpoint)
		return rem.handler(ctx, payload)
	case local != nil:
		return local(ctx, payload)
	}
	return nil, &ErrServiceNotFound{Service: service}
}

// Reload reads the routes table and rebuilds remote handlers whose route
// changed. Routes that cannot be built are logged and skipped.
func (r *Router) Reload(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx,
		`SELECT service_name, strategy, COALESCE(endpoint, ''), COALESCE(config, '{}') FROM routes`)
	if err != nil {
		return fmt.Errorf("connectivity: query routes: %w", err)
	}
	defer rows.Close()

	loaded := make(map[string]route)
	for rows.Next() {
		var rt route
		var cfg string
		if err := rows.Scan(&rt.Service, &rt.Strategy, &rt.Endpoint, &cfg); err != nil {
			return fmt.Errorf("connectivity: scan route: %w", err)
		}
		rt.Config = json.RawMessage(cfg)
		loaded[rt.Service] = rt
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("connectivity: rows: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]remote, len(loaded))
	for name, rt := range loaded {
		if rt.Strategy == "local" || rt.Strategy == "noop" {
			continue
		}
		if old, ok := r.routes[name]; ok && old.fingerprint() == rt.fingerprint() {
			if cur, ok := r.remotes[name]; ok {
				next[name] = cur
				continue
			}
		}
		h, closeFn, err := r.build(rt)
		if err != nil {
			r.logger.Warn("connectivity: route skipped", "service", name, "error", err)
			continue
		}
		next[name] = remote{handler: h, close: closeFn}
		r.logger.Info("connectivity: route built", "service", name, "strategy", rt.Strategy, "endpoint", rt.Endpoint)
	}

	for name, old := range r.remotes {
		if old.close == nil {
			continue
		}
		if _, kept := next[name]; !kept || r.routes[name].fingerprint() != loaded[name].fingerprint() {
			old.close()
		}
	}

	r.remotes = next
	r.routes = loaded
	r.logger.Info("connectivity: routes reloaded", "total", len(loaded), "remote", len(next))
	return nil
}

// build must be called with r.mu held.
func (r *Router) build(rt route) (Handler, func(), error) {
	f, ok := r.factories[rt.Strategy]
	if !ok {
		return nil, nil, &ErrNoFactory{Service: rt.Service, Strategy: rt.Strategy}
	}
	h, closeFn, err := f(rt.Endpoint, rt.Config)
	if err != nil {
		return nil, nil, &ErrFactoryFailed{Service: rt.Service, Strategy: rt.Strategy, Endpoint: rt.Endpoint, Cause: err}
	}
	return h, closeFn, nil
}

// Close releases every remote handler.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rem := range r.remotes {
		if rem.close != nil {
			rem.close()
		}
	}
	r.remotes = make(map[string]remote)
	r.routes = make(map[string]route)
	return nil
}
