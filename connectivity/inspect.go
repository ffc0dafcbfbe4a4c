package connectivity

import (
	"iter"
	"slices"
)

// ServiceInfo is a snapshot of how a service is routed.
type ServiceInfo struct {
	Name     string `json:"name"`
	Strategy string `json:"strategy"`
	Endpoint string `json:"endpoint,omitempty"`
	HasLocal bool   `json:"has_local"`
}

// Services yields every known service in name order: routed ones and
// local-only ones.
func (r *Router) Services() iter.Seq[ServiceInfo] {
	r.mu.RLock()
	names := make([]string, 0, len(r.routes)+len(r.locals))
	for name := range r.routes {
		names = append(names, name)
	}
	for name := range r.locals {
		if _, routed := r.routes[name]; !routed {
			names = append(names, name)
		}
	}
	r.mu.RUnlock()
	slices.Sort(names)

	return func(yield func(ServiceInfo) bool) {
		for _, name := range names {
			info, ok := r.Inspect(name)
			if !ok {
				continue
			}
			if !yield(info) {
				return
			}
		}
	}
}

// Inspect describes one service; ok is false when it is unknown.
func (r *Router) Inspect(service string) (info ServiceInfo, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, routed := r.routes[service]
	_, local := r.locals[service]
	if !routed && !local {
		return ServiceInfo{}, false
	}

	info = ServiceInfo{Name: service, HasLocal: local, Strategy: "local"}
	if routed {
		info.Strategy = rt.Strategy
		info.Endpoint = rt.Endpoint
	}
	return info, true
}
