package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hazyhaar/wsrecorder/connectivity"
	"github.com/hazyhaar/wsrecorder/kit"
)

// callTimeout bounds registry calls that never wait on the user.
const callTimeout = 10 * time.Second

// RegisterConnectivity announces the module on reg and registers each
// service as a local handler returning JSON.
func (r *Recorder) RegisterConnectivity(reg *connectivity.Router) {
	svcs := r.services()
	names := make([]string, 0, len(svcs))
	for _, s := range svcs {
		ep := s.endpoint
		h := func(ctx context.Context, _ []byte) ([]byte, error) {
			resp, err := ep(kit.WithTransport(ctx, "connectivity"), nil)
			if err != nil {
				return nil, err
			}
			return json.Marshal(resp)
		}
		mws := []connectivity.HandlerMiddleware{
			connectivity.Recovery(r.logger),
			connectivity.Logging(r.logger, s.name),
		}
		if !s.interactive {
			mws = append(mws, connectivity.Timeout(callTimeout))
		}
		reg.RegisterLocal(s.name, connectivity.Chain(mws...)(h))
		names = append(names, s.name)
	}

	reg.RegisterModule(connectivity.Module{
		Name:     r.cfg.Module,
		Location: r.cfg.Browser.StartURL,
		Services: names,
		Commands: []any{r.Command()},
	})
}

// WatchRoutes creates the routes table in the state database and keeps
// reg in sync with it until ctx is cancelled. Close waits for the watcher
// before closing the database. It does nothing for an in-memory store.
func (r *Recorder) WatchRoutes(ctx context.Context, reg *connectivity.Router) error {
	if r.db == nil {
		return nil
	}
	if err := connectivity.Init(r.db); err != nil {
		return fmt.Errorf("recorder: init routes: %w", err)
	}
	r.wg.Go(func() { reg.Watch(ctx, r.db, r.cfg.Watch.Interval) })
	return nil
}
