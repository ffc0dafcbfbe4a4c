package connectivity

import (
	"context"
	"database/sql"
	"time"

	"github.com/hazyhaar/wsrecorder/watch"
)

// Watch loads the routes table, then reloads it whenever a row changes.
// It blocks until ctx is cancelled.
func (r *Router) Watch(ctx context.Context, db *sql.DB, interval time.Duration) {
	w := watch.New(db, watch.Options{
		Interval:   interval,
		Detector:   watch.MaxColumnDetector("routes", "updated_at"),
		RunAtStart: true,
		Logger:     r.logger,
	})
	w.OnChange(ctx, func() error { return r.Reload(ctx, db) })
}
