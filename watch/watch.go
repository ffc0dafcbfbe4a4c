// Package watch polls a SQLite database for a change token and runs an
// action when it moves. The recorder uses it to follow writes made by other
// processes sharing the state database: route edits and recording toggles
// issued from another recorder instance.
//
//	w := watch.New(db, watch.Options{
//		Interval: time.Second,
//		Detector: watch.MaxColumnDetector("module_storage", "updated_at"),
//	})
//	go w.OnChange(ctx, reapply)
package watch

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// ChangeDetector reads a version token. Two different results mean the
// data changed between the calls.
type ChangeDetector func(ctx context.Context, db *sql.DB) (int64, error)

// Options tunes a Watcher.
type Options struct {
	// Interval between polls. Default: 1s.
	Interval time.Duration
	// Debounce delays the action until no further change has been seen for
	// this long. 0 fires on the poll that saw the change.
	Debounce time.Duration
	// Detector defaults to PragmaDataVersion.
	Detector ChangeDetector
	// RunAtStart runs the action once right after the baseline is read, so
	// a load done by the action cannot miss a write made before the seed.
	RunAtStart bool
	Logger     *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Detector == nil {
		o.Detector = PragmaDataVersion
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher runs an action on every observed change.
type Watcher struct {
	db   *sql.DB
	opts Options

	version atomic.Int64

	checks  atomic.Int64
	changes atomic.Int64
	errors  atomic.Int64
	fired   atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Checks  int64 `json:"checks"`
	Changes int64 `json:"changes"`
	Errors  int64 `json:"errors"`
	Fired   int64 `json:"fired"`
}

// New creates a Watcher. Call OnChange to start polling.
func New(db *sql.DB, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{db: db, opts: opts}
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Checks:  w.checks.Load(),
		Changes: w.changes.Load(),
		Errors:  w.errors.Load(),
		Fired:   w.fired.Load(),
	}
}

// Version returns the last version the action ran for, or the seed.
func (w *Watcher) Version() int64 { return w.version.Load() }

// OnChange polls until ctx is cancelled. The version observed at start is
// the baseline; the action runs for each later change. A failing action
// leaves the version unchanged so the next poll retries it.
func (w *Watcher) OnChange(ctx context.Context, action func() error) {
	log := w.opts.Logger

	if v, err := w.opts.Detector(ctx, w.db); err != nil {
		log.Warn("watch: initial version check failed", "error", err)
	} else {
		w.version.Store(v)
	}
	if w.opts.RunAtStart {
		w.fire(action, w.version.Load())
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var (
		settle  *time.Timer
		settleC <-chan time.Time
		pending int64
		waiting bool
	)
	defer func() {
		if settle != nil {
			settle.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.opts.Detector(ctx, w.db)
			if err != nil {
				w.errors.Add(1)
				log.Warn("watch: version check failed", "error", err)
				continue
			}
			if cur == w.version.Load() || (waiting && cur == pending) {
				continue
			}
			w.changes.Add(1)
			pending, waiting = cur, true

			if w.opts.Debounce <= 0 {
				w.fire(action, pending)
				waiting = false
				continue
			}
			if settle != nil {
				settle.Stop()
			}
			settle = time.NewTimer(w.opts.Debounce)
			settleC = settle.C

		case <-settleC:
			settleC = nil
			if waiting {
				w.fire(action, pending)
				waiting = false
			}
		}
	}
}

func (w *Watcher) fire(action func() error, ver int64) {
	if err := action(); err != nil {
		w.errors.Add(1)
		w.opts.Logger.Error("watch: action failed", "version", ver, "error", err)
		return
	}
	w.fired.Add(1)
	w.version.Store(ver)
	w.opts.Logger.Debug("watch: change applied", "version", ver)
}

// PragmaDataVersion reads PRAGMA data_version, which moves when another
// connection commits to the same database file.
func PragmaDataVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}

// MaxColumnDetector polls MAX(column) on table, for tables whose column
// increases on every write.
func MaxColumnDetector(table, column string) ChangeDetector {
	query := "SELECT COALESCE(MAX(" + quoteIdent(column) + "), 0) FROM " + quoteIdent(table)
	return func(ctx context.Context, db *sql.DB) (int64, error) {
		var v int64
		err := db.QueryRowContext(ctx, query).Scan(&v)
		return v, err
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
