package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hazyhaar/wsrecorder/dbopen"

	_ "modernc.org/sqlite"
)

// Table is the SQLite table holding module storage. Its updated_at column
// increases on every write, which watchers use as a change token.
const Table = "module_storage"

// Schema creates the module storage table.
const Schema = `
CREATE TABLE IF NOT EXISTS module_storage (
	scope      TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (scope, key)
);`

const upsertSQL = `
INSERT INTO module_storage (scope, key, value, updated_at)
VALUES (?, ?, ?, MAX(?, (SELECT COALESCE(MAX(updated_at), 0) + 1 FROM module_storage)))
ON CONFLICT (scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

// SQLite is a Store backed by a SQLite database opened with dbopen.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite wraps db. The schema must already be applied
// (dbopen.WithSchema(Schema)).
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, now: time.Now}
}

// DB returns the underlying database handle.
func (s *SQLite) DB() *sql.DB { return s.db }

func (s *SQLite) Get(ctx context.Context, scope, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM module_storage WHERE scope = ? AND key = ?`, scope, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *SQLite) Set(ctx context.Context, scope, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, upsertSQL, scope, key, value, s.now().UnixMilli())
	return err
}

// Update runs fn inside a transaction, retrying when SQLite reports BUSY.
func (s *SQLite) Update(ctx context.Context, scope, key string, fn UpdateFunc) error {
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		var old []byte
		ok := true
		err := tx.QueryRowContext(ctx,
			`SELECT value FROM module_storage WHERE scope = ? AND key = ?`, scope, key).Scan(&old)
		if errors.Is(err, sql.ErrNoRows) {
			ok = false
		} else if err != nil {
			return err
		}

		next, err := fn(old, ok)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, upsertSQL, scope, key, next, s.now().UnixMilli())
		return err
	})
}
