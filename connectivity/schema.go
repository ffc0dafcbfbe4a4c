package connectivity

import "database/sql"

// Schema creates the routes table. Strategies:
//   - local: the handler registered with RegisterLocal (also the default
//     for services with no row).
//   - http: POST to endpoint through the "http" transport factory.
//   - noop: succeed without doing anything, to switch a service off.
//
// updated_at is in milliseconds and moves on every insert or update, so the
// table can be watched with watch.MaxColumnDetector.
const Schema = `
CREATE TABLE IF NOT EXISTS routes (
    service_name TEXT PRIMARY KEY,
    strategy     TEXT NOT NULL CHECK(strategy IN ('local', 'http', 'noop')),
    endpoint     TEXT,
    config       TEXT DEFAULT '{}',
    updated_at   INTEGER NOT NULL DEFAULT (CAST((julianday('now') - 2440587.5) * 86400000 AS INTEGER))
);

CREATE TRIGGER IF NOT EXISTS trg_routes_updated_at
AFTER UPDATE OF strategy, endpoint, config ON routes
FOR EACH ROW
BEGIN
    UPDATE routes SET updated_at = MAX(
        CAST((julianday('now') - 2440587.5) * 86400000 AS INTEGER),
        COALESCE((SELECT MAX(updated_at) FROM routes), 0) + 1
    ) WHERE service_name = NEW.service_name;
END;

CREATE TRIGGER IF NOT EXISTS trg_routes_inserted_at
AFTER INSERT ON routes
FOR EACH ROW
BEGIN
    UPDATE routes SET updated_at = MAX(
        NEW.updated_at,
        COALESCE((SELECT MAX(updated_at) FROM routes WHERE service_name != NEW.service_name), 0) + 1
    ) WHERE service_name = NEW.service_name;
END;
`

// Init creates the routes table if it doesn't exist.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
