// Package database is the embedded sqlite holding fare-history observations
// and persisted metric snapshots. Trips and alerts live in the document
// store, not here.
package database

import (
	"database/sql"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

type DB struct {
	db *sql.DB
}

// Open connects to (creating if needed) the sqlite database at dbPath.
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	createHistoryTable := `
	CREATE TABLE IF NOT EXISTS price_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user TEXT NOT NULL,
		alert_id TEXT NOT NULL,
		origin TEXT NOT NULL,
		dest TEXT NOT NULL,
		price REAL NOT NULL,
		checked_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := db.Exec(createHistoryTable); err != nil {
		return nil, errors.Wrap(err, "failed to create price_history table")
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_history_alert ON price_history(user, alert_id);`); err != nil {
		return nil, errors.Wrap(err, "failed to index price_history")
	}

	createMetricsTable := `
	CREATE TABLE IF NOT EXISTS metrics (
		metric_name TEXT NOT NULL,
		metric_value REAL NOT NULL,
		PRIMARY KEY (metric_name)
	);`
	if _, err := db.Exec(createMetricsTable); err != nil {
		return nil, errors.Wrap(err, "failed to create metrics table")
	}

	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}
