package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"housekeeper/internal/logging"

	"github.com/rs/zerolog"
	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log := logging.Component(logger, "database")
	log.Info().Str("path", path).Msg("database initialized")

	return &DB{db: db, logger: log}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS cleaning_tasks (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER,
            property_id INTEGER NOT NULL,
            room_id INTEGER NOT NULL,
            scheduled_date TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            team_id INTEGER,
            source TEXT NOT NULL DEFAULT 'auto',
            notes TEXT NOT NULL DEFAULT '',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS teams (
            id INTEGER PRIMARY KEY,
            name TEXT NOT NULL,
            property_ids TEXT NOT NULL DEFAULT '[]',
            channels TEXT NOT NULL DEFAULT '[]',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS sync_runs (
            id TEXT PRIMARY KEY,
            status TEXT NOT NULL,
            window_start TEXT NOT NULL,
            window_end TEXT NOT NULL,
            started_at DATETIME NOT NULL,
            finished_at DATETIME,
            stats TEXT NOT NULL DEFAULT ''
        )`,

		// One active auto-sourced task per booking, enforced by the store
		// so a losing concurrent writer fails its insert instead of
		// creating a duplicate.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_active_booking
            ON cleaning_tasks(booking_id)
            WHERE source = 'auto' AND status != 'cancelled' AND booking_id IS NOT NULL`,

		`CREATE INDEX IF NOT EXISTS idx_tasks_scheduled_date ON cleaning_tasks(scheduled_date)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_property_id ON cleaning_tasks(property_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_room_id ON cleaning_tasks(room_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON cleaning_tasks(status)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON sync_runs(started_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// Ping verifies the connection is still usable. A failure here is fatal to
// a sync run: without the store there is nothing to reconcile against.
func (db *DB) Ping(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.db.Close()
}
