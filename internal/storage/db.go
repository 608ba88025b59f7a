package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database holding local change-set history
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	wrapper := &DB{db}

	if err := wrapper.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return wrapper, nil
}

// migrate runs database migrations
func (db *DB) migrate() error {
	migrations := []string{
		// Change-sets submitted from this machine
		`CREATE TABLE IF NOT EXISTS changesets (
			id TEXT PRIMARY KEY,
			collection_id TEXT NOT NULL,
			job_id TEXT,
			status TEXT NOT NULL,
			added_count INTEGER NOT NULL DEFAULT 0,
			removed_count INTEGER NOT NULL DEFAULT 0,
			processed INTEGER NOT NULL DEFAULT 0,
			total INTEGER NOT NULL DEFAULT 0,
			error_message TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		// Index for listing history by collection
		`CREATE INDEX IF NOT EXISTS idx_changesets_collection ON changesets(collection_id, created_at DESC)`,

		// Items of each change-set
		`CREATE TABLE IF NOT EXISTS changeset_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			changeset_id TEXT NOT NULL,
			op TEXT NOT NULL,
			ref TEXT NOT NULL,
			name TEXT,
			FOREIGN KEY (changeset_id) REFERENCES changesets(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_changeset_items_changeset ON changeset_items(changeset_id)`,

		// Settings table
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
