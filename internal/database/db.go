// Package database persists scan records and stitched composites in SQLite.
// It is the single source of truth for pipeline state: every stage commits
// its per-scan outcome here before reporting success.
package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	conn *sql.DB
}

// Open opens (and if needed creates) the SQLite database at path. WAL mode
// and a busy timeout keep concurrent batch operations from tripping over
// each other on unrelated scans.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return db, nil
}

func (db *DB) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL UNIQUE,
		original_filename TEXT NOT NULL,
		image_path TEXT NOT NULL,
		label_path TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		matching_status TEXT NOT NULL,
		ocr_text TEXT NOT NULL DEFAULT '',
		ocr_confidence REAL,
		fields_json TEXT NOT NULL DEFAULT '',
		matches_json TEXT NOT NULL DEFAULT '',
		best_match_json TEXT NOT NULL DEFAULT '',
		user_selected_id TEXT NOT NULL DEFAULT '',
		stitched_hash TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_scans_status ON scans(status);
	CREATE INDEX IF NOT EXISTS idx_scans_stitched_hash ON scans(stitched_hash);

	CREATE TABLE IF NOT EXISTS stitched_images (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		content_hash TEXT NOT NULL UNIQUE,
		member_hashes_json TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);
	`
	_, err := db.conn.Exec(query)
	return err
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}
