// Package store provides the SQLite-backed slide library database: projects,
// files, slides, elements, keywords with their join tables, and assemblies.
// Full-text slide search uses FTS5 when compiled in (build tag sqlite_fts5)
// with a LIKE fallback otherwise.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	folder     TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS files (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id  INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	filename    TEXT NOT NULL,
	rel_path    TEXT NOT NULL UNIQUE,
	slide_count INTEGER NOT NULL DEFAULT 0,
	checksum    TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'pending'
);
CREATE INDEX IF NOT EXISTS idx_files_project ON files(project_id);

CREATE TABLE IF NOT EXISTS slides (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id     INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	slide_index INTEGER NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	thumb_path  TEXT NOT NULL DEFAULT '',
	UNIQUE(file_id, slide_index)
);

CREATE TABLE IF NOT EXISTS elements (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	slide_id INTEGER NOT NULL REFERENCES slides(id) ON DELETE CASCADE,
	kind     TEXT NOT NULL,
	x        INTEGER NOT NULL DEFAULT 0,
	y        INTEGER NOT NULL DEFAULT 0,
	w        INTEGER NOT NULL DEFAULT 0,
	h        INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_elements_slide ON elements(slide_id);

CREATE TABLE IF NOT EXISTS keywords (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	text TEXT NOT NULL UNIQUE COLLATE NOCASE,
	kind TEXT NOT NULL CHECK (kind IN ('topic', 'title', 'name'))
);

CREATE TABLE IF NOT EXISTS slide_keywords (
	slide_id   INTEGER NOT NULL REFERENCES slides(id) ON DELETE CASCADE,
	keyword_id INTEGER NOT NULL REFERENCES keywords(id) ON DELETE CASCADE,
	UNIQUE(slide_id, keyword_id)
);
CREATE INDEX IF NOT EXISTS idx_slide_keywords_kw ON slide_keywords(keyword_id);

CREATE TABLE IF NOT EXISTS element_keywords (
	element_id INTEGER NOT NULL REFERENCES elements(id) ON DELETE CASCADE,
	keyword_id INTEGER NOT NULL REFERENCES keywords(id) ON DELETE CASCADE,
	UNIQUE(element_id, keyword_id)
);
CREATE INDEX IF NOT EXISTS idx_element_keywords_kw ON element_keywords(keyword_id);

CREATE TABLE IF NOT EXISTS assemblies (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS assembly_slides (
	assembly_id INTEGER NOT NULL REFERENCES assemblies(id) ON DELETE CASCADE,
	slide_id    INTEGER NOT NULL REFERENCES slides(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	UNIQUE(assembly_id, slide_id),
	UNIQUE(assembly_id, position)
);
`

// DB wraps a sql.DB with slide-library operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
