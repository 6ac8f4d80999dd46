//go:build sqlite_fts5

package store

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS slides_fts USING fts5(
			slide_id UNINDEXED,
			title,
			keywords,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

// ftsRefreshSlide rebuilds the FTS row for one slide from its title plus all
// keywords attached to it or to its elements.
func ftsRefreshSlide(q dbtx, slideID int64) error {
	var title string
	if err := q.QueryRow(`SELECT title FROM slides WHERE id = ?`, slideID).Scan(&title); err != nil {
		// Slide gone; make sure the FTS row is too.
		ftsDeleteSlide(q, slideID)
		return nil
	}

	rows, err := q.Query(`
		SELECT k.text FROM keywords k
		JOIN slide_keywords sk ON sk.keyword_id = k.id
		WHERE sk.slide_id = ?1
		UNION
		SELECT k.text FROM keywords k
		JOIN element_keywords ek ON ek.keyword_id = k.id
		JOIN elements e ON e.id = ek.element_id
		WHERE e.slide_id = ?1`, slideID)
	if err != nil {
		return fmt.Errorf("store: fts keyword texts: %w", err)
	}
	var texts []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			rows.Close()
			return err
		}
		texts = append(texts, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	_, _ = q.Exec(`DELETE FROM slides_fts WHERE slide_id = ?`, slideID)
	if _, err := q.Exec(
		`INSERT INTO slides_fts (slide_id, title, keywords) VALUES (?, ?, ?)`,
		slideID, title, strings.Join(texts, " ")); err != nil {
		return fmt.Errorf("store: fts upsert: %w", err)
	}
	return nil
}

func ftsDeleteSlide(q dbtx, slideID int64) {
	_, _ = q.Exec(`DELETE FROM slides_fts WHERE slide_id = ?`, slideID)
}

// SearchSlides performs an FTS5 search over slide titles and keywords.
func (db *DB) SearchSlides(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT slide_id,
		       title,
		       snippet(slides_fts, 2, '<b>', '</b>', '...', 64)
		FROM slides_fts
		WHERE slides_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.SlideID, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
