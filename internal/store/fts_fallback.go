//go:build !sqlite_fts5

package store

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses a LIKE fallback over titles and keywords.
	return nil
}

func ftsRefreshSlide(_ dbtx, _ int64) error {
	// Titles and keywords are queried directly in the fallback; nothing to sync.
	return nil
}

func ftsDeleteSlide(_ dbtx, _ int64) {}

// SearchSlides performs a LIKE-based search (fallback when FTS5 is not
// compiled in) over slide titles and attached keyword texts.
func (db *DB) SearchSlides(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT s.id, s.title, s.title
		FROM slides s
		WHERE s.title LIKE ?1
		   OR EXISTS (SELECT 1 FROM slide_keywords sk JOIN keywords k ON k.id = sk.keyword_id
			WHERE sk.slide_id = s.id AND k.text LIKE ?1)
		   OR EXISTS (SELECT 1 FROM element_keywords ek JOIN keywords k ON k.id = ek.keyword_id
			JOIN elements e ON e.id = ek.element_id
			WHERE e.slide_id = s.id AND k.text LIKE ?1)
		LIMIT ?2
	`, like, limit)
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
