package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/slideman/internal/apperr"
	"github.com/starford/slideman/internal/models"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so FTS helpers can run
// inside or outside a transaction.
type dbtx interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// SlideUpsert carries the converter's output for one slide.
type SlideUpsert struct {
	Index     int
	Title     string
	ThumbPath string
	Elements  []models.Element
}

// SlideListItem is a lightweight slide row for list responses.
type SlideListItem struct {
	ID         int64    `json:"id"`
	FileID     int64    `json:"file_id"`
	RelPath    string   `json:"rel_path"`
	SlideIndex int      `json:"slide_index"`
	Title      string   `json:"title"`
	ThumbPath  string   `json:"thumb_path"`
	Keywords   []string `json:"keywords"`
}

// SearchResult represents one slide search hit.
type SearchResult struct {
	SlideID int64  `json:"slide_id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// ReplaceFileSlides brings the slides of a file in line with the converter
// output, in one transaction. Slides are keyed by (file_id, slide_index) so
// slide-level keywords survive reconversion; elements are replaced wholesale.
// Slides past the new count are dropped.
func (db *DB) ReplaceFileSlides(fileID int64, slides []SlideUpsert) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var refreshed []int64
	for _, s := range slides {
		_, err := tx.Exec(`
			INSERT INTO slides (file_id, slide_index, title, thumb_path)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(file_id, slide_index) DO UPDATE SET
				title      = excluded.title,
				thumb_path = excluded.thumb_path
		`, fileID, s.Index, s.Title, s.ThumbPath)
		if err != nil {
			return fmt.Errorf("store: upsert slide %d: %w", s.Index, err)
		}
		var slideID int64
		if err := tx.QueryRow(
			`SELECT id FROM slides WHERE file_id = ? AND slide_index = ?`,
			fileID, s.Index).Scan(&slideID); err != nil {
			return fmt.Errorf("store: slide id: %w", err)
		}

		if _, err := tx.Exec(`DELETE FROM elements WHERE slide_id = ?`, slideID); err != nil {
			return fmt.Errorf("store: clear elements: %w", err)
		}
		for _, e := range s.Elements {
			if _, err := tx.Exec(
				`INSERT INTO elements (slide_id, kind, x, y, w, h) VALUES (?, ?, ?, ?, ?, ?)`,
				slideID, e.Kind, e.X, e.Y, e.W, e.H); err != nil {
				return fmt.Errorf("store: insert element: %w", err)
			}
		}
		refreshed = append(refreshed, slideID)
	}

	// Drop slides beyond the new deck length (their FTS rows too).
	stale, err := staleSlideIDs(tx, fileID, len(slides))
	if err != nil {
		return err
	}
	if _, err := tx.Exec(
		`DELETE FROM slides WHERE file_id = ? AND slide_index >= ?`, fileID, len(slides)); err != nil {
		return fmt.Errorf("store: drop stale slides: %w", err)
	}
	for _, id := range stale {
		ftsDeleteSlide(tx, id)
	}
	for _, id := range refreshed {
		if err := ftsRefreshSlide(tx, id); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func staleSlideIDs(q dbtx, fileID int64, keep int) ([]int64, error) {
	rows, err := q.Query(
		`SELECT id FROM slides WHERE file_id = ? AND slide_index >= ?`, fileID, keep)
	if err != nil {
		return nil, fmt.Errorf("store: stale slide ids: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// GetSlide returns the slide with the given id.
func (db *DB) GetSlide(id int64) (models.Slide, error) {
	var s models.Slide
	err := db.conn.QueryRow(
		`SELECT id, file_id, slide_index, title, thumb_path FROM slides WHERE id = ?`, id).
		Scan(&s.ID, &s.FileID, &s.SlideIndex, &s.Title, &s.ThumbPath)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Slide{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.Slide{}, fmt.Errorf("store: get slide: %w", err)
	}
	return s, nil
}

// ListElements returns the elements of a slide ordered by id.
func (db *DB) ListElements(slideID int64) ([]models.Element, error) {
	rows, err := db.conn.Query(
		`SELECT id, slide_id, kind, x, y, w, h FROM elements WHERE slide_id = ? ORDER BY id`, slideID)
	if err != nil {
		return nil, fmt.Errorf("store: list elements: %w", err)
	}
	defer rows.Close()

	var out []models.Element
	for rows.Next() {
		var e models.Element
		if err := rows.Scan(&e.ID, &e.SlideID, &e.Kind, &e.X, &e.Y, &e.W, &e.H); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetElement returns the element with the given id.
func (db *DB) GetElement(id int64) (models.Element, error) {
	var e models.Element
	err := db.conn.QueryRow(
		`SELECT id, slide_id, kind, x, y, w, h FROM elements WHERE id = ?`, id).
		Scan(&e.ID, &e.SlideID, &e.Kind, &e.X, &e.Y, &e.W, &e.H)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Element{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.Element{}, fmt.Errorf("store: get element: %w", err)
	}
	return e, nil
}

// ListSlides returns paginated slides of a project, optionally filtered by a
// keyword (slide-level or on any of the slide's elements). Sort is one of
// "position" (default: file path then slide index), "title", or "id".
func (db *DB) ListSlides(projectID int64, limit, offset int, keyword, sort string) ([]SlideListItem, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	where := `f.project_id = ?`
	args := []any{projectID}
	if keyword != "" {
		where += ` AND (
			EXISTS (SELECT 1 FROM slide_keywords sk JOIN keywords k ON k.id = sk.keyword_id
				WHERE sk.slide_id = s.id AND k.text = ? COLLATE NOCASE)
			OR EXISTS (SELECT 1 FROM element_keywords ek JOIN keywords k ON k.id = ek.keyword_id
				JOIN elements e ON e.id = ek.element_id
				WHERE e.slide_id = s.id AND k.text = ? COLLATE NOCASE)
		)`
		args = append(args, keyword, keyword)
	}

	order := `f.rel_path, s.slide_index`
	switch sort {
	case "title":
		order = `s.title, s.id`
	case "id":
		order = `s.id`
	}

	var total int
	countQ := `SELECT count(*) FROM slides s JOIN files f ON f.id = s.file_id WHERE ` + where
	if err := db.conn.QueryRow(countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count slides: %w", err)
	}

	q := `SELECT s.id, s.file_id, f.rel_path, s.slide_index, s.title, s.thumb_path
	      FROM slides s JOIN files f ON f.id = s.file_id
	      WHERE ` + where + ` ORDER BY ` + order + ` LIMIT ? OFFSET ?`
	rows, err := db.conn.Query(q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list slides: %w", err)
	}
	defer rows.Close()

	var out []SlideListItem
	for rows.Next() {
		var it SlideListItem
		if err := rows.Scan(&it.ID, &it.FileID, &it.RelPath, &it.SlideIndex, &it.Title, &it.ThumbPath); err != nil {
			return nil, 0, err
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range out {
		kws, err := db.SlideKeywords(out[i].ID)
		if err != nil {
			return nil, 0, err
		}
		texts := make([]string, len(kws))
		for j, k := range kws {
			texts[j] = k.Text
		}
		out[i].Keywords = texts
	}
	return out, total, nil
}
