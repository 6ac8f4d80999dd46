package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/slideman/internal/apperr"
	"github.com/starford/slideman/internal/models"
)

// NormalizeKeywordText lowercases text and collapses interior whitespace.
// Keywords are stored with the user's original casing; the unique constraint
// is case-insensitive, so normalization only matters for merge detection.
func NormalizeKeywordText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// GetOrCreateKeyword returns the keyword with the given text, creating it if
// absent. Lookup is case-insensitive. An existing keyword with a different
// kind yields ErrKindMismatch: a keyword's kind is fixed at creation.
func (db *DB) GetOrCreateKeyword(text, kind string) (models.Keyword, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Keyword{}, fmt.Errorf("store: empty keyword text: %w", apperr.ErrInvalidPath)
	}
	if !models.ValidKeywordKind(kind) {
		return models.Keyword{}, fmt.Errorf("store: unknown keyword kind %q: %w", kind, apperr.ErrKindMismatch)
	}

	existing, err := db.GetKeywordByText(text)
	if err == nil {
		if existing.Kind != kind {
			return models.Keyword{}, fmt.Errorf("store: keyword %q is kind %q not %q: %w",
				existing.Text, existing.Kind, kind, apperr.ErrKindMismatch)
		}
		return existing, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return models.Keyword{}, err
	}

	res, err := db.conn.Exec(`INSERT INTO keywords (text, kind) VALUES (?, ?)`, text, kind)
	if err != nil {
		return models.Keyword{}, fmt.Errorf("store: create keyword: %w", err)
	}
	id, _ := res.LastInsertId()
	return models.Keyword{ID: id, Text: text, Kind: kind}, nil
}

// GetKeyword returns the keyword with the given id.
func (db *DB) GetKeyword(id int64) (models.Keyword, error) {
	var k models.Keyword
	err := db.conn.QueryRow(`SELECT id, text, kind FROM keywords WHERE id = ?`, id).
		Scan(&k.ID, &k.Text, &k.Kind)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Keyword{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.Keyword{}, fmt.Errorf("store: get keyword: %w", err)
	}
	return k, nil
}

// GetKeywordByText returns the keyword matching text case-insensitively.
func (db *DB) GetKeywordByText(text string) (models.Keyword, error) {
	var k models.Keyword
	err := db.conn.QueryRow(
		`SELECT id, text, kind FROM keywords WHERE text = ? COLLATE NOCASE`, text).
		Scan(&k.ID, &k.Text, &k.Kind)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Keyword{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.Keyword{}, fmt.Errorf("store: get keyword by text: %w", err)
	}
	return k, nil
}

// ListKeywords returns all keywords, optionally filtered by kind, ordered by text.
func (db *DB) ListKeywords(kind string) ([]models.Keyword, error) {
	q := `SELECT id, text, kind FROM keywords`
	var args []any
	if kind != "" {
		q += ` WHERE kind = ?`
		args = append(args, kind)
	}
	q += ` ORDER BY text COLLATE NOCASE`

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list keywords: %w", err)
	}
	defer rows.Close()

	var out []models.Keyword
	for rows.Next() {
		var k models.Keyword
		if err := rows.Scan(&k.ID, &k.Text, &k.Kind); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// RenameKeyword changes a keyword's text. Kind is untouched. Colliding with
// another keyword's text (case-insensitively) yields ErrAlreadyExists.
func (db *DB) RenameKeyword(id int64, newText string) error {
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return fmt.Errorf("store: empty keyword text: %w", apperr.ErrInvalidPath)
	}
	if other, err := db.GetKeywordByText(newText); err == nil && other.ID != id {
		return fmt.Errorf("store: keyword %q: %w", newText, apperr.ErrAlreadyExists)
	}
	res, err := db.conn.Exec(`UPDATE keywords SET text = ? WHERE id = ?`, newText, id)
	if err != nil {
		return fmt.Errorf("store: rename keyword: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return db.refreshKeywordSlides(id)
}

// DeleteKeyword removes a keyword; join rows cascade.
func (db *DB) DeleteKeyword(id int64) error {
	// Collect affected slides first, including slides linked only through
	// an element, so their search rows can be rebuilt after the delete.
	slideIDs, err := db.keywordSlideIDs(id)
	if err != nil {
		return err
	}
	res, err := db.conn.Exec(`DELETE FROM keywords WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete keyword: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	for _, sid := range slideIDs {
		if err := ftsRefreshSlide(db.conn, sid); err != nil {
			return err
		}
	}
	return nil
}

// RestoreKeyword re-inserts a previously deleted keyword with its original id
// and re-attaches its slide and element links. Used by merge undo.
func (db *DB) RestoreKeyword(k models.Keyword, slideIDs, elementIDs []int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(
		`INSERT INTO keywords (id, text, kind) VALUES (?, ?, ?)`, k.ID, k.Text, k.Kind); err != nil {
		return fmt.Errorf("store: restore keyword: %w", err)
	}
	for _, sid := range slideIDs {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO slide_keywords (slide_id, keyword_id) VALUES (?, ?)`, sid, k.ID); err != nil {
			return fmt.Errorf("store: restore slide link: %w", err)
		}
	}
	for _, eid := range elementIDs {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO element_keywords (element_id, keyword_id) VALUES (?, ?)`, eid, k.ID); err != nil {
			return fmt.Errorf("store: restore element link: %w", err)
		}
	}

	// Rebuild search rows for every slide the keyword touches again. A slide
	// may be reachable only through a restored element link, so parent slides
	// of elementIDs count too.
	refresh := make(map[int64]struct{}, len(slideIDs))
	for _, sid := range slideIDs {
		refresh[sid] = struct{}{}
	}
	for _, eid := range elementIDs {
		var sid int64
		err := tx.QueryRow(`SELECT slide_id FROM elements WHERE id = ?`, eid).Scan(&sid)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("store: restore element slide: %w", err)
		}
		refresh[sid] = struct{}{}
	}
	for sid := range refresh {
		if err := ftsRefreshSlide(tx, sid); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// TagSlide attaches a slide-level keyword (kind topic or title) to a slide.
// Tagging is idempotent.
func (db *DB) TagSlide(slideID, keywordID int64) error {
	k, err := db.GetKeyword(keywordID)
	if err != nil {
		return err
	}
	if k.Kind == models.KeywordName {
		return fmt.Errorf("store: %q keywords attach to elements, not slides: %w",
			models.KeywordName, apperr.ErrKindMismatch)
	}
	if _, err := db.GetSlide(slideID); err != nil {
		return err
	}
	if _, err := db.conn.Exec(
		`INSERT OR IGNORE INTO slide_keywords (slide_id, keyword_id) VALUES (?, ?)`,
		slideID, keywordID); err != nil {
		return fmt.Errorf("store: tag slide: %w", err)
	}
	return ftsRefreshSlide(db.conn, slideID)
}

// UntagSlide detaches a keyword from a slide.
func (db *DB) UntagSlide(slideID, keywordID int64) error {
	if _, err := db.conn.Exec(
		`DELETE FROM slide_keywords WHERE slide_id = ? AND keyword_id = ?`,
		slideID, keywordID); err != nil {
		return fmt.Errorf("store: untag slide: %w", err)
	}
	return ftsRefreshSlide(db.conn, slideID)
}

// TagElement attaches an element-level keyword (kind name) to an element.
func (db *DB) TagElement(elementID, keywordID int64) error {
	k, err := db.GetKeyword(keywordID)
	if err != nil {
		return err
	}
	if k.Kind != models.KeywordName {
		return fmt.Errorf("store: only %q keywords attach to elements: %w",
			models.KeywordName, apperr.ErrKindMismatch)
	}
	el, err := db.GetElement(elementID)
	if err != nil {
		return err
	}
	if _, err := db.conn.Exec(
		`INSERT OR IGNORE INTO element_keywords (element_id, keyword_id) VALUES (?, ?)`,
		elementID, keywordID); err != nil {
		return fmt.Errorf("store: tag element: %w", err)
	}
	return ftsRefreshSlide(db.conn, el.SlideID)
}

// UntagElement detaches a keyword from an element.
func (db *DB) UntagElement(elementID, keywordID int64) error {
	el, err := db.GetElement(elementID)
	if err != nil {
		return err
	}
	if _, err := db.conn.Exec(
		`DELETE FROM element_keywords WHERE element_id = ? AND keyword_id = ?`,
		elementID, keywordID); err != nil {
		return fmt.Errorf("store: untag element: %w", err)
	}
	return ftsRefreshSlide(db.conn, el.SlideID)
}

// SlideKeywords returns the keywords attached to a slide, ordered by text.
func (db *DB) SlideKeywords(slideID int64) ([]models.Keyword, error) {
	rows, err := db.conn.Query(`
		SELECT k.id, k.text, k.kind FROM keywords k
		JOIN slide_keywords sk ON sk.keyword_id = k.id
		WHERE sk.slide_id = ? ORDER BY k.text COLLATE NOCASE`, slideID)
	if err != nil {
		return nil, fmt.Errorf("store: slide keywords: %w", err)
	}
	return scanKeywords(rows)
}

// ElementKeywords returns the keywords attached to an element, ordered by text.
func (db *DB) ElementKeywords(elementID int64) ([]models.Keyword, error) {
	rows, err := db.conn.Query(`
		SELECT k.id, k.text, k.kind FROM keywords k
		JOIN element_keywords ek ON ek.keyword_id = k.id
		WHERE ek.element_id = ? ORDER BY k.text COLLATE NOCASE`, elementID)
	if err != nil {
		return nil, fmt.Errorf("store: element keywords: %w", err)
	}
	return scanKeywords(rows)
}

func scanKeywords(rows *sql.Rows) ([]models.Keyword, error) {
	defer rows.Close()
	var out []models.Keyword
	for rows.Next() {
		var k models.Keyword
		if err := rows.Scan(&k.ID, &k.Text, &k.Kind); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// KeywordLinks returns the slide ids and element ids a keyword is attached to.
func (db *DB) KeywordLinks(keywordID int64) (slideIDs, elementIDs []int64, err error) {
	slideIDs, err = db.int64Column(
		`SELECT slide_id FROM slide_keywords WHERE keyword_id = ?`, keywordID)
	if err != nil {
		return nil, nil, err
	}
	elementIDs, err = db.int64Column(
		`SELECT element_id FROM element_keywords WHERE keyword_id = ?`, keywordID)
	if err != nil {
		return nil, nil, err
	}
	return slideIDs, elementIDs, nil
}

// MergeKeywords re-points every link of loser to winner and deletes loser,
// all in one transaction. Keywords of different kinds never merge.
func (db *DB) MergeKeywords(winnerID, loserID int64) error {
	if winnerID == loserID {
		return fmt.Errorf("store: cannot merge a keyword into itself: %w", apperr.ErrConflict)
	}
	winner, err := db.GetKeyword(winnerID)
	if err != nil {
		return err
	}
	loser, err := db.GetKeyword(loserID)
	if err != nil {
		return err
	}
	if winner.Kind != loser.Kind {
		return fmt.Errorf("store: merge %q (%s) into %q (%s): %w",
			loser.Text, loser.Kind, winner.Text, winner.Kind, apperr.ErrKindMismatch)
	}

	// Slides whose FTS rows need refreshing after the merge.
	slideIDs, err := db.keywordSlideIDs(loserID)
	if err != nil {
		return err
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	type mergeStep struct {
		stmt string
		args []any
	}
	steps := []mergeStep{
		{`INSERT OR IGNORE INTO slide_keywords (slide_id, keyword_id)
		  SELECT slide_id, ? FROM slide_keywords WHERE keyword_id = ?`, []any{winnerID, loserID}},
		{`DELETE FROM slide_keywords WHERE keyword_id = ?`, []any{loserID}},
		{`INSERT OR IGNORE INTO element_keywords (element_id, keyword_id)
		  SELECT element_id, ? FROM element_keywords WHERE keyword_id = ?`, []any{winnerID, loserID}},
		{`DELETE FROM element_keywords WHERE keyword_id = ?`, []any{loserID}},
		{`DELETE FROM keywords WHERE id = ?`, []any{loserID}},
	}
	for _, st := range steps {
		if _, err := tx.Exec(st.stmt, st.args...); err != nil {
			return fmt.Errorf("store: merge keywords: %w", err)
		}
	}
	for _, sid := range slideIDs {
		if err := ftsRefreshSlide(tx, sid); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// keywordSlideIDs returns every slide affected by a keyword, directly or
// through one of its elements.
func (db *DB) keywordSlideIDs(keywordID int64) ([]int64, error) {
	return db.int64Column(`
		SELECT slide_id FROM slide_keywords WHERE keyword_id = ?1
		UNION
		SELECT e.slide_id FROM element_keywords ek
		JOIN elements e ON e.id = ek.element_id
		WHERE ek.keyword_id = ?1`, keywordID)
}

// refreshKeywordSlides refreshes FTS rows of all slides the keyword touches.
func (db *DB) refreshKeywordSlides(keywordID int64) error {
	slideIDs, err := db.keywordSlideIDs(keywordID)
	if err != nil {
		return err
	}
	for _, sid := range slideIDs {
		if err := ftsRefreshSlide(db.conn, sid); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) int64Column(query string, args ...any) ([]int64, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
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
