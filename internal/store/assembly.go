package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/slideman/internal/apperr"
	"github.com/starford/slideman/internal/models"
)

// SlideSource locates a slide inside its source presentation file.
type SlideSource struct {
	SlideID    int64
	RelPath    string
	SlideIndex int
}

// CreateAssembly inserts an assembly with the given ordered slides. Every
// slide must belong to the project.
func (db *DB) CreateAssembly(projectID int64, name string, slideIDs []int64) (models.Assembly, error) {
	if _, err := db.GetProject(projectID); err != nil {
		return models.Assembly{}, err
	}
	now := time.Now().UTC()

	tx, err := db.conn.Begin()
	if err != nil {
		return models.Assembly{}, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec(
		`INSERT INTO assemblies (project_id, name, created_at) VALUES (?, ?, ?)`,
		projectID, name, now)
	if err != nil {
		return models.Assembly{}, fmt.Errorf("store: create assembly: %w", err)
	}
	id, _ := res.LastInsertId()

	for pos, sid := range slideIDs {
		var owner int64
		err := tx.QueryRow(
			`SELECT f.project_id FROM slides s JOIN files f ON f.id = s.file_id WHERE s.id = ?`, sid).
			Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return models.Assembly{}, fmt.Errorf("store: slide %d: %w", sid, apperr.ErrNotFound)
		}
		if err != nil {
			return models.Assembly{}, fmt.Errorf("store: assembly slide: %w", err)
		}
		if owner != projectID {
			return models.Assembly{}, fmt.Errorf("store: slide %d belongs to another project: %w", sid, apperr.ErrConflict)
		}
		if _, err := tx.Exec(
			`INSERT INTO assembly_slides (assembly_id, slide_id, position) VALUES (?, ?, ?)`,
			id, sid, pos); err != nil {
			if isUniqueErr(err) {
				return models.Assembly{}, fmt.Errorf("store: duplicate slide %d in assembly: %w", sid, apperr.ErrConflict)
			}
			return models.Assembly{}, fmt.Errorf("store: assembly slide: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return models.Assembly{}, fmt.Errorf("store: commit: %w", err)
	}
	return models.Assembly{ID: id, ProjectID: projectID, Name: name, SlideIDs: slideIDs, CreatedAt: now}, nil
}

// GetAssembly returns an assembly with its ordered slide ids.
func (db *DB) GetAssembly(id int64) (models.Assembly, error) {
	var a models.Assembly
	err := db.conn.QueryRow(
		`SELECT id, project_id, name, created_at FROM assemblies WHERE id = ?`, id).
		Scan(&a.ID, &a.ProjectID, &a.Name, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Assembly{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.Assembly{}, fmt.Errorf("store: get assembly: %w", err)
	}
	a.SlideIDs, err = db.int64Column(
		`SELECT slide_id FROM assembly_slides WHERE assembly_id = ? ORDER BY position`, id)
	if err != nil {
		return models.Assembly{}, err
	}
	return a, nil
}

// ListAssemblies returns the assemblies of a project, newest first.
func (db *DB) ListAssemblies(projectID int64) ([]models.Assembly, error) {
	rows, err := db.conn.Query(
		`SELECT id, project_id, name, created_at FROM assemblies
		 WHERE project_id = ? ORDER BY created_at DESC, id DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: list assemblies: %w", err)
	}
	defer rows.Close()

	var out []models.Assembly
	for rows.Next() {
		var a models.Assembly
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.Name, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].SlideIDs, err = db.int64Column(
			`SELECT slide_id FROM assembly_slides WHERE assembly_id = ? ORDER BY position`, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReorderAssembly replaces the assembly's slide order with the given list.
// Omitted slides are removed; positions are renumbered contiguously from 0.
func (db *DB) ReorderAssembly(id int64, slideIDs []int64) error {
	a, err := db.GetAssembly(id)
	if err != nil {
		return err
	}
	current := make(map[int64]struct{}, len(a.SlideIDs))
	for _, sid := range a.SlideIDs {
		current[sid] = struct{}{}
	}
	for _, sid := range slideIDs {
		if _, ok := current[sid]; !ok {
			return fmt.Errorf("store: slide %d is not in assembly %d: %w", sid, id, apperr.ErrConflict)
		}
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM assembly_slides WHERE assembly_id = ?`, id); err != nil {
		return fmt.Errorf("store: reorder clear: %w", err)
	}
	for pos, sid := range slideIDs {
		if _, err := tx.Exec(
			`INSERT INTO assembly_slides (assembly_id, slide_id, position) VALUES (?, ?, ?)`,
			id, sid, pos); err != nil {
			if isUniqueErr(err) {
				return fmt.Errorf("store: duplicate slide %d in order: %w", sid, apperr.ErrConflict)
			}
			return fmt.Errorf("store: reorder insert: %w", err)
		}
	}
	return tx.Commit()
}

// DeleteAssembly removes an assembly; its slide rows cascade.
func (db *DB) DeleteAssembly(id int64) error {
	res, err := db.conn.Exec(`DELETE FROM assemblies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete assembly: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// SlidesByKeywords returns the ids of project slides matching the keyword
// texts, ordered by file path then slide index. A slide matches a keyword
// when tagged directly or through one of its elements. With matchAll, every
// keyword must match; otherwise any single match qualifies.
func (db *DB) SlidesByKeywords(projectID int64, keywords []string, matchAll bool) ([]int64, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	perKeyword := make([]map[int64]struct{}, len(keywords))
	var order []int64
	seenOrder := make(map[int64]struct{})

	for i, kw := range keywords {
		ids, err := db.int64Column(`
			SELECT DISTINCT s.id FROM slides s
			JOIN files f ON f.id = s.file_id
			WHERE f.project_id = ?1
			  AND (
				EXISTS (SELECT 1 FROM slide_keywords sk JOIN keywords k ON k.id = sk.keyword_id
					WHERE sk.slide_id = s.id AND k.text = ?2 COLLATE NOCASE)
				OR EXISTS (SELECT 1 FROM element_keywords ek JOIN keywords k ON k.id = ek.keyword_id
					JOIN elements e ON e.id = ek.element_id
					WHERE e.slide_id = s.id AND k.text = ?2 COLLATE NOCASE)
			  )
			ORDER BY f.rel_path, s.slide_index`, projectID, kw)
		if err != nil {
			return nil, err
		}
		set := make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
			if _, ok := seenOrder[id]; !ok {
				seenOrder[id] = struct{}{}
				order = append(order, id)
			}
		}
		perKeyword[i] = set
	}

	var out []int64
	for _, id := range order {
		hits := 0
		for _, set := range perKeyword {
			if _, ok := set[id]; ok {
				hits++
			}
		}
		if matchAll && hits < len(keywords) {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// SlideSources resolves each slide id to its source file path and slide
// index, preserving the input order. Used by the exporter.
func (db *DB) SlideSources(slideIDs []int64) ([]SlideSource, error) {
	out := make([]SlideSource, 0, len(slideIDs))
	for _, sid := range slideIDs {
		var src SlideSource
		err := db.conn.QueryRow(`
			SELECT s.id, f.rel_path, s.slide_index
			FROM slides s JOIN files f ON f.id = s.file_id
			WHERE s.id = ?`, sid).Scan(&src.SlideID, &src.RelPath, &src.SlideIndex)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("store: slide %d: %w", sid, apperr.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("store: slide source: %w", err)
		}
		out = append(out, src)
	}
	return out, nil
}
