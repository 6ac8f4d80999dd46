package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/slideman/internal/apperr"
	"github.com/starford/slideman/internal/models"
)

// isUniqueErr reports whether err is a SQLite unique-constraint violation.
func isUniqueErr(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// CreateProject inserts a new project row.
func (db *DB) CreateProject(name, folder string) (models.Project, error) {
	now := time.Now().UTC()
	res, err := db.conn.Exec(
		`INSERT INTO projects (name, folder, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		name, folder, now, now)
	if err != nil {
		if isUniqueErr(err) {
			return models.Project{}, fmt.Errorf("store: project %q: %w", name, apperr.ErrAlreadyExists)
		}
		return models.Project{}, fmt.Errorf("store: create project: %w", err)
	}
	id, _ := res.LastInsertId()
	return models.Project{ID: id, Name: name, Folder: folder, CreatedAt: now, UpdatedAt: now}, nil
}

// GetProject returns the project with the given id.
func (db *DB) GetProject(id int64) (models.Project, error) {
	return db.scanProject(db.conn.QueryRow(
		`SELECT id, name, folder, created_at, updated_at FROM projects WHERE id = ?`, id))
}

// GetProjectByFolder returns the project owning the given folder name.
func (db *DB) GetProjectByFolder(folder string) (models.Project, error) {
	return db.scanProject(db.conn.QueryRow(
		`SELECT id, name, folder, created_at, updated_at FROM projects WHERE folder = ?`, folder))
}

func (db *DB) scanProject(row *sql.Row) (models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.Name, &p.Folder, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("store: get project: %w", err)
	}
	return p, nil
}

// ListProjects returns all projects ordered by name.
func (db *DB) ListProjects() ([]models.Project, error) {
	rows, err := db.conn.Query(
		`SELECT id, name, folder, created_at, updated_at FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: list projects: %w", err)
	}
	defer rows.Close()

	var out []models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Folder, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProject removes a project. Files, slides, elements, join rows, and
// assemblies cascade via foreign keys.
func (db *DB) DeleteProject(id int64) error {
	res, err := db.conn.Exec(`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// TouchProject bumps the project's updated_at timestamp.
func (db *DB) TouchProject(id int64) error {
	_, err := db.conn.Exec(`UPDATE projects SET updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("store: touch project: %w", err)
	}
	return nil
}

// UpsertFile inserts or updates a file row keyed by its relative path and
// returns the file id. Status resets to pending when the checksum changed.
func (db *DB) UpsertFile(projectID int64, filename, relPath, cs string) (int64, error) {
	_, err := db.conn.Exec(`
		INSERT INTO files (project_id, filename, rel_path, checksum, status)
		VALUES (?, ?, ?, ?, 'pending')
		ON CONFLICT(rel_path) DO UPDATE SET
			project_id = excluded.project_id,
			filename   = excluded.filename,
			status     = CASE WHEN files.checksum = excluded.checksum THEN files.status ELSE 'pending' END,
			checksum   = excluded.checksum
	`, projectID, filename, relPath, cs)
	if err != nil {
		return 0, fmt.Errorf("store: upsert file: %w", err)
	}
	var id int64
	if err := db.conn.QueryRow(`SELECT id FROM files WHERE rel_path = ?`, relPath).Scan(&id); err != nil {
		return 0, fmt.Errorf("store: upsert file id: %w", err)
	}
	return id, nil
}

// SetFileStatus updates a file's conversion status and slide count.
func (db *DB) SetFileStatus(id int64, status string, slideCount int) error {
	_, err := db.conn.Exec(
		`UPDATE files SET status = ?, slide_count = ? WHERE id = ?`, status, slideCount, id)
	if err != nil {
		return fmt.Errorf("store: set file status: %w", err)
	}
	return nil
}

// GetFile returns the file with the given id.
func (db *DB) GetFile(id int64) (models.File, error) {
	return db.scanFile(db.conn.QueryRow(
		`SELECT id, project_id, filename, rel_path, slide_count, checksum, status
		 FROM files WHERE id = ?`, id))
}

// GetFileByPath returns the file with the given library-relative path.
func (db *DB) GetFileByPath(relPath string) (models.File, error) {
	return db.scanFile(db.conn.QueryRow(
		`SELECT id, project_id, filename, rel_path, slide_count, checksum, status
		 FROM files WHERE rel_path = ?`, relPath))
}

func (db *DB) scanFile(row *sql.Row) (models.File, error) {
	var f models.File
	err := row.Scan(&f.ID, &f.ProjectID, &f.Filename, &f.RelPath, &f.SlideCount, &f.Checksum, &f.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.File{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.File{}, fmt.Errorf("store: get file: %w", err)
	}
	return f, nil
}

// ListFiles returns all files of a project ordered by relative path.
func (db *DB) ListFiles(projectID int64) ([]models.File, error) {
	rows, err := db.conn.Query(
		`SELECT id, project_id, filename, rel_path, slide_count, checksum, status
		 FROM files WHERE project_id = ? ORDER BY rel_path`, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: list files: %w", err)
	}
	defer rows.Close()

	var out []models.File
	for rows.Next() {
		var f models.File
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Filename, &f.RelPath, &f.SlideCount, &f.Checksum, &f.Status); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteFile removes a file row. Slides and elements cascade.
func (db *DB) DeleteFile(id int64) error {
	slideIDs, err := db.fileSlideIDs(id)
	if err != nil {
		return err
	}
	res, err := db.conn.Exec(`DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete file: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	for _, sid := range slideIDs {
		ftsDeleteSlide(db.conn, sid)
	}
	return nil
}

// DeleteFileByPath removes the file row with the given relative path.
func (db *DB) DeleteFileByPath(relPath string) error {
	f, err := db.GetFileByPath(relPath)
	if err != nil {
		return err
	}
	return db.DeleteFile(f.ID)
}

// AllFileChecksums returns rel_path → checksum for every indexed file.
func (db *DB) AllFileChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT rel_path, checksum FROM files`)
	if err != nil {
		return nil, fmt.Errorf("store: all checksums: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

func (db *DB) fileSlideIDs(fileID int64) ([]int64, error) {
	rows, err := db.conn.Query(`SELECT id FROM slides WHERE file_id = ?`, fileID)
	if err != nil {
		return nil, fmt.Errorf("store: file slide ids: %w", err)
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
