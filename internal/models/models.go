// Package models defines the domain types for SlideMan.
package models

import "time"

// File conversion statuses.
const (
	FileStatusPending    = "pending"
	FileStatusConverting = "converting"
	FileStatusReady      = "ready"
	FileStatusFailed     = "failed"
)

// Keyword kinds. Topic and title keywords attach to slides; name keywords
// attach to individual elements.
const (
	KeywordTopic = "topic"
	KeywordTitle = "title"
	KeywordName  = "name"
)

// ValidKeywordKind reports whether kind is one of the known keyword kinds.
func ValidKeywordKind(kind string) bool {
	return kind == KeywordTopic || kind == KeywordTitle || kind == KeywordName
}

// Project is a managed folder of imported presentation files.
type Project struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Folder    string    `json:"folder"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// File is a presentation file copied into a project folder.
type File struct {
	ID         int64  `json:"id"`
	ProjectID  int64  `json:"project_id"`
	Filename   string `json:"filename"`
	RelPath    string `json:"rel_path"`
	SlideCount int    `json:"slide_count"`
	Checksum   string `json:"checksum"`
	Status     string `json:"status"`
}

// Slide is one slide of an imported file.
type Slide struct {
	ID         int64  `json:"id"`
	FileID     int64  `json:"file_id"`
	SlideIndex int    `json:"slide_index"`
	Title      string `json:"title"`
	ThumbPath  string `json:"thumb_path"`
}

// Element is a shape detected on a slide. Coordinates are in EMU
// (English Metric Units, 914400 per inch), the native OOXML unit.
type Element struct {
	ID      int64  `json:"id"`
	SlideID int64  `json:"slide_id"`
	Kind    string `json:"kind"`
	X       int64  `json:"x"`
	Y       int64  `json:"y"`
	W       int64  `json:"w"`
	H       int64  `json:"h"`
}

// Keyword is a user-assigned tag. Text is unique case-insensitively and
// the kind is fixed at creation.
type Keyword struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
	Kind string `json:"kind"`
}

// Assembly is an ordered, user-curated list of slides intended for export.
type Assembly struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	Name      string    `json:"name"`
	SlideIDs  []int64   `json:"slide_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// FileMetadata is a lightweight representation returned by library listings.
type FileMetadata struct {
	RelPath   string    `json:"rel_path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}
