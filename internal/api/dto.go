package api

import "github.com/starford/slideman/internal/slidesvc"

// CreateProjectRequest is the request body for creating a project.
type CreateProjectRequest struct {
	Name   string `json:"name" example:"Q3 Review" validate:"required"`
	Folder string `json:"folder,omitempty" example:"q3-review"`
}

// ImportFileRequest names a .pptx on the server's filesystem to import.
type ImportFileRequest struct {
	Path string `json:"path" example:"/home/user/decks/q3.pptx" validate:"required"`
}

// CreateKeywordRequest is the request body for creating a keyword.
type CreateKeywordRequest struct {
	Text string `json:"text" example:"revenue" validate:"required"`
	Kind string `json:"kind" example:"topic" validate:"required"`
}

// RenameKeywordRequest is the request body for renaming a keyword.
type RenameKeywordRequest struct {
	Text string `json:"text" example:"revenues" validate:"required"`
}

// MergeKeywordsRequest folds the loser keyword into the winner.
type MergeKeywordsRequest struct {
	WinnerID int64 `json:"winner_id" example:"3" validate:"required"`
	LoserID  int64 `json:"loser_id" example:"7" validate:"required"`
}

// CreateAssemblyRequest builds an assembly from explicit slides or a keyword
// filter. With MatchAll, slides must carry every keyword.
type CreateAssemblyRequest struct {
	Name     string   `json:"name" example:"Investor deck" validate:"required"`
	SlideIDs []int64  `json:"slide_ids,omitempty"`
	Keywords []string `json:"keywords,omitempty" example:"revenue,growth"`
	MatchAll bool     `json:"match_all,omitempty"`
}

// ReorderAssemblyRequest replaces an assembly's slide order.
type ReorderAssemblyRequest struct {
	SlideIDs []int64 `json:"slide_ids" validate:"required"`
}

// SlideDetail is the full slide response type (aliased from the domain layer).
type SlideDetail = slidesvc.SlideDetail

// ProjectDetail is the full project response type (aliased from the domain layer).
type ProjectDetail = slidesvc.ProjectDetail
