// Package slidesvc coordinates the library, store, converter, keyword
// tooling, undo history, and exporter behind one service type used by the
// HTTP API, the MCP server, and the CLI.
package slidesvc

import (
	"context"
	"fmt"

	"github.com/starford/slideman/internal/assembly"
	"github.com/starford/slideman/internal/convert"
	"github.com/starford/slideman/internal/keyword"
	"github.com/starford/slideman/internal/library"
	"github.com/starford/slideman/internal/models"
	"github.com/starford/slideman/internal/store"
	"github.com/starford/slideman/internal/undo"
)

// ProjectDetail is a project with its files.
type ProjectDetail struct {
	models.Project
	Files []models.File `json:"files"`
}

// SlideDetail is a slide with its elements and keywords.
type SlideDetail struct {
	models.Slide
	Keywords []models.Keyword `json:"keywords"`
	Elements []ElementDetail  `json:"elements"`
}

// ElementDetail is an element with its keywords.
type ElementDetail struct {
	models.Element
	Keywords []models.Keyword `json:"keywords"`
}

// Service is the application service.
type Service struct {
	db       *store.DB
	lib      library.Provider
	pool     *convert.Pool
	history  *undo.History
	merger   *keyword.Merger
	exporter *assembly.Exporter
}

// NewService creates the service.
func NewService(db *store.DB, lib library.Provider, pool *convert.Pool,
	history *undo.History, merger *keyword.Merger, exporter *assembly.Exporter) *Service {
	return &Service{db: db, lib: lib, pool: pool, history: history, merger: merger, exporter: exporter}
}

// CreateProject registers a new project folder.
func (s *Service) CreateProject(_ context.Context, name, folder string) (models.Project, error) {
	return s.db.CreateProject(name, folder)
}

// GetProject returns a project with its files.
func (s *Service) GetProject(_ context.Context, id int64) (*ProjectDetail, error) {
	p, err := s.db.GetProject(id)
	if err != nil {
		return nil, err
	}
	files, err := s.db.ListFiles(id)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []models.File{}
	}
	return &ProjectDetail{Project: p, Files: files}, nil
}

// ListProjects returns all projects.
func (s *Service) ListProjects(_ context.Context) ([]models.Project, error) {
	return s.db.ListProjects()
}

// DeleteProject removes a project row; files, slides, elements, assemblies,
// and keyword links cascade. Presentation files stay on disk and are
// re-registered on the next sync if the folder is kept.
func (s *Service) DeleteProject(_ context.Context, id int64) error {
	return s.db.DeleteProject(id)
}

// ImportFile copies an external .pptx into the project folder, registers it,
// and converts it synchronously. Returns the stored file row.
func (s *Service) ImportFile(ctx context.Context, projectID int64, srcPath string) (models.File, error) {
	p, err := s.db.GetProject(projectID)
	if err != nil {
		return models.File{}, err
	}
	rel, err := s.lib.Import(srcPath, p.Folder)
	if err != nil {
		return models.File{}, err
	}
	metas, err := s.lib.List(p.Folder)
	if err != nil {
		return models.File{}, err
	}
	for _, m := range metas {
		if m.RelPath != rel {
			continue
		}
		if _, err := s.pool.RegisterFile(m); err != nil {
			return models.File{}, err
		}
		if err := s.pool.ConvertFile(ctx, rel); err != nil {
			return models.File{}, err
		}
		if err := s.db.TouchProject(projectID); err != nil {
			return models.File{}, err
		}
		return s.db.GetFileByPath(rel)
	}
	return models.File{}, fmt.Errorf("slidesvc: imported file %s not listed", rel)
}

// ListFiles returns the files of a project.
func (s *Service) ListFiles(_ context.Context, projectID int64) ([]models.File, error) {
	if _, err := s.db.GetProject(projectID); err != nil {
		return nil, err
	}
	return s.db.ListFiles(projectID)
}

// DeleteFile removes a file from the library and the store.
func (s *Service) DeleteFile(_ context.Context, fileID int64) error {
	f, err := s.db.GetFile(fileID)
	if err != nil {
		return err
	}
	if err := s.lib.Delete(f.RelPath); err != nil {
		return err
	}
	return s.db.DeleteFile(fileID)
}

// GetSlide returns a slide with elements and keywords.
func (s *Service) GetSlide(_ context.Context, id int64) (*SlideDetail, error) {
	sl, err := s.db.GetSlide(id)
	if err != nil {
		return nil, err
	}
	kws, err := s.db.SlideKeywords(id)
	if err != nil {
		return nil, err
	}
	elems, err := s.db.ListElements(id)
	if err != nil {
		return nil, err
	}
	detail := &SlideDetail{Slide: sl, Keywords: nonNilSlice(kws), Elements: []ElementDetail{}}
	for _, e := range elems {
		eks, err := s.db.ElementKeywords(e.ID)
		if err != nil {
			return nil, err
		}
		detail.Elements = append(detail.Elements, ElementDetail{Element: e, Keywords: nonNilSlice(eks)})
	}
	return detail, nil
}

// ListSlides returns paginated project slides with optional keyword filter.
func (s *Service) ListSlides(_ context.Context, projectID int64, limit, offset int, kw, sort string) ([]store.SlideListItem, int, error) {
	if _, err := s.db.GetProject(projectID); err != nil {
		return nil, 0, err
	}
	return s.db.ListSlides(projectID, limit, offset, kw, sort)
}

// Search delegates full-text slide search to the store.
func (s *Service) Search(_ context.Context, query string, limit int) ([]store.SearchResult, error) {
	return s.db.SearchSlides(query, limit)
}

// CreateKeyword creates (or returns) a keyword of the given kind.
func (s *Service) CreateKeyword(_ context.Context, text, kind string) (models.Keyword, error) {
	return s.db.GetOrCreateKeyword(text, kind)
}

// ListKeywords returns keywords, optionally filtered by kind.
func (s *Service) ListKeywords(_ context.Context, kind string) ([]models.Keyword, error) {
	return s.db.ListKeywords(kind)
}

// DeleteKeyword removes a keyword and its links.
func (s *Service) DeleteKeyword(_ context.Context, id int64) error {
	return s.db.DeleteKeyword(id)
}

// RenameKeyword changes a keyword's text through the undo history.
func (s *Service) RenameKeyword(_ context.Context, id int64, newText string) error {
	k, err := s.db.GetKeyword(id)
	if err != nil {
		return err
	}
	return s.history.Do(undo.RenameKeyword{KeywordID: id, OldText: k.Text, NewText: newText})
}

// TagSlide attaches a slide-level keyword through the undo history.
func (s *Service) TagSlide(_ context.Context, slideID, keywordID int64) error {
	return s.history.Do(undo.TagSlide{SlideID: slideID, KeywordID: keywordID})
}

// UntagSlide detaches a slide-level keyword through the undo history.
func (s *Service) UntagSlide(_ context.Context, slideID, keywordID int64) error {
	return s.history.Do(undo.UntagSlide{SlideID: slideID, KeywordID: keywordID})
}

// TagElement attaches an element-level keyword through the undo history.
func (s *Service) TagElement(_ context.Context, elementID, keywordID int64) error {
	return s.history.Do(undo.TagElement{ElementID: elementID, KeywordID: keywordID})
}

// UntagElement detaches an element-level keyword through the undo history.
func (s *Service) UntagElement(_ context.Context, elementID, keywordID int64) error {
	return s.history.Do(undo.UntagElement{ElementID: elementID, KeywordID: keywordID})
}

// DuplicateKeywords returns fuzzy merge candidates ordered by similarity.
func (s *Service) DuplicateKeywords(_ context.Context) ([]keyword.Candidate, error) {
	return s.merger.Duplicates()
}

// MergeKeywords folds loser into winner through the undo history.
func (s *Service) MergeKeywords(_ context.Context, winnerID, loserID int64) error {
	return s.history.Do(&undo.MergeKeywords{WinnerID: winnerID, LoserID: loserID})
}

// Undo reverts the most recent tagging command and returns its name.
func (s *Service) Undo(_ context.Context) (string, error) { return s.history.Undo() }

// Redo re-applies the most recently undone command and returns its name.
func (s *Service) Redo(_ context.Context) (string, error) { return s.history.Redo() }

// History returns the names of applied commands, oldest first.
func (s *Service) History(_ context.Context) []string { return s.history.Names() }

// CreateAssembly creates an assembly from an explicit ordered slide list.
func (s *Service) CreateAssembly(_ context.Context, projectID int64, name string, slideIDs []int64) (models.Assembly, error) {
	return s.db.CreateAssembly(projectID, name, slideIDs)
}

// BuildAssembly creates an assembly from keyword filters. With matchAll,
// slides must carry every keyword; otherwise any single match qualifies.
func (s *Service) BuildAssembly(_ context.Context, projectID int64, name string, keywords []string, matchAll bool) (models.Assembly, error) {
	slideIDs, err := s.db.SlidesByKeywords(projectID, keywords, matchAll)
	if err != nil {
		return models.Assembly{}, err
	}
	return s.db.CreateAssembly(projectID, name, slideIDs)
}

// GetAssembly returns an assembly with its ordered slide ids.
func (s *Service) GetAssembly(_ context.Context, id int64) (models.Assembly, error) {
	return s.db.GetAssembly(id)
}

// ListAssemblies returns the assemblies of a project, newest first.
func (s *Service) ListAssemblies(_ context.Context, projectID int64) ([]models.Assembly, error) {
	if _, err := s.db.GetProject(projectID); err != nil {
		return nil, err
	}
	return s.db.ListAssemblies(projectID)
}

// ReorderAssembly replaces an assembly's slide order.
func (s *Service) ReorderAssembly(_ context.Context, id int64, slideIDs []int64) error {
	return s.db.ReorderAssembly(id, slideIDs)
}

// DeleteAssembly removes an assembly.
func (s *Service) DeleteAssembly(_ context.Context, id int64) error {
	return s.db.DeleteAssembly(id)
}

// ExportAssembly writes the assembly as a new .pptx and returns its
// library-relative path.
func (s *Service) ExportAssembly(ctx context.Context, id int64) (string, error) {
	return s.exporter.Export(ctx, id)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
