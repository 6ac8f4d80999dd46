// Package convert turns imported .pptx files into indexed slides and
// elements: a bounded worker pool parses each package, extracts shape
// geometry and titles, stores the embedded thumbnail, and upserts rows.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/slideman/internal/library"
	"github.com/starford/slideman/internal/models"
	"github.com/starford/slideman/internal/pptx"
	"github.com/starford/slideman/internal/store"
)

// ThumbsDir is the library-relative directory thumbnails are written to.
// It is dot-prefixed so library listings skip it.
const ThumbsDir = ".thumbs"

// EventCallback is invoked on conversion lifecycle changes.
// kind is one of "queued", "started", "done", "failed", "removed".
type EventCallback func(kind, relPath string)

// Pool converts presentation files with bounded concurrency.
type Pool struct {
	db      *store.DB
	lib     library.Provider
	workers int
	logger  *slog.Logger
	cb      EventCallback
}

// NewPool creates a conversion pool. cb may be nil.
func NewPool(db *store.DB, lib library.Provider, workers int, logger *slog.Logger, cb EventCallback) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{db: db, lib: lib, workers: workers, logger: logger, cb: cb}
}

func (p *Pool) emit(kind, relPath string) {
	if p.cb != nil {
		p.cb(kind, relPath)
	}
}

// ConvertAll converts the given files concurrently. A failed file is marked
// failed and logged; it never aborts the batch. Cancellation stops scheduling
// of further files.
func (p *Pool) ConvertAll(ctx context.Context, relPaths []string) error {
	g, ctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, p.workers)

	for _, rel := range relPaths {
		rel := rel
		p.emit("queued", rel)
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return ctx.Err()
			}
			if err := p.ConvertFile(ctx, rel); err != nil {
				p.logger.Warn("convert: file failed",
					slog.String("path", rel),
					slog.String("error", err.Error()))
			}
			return nil
		})
	}
	return g.Wait()
}

// ConvertFile parses one presentation file and replaces its slides in the
// store. The file row must already exist (via sync, watcher, or import).
func (p *Pool) ConvertFile(ctx context.Context, relPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := p.db.GetFileByPath(relPath)
	if err != nil {
		return fmt.Errorf("convert: %s: %w", relPath, err)
	}

	p.emit("started", relPath)
	if err := p.db.SetFileStatus(f.ID, models.FileStatusConverting, f.SlideCount); err != nil {
		return err
	}

	if err := p.convert(f); err != nil {
		_ = p.db.SetFileStatus(f.ID, models.FileStatusFailed, 0)
		p.emit("failed", relPath)
		return err
	}

	p.emit("done", relPath)
	return nil
}

func (p *Pool) convert(f models.File) error {
	abs, err := p.lib.Abs(f.RelPath)
	if err != nil {
		return err
	}
	pkg, err := pptx.OpenPackage(abs)
	if err != nil {
		return err
	}
	defer pkg.Close()

	deck, err := pkg.Deck()
	if err != nil {
		return err
	}

	thumbPath := ""
	if name, data, ok := pkg.Thumbnail(); ok {
		thumbPath = path.Join(ThumbsDir, "file-"+f.Checksum+path.Ext(name))
		if err := p.lib.Write(thumbPath, data); err != nil {
			// Thumbnails are best-effort; the slide index is still valid.
			p.logger.Warn("convert: thumbnail write failed",
				slog.String("path", f.RelPath),
				slog.String("error", err.Error()))
			thumbPath = ""
		}
	}

	ups := make([]store.SlideUpsert, len(deck.Slides))
	for i, s := range deck.Slides {
		elements := make([]models.Element, len(s.Elements))
		for j, e := range s.Elements {
			elements[j] = models.Element{Kind: e.Kind, X: e.X, Y: e.Y, W: e.W, H: e.H}
		}
		ups[i] = store.SlideUpsert{
			Index:     s.Index,
			Title:     s.Title,
			ThumbPath: thumbPath,
			Elements:  elements,
		}
	}

	if err := p.db.ReplaceFileSlides(f.ID, ups); err != nil {
		return err
	}
	if err := p.db.SetFileStatus(f.ID, models.FileStatusReady, len(ups)); err != nil {
		return err
	}
	p.logger.Debug("convert: indexed",
		slog.String("path", f.RelPath),
		slog.Int("slides", len(ups)))
	return nil
}

// projectFolder returns the top-level directory of a library-relative path.
// Presentation files must live inside a project folder.
func projectFolder(relPath string) (string, error) {
	dir := strings.Split(path.Clean(relPath), "/")
	if len(dir) < 2 || dir[0] == "" || dir[0] == "." {
		return "", fmt.Errorf("convert: %s is outside a project folder", relPath)
	}
	return dir[0], nil
}

// RegisterFile makes sure a project row exists for the file's folder and
// upserts the file row, returning its id. Unknown folders auto-register a
// project named after the folder.
func (p *Pool) RegisterFile(meta models.FileMetadata) (int64, error) {
	folder, err := projectFolder(meta.RelPath)
	if err != nil {
		return 0, err
	}
	proj, err := p.db.GetProjectByFolder(folder)
	if err != nil {
		proj, err = p.db.CreateProject(folder, folder)
		if err != nil {
			return 0, err
		}
		p.logger.Info("convert: registered project", slog.String("folder", folder))
	}
	return p.db.UpsertFile(proj.ID, path.Base(meta.RelPath), meta.RelPath, meta.Checksum)
}
