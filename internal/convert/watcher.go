package convert

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/slideman/internal/checksum"
	"github.com/starford/slideman/internal/models"
)

// Watch starts an fsnotify watcher on the library root and keeps the store
// in sync with presentation files on disk until ctx is cancelled.
//
// New directories created at runtime are added to the watch list. Rename
// events trigger a debounced reconciliation pass that prunes store rows
// whose files no longer exist on disk.
func (p *Pool) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := p.lib.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	p.logger.Info("watcher: started", slog.String("root", root))

	// reconcileTimer debounces rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			p.logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			if err := p.Sync(ctx); err != nil {
				p.logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name
			base := filepath.Base(absPath)

			// Ignore the library's own write artifacts and dot-dirs
			// (thumbnails, exports).
			if strings.HasPrefix(base, ".") {
				continue
			}

			// New directories: add to the watch list and sweep for
			// presentations already inside.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						p.logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					p.sweepDir(ctx, absPath)
					continue
				}
			}

			if !strings.EqualFold(filepath.Ext(absPath), ".pptx") {
				continue
			}
			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				p.handleChanged(ctx, absPath, rel)

			case ev.Op&fsnotify.Remove != 0:
				if delErr := p.db.DeleteFileByPath(rel); delErr != nil {
					p.logger.Warn("watcher: prune failed",
						slog.String("path", rel),
						slog.String("error", delErr.Error()))
					continue
				}
				p.logger.Debug("watcher: pruned", slog.String("path", rel))
				p.emit("removed", rel)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only; the new path
				// arrives as a separate Create. Prune now, reconcile shortly.
				if delErr := p.db.DeleteFileByPath(rel); delErr == nil {
					p.logger.Debug("watcher: rename old pruned", slog.String("path", rel))
					p.emit("removed", rel)
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// handleChanged registers and converts one on-disk presentation file.
func (p *Pool) handleChanged(ctx context.Context, absPath, rel string) {
	info, err := os.Stat(absPath)
	if err != nil {
		return
	}
	cs, err := checksum.SumFile(absPath)
	if err != nil {
		p.logger.Warn("watcher: checksum failed",
			slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if f, err := p.db.GetFileByPath(rel); err == nil &&
		f.Checksum == cs && f.Status == models.FileStatusReady {
		return // unchanged
	}
	meta := models.FileMetadata{RelPath: rel, Checksum: cs, Size: info.Size(), UpdatedAt: info.ModTime()}
	if _, err := p.RegisterFile(meta); err != nil {
		p.logger.Warn("watcher: register failed",
			slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if err := p.ConvertFile(ctx, rel); err != nil {
		p.logger.Warn("watcher: convert failed",
			slog.String("path", rel), slog.String("error", err.Error()))
	}
}

// sweepDir converts any presentation files found in a newly created directory.
func (p *Pool) sweepDir(ctx context.Context, dirPath string) {
	root := p.lib.Root()
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pptx") {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		p.handleChanged(ctx, path, filepath.ToSlash(rel))
		return nil
	})
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
