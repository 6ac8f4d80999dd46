package convert

import (
	"context"
	"log/slog"
)

// Sync walks the library and brings the store up to date:
//   - new or changed presentation files are registered and converted
//   - files removed from disk are pruned from the store
func (p *Pool) Sync(ctx context.Context) error {
	metas, err := p.lib.List("")
	if err != nil {
		return err
	}

	checksums, err := p.db.AllFileChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	var pending []string
	for _, m := range metas {
		disk[m.RelPath] = struct{}{}

		if checksums[m.RelPath] == m.Checksum {
			continue
		}
		if _, err := p.RegisterFile(m); err != nil {
			p.logger.Warn("sync: register failed",
				slog.String("path", m.RelPath),
				slog.String("error", err.Error()))
			continue
		}
		pending = append(pending, m.RelPath)
	}

	// Remove stale entries.
	for rel := range checksums {
		if _, ok := disk[rel]; !ok {
			if err := p.db.DeleteFileByPath(rel); err != nil {
				p.logger.Warn("sync: prune failed",
					slog.String("path", rel),
					slog.String("error", err.Error()))
			} else {
				p.logger.Debug("sync: removed stale", slog.String("path", rel))
				p.emit("removed", rel)
			}
		}
	}

	return p.ConvertAll(ctx, pending)
}
