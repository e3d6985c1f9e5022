package registry

import (
	"context"
	"fmt"
	"log/slog"
)

// CleanupReport summarizes one best-effort sweep of remote resources.
type CleanupReport struct {
	FilesDeleted  int
	CachesDeleted int
	// Problems holds per-item failures. The sweep never stops on one.
	Problems []string
}

// Clean reports whether the sweep completed without a single failure.
func (c *CleanupReport) Clean() bool {
	return len(c.Problems) == 0
}

// ClearAll deletes every remote file and prompt cache reachable under the
// current API credential, regardless of which session created them. Invoked
// on project open/create and on shutdown. Failures are logged and collected;
// the user action that triggered the sweep must still succeed.
func (r *Registry) ClearAll(ctx context.Context) *CleanupReport {
	report := &CleanupReport{}
	if r.provider == nil {
		return report
	}

	caps := r.provider.Capabilities()

	// Caches go first: a cache references file content, so deleting in this
	// order never leaves a cache pointing at a file we just removed.
	if caps.CacheContent {
		caches, err := r.provider.ListCaches(ctx)
		if err != nil {
			slog.Warn("Cleanup: cache listing failed", "error", err)
			report.Problems = append(report.Problems, fmt.Sprintf("could not list caches: %v", err))
		}
		for _, c := range caches {
			if err := r.provider.DeleteCache(ctx, c.Name); err != nil {
				slog.Warn("Cleanup: cache deletion failed", "name", c.Name, "error", err)
				report.Problems = append(report.Problems, fmt.Sprintf("delete cache %s: %v", c.Name, err))
				continue
			}
			report.CachesDeleted++
		}
	}

	if caps.ListFiles {
		files, err := r.provider.ListFiles(ctx)
		if err != nil {
			slog.Warn("Cleanup: file listing failed", "error", err)
			report.Problems = append(report.Problems, fmt.Sprintf("could not list files: %v", err))
		}
		for _, f := range files {
			if err := r.provider.DeleteFile(ctx, f.Name); err != nil {
				slog.Warn("Cleanup: file deletion failed", "name", f.Name, "error", err)
				report.Problems = append(report.Problems, fmt.Sprintf("delete file %s: %v", f.Name, err))
				continue
			}
			report.FilesDeleted++
		}
	}

	r.Invalidate()
	slog.Info("Remote cleanup finished", "filesDeleted", report.FilesDeleted, "cachesDeleted", report.CachesDeleted, "problems", len(report.Problems))
	return report
}
