// Package outputs tracks the files each tool produced during the current
// process. The shell reads it after a run to discover what got created.
// Nothing here is persisted across restarts.
package outputs

import (
	"sync"
	"time"
)

// Record is one produced file.
type Record struct {
	Tool      string
	Path      string
	CreatedAt time.Time
}

// Registry is an in-memory, per-tool-name list of output file paths.
type Registry struct {
	mu      sync.Mutex
	byTool  map[string][]Record
	nowFunc func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		byTool:  make(map[string][]Record),
		nowFunc: time.Now,
	}
}

// Clear drops the records for one tool only. Other tools' histories are
// unaffected.
func (r *Registry) Clear(tool string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byTool, tool)
}

// Add appends a produced file path for a tool.
func (r *Registry) Add(tool, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byTool[tool] = append(r.byTool[tool], Record{
		Tool:      tool,
		Path:      path,
		CreatedAt: r.nowFunc(),
	})
}

// Files returns the paths recorded for a tool, in the order they were added.
func (r *Registry) Files(tool string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	recs := r.byTool[tool]
	paths := make([]string, 0, len(recs))
	for _, rec := range recs {
		paths = append(paths, rec.Path)
	}
	return paths
}
