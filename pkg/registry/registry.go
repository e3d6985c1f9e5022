// Package registry tracks the remote resources backing a project session:
// the uploaded copy of the working document and the server-side prompt cache
// built from it. It decides, per turn, whether those can be reused or must
// be recreated, and owns their cleanup.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cleesmith/writers-toolkit-gemini-sub000/pkg/models"
)

// DefaultCacheTTL is how long a newly created prompt cache lives unless the
// caller overrides it.
const DefaultCacheTTL = 4 * time.Hour

// DefaultSystemInstructions is baked into new caches when the caller supplies
// none. It keeps every later answer free of conversational wrapping.
const DefaultSystemInstructions = `You are an expert fiction writing assistant working on the attached manuscript.
Never begin an answer with conversational preamble such as "Sure", "Certainly", or "Here is".
Never end an answer with a summary of what you did, an offer of further help, or a question.
Answer with the requested content only.`

// ErrNotConfigured is returned when the registry is used without an
// authenticated transport. This is the one unrecoverable configuration error
// in Prepare; everything else degrades.
var ErrNotConfigured = errors.New("registry: no authenticated transport configured")

// FileHandle is a remote uploaded file plus its local association.
type FileHandle struct {
	models.RemoteFile
	// DocumentPath is the absolute path of the local document the remote
	// copy represents.
	DocumentPath string
}

// CacheHandle is a remote prompt cache plus the instructions baked into it.
// A cache references exactly one file's content at creation time; it does
// not follow later edits to the document.
type CacheHandle struct {
	models.RemoteCache
	SystemInstructions string
	DocumentPath       string
}

// Prepared is the outcome of one Prepare call. File and Cache may each be
// nil: a nil File means downstream callers must inline document content into
// the prompt, and a nil Cache means full content is resent every turn.
type Prepared struct {
	File  *FileHandle
	Cache *CacheHandle

	// Model is the model to use for this turn. When a cache was reused it
	// is the cache's model, since a cache is only valid for the model it
	// was created against.
	Model string

	// Notes are informational conditions (capability missing, reuse
	// decisions). Problems are non-fatal failures (upload denied, cache
	// creation refused). Both are meant for the user-visible run log.
	Notes    []string
	Problems []string
}

// Degraded reports whether this turn runs without any remote resource.
func (p *Prepared) Degraded() bool {
	return p.File == nil && p.Cache == nil
}

// PrepareOptions tune one Prepare call.
type PrepareOptions struct {
	// SystemInstructions overrides DefaultSystemInstructions for a newly
	// created cache. Ignored when an existing cache is reused.
	SystemInstructions string
	// TTL overrides DefaultCacheTTL for a newly created cache.
	TTL time.Duration
}

// Registry owns the current session's (file, cache) pair. One instance per
// project; it is handed to each tool by reference rather than living as
// package state, so tests can run isolated registries.
//
// Prepare calls are serialized by the mutex. The design still assumes one
// active document at a time: two interleaved Prepare calls against different
// documents will fight over the single current pair.
type Registry struct {
	mu       sync.Mutex
	provider models.Provider
	model    string
	now      func() time.Time

	current *Prepared
}

func New(provider models.Provider, model string) *Registry {
	return &Registry{
		provider: provider,
		model:    model,
		now:      time.Now,
	}
}

// Prepare resolves the remote resources for documentPath, reusing live ones
// and creating what is missing. Expected failure modes (listing unsupported,
// upload denied, cache creation refused) degrade and are reported in the
// returned Notes/Problems; only a missing transport errors.
func (r *Registry) Prepare(ctx context.Context, documentPath string, opts PrepareOptions) (*Prepared, error) {
	if r.provider == nil {
		return nil, ErrNotConfigured
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p := &Prepared{Model: r.model}
	caps := r.provider.Capabilities()

	resolved, err := filepath.Abs(documentPath)
	if err != nil {
		resolved = documentPath
	}

	// Step 1+2: find or upload the file handle.
	r.resolveFile(ctx, p, caps, resolved)

	// Step 3+4: find a live cache.
	r.resolveCache(ctx, p, caps)

	// Step 5: create a cache only once an active file exists and no live
	// cache was found.
	if p.File != nil && p.Cache == nil && caps.CacheContent {
		r.createCache(ctx, p, opts, resolved)
	}

	r.current = p
	return p, nil
}

func (r *Registry) resolveFile(ctx context.Context, p *Prepared, caps models.Capabilities, documentPath string) {
	var existing []models.RemoteFile
	if !caps.ListFiles {
		p.Notes = append(p.Notes, "File listing not supported by transport; assuming no uploads exist.")
	} else {
		files, err := r.provider.ListFiles(ctx)
		if err != nil {
			slog.Warn("File listing failed", "error", err)
			p.Notes = append(p.Notes, fmt.Sprintf("Could not list uploaded files (%v); assuming none exist.", err))
		} else {
			existing = files
		}
	}

	// First ACTIVE handle in listing order wins. The service's ordering is
	// taken as-is; see DESIGN.md for the tie-break decision.
	for _, f := range existing {
		if f.State == models.FileStateActive {
			p.File = &FileHandle{RemoteFile: f, DocumentPath: documentPath}
			p.Notes = append(p.Notes, fmt.Sprintf("Reusing uploaded file %s (%s).", f.Name, f.DisplayName))
			return
		}
	}

	if !caps.UploadFiles {
		p.Problems = append(p.Problems, "File upload not supported by transport; document content will be sent inline.")
		return
	}

	display := strings.TrimSuffix(filepath.Base(documentPath), filepath.Ext(documentPath))
	uploaded, err := r.provider.UploadFile(ctx, documentPath, display, mimeTypeFor(documentPath))
	if err != nil {
		slog.Warn("Upload failed", "path", documentPath, "error", err)
		p.Problems = append(p.Problems, fmt.Sprintf("Upload of %s failed (%v); document content will be sent inline.", filepath.Base(documentPath), err))
		return
	}
	p.File = &FileHandle{RemoteFile: uploaded, DocumentPath: documentPath}
	p.Notes = append(p.Notes, fmt.Sprintf("Uploaded %s as %s.", filepath.Base(documentPath), uploaded.Name))
}

func (r *Registry) resolveCache(ctx context.Context, p *Prepared, caps models.Capabilities) {
	if !caps.CacheContent {
		p.Notes = append(p.Notes, "Context caching not supported by transport; full content will be resent every turn.")
		return
	}

	caches, err := r.provider.ListCaches(ctx)
	if err != nil {
		slog.Warn("Cache listing failed", "error", err)
		p.Notes = append(p.Notes, fmt.Sprintf("Could not list caches (%v); assuming none exist.", err))
		return
	}

	now := r.now()
	for _, c := range caches {
		if !c.Live(now) {
			continue
		}
		p.Cache = &CacheHandle{RemoteCache: c}
		if c.Model != "" {
			p.Model = c.Model
		}
		p.Notes = append(p.Notes, fmt.Sprintf("Reusing cache %s (expires %s).", c.Name, c.ExpiresAt.Format(time.RFC3339)))
		return
	}
}

func (r *Registry) createCache(ctx context.Context, p *Prepared, opts PrepareOptions, documentPath string) {
	instructions := opts.SystemInstructions
	if instructions == "" {
		instructions = DefaultSystemInstructions
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	created, err := r.provider.CreateCache(ctx, models.CacheSpec{
		Model:              r.model,
		FileURI:            p.File.URI,
		FileMIMEType:       p.File.MIMEType,
		SystemInstructions: instructions,
		DisplayName:        documentPath,
		TTL:                ttl,
	})
	if err != nil {
		slog.Warn("Cache creation failed", "error", err)
		p.Problems = append(p.Problems, fmt.Sprintf("Cache creation failed (%v); full content will be resent every turn.", err))
		return
	}

	p.Cache = &CacheHandle{
		RemoteCache:        created,
		SystemInstructions: instructions,
		DocumentPath:       documentPath,
	}
	p.Model = created.Model
	p.Notes = append(p.Notes, fmt.Sprintf("Created cache %s (TTL %s).", created.Name, ttl))
}

// Current returns the resource pair resolved by the last Prepare, or nil.
func (r *Registry) Current() *Prepared {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Invalidate drops the current pair. Called on project or document switch;
// the remote resources themselves are handled by ClearAll.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = nil
}

func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return "text/markdown"
	case ".html", ".htm":
		return "text/html"
	default:
		return "text/plain"
	}
}
