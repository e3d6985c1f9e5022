package models

import (
	"context"
	"time"
)

// FileState is the lifecycle state of a remotely stored document.
type FileState string

const (
	FileStatePending FileState = "PENDING"
	FileStateActive  FileState = "ACTIVE"
	FileStateFailed  FileState = "FAILED"
	FileStateExpired FileState = "EXPIRED"
)

// RemoteFile describes a document uploaded to the provider's file store.
type RemoteFile struct {
	// Name is the server-assigned identifier (e.g. "files/abc123").
	Name        string
	DisplayName string
	MIMEType    string
	URI         string
	SizeBytes   int64
	State       FileState
	ExpiresAt   time.Time
}

// RemoteCache describes a server-side prompt cache (cached content).
type RemoteCache struct {
	// Name is the server-assigned identifier (e.g. "cachedContents/xyz").
	Name        string
	Model       string
	DisplayName string
	ExpiresAt   time.Time
	TTL         time.Duration
}

// Live reports whether the cache is still usable at the given instant.
// Always derived from the expiry timestamp, never cached as a boolean.
func (c RemoteCache) Live(now time.Time) bool {
	return now.Before(c.ExpiresAt)
}

// CacheSpec is the input to CreateCache.
type CacheSpec struct {
	Model              string
	FileURI            string
	FileMIMEType       string
	SystemInstructions string
	DisplayName        string
	TTL                time.Duration
}

// Usage carries terminal token accounting for one generation turn.
type Usage struct {
	PromptTokens   int
	ResponseTokens int
	CachedTokens   int
}

// StreamChunk is one incremental piece of a streamed response. Text may be
// empty on chunks that only carry usage metadata.
type StreamChunk struct {
	Text  string
	Usage *Usage
}

// StreamRequest describes one generation turn. When CacheName is set the
// cached content supplies the document and system instructions; otherwise
// FileURI (if any) is attached alongside the prompt text.
type StreamRequest struct {
	Model              string
	Prompt             string
	FileURI            string
	FileMIMEType       string
	CacheName          string
	SystemInstructions string
}

// Capabilities are explicit feature flags for optional provider surfaces.
// Callers must consult these instead of probing method presence.
type Capabilities struct {
	ListFiles    bool
	UploadFiles  bool
	CacheContent bool
}

// TokenCounter counts tokens for arbitrary text under a given model.
type TokenCounter interface {
	CountTokens(ctx context.Context, model, text string) (int, error)
}

// FileService manages the provider's uploaded-file store.
type FileService interface {
	ListFiles(ctx context.Context) ([]RemoteFile, error)
	UploadFile(ctx context.Context, path, displayName, mimeType string) (RemoteFile, error)
	GetFile(ctx context.Context, name string) (RemoteFile, error)
	DeleteFile(ctx context.Context, name string) error
}

// CacheService manages server-side prompt caches.
type CacheService interface {
	ListCaches(ctx context.Context) ([]RemoteCache, error)
	CreateCache(ctx context.Context, spec CacheSpec) (RemoteCache, error)
	DeleteCache(ctx context.Context, name string) error
}

// Streamer produces a generation as an ordered sequence of chunks. onChunk is
// invoked in arrival order; returning an error from it aborts the stream.
// The returned Usage is best-effort and may be zero if the transport never
// reported metadata.
type Streamer interface {
	Stream(ctx context.Context, req StreamRequest, onChunk func(StreamChunk) error) (Usage, error)
}

// Provider is the full transport surface the toolkit core depends on.
type Provider interface {
	TokenCounter
	FileService
	CacheService
	Streamer

	Capabilities() Capabilities
	Close() error
}
