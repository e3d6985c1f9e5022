package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/cleesmith/writers-toolkit-gemini-sub000/pkg/models"
)

const (
	// LevelTrace is a custom log level for detailed HTTP traffic.
	LevelTrace = slog.Level(-8)
)

// Client implements models.Provider using the Google Gemini API.
type Client struct {
	client *genai.Client
}

// New creates a new Gemini client.
func New(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	httpClient := &http.Client{
		Transport: &loggingTransport{
			base:   http.DefaultTransport,
			apiKey: apiKey,
		},
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey), option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Client{client: client}, nil
}

type loggingTransport struct {
	base   http.RoundTripper
	apiKey string
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// If API key is provided and not already in headers/query, add it.
	// Passing a custom http.Client often bypasses the library's automatic
	// API key injection.
	if t.apiKey != "" && req.Header.Get("x-goog-api-key") == "" && req.URL.Query().Get("key") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("x-goog-api-key", t.apiKey)
	}

	if !slog.Default().Enabled(req.Context(), LevelTrace) {
		return t.base.RoundTrip(req)
	}

	reqDump, err := httputil.DumpRequestOut(req, true)
	if err != nil {
		slog.Debug("Failed to dump Gemini request", "error", err)
	} else {
		slog.Debug("Gemini REST Request", "url", req.URL.String(), "dump", string(reqDump))
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	// For streaming, don't dump body to avoid consuming it/blocking.
	isStream := strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") ||
		strings.Contains(req.URL.Query().Get("alt"), "sse")

	respDump, err := httputil.DumpResponse(resp, !isStream)
	if err != nil {
		slog.Debug("Failed to dump Gemini response", "error", err)
	} else {
		slog.Debug("Gemini REST Response", "isStream", isStream, "dump", string(respDump))
	}

	return resp, nil
}

// Close releases resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// Capabilities reports the optional surfaces the Gemini API supports.
func (c *Client) Capabilities() models.Capabilities {
	return models.Capabilities{
		ListFiles:    true,
		UploadFiles:  true,
		CacheContent: true,
	}
}

// CountTokens returns the token count of text under the given model.
func (c *Client) CountTokens(ctx context.Context, model, text string) (int, error) {
	gm := c.client.GenerativeModel(model)
	resp, err := gm.CountTokens(ctx, genai.Text(text))
	if err != nil {
		return 0, fmt.Errorf("count tokens: %w", err)
	}
	return int(resp.TotalTokens), nil
}

// ListFiles returns all files stored under the current API key, in whatever
// order the service returns them.
func (c *Client) ListFiles(ctx context.Context) ([]models.RemoteFile, error) {
	iter := c.client.ListFiles(ctx)
	var files []models.RemoteFile
	for {
		f, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list files: %w", err)
		}
		slog.Debug("Found remote file", "name", f.Name, "state", f.State)
		files = append(files, toRemoteFile(f))
	}
	return files, nil
}

// UploadFile uploads the document at path to the file store.
func (c *Client) UploadFile(ctx context.Context, path, displayName, mimeType string) (models.RemoteFile, error) {
	f, err := c.client.UploadFileFromPath(ctx, path, &genai.UploadFileOptions{
		DisplayName: displayName,
		MIMEType:    mimeType,
	})
	if err != nil {
		return models.RemoteFile{}, fmt.Errorf("upload file %q: %w", path, err)
	}
	slog.Info("Uploaded file", "name", f.Name, "displayName", f.DisplayName, "bytes", f.SizeBytes)
	return toRemoteFile(f), nil
}

// GetFile fetches the current state of a stored file.
func (c *Client) GetFile(ctx context.Context, name string) (models.RemoteFile, error) {
	f, err := c.client.GetFile(ctx, name)
	if err != nil {
		return models.RemoteFile{}, fmt.Errorf("get file %q: %w", name, err)
	}
	return toRemoteFile(f), nil
}

// DeleteFile removes a stored file.
func (c *Client) DeleteFile(ctx context.Context, name string) error {
	if err := c.client.DeleteFile(ctx, name); err != nil {
		return fmt.Errorf("delete file %q: %w", name, err)
	}
	return nil
}

// ListCaches returns all cached contents under the current API key.
func (c *Client) ListCaches(ctx context.Context) ([]models.RemoteCache, error) {
	iter := c.client.ListCachedContents(ctx)
	var caches []models.RemoteCache
	for {
		cc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list caches: %w", err)
		}
		slog.Debug("Found cached content", "name", cc.Name, "model", cc.Model, "expires", cc.Expiration.ExpireTime)
		caches = append(caches, models.RemoteCache{
			Name:      cc.Name,
			Model:     cc.Model,
			ExpiresAt: cc.Expiration.ExpireTime,
			TTL:       cc.Expiration.TTL,
		})
	}
	return caches, nil
}

// CreateCache creates a cached content holding the referenced file plus
// system instructions.
func (c *Client) CreateCache(ctx context.Context, spec models.CacheSpec) (models.RemoteCache, error) {
	cc := &genai.CachedContent{
		Model:      spec.Model,
		Expiration: genai.ExpireTimeOrTTL{TTL: spec.TTL},
		Contents: []*genai.Content{
			genai.NewUserContent(genai.FileData{MIMEType: spec.FileMIMEType, URI: spec.FileURI}),
		},
	}
	if spec.SystemInstructions != "" {
		cc.SystemInstruction = genai.NewUserContent(genai.Text(spec.SystemInstructions))
	}

	created, err := c.client.CreateCachedContent(ctx, cc)
	if err != nil {
		return models.RemoteCache{}, fmt.Errorf("create cache: %w", err)
	}

	expires := created.Expiration.ExpireTime
	if expires.IsZero() {
		expires = time.Now().Add(spec.TTL)
	}
	slog.Info("Created cached content", "name", created.Name, "model", created.Model, "expires", expires)
	return models.RemoteCache{
		Name:        created.Name,
		Model:       created.Model,
		DisplayName: spec.DisplayName,
		ExpiresAt:   expires,
		TTL:         spec.TTL,
	}, nil
}

// DeleteCache removes a cached content.
func (c *Client) DeleteCache(ctx context.Context, name string) error {
	if err := c.client.DeleteCachedContent(ctx, name); err != nil {
		return fmt.Errorf("delete cache %q: %w", name, err)
	}
	return nil
}

// Stream runs one generation turn, invoking onChunk for every piece of
// partial text in arrival order. Usage is populated from the final chunk's
// metadata when the service reports it.
func (c *Client) Stream(ctx context.Context, req models.StreamRequest, onChunk func(models.StreamChunk) error) (models.Usage, error) {
	var gm *genai.GenerativeModel
	if req.CacheName != "" {
		gm = c.client.GenerativeModelFromCachedContent(&genai.CachedContent{
			Name:  req.CacheName,
			Model: req.Model,
		})
	} else {
		gm = c.client.GenerativeModel(req.Model)
		if req.SystemInstructions != "" {
			gm.SystemInstruction = genai.NewUserContent(genai.Text(req.SystemInstructions))
		}
	}

	// Fiction regularly trips the default filters, so they are opened fully.
	gm.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
	}

	parts := []genai.Part{genai.Text(req.Prompt)}
	// An uploaded file only rides along when no cache already bakes it in.
	if req.CacheName == "" && req.FileURI != "" {
		parts = append(parts, genai.FileData{MIMEType: req.FileMIMEType, URI: req.FileURI})
	}

	slog.Debug("Gemini stream start", "model", req.Model, "cache", req.CacheName, "fileURI", req.FileURI, "promptLen", len(req.Prompt))

	var usage models.Usage
	iter := gm.GenerateContentStream(ctx, parts...)
	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return usage, fmt.Errorf("generate stream: %w", err)
		}

		if resp.UsageMetadata != nil {
			usage = models.Usage{
				PromptTokens:   int(resp.UsageMetadata.PromptTokenCount),
				ResponseTokens: int(resp.UsageMetadata.CandidatesTokenCount),
				CachedTokens:   int(resp.UsageMetadata.CachedContentTokenCount),
			}
		}

		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				txt, ok := part.(genai.Text)
				if !ok {
					continue
				}
				chunk := models.StreamChunk{Text: string(txt)}
				if err := onChunk(chunk); err != nil {
					return usage, err
				}
			}
		}
	}

	// Terminal usage chunk so consumers that only see chunks still get counts.
	if err := onChunk(models.StreamChunk{Usage: &usage}); err != nil {
		return usage, err
	}

	return usage, nil
}

func toRemoteFile(f *genai.File) models.RemoteFile {
	state := models.FileStateFailed
	switch f.State {
	case genai.FileStateProcessing:
		state = models.FileStatePending
	case genai.FileStateActive:
		state = models.FileStateActive
	case genai.FileStateFailed:
		state = models.FileStateFailed
	}
	if !f.ExpirationTime.IsZero() && f.ExpirationTime.Before(time.Now()) {
		state = models.FileStateExpired
	}
	return models.RemoteFile{
		Name:        f.Name,
		DisplayName: f.DisplayName,
		MIMEType:    f.MIMEType,
		URI:         f.URI,
		SizeBytes:   f.SizeBytes,
		State:       state,
		ExpiresAt:   f.ExpirationTime,
	}
}
