package registry_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cleesmith/writers-toolkit-gemini-sub000/pkg/models"
	"github.com/cleesmith/writers-toolkit-gemini-sub000/pkg/registry"
)

// fakeProvider is an in-memory stand-in for the Gemini transport.
type fakeProvider struct {
	caps   models.Capabilities
	files  []models.RemoteFile
	caches []models.RemoteCache

	uploads int
	creates int
	deleted []string

	listFilesErr  error
	uploadErr     error
	listCachesErr error
	createErr     error
	deleteErr     error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		caps: models.Capabilities{ListFiles: true, UploadFiles: true, CacheContent: true},
	}
}

func (f *fakeProvider) Capabilities() models.Capabilities { return f.caps }
func (f *fakeProvider) Close() error                      { return nil }

func (f *fakeProvider) CountTokens(ctx context.Context, model, text string) (int, error) {
	return len(text) / 4, nil
}

func (f *fakeProvider) ListFiles(ctx context.Context) ([]models.RemoteFile, error) {
	if f.listFilesErr != nil {
		return nil, f.listFilesErr
	}
	return f.files, nil
}

func (f *fakeProvider) UploadFile(ctx context.Context, path, displayName, mimeType string) (models.RemoteFile, error) {
	if f.uploadErr != nil {
		return models.RemoteFile{}, f.uploadErr
	}
	f.uploads++
	rf := models.RemoteFile{
		Name:        fmt.Sprintf("files/fake-%d", f.uploads),
		DisplayName: displayName,
		MIMEType:    mimeType,
		URI:         fmt.Sprintf("https://fake/files/fake-%d", f.uploads),
		State:       models.FileStateActive,
	}
	f.files = append(f.files, rf)
	return rf, nil
}

func (f *fakeProvider) GetFile(ctx context.Context, name string) (models.RemoteFile, error) {
	for _, rf := range f.files {
		if rf.Name == name {
			return rf, nil
		}
	}
	return models.RemoteFile{}, errors.New("not found")
}

func (f *fakeProvider) DeleteFile(ctx context.Context, name string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeProvider) ListCaches(ctx context.Context) ([]models.RemoteCache, error) {
	if f.listCachesErr != nil {
		return nil, f.listCachesErr
	}
	return f.caches, nil
}

func (f *fakeProvider) CreateCache(ctx context.Context, spec models.CacheSpec) (models.RemoteCache, error) {
	if f.createErr != nil {
		return models.RemoteCache{}, f.createErr
	}
	f.creates++
	rc := models.RemoteCache{
		Name:        fmt.Sprintf("cachedContents/fake-%d", f.creates),
		Model:       spec.Model,
		DisplayName: spec.DisplayName,
		ExpiresAt:   time.Now().Add(spec.TTL),
		TTL:         spec.TTL,
	}
	f.caches = append(f.caches, rc)
	return rc, nil
}

func (f *fakeProvider) DeleteCache(ctx context.Context, name string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeProvider) Stream(ctx context.Context, req models.StreamRequest, onChunk func(models.StreamChunk) error) (models.Usage, error) {
	return models.Usage{}, nil
}

func writeDoc(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manuscript.txt")
	if err := os.WriteFile(path, []byte("Chapter one. It was a dark and stormy night."), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPrepare_IdempotentReuse(t *testing.T) {
	fp := newFakeProvider()
	r := registry.New(fp, "gemini-2.0-flash")
	doc := writeDoc(t)

	first, err := r.Prepare(context.Background(), doc, registry.PrepareOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if first.File == nil || first.Cache == nil {
		t.Fatalf("expected file and cache, got %+v", first)
	}
	if fp.uploads != 1 || fp.creates != 1 {
		t.Fatalf("expected 1 upload and 1 create, got %d/%d", fp.uploads, fp.creates)
	}

	second, err := r.Prepare(context.Background(), doc, registry.PrepareOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if second.File.Name != first.File.Name {
		t.Errorf("file handle changed: %s vs %s", first.File.Name, second.File.Name)
	}
	if second.Cache.Name != first.Cache.Name {
		t.Errorf("cache handle changed: %s vs %s", first.Cache.Name, second.Cache.Name)
	}
	if fp.uploads != 1 || fp.creates != 1 {
		t.Errorf("second Prepare must issue zero additional upload/create calls, got %d/%d", fp.uploads, fp.creates)
	}
}

func TestPrepare_ExpiredCacheNeverReused(t *testing.T) {
	fp := newFakeProvider()
	fp.files = []models.RemoteFile{{
		Name: "files/doc", URI: "https://fake/files/doc", MIMEType: "text/plain",
		State: models.FileStateActive,
	}}
	// Expired cache first in listing order; it must be skipped even so.
	fp.caches = []models.RemoteCache{{
		Name:      "cachedContents/stale",
		Model:     "gemini-2.0-flash",
		ExpiresAt: time.Now().Add(-time.Hour),
	}}

	r := registry.New(fp, "gemini-2.0-flash")
	p, err := r.Prepare(context.Background(), writeDoc(t), registry.PrepareOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if p.Cache == nil {
		t.Fatal("expected a fresh cache")
	}
	if p.Cache.Name == "cachedContents/stale" {
		t.Error("expired cache was reused")
	}
	if fp.creates != 1 {
		t.Errorf("expected exactly one cache creation, got %d", fp.creates)
	}
}

func TestPrepare_SkipsNonActiveFiles(t *testing.T) {
	fp := newFakeProvider()
	fp.files = []models.RemoteFile{
		{Name: "files/pending", State: models.FileStatePending},
		{Name: "files/failed", State: models.FileStateFailed},
		{Name: "files/good", URI: "https://fake/files/good", MIMEType: "text/plain", State: models.FileStateActive},
	}

	r := registry.New(fp, "gemini-2.0-flash")
	p, err := r.Prepare(context.Background(), writeDoc(t), registry.PrepareOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if p.File == nil || p.File.Name != "files/good" {
		t.Errorf("expected files/good to be reused, got %+v", p.File)
	}
	if fp.uploads != 0 {
		t.Errorf("expected no upload, got %d", fp.uploads)
	}
}

func TestPrepare_ReusedCacheSetsActiveModel(t *testing.T) {
	fp := newFakeProvider()
	fp.files = []models.RemoteFile{{Name: "files/doc", State: models.FileStateActive}}
	fp.caches = []models.RemoteCache{{
		Name:      "cachedContents/live",
		Model:     "gemini-1.5-pro",
		ExpiresAt: time.Now().Add(time.Hour),
	}}

	r := registry.New(fp, "gemini-2.0-flash")
	p, err := r.Prepare(context.Background(), writeDoc(t), registry.PrepareOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if p.Model != "gemini-1.5-pro" {
		t.Errorf("expected reused cache's model to become active, got %s", p.Model)
	}
}

func TestPrepare_DegradesWithoutThrowing(t *testing.T) {
	fp := newFakeProvider()
	fp.listFilesErr = errors.New("listing denied")
	fp.uploadErr = errors.New("upload denied")
	fp.listCachesErr = errors.New("cache listing denied")
	fp.createErr = errors.New("create denied")

	r := registry.New(fp, "gemini-2.0-flash")
	p, err := r.Prepare(context.Background(), writeDoc(t), registry.PrepareOptions{})
	if err != nil {
		t.Fatalf("degraded transport must not error, got %v", err)
	}
	if p.File != nil || p.Cache != nil {
		t.Errorf("expected nil handles, got file=%v cache=%v", p.File, p.Cache)
	}
	if len(p.Problems) == 0 {
		t.Error("expected non-empty problems list")
	}
	if !p.Degraded() {
		t.Error("expected Degraded() to report true")
	}
}

func TestPrepare_CapabilityFlagsRespected(t *testing.T) {
	fp := newFakeProvider()
	fp.caps = models.Capabilities{}

	r := registry.New(fp, "gemini-2.0-flash")
	p, err := r.Prepare(context.Background(), writeDoc(t), registry.PrepareOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if p.File != nil || p.Cache != nil {
		t.Errorf("no capabilities should mean no handles, got %+v", p)
	}
	if fp.uploads != 0 || fp.creates != 0 {
		t.Errorf("no capability calls expected, got uploads=%d creates=%d", fp.uploads, fp.creates)
	}
	if len(p.Notes) == 0 {
		t.Error("expected notes about missing capabilities")
	}
}

func TestPrepare_NoTransport(t *testing.T) {
	r := registry.New(nil, "gemini-2.0-flash")
	if _, err := r.Prepare(context.Background(), "/tmp/x.txt", registry.PrepareOptions{}); !errors.Is(err, registry.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestClearAll_BestEffortSweep(t *testing.T) {
	fp := newFakeProvider()
	fp.files = []models.RemoteFile{
		{Name: "files/a", State: models.FileStateActive},
		{Name: "files/b", State: models.FileStateExpired},
	}
	fp.caches = []models.RemoteCache{
		{Name: "cachedContents/a", ExpiresAt: time.Now().Add(time.Hour)},
	}

	r := registry.New(fp, "gemini-2.0-flash")
	report := r.ClearAll(context.Background())

	if report.FilesDeleted != 2 || report.CachesDeleted != 1 {
		t.Errorf("expected 2 files and 1 cache deleted, got %d/%d", report.FilesDeleted, report.CachesDeleted)
	}
	if !report.Clean() {
		t.Errorf("expected clean report, got problems %v", report.Problems)
	}
	if r.Current() != nil {
		t.Error("ClearAll must invalidate the current pair")
	}
}

func TestClearAll_FailuresDoNotAbort(t *testing.T) {
	fp := newFakeProvider()
	fp.files = []models.RemoteFile{{Name: "files/a"}, {Name: "files/b"}}
	fp.deleteErr = errors.New("permission denied")

	r := registry.New(fp, "gemini-2.0-flash")
	report := r.ClearAll(context.Background())

	if report.Clean() {
		t.Error("expected problems to be recorded")
	}
	if len(report.Problems) != 2 {
		t.Errorf("expected one problem per file, got %v", report.Problems)
	}
}
