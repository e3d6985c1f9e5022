package project_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cleesmith/writers-toolkit-gemini-sub000/pkg/project"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	s, err := project.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if s.SaveDir != dir {
		t.Errorf("SaveDir = %q, want %q", s.SaveDir, dir)
	}
	if s.Model != project.DefaultModel {
		t.Errorf("Model = %q, want default", s.Model)
	}
}

func TestSettings_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := project.Settings{SaveDir: dir, Model: "gemini-1.5-pro", Author: "C. Smith", CacheTTLHours: 2}
	if err := s.Save(dir); err != nil {
		t.Fatal(err)
	}

	loaded, err := project.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Model != "gemini-1.5-pro" || loaded.Author != "C. Smith" || loaded.CacheTTLHours != 2 {
		t.Errorf("loaded settings mismatch: %+v", loaded)
	}
}

func TestValidate_NoSaveDir(t *testing.T) {
	if err := (project.Settings{}).Validate(); !errors.Is(err, project.ErrNoSaveDir) {
		t.Errorf("expected ErrNoSaveDir, got %v", err)
	}
	if err := (project.Settings{SaveDir: "/definitely/not/here"}).Validate(); !errors.Is(err, project.ErrNoSaveDir) {
		t.Errorf("expected ErrNoSaveDir for missing dir, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	s := project.Settings{SaveDir: "/projects/novel"}
	if got := s.Resolve("outline.txt"); got != filepath.Join("/projects/novel", "outline.txt") {
		t.Errorf("Resolve relative = %q", got)
	}
	if got := s.Resolve("/abs/outline.txt"); got != "/abs/outline.txt" {
		t.Errorf("Resolve absolute = %q", got)
	}
}

func TestAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	if _, err := project.APIKey(); !errors.Is(err, project.ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}

	t.Setenv("GEMINI_API_KEY", "test-key")
	key, err := project.APIKey()
	if err != nil || key != "test-key" {
		t.Errorf("APIKey = %q, %v", key, err)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, project.SettingsFileName), []byte("{not yaml:"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := project.Load(dir); err == nil {
		t.Error("expected parse error")
	}
}
