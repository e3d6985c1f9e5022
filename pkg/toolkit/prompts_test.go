package toolkit_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cleesmith/writers-toolkit-gemini-sub000/pkg/toolkit"
)

func TestResolver_DefaultsCoverCatalog(t *testing.T) {
	r := toolkit.Resolver{}
	for _, tool := range toolkit.List() {
		text, source, err := r.Resolve(tool.ID)
		if err != nil {
			t.Errorf("tool %s has no default prompt: %v", tool.ID, err)
			continue
		}
		if source != toolkit.PromptSourceDefault {
			t.Errorf("tool %s: source = %s", tool.ID, source)
		}
		if strings.TrimSpace(text) == "" {
			t.Errorf("tool %s: empty default prompt", tool.ID)
		}
	}
}

func TestResolver_OverrideWins(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "proofreader.txt"), []byte("custom proofreading prompt"), 0644); err != nil {
		t.Fatal(err)
	}

	r := toolkit.Resolver{OverrideDir: dir}
	text, source, err := r.Resolve("proofreader")
	if err != nil {
		t.Fatal(err)
	}
	if source != toolkit.PromptSourceOverride || text != "custom proofreading prompt" {
		t.Errorf("got %q from %s", text, source)
	}
}

func TestResolver_BlankOverrideFallsThrough(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "proofreader.txt"), []byte("   \n"), 0644); err != nil {
		t.Fatal(err)
	}

	r := toolkit.Resolver{OverrideDir: dir}
	_, source, err := r.Resolve("proofreader")
	if err != nil {
		t.Fatal(err)
	}
	if source != toolkit.PromptSourceDefault {
		t.Errorf("blank override should fall back to default, got %s", source)
	}
}

func TestResolver_MissingPrompt(t *testing.T) {
	r := toolkit.Resolver{OverrideDir: t.TempDir()}
	_, _, err := r.Resolve("no_such_tool")
	if !errors.Is(err, toolkit.ErrMissingPrompt) {
		t.Errorf("expected ErrMissingPrompt, got %v", err)
	}
}
