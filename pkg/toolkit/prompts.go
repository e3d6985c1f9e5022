package toolkit

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed prompts/*.txt
var defaultPrompts embed.FS

// ErrMissingPrompt means no override file exists and the tool ships no
// built-in default. This is routine first-run setup, not a program defect,
// so callers report it as a structured non-fatal result.
var ErrMissingPrompt = errors.New("toolkit: no prompt available")

// PromptSource says where a resolved prompt came from.
type PromptSource string

const (
	PromptSourceOverride PromptSource = "override"
	PromptSourceDefault  PromptSource = "default"
)

// Resolver loads tool prompts: the user's override file first, then the
// embedded default. Override files are read fresh on every invocation so
// edits take effect without a restart.
type Resolver struct {
	// OverrideDir is the user-editable prompt directory; empty disables
	// overrides.
	OverrideDir string
}

// Resolve returns the prompt text for a tool.
func (r Resolver) Resolve(toolID string) (string, PromptSource, error) {
	if r.OverrideDir != "" {
		data, err := os.ReadFile(filepath.Join(r.OverrideDir, toolID+".txt"))
		if err == nil && len(strings.TrimSpace(string(data))) > 0 {
			return string(data), PromptSourceOverride, nil
		}
	}

	data, err := defaultPrompts.ReadFile("prompts/" + toolID + ".txt")
	if err != nil {
		return "", "", fmt.Errorf("%w for tool %q", ErrMissingPrompt, toolID)
	}
	return string(data), PromptSourceDefault, nil
}
