// Package project holds the workspace settings a run operates in: where
// reports get written, which model to use, and where per-tool prompt
// overrides live.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// SettingsFileName is the per-project settings file.
	SettingsFileName = "writerskit.yaml"

	// DefaultModel is used when the settings file names none.
	DefaultModel = "gemini-2.0-flash"

	// apiKeyEnv is the only place the credential is read from; it is never
	// written to the settings file.
	apiKeyEnv = "GEMINI_API_KEY"
)

// ErrNoSaveDir is the fatal configuration error for a project without a
// usable save directory. The user must fix it before retrying.
var ErrNoSaveDir = errors.New("project: save directory is not configured")

// ErrNoAPIKey is the fatal configuration error for a missing credential.
var ErrNoAPIKey = errors.New("project: " + apiKeyEnv + " environment variable not set")

// Settings is the persisted project configuration.
type Settings struct {
	// SaveDir is where input files are resolved and reports are written.
	SaveDir string `yaml:"save_dir"`
	Model   string `yaml:"model"`
	Author  string `yaml:"author,omitempty"`
	// CacheTTLHours overrides the default prompt-cache lifetime when > 0.
	CacheTTLHours int `yaml:"cache_ttl_hours,omitempty"`
}

func Default() Settings {
	return Settings{Model: DefaultModel}
}

// Load reads dir/writerskit.yaml. A missing file yields defaults with
// SaveDir set to dir; a malformed file is an error.
func Load(dir string) (Settings, error) {
	s := Default()
	s.SaveDir = dir

	data, err := os.ReadFile(filepath.Join(dir, SettingsFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, err
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse %s: %w", SettingsFileName, err)
	}
	if s.SaveDir == "" {
		s.SaveDir = dir
	}
	if s.Model == "" {
		s.Model = DefaultModel
	}
	return s, nil
}

// Save writes the settings file into dir.
func (s Settings) Save(dir string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, SettingsFileName), data, 0644)
}

// Validate checks the fatal preconditions for running any tool.
func (s Settings) Validate() error {
	if s.SaveDir == "" {
		return ErrNoSaveDir
	}
	info, err := os.Stat(s.SaveDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrNoSaveDir, s.SaveDir)
	}
	return nil
}

// Resolve turns a possibly relative input path into an absolute one under
// the save directory.
func (s Settings) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.SaveDir, path)
}

// APIKey returns the credential from the environment.
func APIKey() (string, error) {
	key := os.Getenv(apiKeyEnv)
	if key == "" {
		return "", ErrNoAPIKey
	}
	return key, nil
}

// PromptOverrideDir is the user-editable location checked for per-tool
// prompt files before falling back to built-in defaults.
func PromptOverrideDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".writers-toolkit", "tool-prompts")
}
