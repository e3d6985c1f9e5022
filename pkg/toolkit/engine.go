package toolkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cleesmith/writers-toolkit-gemini-sub000/pkg/demux"
	"github.com/cleesmith/writers-toolkit-gemini-sub000/pkg/models"
	"github.com/cleesmith/writers-toolkit-gemini-sub000/pkg/outputs"
	"github.com/cleesmith/writers-toolkit-gemini-sub000/pkg/project"
	"github.com/cleesmith/writers-toolkit-gemini-sub000/pkg/registry"
	"github.com/cleesmith/writers-toolkit-gemini-sub000/pkg/tokens"
)

// ErrorTypeMissingPrompt marks the non-fatal "no prompt configured" result.
const ErrorTypeMissingPrompt = "missing_prompt"

// Stats summarizes one completed run.
type Stats struct {
	Elapsed        time.Duration
	WordCount      int
	PromptTokens   int
	ResponseTokens int
}

// Result is the outcome of Engine.Execute. A nil error with Success=false
// only happens for user-configuration conditions (see ErrorType).
type Result struct {
	Success     bool
	ErrorType   string
	OutputFiles []string
	Stats       Stats
}

// RunOptions tune one execution.
type RunOptions struct {
	// Inputs maps input roles to file paths, resolved against the save
	// directory when relative. Unmapped roles fall back to "<role>.txt".
	Inputs map[string]string

	// OnThinking and OnAnswer receive live stream deltas for display.
	OnThinking func(string)
	OnAnswer   func(string)

	// Logf receives human-readable status lines during the run. The user
	// is watching a multi-minute operation; every non-fatal condition is
	// echoed here, not just returned.
	Logf func(format string, args ...any)
}

// Engine executes any catalog tool through the one shared lifecycle:
// validate configuration, read inputs, resolve the prompt, acquire remote
// resources, stream, persist, register.
type Engine struct {
	settings project.Settings
	provider models.Provider
	registry *registry.Registry
	tokens   *tokens.Accountant
	outputs  *outputs.Registry

	// Prompts resolves per-tool prompt text; override dir is settable for
	// tests.
	Prompts Resolver

	// Now is the clock used for report timestamps.
	Now func() time.Time
}

func NewEngine(settings project.Settings, provider models.Provider, reg *registry.Registry, acct *tokens.Accountant, outs *outputs.Registry) *Engine {
	return &Engine{
		settings: settings,
		provider: provider,
		registry: reg,
		tokens:   acct,
		outputs:  outs,
		Prompts:  Resolver{OverrideDir: project.PromptOverrideDir()},
		Now:      time.Now,
	}
}

// Execute runs one tool end to end. Configuration problems and missing
// required inputs are fatal errors; a missing prompt template is returned as
// a structured non-fatal result; transport failures mid-stream are echoed to
// the run log, any partial answer is flushed to disk, and the error is
// propagated.
func (e *Engine) Execute(ctx context.Context, toolID string, opts RunOptions) (*Result, error) {
	tool, err := Lookup(toolID)
	if err != nil {
		return nil, err
	}
	if err := e.settings.Validate(); err != nil {
		return nil, err
	}
	if e.provider == nil {
		return nil, registry.ErrNotConfigured
	}

	logf := func(format string, args ...any) {
		slog.Info(fmt.Sprintf(format, args...), "tool", toolID)
		if opts.Logf != nil {
			opts.Logf(format, args...)
		}
	}

	e.outputs.Clear(toolID)
	logf("Running %s...", tool.Title)

	contents, paths, err := e.readInputs(tool, opts, logf)
	if err != nil {
		return nil, err
	}

	template, source, err := e.Prompts.Resolve(toolID)
	if err != nil {
		if errors.Is(err, ErrMissingPrompt) {
			logf("No prompt found for %s. Add one under %s and rerun.", toolID, e.Prompts.OverrideDir)
			return &Result{Success: false, ErrorType: ErrorTypeMissingPrompt}, nil
		}
		return nil, err
	}
	logf("Using %s prompt for %s.", source, toolID)

	prep, err := e.registry.Prepare(ctx, paths[tool.PrimaryInput()], registry.PrepareOptions{TTL: e.cacheTTL()})
	if err != nil {
		return nil, err
	}
	for _, n := range prep.Notes {
		logf("%s", n)
	}
	for _, p := range prep.Problems {
		logf("Warning: %s", p)
	}

	prompt := e.buildPrompt(tool, template, contents, prep)
	promptTokens := e.tokens.Count(ctx, prompt)
	logf("Prompt ready (%d tokens). Streaming...", promptTokens)

	turn := demux.NewTurn(prompt)
	d := demux.New(demux.Options{
		OnThinking:      fanout(turn.AppendThinking, opts.OnThinking),
		OnAnswer:        fanout(turn.AppendAnswer, opts.OnAnswer),
		ExtractThinking: tool.ExtractThinking,
	})

	req := models.StreamRequest{
		Model:  prep.Model,
		Prompt: prompt,
	}
	if prep.Cache != nil {
		req.CacheName = prep.Cache.Name
	} else {
		req.SystemInstructions = registry.DefaultSystemInstructions
		if prep.File != nil {
			req.FileURI = prep.File.URI
			req.FileMIMEType = prep.File.MIMEType
		}
	}

	usage, streamErr := e.provider.Stream(ctx, req, func(chunk models.StreamChunk) error {
		d.Feed(chunk.Text)
		return nil
	})
	turn.Finish(usage)

	responseTokens := usage.ResponseTokens
	if responseTokens == 0 {
		responseTokens = e.tokens.Count(ctx, turn.Answer())
	}
	stats := Stats{
		Elapsed:        turn.Elapsed(),
		WordCount:      turn.WordCount(),
		PromptTokens:   promptTokens,
		ResponseTokens: responseTokens,
	}
	if stats.PromptTokens == 0 {
		stats.PromptTokens = usage.PromptTokens
	}

	if streamErr != nil {
		logf("Generation failed: %v", streamErr)
		res := &Result{Success: false, Stats: stats}
		// Whatever already streamed is flushed rather than discarded; a
		// silently empty report is worse than a visible failure.
		if turn.Answer() != "" {
			if path, saveErr := saveReport(e.settings.SaveDir, tool, e.Now(), stats.PromptTokens, stats.ResponseTokens, turn.Answer()); saveErr == nil {
				e.outputs.Add(toolID, path)
				res.OutputFiles = append(res.OutputFiles, path)
				logf("Partial output saved to %s", path)
			} else {
				logf("Could not save partial output: %v", saveErr)
			}
		}
		return res, streamErr
	}

	path, err := saveReport(e.settings.SaveDir, tool, e.Now(), stats.PromptTokens, stats.ResponseTokens, turn.Answer())
	if err != nil {
		return nil, err
	}
	e.outputs.Add(toolID, path)
	logf("Saved %s (%d words, %s elapsed).", path, stats.WordCount, stats.Elapsed.Round(time.Second))

	res := &Result{Success: true, OutputFiles: []string{path}, Stats: stats}

	if tool.AppendToManuscript && turn.Answer() != "" {
		msPath, ok := paths[RoleManuscript]
		if !ok {
			msPath = e.settings.Resolve(RoleManuscript + ".txt")
		}
		if err := appendToFile(msPath, "\n\n"+strings.TrimSpace(turn.Answer())+"\n"); err != nil {
			return nil, fmt.Errorf("append to manuscript: %w", err)
		}
		e.outputs.Add(toolID, msPath)
		res.OutputFiles = append(res.OutputFiles, msPath)
		logf("Appended chapter to %s.", msPath)
	}

	return res, nil
}

// readInputs loads each declared input. Required inputs must exist; optional
// ones get an empty placeholder file so later runs have a stable target.
func (e *Engine) readInputs(tool Tool, opts RunOptions, logf func(string, ...any)) (map[string]string, map[string]string, error) {
	contents := make(map[string]string)
	paths := make(map[string]string)

	for _, role := range tool.Required {
		path := e.inputPath(role, opts)
		paths[role] = path
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("required input %q (%s) cannot be read: %w", role, path, err)
		}
		contents[role] = string(data)
	}

	for _, role := range tool.Optional {
		path := e.inputPath(role, opts)
		paths[role] = path
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, nil, fmt.Errorf("input %q (%s) cannot be read: %w", role, path, err)
			}
			logf("Optional input %q not found at %s; continuing with empty content.", role, path)
			if werr := os.WriteFile(path, nil, 0644); werr != nil {
				slog.Warn("Could not create placeholder", "path", path, "error", werr)
			}
			contents[role] = ""
			continue
		}
		contents[role] = string(data)
	}

	return contents, paths, nil
}

func (e *Engine) inputPath(role string, opts RunOptions) string {
	if p, ok := opts.Inputs[role]; ok && p != "" {
		return e.settings.Resolve(p)
	}
	return e.settings.Resolve(role + ".txt")
}

// buildPrompt assembles the outbound prompt: template first, then each input
// section. The primary document is left out when a remote file handle covers
// it; with no handle the registry degraded and content goes inline.
func (e *Engine) buildPrompt(tool Tool, template string, contents map[string]string, prep *registry.Prepared) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(template, "\n"))

	primary := tool.PrimaryInput()
	for _, role := range append(append([]string{}, tool.Required...), tool.Optional...) {
		if role == primary && prep.File != nil {
			continue
		}
		text := contents[role]
		if strings.TrimSpace(text) == "" {
			continue
		}
		fmt.Fprintf(&b, "\n\n=== %s ===\n%s", strings.ToUpper(role), text)
	}
	return b.String()
}

func (e *Engine) cacheTTL() time.Duration {
	if e.settings.CacheTTLHours > 0 {
		return time.Duration(e.settings.CacheTTLHours) * time.Hour
	}
	return 0
}

func fanout(fns ...func(string)) func(string) {
	return func(s string) {
		for _, f := range fns {
			if f != nil {
				f(s)
			}
		}
	}
}
