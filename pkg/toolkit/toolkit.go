// Package toolkit runs the manuscript analysis and generation tools. Every
// tool follows one execution contract; what differs between tools is data
// (inputs, prompt, output naming), not code.
package toolkit

import (
	"fmt"
	"sort"
)

// Input roles referenced by tool descriptors. A role maps to one input file
// supplied by the caller (or resolved from its conventional name under the
// save directory).
const (
	RoleManuscript = "manuscript"
	RoleOutline    = "outline"
	RoleWorld      = "world"
	RoleIdeas      = "ideas"
)

// Tool describes one analysis or generation task.
type Tool struct {
	ID          string
	Title       string
	Description string

	// Artifact is the output filename stem; defaults to ID when empty.
	Artifact string

	// Required inputs abort the run when missing. Optional inputs get an
	// empty placeholder file and a logged note.
	Required []string
	Optional []string

	// Primary names the role whose file backs the remote upload/cache.
	// Empty means first required input, else first optional.
	Primary string

	// ExtractThinking turns on the THINKING:/RESPONSE: sentinel protocol.
	// Generation tools use it; analysis tools stream verbatim.
	ExtractThinking bool

	// AppendToManuscript appends the answer to the manuscript file after
	// the report is saved.
	AppendToManuscript bool
}

// ArtifactName returns the output filename stem.
func (t Tool) ArtifactName() string {
	if t.Artifact != "" {
		return t.Artifact
	}
	return t.ID
}

// PrimaryInput is the role whose file backs the remote upload/cache for the
// run.
func (t Tool) PrimaryInput() string {
	if t.Primary != "" {
		return t.Primary
	}
	if len(t.Required) > 0 {
		return t.Required[0]
	}
	if len(t.Optional) > 0 {
		return t.Optional[0]
	}
	return ""
}

// Catalog is the full set of shipped tools, keyed by ID.
var Catalog = map[string]Tool{}

func register(t Tool) {
	if _, dup := Catalog[t.ID]; dup {
		panic(fmt.Sprintf("toolkit: duplicate tool %q", t.ID))
	}
	Catalog[t.ID] = t
}

// Lookup returns the descriptor for id.
func Lookup(id string) (Tool, error) {
	t, ok := Catalog[id]
	if !ok {
		return Tool{}, fmt.Errorf("toolkit: unknown tool %q", id)
	}
	return t, nil
}

// List returns all tools sorted by ID.
func List() []Tool {
	tools := make([]Tool, 0, len(Catalog))
	for _, t := range Catalog {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].ID < tools[j].ID })
	return tools
}

func init() {
	analysis := func(id, title, desc string) Tool {
		return Tool{
			ID:          id,
			Title:       title,
			Description: desc,
			Optional:    []string{RoleManuscript},
		}
	}

	register(analysis("developmental_editing", "Developmental Editing", "Big-picture structural edit: plot, pacing, stakes, and character arcs."))
	register(analysis("line_editing", "Line Editing", "Sentence-level edit for clarity, rhythm, and voice."))
	register(analysis("copyediting", "Copyediting", "Grammar, usage, and consistency pass."))
	register(analysis("proofreader", "Proofreader", "Final surface-error sweep: typos, punctuation, formatting."))
	register(analysis("rhythm_analyzer", "Rhythm Analyzer", "Analyzes sentence rhythm and variety across the manuscript."))
	register(analysis("crowding_leaping", "Crowding Leaping", "Evaluates scene density versus time compression (crowding and leaping)."))
	register(analysis("tense_consistency", "Tense Consistency", "Checks narrative tense usage for unintentional shifts."))
	register(analysis("conflict_analyzer", "Conflict Analyzer", "Maps conflict levels scene by scene."))
	register(analysis("foreshadowing", "Foreshadowing", "Tracks planted setups and whether they pay off."))
	register(analysis("character_analyzer", "Character Analyzer", "Inventories characters, appearances, and consistency."))
	register(analysis("plot_thread_tracker", "Plot Thread Tracker", "Follows each plot thread and flags dropped ones."))
	register(analysis("adjective_adverb_optimizer", "Adjective Adverb Optimizer", "Flags weak modifier use and suggests stronger verbs/nouns."))
	register(analysis("dangling_modifier_checker", "Dangling Modifier Checker", "Finds dangling and misplaced modifiers."))
	register(analysis("punctuation_auditor", "Punctuation Auditor", "Audits punctuation patterns for consistency and readability."))

	register(Tool{
		ID:              "brainstorm",
		Title:           "Brainstorm",
		Description:     "Generates story ideas and premises from an ideas file.",
		Optional:        []string{RoleIdeas},
		ExtractThinking: true,
	})
	register(Tool{
		ID:              "outline_writer",
		Title:           "Outline Writer",
		Description:     "Writes a chapter-by-chapter outline from brainstormed ideas.",
		Optional:        []string{RoleIdeas},
		ExtractThinking: true,
	})
	register(Tool{
		ID:              "world_writer",
		Title:           "World Writer",
		Description:     "Builds a world-building document from the outline.",
		Required:        []string{RoleOutline},
		ExtractThinking: true,
	})
	register(Tool{
		ID:                 "chapter_writer",
		Title:              "Chapter Writer",
		Description:        "Drafts the next chapter from the outline, world, and manuscript so far.",
		Required:           []string{RoleOutline},
		Optional:           []string{RoleWorld, RoleManuscript},
		Primary:            RoleManuscript,
		ExtractThinking:    true,
		AppendToManuscript: true,
	})
}
