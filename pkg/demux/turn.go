package demux

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cleesmith/writers-toolkit-gemini-sub000/pkg/models"
)

// Turn accumulates one end-to-end model invocation: the prompt, both channel
// buffers, elapsed time, and terminal token counts. It is created per tool
// run, mutated only as stream fragments arrive, and discarded after the
// answer is persisted.
type Turn struct {
	ID     string
	Prompt string

	thinking strings.Builder
	answer   strings.Builder
	started  time.Time
	elapsed  time.Duration
	usage    models.Usage
}

func NewTurn(prompt string) *Turn {
	return &Turn{
		ID:      uuid.New().String(),
		Prompt:  prompt,
		started: time.Now(),
	}
}

// AppendThinking adds a reasoning delta.
func (t *Turn) AppendThinking(s string) {
	t.thinking.WriteString(s)
}

// AppendAnswer adds an answer delta.
func (t *Turn) AppendAnswer(s string) {
	t.answer.WriteString(s)
}

// Finish records elapsed time and the transport's terminal usage.
func (t *Turn) Finish(usage models.Usage) {
	t.elapsed = time.Since(t.started)
	t.usage = usage
}

func (t *Turn) Thinking() string { return t.thinking.String() }

// Answer returns the accumulated final text, the only artifact persisted.
func (t *Turn) Answer() string { return t.answer.String() }

func (t *Turn) Elapsed() time.Duration { return t.elapsed }

func (t *Turn) Usage() models.Usage { return t.usage }

// WordCount is the whitespace-delimited token count of the answer.
func (t *Turn) WordCount() int {
	return len(strings.Fields(t.answer.String()))
}
