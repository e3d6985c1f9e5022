// Package tokens provides best-effort token accounting for display and
// budgeting. Counts are informational: a zero result means "unknown", not
// "empty input", and must never gate correctness-critical logic.
package tokens

import (
	"context"
	"log/slog"

	"github.com/cleesmith/writers-toolkit-gemini-sub000/pkg/models"
)

// Accountant counts tokens via the remote API without ever failing the caller.
type Accountant struct {
	counter models.TokenCounter
	model   string
}

func NewAccountant(counter models.TokenCounter, model string) *Accountant {
	return &Accountant{counter: counter, model: model}
}

// Count returns the token count for text, or 0 if the transport is
// unavailable or the API rejects the call.
func (a *Accountant) Count(ctx context.Context, text string) int {
	if a.counter == nil || text == "" {
		return 0
	}
	n, err := a.counter.CountTokens(ctx, a.model, text)
	if err != nil {
		slog.Warn("Token count unavailable", "model", a.model, "error", err)
		return 0
	}
	return n
}
