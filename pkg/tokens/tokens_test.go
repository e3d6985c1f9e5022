package tokens_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cleesmith/writers-toolkit-gemini-sub000/pkg/tokens"
)

type fakeCounter struct {
	n   int
	err error
}

func (f fakeCounter) CountTokens(ctx context.Context, model, text string) (int, error) {
	return f.n, f.err
}

func TestCount(t *testing.T) {
	a := tokens.NewAccountant(fakeCounter{n: 42}, "gemini-2.0-flash")
	if got := a.Count(context.Background(), "some manuscript text"); got != 42 {
		t.Errorf("Count = %d, want 42", got)
	}
}

func TestCountNeverFails(t *testing.T) {
	a := tokens.NewAccountant(fakeCounter{err: errors.New("quota exceeded")}, "gemini-2.0-flash")
	if got := a.Count(context.Background(), "text"); got != 0 {
		t.Errorf("Count on error = %d, want 0", got)
	}

	var nilAcct = tokens.NewAccountant(nil, "gemini-2.0-flash")
	if got := nilAcct.Count(context.Background(), "text"); got != 0 {
		t.Errorf("Count with nil counter = %d, want 0", got)
	}

	if got := a.Count(context.Background(), ""); got != 0 {
		t.Errorf("Count of empty text = %d, want 0", got)
	}
}
