// Package demux splits a streamed model response into "thinking" and
// "answer" channels based on sentinel markers embedded in the stream text.
// The outbound prompt instructs the model to prefix its reasoning with
// THINKING: and its final content with RESPONSE:; nothing in the wire
// protocol itself is structured.
package demux

import "strings"

const (
	MarkerThinking = "THINKING:"
	MarkerResponse = "RESPONSE:"
)

// Phase is the routing state of one streamed turn.
type Phase int

const (
	// PhasePreamble is the initial state, before either marker was seen.
	PhasePreamble Phase = iota
	// PhaseThinking routes fragments to the thinking channel until RESPONSE:.
	PhaseThinking
	// PhaseAnswer is terminal; every fragment goes to the answer channel.
	PhaseAnswer
)

// Demux routes incoming stream fragments to the thinking or answer callback.
//
// Fragments are scanned individually and in arrival order; a marker split
// across a fragment boundary is not detected and its pieces are routed as
// ordinary content. Closing that gap would require holding back text across
// fragments, which changes observable output, so it stays as-is.
type Demux struct {
	onThinking func(string)
	onAnswer   func(string)
	phase      Phase
	extract    bool
}

// Options configures a Demux.
type Options struct {
	// OnThinking receives reasoning deltas. May be nil.
	OnThinking func(string)
	// OnAnswer receives answer deltas. Only the answer accumulation is
	// persisted by callers.
	OnAnswer func(string)
	// ExtractThinking enables the sentinel state machine. When false every
	// fragment is forwarded verbatim to OnAnswer, which is what most tools
	// use.
	ExtractThinking bool
}

func New(opts Options) *Demux {
	d := &Demux{
		onThinking: opts.OnThinking,
		onAnswer:   opts.OnAnswer,
		extract:    opts.ExtractThinking,
	}
	if !d.extract {
		d.phase = PhaseAnswer
	}
	return d
}

// Phase returns the current routing state.
func (d *Demux) Phase() Phase {
	return d.phase
}

// Feed routes one fragment. Empty fragments are ignored entirely: no
// callback fires and no state changes.
func (d *Demux) Feed(fragment string) {
	if fragment == "" {
		return
	}

	switch d.phase {
	case PhaseAnswer:
		d.emitAnswer(fragment)

	case PhaseThinking:
		if idx := strings.Index(fragment, MarkerResponse); idx >= 0 {
			d.emitThinking(fragment[:idx])
			d.phase = PhaseAnswer
			d.emitAnswer(fragment[idx+len(MarkerResponse):])
		} else {
			d.emitThinking(fragment)
		}

	case PhasePreamble:
		ti := strings.Index(fragment, MarkerThinking)
		ri := strings.Index(fragment, MarkerResponse)

		switch {
		case ti < 0 && ri < 0:
			// No marker yet; stray preamble flows to the answer channel.
			d.emitAnswer(fragment)
		case ri >= 0 && (ti < 0 || ri < ti):
			d.emitAnswer(fragment[:ri])
			d.phase = PhaseAnswer
			d.emitAnswer(fragment[ri+len(MarkerResponse):])
		default:
			d.emitAnswer(fragment[:ti])
			d.phase = PhaseThinking
			rest := fragment[ti+len(MarkerThinking):]
			// Both markers can land in the same fragment.
			if idx := strings.Index(rest, MarkerResponse); idx >= 0 {
				d.emitThinking(rest[:idx])
				d.phase = PhaseAnswer
				d.emitAnswer(rest[idx+len(MarkerResponse):])
			} else {
				d.emitThinking(rest)
			}
		}
	}
}

func (d *Demux) emitThinking(s string) {
	if s != "" && d.onThinking != nil {
		d.onThinking(s)
	}
}

func (d *Demux) emitAnswer(s string) {
	if s != "" && d.onAnswer != nil {
		d.onAnswer(s)
	}
}
