// Package reformulate holds long-form answers until the agent has rewritten
// them into polished prose.
//
// A long-form answer moves through two pending states. While the user is
// talking, the raw cleaned chunks accumulate in a [PendingReformulation].
// Once the agent speaks its rewrite marker, the rewritten text replaces the
// raw accumulation; if the rewrite is not yet sentence-complete it is held
// in a [PendingCapture] and extended by later chunks. Finalisation happens on
// a trailing period or an agent transition phrase. If the agent moves on to
// another field without ever producing a marker, the raw accumulation is
// captured verbatim.
package reformulate

import (
	"strings"

	"github.com/MrWong99/charterline/internal/voice/extract"
	"github.com/MrWong99/charterline/pkg/charter"
)

// Detector recognises the agent phrases the buffer reacts to.
// [*classify.Classifier] satisfies it.
type Detector interface {
	MatchRewrite(text string) (string, bool)
	HasTransition(text string) bool
	MovedOn(text, fieldID string, schema charter.Schema) bool
	Interrupts(text, fieldID string, schema charter.Schema) bool
}

// Reason says why a pending value was finalised.
type Reason string

const (
	ReasonSentenceComplete Reason = "sentence_complete"
	ReasonTransition       Reason = "transition"
	ReasonRawFallback      Reason = "raw_fallback"
	ReasonFlush            Reason = "flush"
	ReasonSuperseded       Reason = "superseded"
)

// PendingReformulation is a long-form answer awaiting the agent's rewrite.
type PendingReformulation struct {
	FieldID string
	Raw     string
}

// PendingCapture is a partial agent rewrite awaiting its sentence boundary.
type PendingCapture struct {
	FieldID string
	Text    string
}

// Outcome reports what [Buffer.Observe] did with a transcript.
type Outcome struct {
	// Captured is set when a value was finalised. FieldID, Value and Reason
	// describe it.
	Captured bool
	FieldID  string
	Value    string
	Reason   Reason

	// Consumed is set when the transcript was part of an agent rewrite and
	// must not be classified further.
	Consumed bool
}

// Buffer holds at most one pending value. It is not safe for concurrent use.
type Buffer struct {
	detector Detector
	schema   charter.Schema

	reformulation *PendingReformulation
	capture       *PendingCapture
}

// New returns an empty Buffer for schema.
func New(detector Detector, schema charter.Schema) *Buffer {
	return &Buffer{detector: detector, schema: schema}
}

// Accumulate appends text to the raw answer pending for fieldID. A value
// pending for a different field is finalised first and returned.
func (b *Buffer) Accumulate(fieldID, text string) Outcome {
	text = strings.TrimSpace(text)
	var out Outcome
	if id, _ := b.Pending(); id != "" && id != fieldID {
		if fid, v, ok := b.Flush(); ok {
			out = Outcome{Captured: true, FieldID: fid, Value: v, Reason: ReasonSuperseded}
		}
	}
	if text == "" {
		return out
	}
	if b.reformulation != nil && b.reformulation.FieldID == fieldID {
		b.reformulation = &PendingReformulation{FieldID: fieldID, Raw: b.reformulation.Raw + " " + text}
		return out
	}
	b.capture = nil
	b.reformulation = &PendingReformulation{FieldID: fieldID, Raw: text}
	return out
}

// Observe inspects an arriving transcript before any other value handling.
// It returns a zero Outcome when nothing is pending.
func (b *Buffer) Observe(text string) Outcome {
	text = strings.TrimSpace(text)
	switch {
	case b.capture != nil:
		return b.extendCapture(text)
	case b.reformulation != nil:
		if rewritten, ok := b.detector.MatchRewrite(text); ok {
			return b.Offer(b.reformulation.FieldID, rewritten, b.detector.HasTransition(text))
		}
		if b.detector.MovedOn(text, b.reformulation.FieldID, b.schema) {
			p := b.reformulation
			b.Clear()
			return Outcome{Captured: true, FieldID: p.FieldID, Value: p.Raw, Reason: ReasonRawFallback}
		}
	}
	return Outcome{}
}

// Offer hands a rewrite for fieldID to the buffer. A sentence-complete rewrite
// or one spoken together with a transition phrase is finalised at once;
// otherwise it is held until later chunks complete it.
func (b *Buffer) Offer(fieldID, rewritten string, transition bool) Outcome {
	rewritten = strings.TrimSpace(rewritten)
	b.reformulation = nil
	switch {
	case extract.SentenceComplete(rewritten):
		b.capture = nil
		return Outcome{Captured: true, FieldID: fieldID, Value: rewritten, Reason: ReasonSentenceComplete, Consumed: true}
	case transition:
		b.capture = nil
		return Outcome{Captured: true, FieldID: fieldID, Value: rewritten, Reason: ReasonTransition, Consumed: true}
	}
	b.capture = &PendingCapture{FieldID: fieldID, Text: rewritten}
	return Outcome{Consumed: true}
}

// extendCapture appends agent speech to a held partial rewrite. A line the
// detector sees as the user interrupting is left for the caller, with the
// rewrite still pending.
func (b *Buffer) extendCapture(text string) Outcome {
	p := *b.capture
	switch rewritten, marker := b.detector.MatchRewrite(text); {
	case marker:
		// A longer or complete restatement replaces the partial one.
		if extract.SentenceComplete(rewritten) || len(rewritten) > len(p.Text) {
			p.Text = rewritten
		}
	case b.detector.HasTransition(text) || b.detector.MovedOn(text, p.FieldID, b.schema):
		b.Clear()
		return Outcome{Captured: true, FieldID: p.FieldID, Value: p.Text, Reason: ReasonTransition}
	case b.detector.Interrupts(text, p.FieldID, b.schema):
		return Outcome{}
	case text != "":
		p.Text += " " + text
	}

	if extract.SentenceComplete(p.Text) {
		b.Clear()
		return Outcome{Captured: true, FieldID: p.FieldID, Value: p.Text, Reason: ReasonSentenceComplete, Consumed: true}
	}
	if b.detector.HasTransition(text) {
		b.Clear()
		return Outcome{Captured: true, FieldID: p.FieldID, Value: p.Text, Reason: ReasonTransition, Consumed: true}
	}
	b.capture = &p
	return Outcome{Consumed: true}
}

// Flush finalises whatever is pending, preferring a partial rewrite over the
// raw accumulation, and clears the buffer.
func (b *Buffer) Flush() (fieldID, value string, ok bool) {
	defer b.Clear()
	switch {
	case b.capture != nil && b.capture.Text != "":
		return b.capture.FieldID, b.capture.Text, true
	case b.reformulation != nil && b.reformulation.Raw != "":
		return b.reformulation.FieldID, b.reformulation.Raw, true
	}
	return "", "", false
}

// Pending returns the field with a pending value and the pending text.
func (b *Buffer) Pending() (fieldID, text string) {
	switch {
	case b.capture != nil:
		return b.capture.FieldID, b.capture.Text
	case b.reformulation != nil:
		return b.reformulation.FieldID, b.reformulation.Raw
	}
	return "", ""
}

// Reformulation returns a copy of the pending raw answer, or nil.
func (b *Buffer) Reformulation() *PendingReformulation {
	if b.reformulation == nil {
		return nil
	}
	p := *b.reformulation
	return &p
}

// Capture returns a copy of the pending partial rewrite, or nil.
func (b *Buffer) Capture() *PendingCapture {
	if b.capture == nil {
		return nil
	}
	p := *b.capture
	return &p
}

// Clear drops all pending state.
func (b *Buffer) Clear() {
	b.reformulation = nil
	b.capture = nil
}
