// Package navigator implements the field cursor of a voice capture session.
//
// A [Navigator] tracks two positions over the schema: the cursor index that
// the session state displays, and the asking field, the field the agent is
// currently expected to be questioning about. Explicit moves update the
// asking field first so that a transcript arriving in the same tick is
// attributed correctly, then the index.
package navigator

import (
	"github.com/MrWong99/charterline/pkg/charter"
)

// Prompter asks the spoken agent to say something. Implementations are
// fire-and-forget; the navigator never waits for the reply.
type Prompter interface {
	// AskField asks the agent to question the user about f. prev is the
	// field's earlier value, if any, so the agent can offer to keep it.
	AskField(f charter.FieldSpec, prev *charter.CapturedFieldValue)

	// NoEarlierField tells the user there is no field before first.
	NoEarlierField(first charter.FieldSpec)

	// SkipRefused tells the user that required field f cannot be skipped.
	SkipRefused(f charter.FieldSpec)
}

// LookupFunc returns the captured value of a field, if any.
type LookupFunc func(fieldID string) (charter.CapturedFieldValue, bool)

// Navigator is an explicit cursor over an ordered schema. It is not safe for
// concurrent use; the session controller serialises access.
type Navigator struct {
	schema   charter.Schema
	lookup   LookupFunc
	prompter Prompter

	index    int
	askingID string
}

// New returns a Navigator positioned before the first field.
func New(schema charter.Schema, lookup LookupFunc, prompter Prompter) *Navigator {
	if lookup == nil {
		lookup = func(string) (charter.CapturedFieldValue, bool) { return charter.CapturedFieldValue{}, false }
	}
	return &Navigator{schema: schema, lookup: lookup, prompter: prompter}
}

// Index returns the cursor position.
func (n *Navigator) Index() int { return n.index }

// AskingID returns the id of the field the agent is asking about, or "" when
// no field remains.
func (n *Navigator) AskingID() string { return n.askingID }

// Current returns the field under the cursor.
func (n *Navigator) Current() (charter.FieldSpec, bool) {
	if n.index < 0 || n.index >= len(n.schema) {
		return charter.FieldSpec{}, false
	}
	return n.schema[n.index], true
}

// Asking returns the field the agent is asking about.
func (n *Navigator) Asking() (charter.FieldSpec, bool) {
	return n.schema.Field(n.askingID)
}

// Start places the cursor on the first field and asks about it. It returns
// false for an empty schema.
func (n *Navigator) Start() bool {
	if len(n.schema) == 0 {
		return false
	}
	n.moveTo(0)
	return true
}

// Advance silently moves to the next field after the cursor that has no
// captured value, skipping filled ones. It does not prompt. When every later
// field is filled the asking field becomes "" and the index is unchanged.
func (n *Navigator) Advance() (charter.FieldSpec, bool) {
	for i := n.index + 1; i < len(n.schema); i++ {
		if _, filled := n.lookup(n.schema[i].ID); filled {
			continue
		}
		n.askingID = n.schema[i].ID
		n.index = i
		return n.schema[i], true
	}
	n.askingID = ""
	return charter.FieldSpec{}, false
}

// Next moves to and asks about the field after the cursor. It returns false
// at the end of the schema.
func (n *Navigator) Next() (charter.FieldSpec, bool) {
	if n.index+1 >= len(n.schema) {
		return charter.FieldSpec{}, false
	}
	return n.moveTo(n.index + 1), true
}

// Previous moves to and asks about the field before the cursor. At the first
// field it does not wrap; the agent is told there is no earlier field.
func (n *Navigator) Previous() (charter.FieldSpec, bool) {
	if len(n.schema) == 0 {
		return charter.FieldSpec{}, false
	}
	if n.index <= 0 {
		n.askingID = n.schema[0].ID
		n.index = 0
		if n.prompter != nil {
			n.prompter.NoEarlierField(n.schema[0])
		}
		return charter.FieldSpec{}, false
	}
	return n.moveTo(n.index - 1), true
}

// GoTo moves to and asks about the field with the given id, including fields
// that are already captured. Unknown ids leave the cursor untouched.
func (n *Navigator) GoTo(fieldID string) (charter.FieldSpec, bool) {
	i := n.schema.Index(fieldID)
	if i < 0 {
		return charter.FieldSpec{}, false
	}
	return n.moveTo(i), true
}

// Skip moves past the current field. Required fields are not skipped; the
// agent is told so and the cursor stays put. Skipping the last field returns
// false without prompting, leaving the caller to decide where to go.
func (n *Navigator) Skip() (charter.FieldSpec, bool) {
	cur, ok := n.Current()
	if !ok {
		return charter.FieldSpec{}, false
	}
	if cur.Required {
		if n.prompter != nil {
			n.prompter.SkipRefused(cur)
		}
		return charter.FieldSpec{}, false
	}
	return n.Next()
}

// FirstMissingRequired returns the first required field with no captured
// value.
func (n *Navigator) FirstMissingRequired() (charter.FieldSpec, bool) {
	for _, f := range n.schema {
		if !f.Required {
			continue
		}
		if _, filled := n.lookup(f.ID); !filled {
			return f, true
		}
	}
	return charter.FieldSpec{}, false
}

// Reset returns the cursor to its initial position.
func (n *Navigator) Reset() {
	n.index = 0
	n.askingID = ""
}

func (n *Navigator) moveTo(i int) charter.FieldSpec {
	f := n.schema[i]
	n.askingID = f.ID
	n.index = i
	if n.prompter != nil {
		var prev *charter.CapturedFieldValue
		if v, ok := n.lookup(f.ID); ok {
			prev = &v
		}
		n.prompter.AskField(f, prev)
	}
	return f
}
