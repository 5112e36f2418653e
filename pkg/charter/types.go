// Package charter defines the shared types used across all charterline
// packages.
//
// These types form the lingua franca between the classifier, extractor,
// navigator, reformulation buffer, capture sync and the session controller.
// Each package defines its own domain types; cross-cutting data structures
// live here to avoid circular imports.
package charter

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// FieldType selects the extraction and list behaviour for a field.
type FieldType string

const (
	// TypeShort is a verbatim single value (the default).
	TypeShort FieldType = "short"

	// TypeLongForm is narrative prose that the agent must reformulate before
	// it is captured.
	TypeLongForm FieldType = "long-form"

	// TypeDate is parsed from spoken dates into YYYY-MM-DD.
	TypeDate FieldType = "date"

	// TypeName is a personal name, title-cased per word.
	TypeName FieldType = "name"

	// TypeStringList is split into a list of items.
	TypeStringList FieldType = "string-list"

	// TypeObjectList is split into records, one per line, keyed by the
	// field's child ids.
	TypeObjectList FieldType = "object-list"
)

// IsValid reports whether t is a recognised field type. The empty type is
// valid and means [TypeShort].
func (t FieldType) IsValid() bool {
	switch t {
	case "", TypeShort, TypeLongForm, TypeDate, TypeName, TypeStringList, TypeObjectList:
		return true
	}
	return false
}

// IsList reports whether values of this type are merged into an array in the
// draft store.
func (t FieldType) IsList() bool {
	return t == TypeStringList || t == TypeObjectList
}

// FieldSpec describes one named slot in the target document.
type FieldSpec struct {
	// ID is the stable key used by the stores (e.g. "project_name").
	ID string `yaml:"id" json:"id"`

	// Label is the human-readable name spoken by the agent.
	Label string `yaml:"label" json:"label"`

	// Required fields cannot be skipped.
	Required bool `yaml:"required" json:"required"`

	// HelpText is passed to the agent when it asks about the field.
	HelpText string `yaml:"help_text" json:"help_text,omitempty"`

	// Example is an optional sample answer.
	Example string `yaml:"example" json:"example,omitempty"`

	// Type selects extraction behaviour. Empty means [TypeShort].
	Type FieldType `yaml:"type" json:"type,omitempty"`

	// Children lists the child-field ids of an object-list field in
	// positional order.
	Children []string `yaml:"children" json:"children,omitempty"`
}

// Kind returns the effective field type, defaulting to [TypeShort].
func (f FieldSpec) Kind() FieldType {
	if f.Type == "" {
		return TypeShort
	}
	return f.Type
}

// SpokenID returns the id with underscores mapped to spaces.
func (f FieldSpec) SpokenID() string {
	return strings.ReplaceAll(f.ID, "_", " ")
}

// DisplayName returns the label, or the spoken id when the label is empty.
func (f FieldSpec) DisplayName() string {
	if f.Label != "" {
		return f.Label
	}
	return f.SpokenID()
}

// Schema is the ordered, immutable list of fields for a session.
type Schema []FieldSpec

// ErrEmptySchema is returned by [Schema.Validate] for a schema with no fields.
var ErrEmptySchema = errors.New("charter: schema has no fields")

// Validate checks that every field has a unique id and a known type, and
// that object-list fields declare their children. All problems are joined.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return ErrEmptySchema
	}
	var errs []error
	seen := make(map[string]struct{}, len(s))
	for i, f := range s {
		if f.ID == "" {
			errs = append(errs, fmt.Errorf("charter: field %d: id is required", i))
			continue
		}
		if _, dup := seen[f.ID]; dup {
			errs = append(errs, fmt.Errorf("charter: field %q: duplicate id", f.ID))
		}
		seen[f.ID] = struct{}{}
		if !f.Type.IsValid() {
			errs = append(errs, fmt.Errorf("charter: field %q: unknown type %q", f.ID, f.Type))
		}
		if f.Kind() == TypeObjectList && len(f.Children) == 0 {
			errs = append(errs, fmt.Errorf("charter: field %q: object-list needs at least one child", f.ID))
		}
	}
	return errors.Join(errs...)
}

// Index returns the position of the field with the given id, or -1.
func (s Schema) Index(id string) int {
	for i, f := range s {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// Field returns the field with the given id.
func (s Schema) Field(id string) (FieldSpec, bool) {
	if i := s.Index(id); i >= 0 {
		return s[i], true
	}
	return FieldSpec{}, false
}

// CapturedFieldValue is one finalised field value.
type CapturedFieldValue struct {
	FieldID     string    `json:"field_id"`
	Value       string    `json:"value"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// Step is the coarse phase of a session.
type Step string

const (
	StepIdle         Step = "idle"
	StepInitializing Step = "initializing"
	StepAsking       Step = "asking"
	StepListening    Step = "listening"
	StepConfirming   Step = "confirming"
	StepNavigating   Step = "navigating"
	StepCompleted    Step = "completed"
)

// SessionState is an immutable snapshot of the controller state. A new value
// is produced on every transition; listeners may retain it freely.
type SessionState struct {
	Step              Step           `json:"step"`
	CurrentFieldIndex int            `json:"current_field_index"`
	CurrentFieldID    string         `json:"current_field_id"`
	Captured          CapturedValues `json:"captured"`
	PendingValue      string         `json:"pending_value,omitempty"`
	Error             string         `json:"error,omitempty"`
}
