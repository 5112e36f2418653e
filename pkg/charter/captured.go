package charter

import (
	"encoding/json"
	"maps"
	"slices"
)

// CapturedValues is a copy-on-write map of field id to captured value.
//
// A CapturedValues is never mutated after construction: [CapturedValues.With]
// and [CapturedValues.Without] return a new value and leave the receiver
// untouched, so successive [SessionState] snapshots share the same backing map
// until a capture actually changes it. The zero value is an empty set.
type CapturedValues struct {
	m map[string]CapturedFieldValue
}

// NewCapturedValues builds a set from vals. Later entries win on duplicate
// field ids.
func NewCapturedValues(vals ...CapturedFieldValue) CapturedValues {
	if len(vals) == 0 {
		return CapturedValues{}
	}
	m := make(map[string]CapturedFieldValue, len(vals))
	for _, v := range vals {
		m[v.FieldID] = v
	}
	return CapturedValues{m: m}
}

// Get returns the captured value for id.
func (c CapturedValues) Get(id string) (CapturedFieldValue, bool) {
	v, ok := c.m[id]
	return v, ok
}

// Has reports whether id has been captured.
func (c CapturedValues) Has(id string) bool {
	_, ok := c.m[id]
	return ok
}

// Len returns the number of captured fields.
func (c CapturedValues) Len() int { return len(c.m) }

// IDs returns the captured field ids in sorted order.
func (c CapturedValues) IDs() []string {
	return slices.Sorted(maps.Keys(c.m))
}

// Map returns a copy of the underlying map.
func (c CapturedValues) Map() map[string]CapturedFieldValue {
	return maps.Clone(c.m)
}

// With returns a new set with v added or replaced.
func (c CapturedValues) With(v CapturedFieldValue) CapturedValues {
	m := make(map[string]CapturedFieldValue, len(c.m)+1)
	maps.Copy(m, c.m)
	m[v.FieldID] = v
	return CapturedValues{m: m}
}

// Without returns a new set with id removed. The receiver is returned
// unchanged when id is absent.
func (c CapturedValues) Without(id string) CapturedValues {
	if !c.Has(id) {
		return c
	}
	m := maps.Clone(c.m)
	delete(m, id)
	return CapturedValues{m: m}
}

// MarshalJSON encodes the set as a JSON object keyed by field id.
func (c CapturedValues) MarshalJSON() ([]byte, error) {
	if c.m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.m)
}
