package capture

import (
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/MrWong99/charterline/internal/voice/extract"
	"github.com/MrWong99/charterline/pkg/charter"
)

// EditFunc receives a field value changed outside the session. An empty
// value means the field was cleared.
type EditFunc func(fieldID, value string)

// Sync is the controlled write path from a voice session into the external
// stores.
//
// Every write marks an internal-update flag for its duration. The store
// subscription callback checks the flag first and ignores notifications
// caused by the session's own writes, so a capture never comes back as an
// external edit.
type Sync struct {
	schema charter.Schema
	conv   ConversationStore
	draft  DraftStore
	logger *slog.Logger

	internal atomic.Bool

	mu          sync.Mutex
	known       map[string]string
	unsubscribe func()
}

// SyncOption configures a [Sync].
type SyncOption func(*Sync)

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(l *slog.Logger) SyncOption {
	return func(s *Sync) { s.logger = l }
}

// NewSync returns a Sync writing to conv and draft. Either store may be nil,
// in which case writes to it are skipped.
func NewSync(schema charter.Schema, conv ConversationStore, draft DraftStore, opts ...SyncOption) *Sync {
	s := &Sync{
		schema: schema,
		conv:   conv,
		draft:  draft,
		logger: slog.Default(),
		known:  make(map[string]string),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Internal reports whether a session write is in flight.
func (s *Sync) Internal() bool { return s.internal.Load() }

// Push writes a captured value for f to the draft and conversation stores.
// List fields are merged into the draft by append with de-duplication.
func (s *Sync) Push(f charter.FieldSpec, v extract.Value) {
	s.mu.Lock()
	s.known[f.ID] = v.Text
	s.mu.Unlock()

	s.internal.Store(true)
	defer s.internal.Store(false)

	if s.draft != nil {
		s.draft.Merge(map[string]any{f.ID: s.draftValue(f, v)})
	}
	if s.conv != nil {
		s.conv.Dispatch(Action{Type: ActionCapture, FieldID: f.ID, Value: v.Text})
		s.conv.Dispatch(Action{Type: ActionValidate, FieldID: f.ID})
	}
	s.logger.Debug("capture: pushed", "field", f.ID, "type", string(f.Kind()))
}

// Ask marks fieldID as being asked about in the conversation store.
func (s *Sync) Ask(fieldID string) {
	if s.conv == nil || fieldID == "" {
		return
	}
	s.internal.Store(true)
	defer s.internal.Store(false)
	s.conv.Dispatch(Action{Type: ActionAsk, FieldID: fieldID})
}

// Watch subscribes to the conversation store and calls fn for every field
// whose value changes without a session write in flight. Values present at
// the time of the call are not reported. Calling Watch again replaces the
// previous subscription.
func (s *Sync) Watch(fn EditFunc) {
	if s.conv == nil || fn == nil {
		return
	}
	s.Close()

	snap := s.conv.Snapshot()
	s.mu.Lock()
	for id, e := range snap {
		s.known[id] = e.Value
	}
	s.mu.Unlock()

	unsub := s.conv.Subscribe(func(snap map[string]FieldEntry) {
		if s.internal.Load() {
			return
		}
		for _, e := range s.diff(snap) {
			fn(e.id, e.value)
		}
	})

	s.mu.Lock()
	s.unsubscribe = unsub
	s.mu.Unlock()
}

// Close removes the store subscription. It is safe to call more than once.
func (s *Sync) Close() {
	s.mu.Lock()
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

type edit struct{ id, value string }

// diff records snap as known and returns the entries that changed, in schema
// order followed by unknown ids in sorted order.
func (s *Sync) diff(snap map[string]FieldEntry) []edit {
	s.mu.Lock()
	defer s.mu.Unlock()

	var edits []edit
	seen := make(map[string]struct{}, len(snap))
	check := func(id string) {
		seen[id] = struct{}{}
		e, inSnap := snap[id]
		old := s.known[id]
		switch {
		case !inSnap:
			if old != "" {
				delete(s.known, id)
				edits = append(edits, edit{id, ""})
			}
		case e.Value != old:
			s.known[id] = e.Value
			edits = append(edits, edit{id, e.Value})
		}
	}
	for _, f := range s.schema {
		check(f.ID)
	}
	for _, id := range slices.Sorted(maps.Keys(snap)) {
		if _, ok := seen[id]; !ok {
			check(id)
		}
	}
	return edits
}

func (s *Sync) draftValue(f charter.FieldSpec, v extract.Value) any {
	switch f.Kind() {
	case charter.TypeStringList:
		var existing []string
		if s.draft != nil {
			existing = toStrings(s.draft.Draft()[f.ID])
		}
		items := v.Items
		if len(items) == 0 && v.Text != "" {
			items = []string{v.Text}
		}
		return AppendUnique(existing, items...)
	case charter.TypeObjectList:
		var existing []map[string]string
		if s.draft != nil {
			existing = toRecords(s.draft.Draft()[f.ID])
		}
		return AppendUniqueRecords(existing, v.Records...)
	}
	return v.Text
}

// AppendUnique appends every item not already present in list. The input
// slice is not modified.
func AppendUnique(list []string, items ...string) []string {
	out := slices.Clone(list)
	for _, it := range items {
		if !slices.Contains(out, it) {
			out = append(out, it)
		}
	}
	return out
}

// AppendUniqueRecords appends every record not already present in list.
func AppendUniqueRecords(list []map[string]string, recs ...map[string]string) []map[string]string {
	out := slices.Clone(list)
	for _, r := range recs {
		if !slices.ContainsFunc(out, func(e map[string]string) bool { return maps.Equal(e, r) }) {
			out = append(out, r)
		}
	}
	return out
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if t != "" {
			return []string{t}
		}
	}
	return nil
}

func toRecords(v any) []map[string]string {
	switch t := v.(type) {
	case []map[string]string:
		return t
	case []any:
		out := make([]map[string]string, 0, len(t))
		for _, e := range t {
			switch r := e.(type) {
			case map[string]string:
				out = append(out, r)
			case map[string]any:
				rec := make(map[string]string, len(r))
				for k, val := range r {
					if s, ok := val.(string); ok {
						rec[k] = s
					}
				}
				out = append(out, rec)
			}
		}
		return out
	}
	return nil
}
