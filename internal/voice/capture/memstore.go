package capture

import (
	"maps"
	"sync"
)

// Compile-time assertions that the in-memory stores satisfy their contracts.
var (
	_ ConversationStore = (*MemConversation)(nil)
	_ DraftStore        = (*MemDraft)(nil)
)

// MemConversation is a thread-safe, in-memory [ConversationStore].
// Subscribers are called synchronously, outside the store lock, in
// registration order. The zero value is ready to use.
type MemConversation struct {
	mu     sync.Mutex
	fields map[string]FieldEntry
	subs   map[int]func(map[string]FieldEntry)
	nextID int
	order  []int
}

// NewMemConversation returns an initialised [MemConversation] seeded with
// values.
func NewMemConversation(values map[string]string) *MemConversation {
	s := &MemConversation{fields: make(map[string]FieldEntry, len(values))}
	for id, v := range values {
		s.fields[id] = FieldEntry{Value: v, Status: StatusCaptured}
	}
	return s
}

// Dispatch implements [ConversationStore.Dispatch].
func (s *MemConversation) Dispatch(a Action) {
	s.mu.Lock()
	if s.fields == nil {
		s.fields = make(map[string]FieldEntry)
	}
	e := s.fields[a.FieldID]
	switch a.Type {
	case ActionAsk:
		if e.Status == "" {
			e.Status = StatusAsked
		}
	case ActionCapture:
		e.Value = a.Value
		e.Status = StatusCaptured
	case ActionValidate:
		if e.Status == StatusCaptured {
			e.Status = StatusValidated
		}
	default:
		s.mu.Unlock()
		return
	}
	s.fields[a.FieldID] = e

	snap := maps.Clone(s.fields)
	subs := make([]func(map[string]FieldEntry), 0, len(s.order))
	for _, id := range s.order {
		subs = append(subs, s.subs[id])
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(maps.Clone(snap))
	}
}

// Snapshot implements [ConversationStore.Snapshot].
func (s *MemConversation) Snapshot() map[string]FieldEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := maps.Clone(s.fields)
	if out == nil {
		out = make(map[string]FieldEntry)
	}
	return out
}

// Subscribe implements [ConversationStore.Subscribe].
func (s *MemConversation) Subscribe(fn func(map[string]FieldEntry)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = make(map[int]func(map[string]FieldEntry))
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

// MemDraft is a thread-safe, in-memory [DraftStore]. The zero value is ready
// to use.
type MemDraft struct {
	mu    sync.RWMutex
	draft map[string]any
}

// NewMemDraft returns an empty [MemDraft].
func NewMemDraft() *MemDraft {
	return &MemDraft{draft: make(map[string]any)}
}

// Draft implements [DraftStore.Draft].
func (d *MemDraft) Draft() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := maps.Clone(d.draft)
	if out == nil {
		out = make(map[string]any)
	}
	return out
}

// Merge implements [DraftStore.Merge].
func (d *MemDraft) Merge(patch map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.draft == nil {
		d.draft = make(map[string]any, len(patch))
	}
	maps.Copy(d.draft, patch)
}
