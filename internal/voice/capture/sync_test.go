package capture

import (
	"reflect"
	"testing"

	"github.com/MrWong99/charterline/internal/voice/extract"
	"github.com/MrWong99/charterline/pkg/charter"
)

var (
	sponsor = charter.FieldSpec{ID: "sponsor", Label: "Sponsor", Type: charter.TypeName}
	risks   = charter.FieldSpec{ID: "risks", Label: "Risks", Type: charter.TypeStringList}
	team    = charter.FieldSpec{ID: "team", Label: "Team", Type: charter.TypeObjectList, Children: []string{"name", "role"}}
	schema  = charter.Schema{sponsor, risks, team}
)

type recordedEdit struct{ field, value string }

func newTestSync(seed map[string]string) (*Sync, *MemConversation, *MemDraft) {
	conv := NewMemConversation(seed)
	draft := NewMemDraft()
	return NewSync(schema, conv, draft), conv, draft
}

func TestPush_ListAppendNotReplace(t *testing.T) {
	t.Parallel()

	s, _, draft := newTestSync(nil)
	s.Push(risks, extract.Value{Text: "vendor delays", Items: []string{"vendor delays"}})
	s.Push(risks, extract.Value{Text: "budget cuts", Items: []string{"budget cuts"}})

	got := draft.Draft()["risks"]
	want := []string{"vendor delays", "budget cuts"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("draft risks = %#v; want %#v", got, want)
	}
}

func TestPush_Idempotent(t *testing.T) {
	t.Parallel()

	s, conv, draft := newTestSync(nil)
	v := extract.Value{Text: "vendor delays, churn", Items: []string{"vendor delays", "churn"}}
	s.Push(risks, v)
	s.Push(risks, v)

	if got := draft.Draft()["risks"]; !reflect.DeepEqual(got, []string{"vendor delays", "churn"}) {
		t.Errorf("draft risks = %#v; want no duplicates", got)
	}
	if e := conv.Snapshot()["risks"]; e.Value != "vendor delays, churn" || e.Status != StatusValidated {
		t.Errorf("conversation entry = %+v", e)
	}

	s.Push(sponsor, extract.Value{Text: "Jane Doe"})
	s.Push(sponsor, extract.Value{Text: "Jane Doe"})
	if got := draft.Draft()["sponsor"]; got != "Jane Doe" {
		t.Errorf("draft sponsor = %#v", got)
	}
}

func TestPush_RecordsDeduplicated(t *testing.T) {
	t.Parallel()

	s, _, draft := newTestSync(nil)
	jane := map[string]string{"name": "Jane", "role": "lead"}
	bob := map[string]string{"name": "Bob", "role": "QA"}
	s.Push(team, extract.Value{Text: "Jane / lead", Records: []map[string]string{jane}})
	s.Push(team, extract.Value{Text: "Jane / lead\nBob / QA", Records: []map[string]string{jane, bob}})

	got := draft.Draft()["team"]
	want := []map[string]string{jane, bob}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("draft team = %#v; want %#v", got, want)
	}
}

func TestPush_MergesWithExistingAnySlice(t *testing.T) {
	t.Parallel()

	s, _, draft := newTestSync(nil)
	draft.Merge(map[string]any{"risks": []any{"churn"}})
	s.Push(risks, extract.Value{Text: "churn", Items: []string{"churn", "scope creep"}})

	if got := draft.Draft()["risks"]; !reflect.DeepEqual(got, []string{"churn", "scope creep"}) {
		t.Errorf("draft risks = %#v", got)
	}
}

func TestWatch_ReportsOnlyExternalEdits(t *testing.T) {
	t.Parallel()

	s, conv, _ := newTestSync(map[string]string{"sponsor": "Jane Doe"})
	var edits []recordedEdit
	s.Watch(func(field, value string) {
		if s.Internal() {
			t.Error("edit callback ran during an internal write")
		}
		edits = append(edits, recordedEdit{field, value})
	})

	// Own writes are suppressed.
	s.Push(sponsor, extract.Value{Text: "Janet Doe"})
	s.Ask("risks")
	if len(edits) != 0 {
		t.Fatalf("own writes reported as edits: %+v", edits)
	}

	// A manual UI edit is reported once.
	conv.Dispatch(Action{Type: ActionCapture, FieldID: "sponsor", Value: "Bob Smith"})
	want := []recordedEdit{{"sponsor", "Bob Smith"}}
	if !reflect.DeepEqual(edits, want) {
		t.Errorf("edits = %+v; want %+v", edits, want)
	}

	// A status-only change is not an edit.
	conv.Dispatch(Action{Type: ActionValidate, FieldID: "sponsor"})
	if len(edits) != 1 {
		t.Errorf("status change reported: %+v", edits)
	}

	s.Close()
	s.Close()
	conv.Dispatch(Action{Type: ActionCapture, FieldID: "sponsor", Value: "Carol"})
	if len(edits) != 1 {
		t.Errorf("edit reported after Close: %+v", edits)
	}
}

func TestSync_NilStores(t *testing.T) {
	t.Parallel()

	s := NewSync(schema, nil, nil)
	s.Push(sponsor, extract.Value{Text: "Jane"})
	s.Ask("sponsor")
	s.Watch(func(string, string) {})
	s.Close()
}

func TestMemConversation_Unsubscribe(t *testing.T) {
	t.Parallel()

	conv := NewMemConversation(nil)
	calls := 0
	unsub := conv.Subscribe(func(map[string]FieldEntry) { calls++ })
	conv.Dispatch(Action{Type: ActionAsk, FieldID: "sponsor"})
	unsub()
	conv.Dispatch(Action{Type: ActionAsk, FieldID: "risks"})

	if calls != 1 {
		t.Errorf("calls = %d; want 1", calls)
	}
	if e := conv.Snapshot()["sponsor"]; e.Status != StatusAsked {
		t.Errorf("status = %q; want asked", e.Status)
	}
}

func TestAppendUnique(t *testing.T) {
	t.Parallel()

	in := []string{"a"}
	got := AppendUnique(in, "b", "a", "b")
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("AppendUnique = %v", got)
	}
	if len(in) != 1 {
		t.Errorf("input modified: %v", in)
	}
}
