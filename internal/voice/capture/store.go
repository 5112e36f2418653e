// Package capture writes finalised field values into the external document
// stores and watches those stores for edits made outside the voice session.
//
// Two narrow store contracts are consumed: a [ConversationStore] that accepts
// ASK, CAPTURE and VALIDATE actions and can be read as a snapshot keyed by
// field id, and a [DraftStore] that accepts merge-by-key patches. In-memory
// implementations of both are provided for tests and the CLI.
package capture

// ActionType names a conversation store action.
type ActionType string

const (
	// ActionAsk marks a field as currently being asked about.
	ActionAsk ActionType = "ASK"

	// ActionCapture sets a field's value.
	ActionCapture ActionType = "CAPTURE"

	// ActionValidate marks a field's value as confirmed.
	ActionValidate ActionType = "VALIDATE"
)

// Action is dispatched to a [ConversationStore].
type Action struct {
	Type    ActionType
	FieldID string

	// Value is set for [ActionCapture] only.
	Value string
}

// FieldStatus is the lifecycle of a field inside the conversation store.
type FieldStatus string

const (
	StatusAsked     FieldStatus = "asked"
	StatusCaptured  FieldStatus = "captured"
	StatusValidated FieldStatus = "validated"
)

// FieldEntry is one field of a conversation store snapshot.
type FieldEntry struct {
	Value  string      `json:"value"`
	Status FieldStatus `json:"status,omitempty"`
}

// ConversationStore is the dispatchable per-session store shared with the UI.
//
// Implementations must be safe for concurrent use. Subscribers may be
// invoked synchronously from inside Dispatch.
type ConversationStore interface {
	// Dispatch applies a to the store.
	Dispatch(a Action)

	// Snapshot returns a copy of the current field entries keyed by field id.
	Snapshot() map[string]FieldEntry

	// Subscribe registers fn to be called with a fresh snapshot after every
	// change. The returned function removes the subscription.
	Subscribe(fn func(snapshot map[string]FieldEntry)) (unsubscribe func())
}

// DraftStore is the document draft shared with the UI.
//
// Implementations must be safe for concurrent use.
type DraftStore interface {
	// Draft returns a copy of the current draft keyed by field id.
	Draft() map[string]any

	// Merge sets every key of patch on the draft, leaving other keys intact.
	Merge(patch map[string]any)
}
