package session

import (
	"sync"

	"github.com/MrWong99/charterline/pkg/charter"
)

// EventType identifies a controller event.
type EventType string

const (
	// EventStateChanged is sent after every state transition.
	EventStateChanged EventType = "state_changed"

	// EventFieldCaptured is sent when a field value is finalised by the
	// voice session.
	EventFieldCaptured EventType = "field_captured"

	// EventCompleted is sent once when the session reaches
	// [charter.StepCompleted].
	EventCompleted EventType = "completed"

	// EventExternalEdit is sent when a field was changed outside the voice
	// session, for example through a form.
	EventExternalEdit EventType = "external_edit"
)

// Event is delivered to listeners after the controller has released its
// lock, so a listener may call back into the controller.
type Event struct {
	Type EventType

	// State is the snapshot at the time of the event.
	State charter.SessionState

	// Field is set for [EventFieldCaptured] and [EventExternalEdit]. An
	// external edit with an empty Value means the field was cleared.
	Field *charter.CapturedFieldValue
}

// Listener receives controller events. Listeners run synchronously on the
// goroutine that triggered the event.
type Listener func(Event)

// bus is a registry of listeners. It is safe for concurrent use.
type bus struct {
	mu        sync.Mutex
	listeners map[uint64]Listener
	order     []uint64
	nextID    uint64
}

func (b *bus) subscribe(l Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners == nil {
		b.listeners = make(map[uint64]Listener)
	}
	b.nextID++
	id := b.nextID
	b.listeners[id] = l
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// publish delivers events in order to a snapshot of the current listeners.
func (b *bus) publish(events []Event) {
	if len(events) == 0 {
		return
	}
	b.mu.Lock()
	ls := make([]Listener, 0, len(b.order))
	for _, id := range b.order {
		ls = append(ls, b.listeners[id])
	}
	b.mu.Unlock()

	for _, e := range events {
		for _, l := range ls {
			l(e)
		}
	}
}

func (b *bus) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = nil
	b.order = nil
}
