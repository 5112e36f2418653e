// Package session implements the voice capture session controller.
//
// A [Controller] turns a stream of transcript lines into ordered updates of a
// structured document. The transcript channel carries both the user's speech
// and the spoken agent's replies; every line is routed through the
// [classify.Classifier], values are cleaned by the [extract.Extractor],
// long-form answers wait in the [reformulate.Buffer] for the agent's rewrite,
// captures are written through [capture.Sync], and the
// [navigator.Navigator] moves the cursor.
//
// The controller is safe for concurrent use. Transcripts are processed one at
// a time in arrival order under a single mutex; listeners are notified after
// the mutex has been released. Prompts sent to the agent are fire-and-forget:
// the controller never waits for the spoken reply, which arrives later as
// another transcript.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/charterline/internal/observe"
	"github.com/MrWong99/charterline/internal/voice/capture"
	"github.com/MrWong99/charterline/internal/voice/classify"
	"github.com/MrWong99/charterline/internal/voice/extract"
	"github.com/MrWong99/charterline/internal/voice/navigator"
	"github.com/MrWong99/charterline/internal/voice/reformulate"
	"github.com/MrWong99/charterline/pkg/charter"
	"github.com/MrWong99/charterline/pkg/realtime"
)

// DefaultCooldown is the post-prompt window during which long or
// punctuation-heavy transcripts are treated as agent echo.
const DefaultCooldown = 4 * time.Second

// ErrNoTransport is reported by [Controller.Initialize] when no transport is
// supplied.
var ErrNoTransport = errors.New("session: no transport")

// Option is a functional option for configuring a [Controller].
type Option func(*Controller)

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock sets the clock used for capture timestamps and the cooldown
// window. Default: [time.Now].
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMetrics sets the metric instruments. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithCooldown sets the post-prompt echo window. Zero disables it.
// Default: [DefaultCooldown].
func WithCooldown(d time.Duration) Option {
	return func(c *Controller) { c.cooldown = d }
}

// WithSettings sets the agent session configuration sent on
// [Controller.Initialize]. Empty instructions are replaced by a prompt
// generated from the schema.
func WithSettings(s realtime.SessionSettings) Option {
	return func(c *Controller) { c.settings = s }
}

// WithPatterns replaces the classifier pattern table.
func WithPatterns(p classify.Patterns) Option {
	return func(c *Controller) { c.classifier = classify.New(classify.WithPatterns(p)) }
}

// WithClassifier replaces the classifier.
func WithClassifier(cl *classify.Classifier) Option {
	return func(c *Controller) {
		if cl != nil {
			c.classifier = cl
		}
	}
}

// WithExtractor replaces the value extractor. Default: an [extract.Extractor]
// using the controller clock.
func WithExtractor(e *extract.Extractor) Option {
	return func(c *Controller) { c.extractor = e }
}

// WithStores sets the external conversation and draft stores. Either may be
// nil.
func WithStores(conv capture.ConversationStore, draft capture.DraftStore) Option {
	return func(c *Controller) {
		c.conv = conv
		c.draft = draft
	}
}

// WithSessionID sets the id reported in traces. Default: derived from the
// construction time.
func WithSessionID(id string) Option {
	return func(c *Controller) { c.sessionID = id }
}

// Controller is the voice capture state machine. Create one with [New].
type Controller struct {
	logger     *slog.Logger
	now        func() time.Time
	metrics    *observe.Metrics
	settings   realtime.SessionSettings
	classifier *classify.Classifier
	extractor  *extract.Extractor
	conv       capture.ConversationStore
	draft      capture.DraftStore
	sessionID  string

	bus bus

	mu           sync.Mutex
	cooldown     time.Duration
	schema       charter.Schema
	transport    realtime.Transport
	nav          *navigator.Navigator
	buf          *reformulate.Buffer
	sync         *capture.Sync
	state        charter.SessionState
	lastPromptAt time.Time
	active       bool
	destroyed    bool

	// events queued while mu is held; published by unlock.
	events []Event
}

// New creates an idle Controller. Call [Controller.Initialize] before use.
func New(opts ...Option) *Controller {
	c := &Controller{
		logger:     slog.Default(),
		now:        time.Now,
		cooldown:   DefaultCooldown,
		classifier: classify.New(),
		state:      charter.SessionState{Step: charter.StepIdle},
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	if c.extractor == nil {
		c.extractor = extract.New(extract.WithClock(c.now))
	}
	if c.sessionID == "" {
		c.sessionID = "session-" + c.now().UTC().Format("20060102T150405Z")
	}
	return c
}

// SessionID returns the id reported in traces.
func (c *Controller) SessionID() string { return c.sessionID }

// Subscribe registers a listener and returns a function that removes it.
func (c *Controller) Subscribe(l Listener) (unsubscribe func()) {
	if l == nil {
		return func() {}
	}
	return c.bus.subscribe(l)
}

// State returns the current state snapshot.
func (c *Controller) State() charter.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ready reports whether the controller has been initialised and not torn
// down.
func (c *Controller) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready()
}

// SetCooldown changes the post-prompt echo window of a running controller.
func (c *Controller) SetCooldown(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cooldown = d
}

// Initialize prepares a session over schema. existing seeds the captured
// values; values already present in the conversation store are added for
// fields existing does not cover. The agent session is configured over
// transport.
//
// On failure the controller returns to [charter.StepIdle] with the error in
// the emitted state, and Initialize returns false. Any previous session is
// torn down first.
func (c *Controller) Initialize(schema charter.Schema, transport realtime.Transport, existing []charter.CapturedFieldValue) bool {
	c.mu.Lock()
	defer c.unlock()

	if c.destroyed {
		c.logger.Warn("session: initialize after destroy ignored")
		return false
	}
	c.teardown()
	c.setState(charter.SessionState{Step: charter.StepInitializing})

	if err := c.configure(schema, transport); err != nil {
		c.logger.Error("session: initialize failed", "session_id", c.sessionID, "err", err)
		c.setState(charter.SessionState{Step: charter.StepIdle, Error: err.Error()})
		return false
	}

	c.schema = schema
	c.transport = transport
	c.nav = navigator.New(schema, c.lookup, prompter{c})
	c.buf = reformulate.New(c.classifier, schema)
	c.sync = capture.NewSync(schema, c.conv, c.draft, capture.WithLogger(c.logger))
	c.active = true
	c.metrics.ActiveSessions.Add(context.Background(), 1)

	captured := c.seed(schema, existing)
	c.setState(charter.SessionState{
		Step:           charter.StepIdle,
		CurrentFieldID: schema[0].ID,
		Captured:       captured,
	})
	c.sync.Watch(c.onExternalEdit)

	c.logger.Info("session: initialized",
		"session_id", c.sessionID,
		"fields", len(schema),
		"seeded", captured.Len(),
	)
	return true
}

// configure validates the inputs and sends the agent session configuration.
func (c *Controller) configure(schema charter.Schema, transport realtime.Transport) error {
	if err := schema.Validate(); err != nil {
		return fmt.Errorf("session: invalid schema: %w", err)
	}
	if transport == nil {
		return ErrNoTransport
	}
	settings := c.settings
	if settings.Instructions == "" {
		settings.Instructions = defaultInstructions(schema)
	}
	msg, err := realtime.SessionUpdate(settings)
	if err != nil {
		return fmt.Errorf("session: configure agent: %w", err)
	}
	if err := transport.Send(msg); err != nil {
		c.metrics.RecordSendFailure(context.Background(), realtime.TypeSessionUpdate)
		return fmt.Errorf("session: configure agent: %w", err)
	}
	return nil
}

// seed merges the caller's values with the conversation store snapshot.
// Values for fields outside schema and empty values are dropped.
func (c *Controller) seed(schema charter.Schema, existing []charter.CapturedFieldValue) charter.CapturedValues {
	var vals []charter.CapturedFieldValue
	have := make(map[string]struct{}, len(existing))
	for _, v := range existing {
		if v.Value == "" || schema.Index(v.FieldID) < 0 {
			continue
		}
		if v.ConfirmedAt.IsZero() {
			v.ConfirmedAt = c.now()
		}
		vals = append(vals, v)
		have[v.FieldID] = struct{}{}
	}
	if c.conv != nil {
		snap := c.conv.Snapshot()
		for _, f := range schema {
			e, ok := snap[f.ID]
			if _, dup := have[f.ID]; dup || !ok || e.Value == "" {
				continue
			}
			vals = append(vals, charter.CapturedFieldValue{FieldID: f.ID, Value: e.Value, ConfirmedAt: c.now()})
		}
	}
	return charter.NewCapturedValues(vals...)
}

// Start asks the agent about the first field. It returns false when the
// controller is not initialised or the session has already completed.
func (c *Controller) Start() bool {
	c.mu.Lock()
	defer c.unlock()

	if !c.ready() {
		c.logger.Warn("session: start without initialize")
		return false
	}
	if c.state.Step == charter.StepCompleted {
		return false
	}
	if !c.nav.Start() {
		return false
	}
	c.sync.Ask(c.nav.AskingID())
	c.transition(charter.StepAsking)
	c.logger.Info("session: started", "session_id", c.sessionID, "field", c.nav.AskingID())
	return true
}

// Complete finishes the session from any state. A pending long-form answer
// is captured first. No transcript is processed afterwards.
func (c *Controller) Complete() bool {
	c.mu.Lock()
	defer c.unlock()

	if !c.ready() {
		return false
	}
	c.complete(context.Background())
	return true
}

// Reset abandons the session and returns to an uninitialised idle state.
// Listeners stay registered.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.unlock()

	c.teardown()
	c.setState(charter.SessionState{Step: charter.StepIdle})
}

// Destroy tears the session down and makes the controller inert: later
// calls are ignored and listeners are dropped without a final event.
func (c *Controller) Destroy() {
	c.mu.Lock()
	c.teardown()
	c.destroyed = true
	c.state = charter.SessionState{Step: charter.StepIdle}
	c.events = nil
	c.mu.Unlock()
	c.bus.clear()
}

func (c *Controller) teardown() {
	if c.sync != nil {
		c.sync.Close()
	}
	if c.buf != nil {
		c.buf.Clear()
	}
	if c.active {
		c.metrics.ActiveSessions.Add(context.Background(), -1)
	}
	c.schema = nil
	c.transport = nil
	c.nav = nil
	c.buf = nil
	c.sync = nil
	c.lastPromptAt = time.Time{}
	c.active = false
}

// lookup reads the live captured map; it is only called with mu held.
func (c *Controller) lookup(fieldID string) (charter.CapturedFieldValue, bool) {
	return c.state.Captured.Get(fieldID)
}

func (c *Controller) ready() bool {
	return !c.destroyed && c.schema != nil && c.transport != nil
}

// unlock releases mu and publishes the events queued while it was held.
func (c *Controller) unlock() {
	evs := c.events
	c.events = nil
	c.mu.Unlock()
	c.bus.publish(evs)
}

func (c *Controller) setState(s charter.SessionState) {
	c.state = s
	c.events = append(c.events, Event{Type: EventStateChanged, State: s})
}

// transition derives a new state from the cursor and buffer.
func (c *Controller) transition(step charter.Step) {
	s := c.state
	s.Step = step
	s.Error = ""
	s.PendingValue = ""
	if c.nav != nil {
		s.CurrentFieldIndex = min(max(c.nav.Index(), 0), len(c.schema)-1)
		s.CurrentFieldID = c.schema[s.CurrentFieldIndex].ID
	}
	if c.buf != nil {
		_, s.PendingValue = c.buf.Pending()
	}
	c.setState(s)
}
