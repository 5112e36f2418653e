package session

import (
	"context"
	"strings"
	"time"

	"github.com/MrWong99/charterline/internal/observe"
	"github.com/MrWong99/charterline/internal/voice/classify"
	"github.com/MrWong99/charterline/internal/voice/extract"
	"github.com/MrWong99/charterline/internal/voice/reformulate"
	"github.com/MrWong99/charterline/pkg/charter"
)

// ProcessTranscript handles one finished line of transcript text. Lines
// arriving before [Controller.Start], after completion or after
// [Controller.Destroy] are dropped.
func (c *Controller) ProcessTranscript(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	c.mu.Lock()
	defer c.unlock()

	if !c.ready() || !c.processing() {
		c.logger.Debug("session: transcript dropped", "step", string(c.state.Step))
		return
	}

	begin := time.Now()
	ctx, span := observe.StartSessionSpan(context.Background(), "session.transcript", c.sessionID, c.nav.AskingID())
	defer span.End()

	kind := c.process(ctx, text)
	span.SetAttributes(observe.Attr("transcript.kind", kind))
	c.metrics.RecordTranscript(ctx, kind, time.Since(begin).Seconds())
}

// processing reports whether the current step accepts transcripts.
func (c *Controller) processing() bool {
	switch c.state.Step {
	case charter.StepAsking, charter.StepListening, charter.StepConfirming, charter.StepNavigating:
		return true
	}
	return false
}

func (c *Controller) process(ctx context.Context, text string) string {
	log := observe.Logger(ctx, c.logger)

	// A pending long-form answer sees every line first.
	if out := c.buf.Observe(text); out.Captured || out.Consumed {
		c.finalise(ctx, out)
		if out.Consumed {
			return string(classify.KindRewrite)
		}
		if c.state.Step == charter.StepCompleted {
			return string(classify.KindAgentEcho)
		}
	}

	asking := c.nav.AskingID()
	r := c.classifier.Classify(text, classify.Context{
		Schema:         c.schema,
		AskingFieldID:  asking,
		AskingCaptured: c.state.Captured.Has(asking),
		LastPromptAt:   c.lastPromptAt,
		Now:            c.now(),
		Cooldown:       c.cooldown,
	})
	log.Debug("session: classified",
		"kind", string(r.Kind),
		"rule", r.Rule,
		"command", string(r.Command),
		"field", r.FieldID,
		"asking", asking,
	)

	switch r.Kind {
	case classify.KindAgentEcho:
		if c.state.Step == charter.StepAsking {
			c.transition(charter.StepListening)
		}
	case classify.KindRewrite:
		c.rewrite(ctx, r, text)
	case classify.KindNavigation:
		c.navigate(ctx, r)
	case classify.KindCorrection:
		c.correct(ctx, r)
	case classify.KindValue:
		c.value(ctx, r)
	}
	return string(r.Kind)
}

// finalise applies a buffer outcome: a captured value is stored and the
// cursor advanced, a held partial rewrite moves the session to confirming.
func (c *Controller) finalise(ctx context.Context, out reformulate.Outcome) {
	if !out.Captured {
		if out.Consumed {
			c.transition(charter.StepConfirming)
		}
		return
	}
	observe.Logger(ctx, c.logger).Info("session: reformulation finalised",
		"field", out.FieldID,
		"reason", string(out.Reason),
	)
	c.captureText(ctx, out.FieldID, out.Value, string(out.Reason))
	c.advance(ctx)
}

// rewrite handles a marker that arrived with nothing pending in the buffer.
// It is attributed to the asking field when that field is long-form.
func (c *Controller) rewrite(ctx context.Context, r classify.Result, text string) {
	f, ok := c.nav.Asking()
	if !ok || f.Kind() != charter.TypeLongForm {
		observe.Logger(ctx, c.logger).Debug("session: rewrite marker without long-form field ignored", "asking", c.nav.AskingID())
		return
	}
	c.finalise(ctx, c.buf.Offer(f.ID, r.Value, c.classifier.HasTransition(text)))
}

func (c *Controller) navigate(ctx context.Context, r classify.Result) {
	log := observe.Logger(ctx, c.logger)
	if r.Command == classify.CommandGoTo && r.FieldID == "" {
		log.Info("session: navigation to unknown field ignored", "rule", r.Rule)
		return
	}
	c.metrics.RecordNavigation(ctx, string(r.Command))

	switch r.Command {
	case classify.CommandDone:
		c.complete(ctx)
		return
	case classify.CommandReview:
		c.prompt(ctx, "review", reviewPrompt(c.schema, c.state.Captured))
		return
	case classify.CommandKeep:
		log.Info("session: value kept", "field", c.nav.AskingID())
		c.advance(ctx)
		return
	}

	c.flushPending(ctx)
	c.transition(charter.StepNavigating)
	from := c.nav.AskingID()
	switch r.Command {
	case classify.CommandBack:
		c.nav.Previous()
	case classify.CommandGoTo:
		c.nav.GoTo(r.FieldID)
	case classify.CommandSkip:
		if _, ok := c.nav.Skip(); !ok {
			if f, ok := c.nav.Current(); ok && !f.Required {
				log.Info("session: skipped last field", "field", from)
				c.settle(ctx)
				return
			}
		}
	}
	log.Info("session: navigated", "command", string(r.Command), "from", from, "to", c.nav.AskingID())
	c.sync.Ask(c.nav.AskingID())
	c.transition(charter.StepAsking)
}

func (c *Controller) correct(ctx context.Context, r classify.Result) {
	f, ok := c.schema.Field(r.FieldID)
	if !ok {
		observe.Logger(ctx, c.logger).Info("session: correction to unknown field ignored", "rule", r.Rule)
		return
	}
	if id, _ := c.buf.Pending(); id == f.ID {
		c.buf.Clear()
	} else {
		c.flushPending(ctx)
	}
	c.captureValue(ctx, f, c.extractValue(f, r.Value), "correction")
	c.advance(ctx)
}

func (c *Controller) value(ctx context.Context, r classify.Result) {
	f, ok := c.schema.Field(r.FieldID)
	if !ok {
		observe.Logger(ctx, c.logger).Debug("session: value with no asking field ignored")
		return
	}
	if f.Kind() == charter.TypeLongForm {
		out := c.buf.Accumulate(f.ID, c.extractor.Clean(r.Value, f))
		if out.Captured {
			c.captureText(ctx, out.FieldID, out.Value, string(out.Reason))
		}
		c.transition(charter.StepConfirming)
		return
	}
	c.captureValue(ctx, f, c.extractor.Extract(r.Value, f), "value")
	c.advance(ctx)
}

func (c *Controller) extractValue(f charter.FieldSpec, raw string) extract.Value {
	if f.Kind() == charter.TypeLongForm {
		return extract.Value{Text: c.extractor.Clean(raw, f)}
	}
	return c.extractor.Extract(raw, f)
}

// captureValue stores v for f, writes it through the capture sync and
// queues a field_captured event.
func (c *Controller) captureValue(ctx context.Context, f charter.FieldSpec, v extract.Value, source string) {
	cv := charter.CapturedFieldValue{FieldID: f.ID, Value: v.Text, ConfirmedAt: c.now()}
	c.state.Captured = c.state.Captured.With(cv)
	c.sync.Push(f, v)
	c.metrics.RecordCapture(ctx, f.ID, source)
	c.events = append(c.events, Event{Type: EventFieldCaptured, State: c.state, Field: &cv})
	observe.Logger(ctx, c.logger).Info("session: field captured", "field", f.ID, "source", source)
}

func (c *Controller) captureText(ctx context.Context, fieldID, text, source string) {
	f, ok := c.schema.Field(fieldID)
	if !ok {
		return
	}
	c.captureValue(ctx, f, extract.Value{Text: text}, source)
}

// flushPending captures whatever the buffer holds.
func (c *Controller) flushPending(ctx context.Context) {
	if id, v, ok := c.buf.Flush(); ok {
		c.captureText(ctx, id, v, string(reformulate.ReasonFlush))
	}
}

// advance moves the cursor after a capture. While the asking field is still
// unanswered the cursor stays put. Otherwise the next unfilled field becomes
// the asking field; when none remains the session settles.
func (c *Controller) advance(ctx context.Context) {
	if id := c.nav.AskingID(); id != "" && !c.state.Captured.Has(id) {
		c.transition(c.restingStep())
		return
	}
	if f, ok := c.nav.Advance(); ok {
		c.sync.Ask(f.ID)
		c.transition(charter.StepAsking)
		return
	}
	c.settle(ctx)
}

// settle runs once the cursor has passed the last field: the first missing
// required field is asked explicitly, and with nothing missing the session
// completes.
func (c *Controller) settle(ctx context.Context) {
	if f, ok := c.nav.FirstMissingRequired(); ok {
		observe.Logger(ctx, c.logger).Info("session: returning to missing required field", "field", f.ID)
		c.nav.GoTo(f.ID)
		c.sync.Ask(f.ID)
		c.transition(charter.StepAsking)
		return
	}
	c.complete(ctx)
}

// restingStep is the step to show when the cursor did not move.
func (c *Controller) restingStep() charter.Step {
	if id, _ := c.buf.Pending(); id != "" {
		return charter.StepConfirming
	}
	if c.state.Step == charter.StepListening {
		return charter.StepListening
	}
	return charter.StepAsking
}

func (c *Controller) complete(ctx context.Context) {
	if c.state.Step == charter.StepCompleted {
		return
	}
	c.flushPending(ctx)
	c.transition(charter.StepCompleted)
	c.events = append(c.events, Event{Type: EventCompleted, State: c.state})
	c.prompt(ctx, "complete", completionPrompt(c.schema, c.state.Captured))
	observe.Logger(ctx, c.logger).Info("session: completed",
		"session_id", c.sessionID,
		"captured", c.state.Captured.Len(),
	)
}

// onExternalEdit applies a field change made outside the session. It runs
// on the goroutine that wrote the conversation store.
func (c *Controller) onExternalEdit(fieldID, value string) {
	c.mu.Lock()
	defer c.unlock()

	if !c.ready() {
		return
	}
	f, ok := c.schema.Field(fieldID)
	if !ok {
		c.logger.Debug("session: external edit to unknown field ignored", "field", fieldID)
		return
	}
	ctx := context.Background()
	c.metrics.RecordExternalEdit(ctx, fieldID)

	cv := charter.CapturedFieldValue{FieldID: fieldID, Value: value, ConfirmedAt: c.now()}
	if value == "" {
		c.state.Captured = c.state.Captured.Without(fieldID)
	} else {
		c.state.Captured = c.state.Captured.With(cv)
	}
	c.transition(c.state.Step)
	c.events = append(c.events, Event{Type: EventExternalEdit, State: c.state, Field: &cv})
	c.logger.Info("session: external edit", "field", fieldID, "cleared", value == "")

	if c.processing() {
		c.prompt(ctx, "external_edit", externalEditPrompt(f, value))
	}
}
