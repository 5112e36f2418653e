// Package classify decides what an arrived line of transcript text means for
// a voice capture session.
//
// The transcript channel carries both the user's speech and the agent's own
// spoken replies, so every line is routed through an ordered pipeline:
//
//  1. reformulation-capture marker
//  2. navigation and correction commands
//  3. filler noise
//  4. agent echo (phrase patterns and the acknowledgment-plus-question rule)
//  5. the post-prompt cooldown safeguard
//  6. bare command words (skip, done, review, keep)
//  7. a plain value for the field currently being asked about
//
// Commands are checked before noise and echo so that a genuine "go back"
// spoken right after an agent prompt survives the cooldown heuristic. All
// phrase sets live in a replaceable [Patterns] table.
package classify

import (
	"strings"
	"time"

	"github.com/MrWong99/charterline/pkg/charter"
)

// Kind is the category assigned to a transcript line.
type Kind string

const (
	KindNoise      Kind = "noise"
	KindAgentEcho  Kind = "agent_echo"
	KindNavigation Kind = "navigation"
	KindCorrection Kind = "correction"
	KindRewrite    Kind = "rewrite"
	KindValue      Kind = "value"
)

// Command identifies a navigation command.
type Command string

const (
	CommandNone   Command = ""
	CommandBack   Command = "back"
	CommandGoTo   Command = "goto"
	CommandSkip   Command = "skip"
	CommandDone   Command = "done"
	CommandReview Command = "review"
	CommandKeep   Command = "keep"
)

// Context is the session timing and cursor state a classification depends on.
type Context struct {
	// Schema is the ordered field schema of the session.
	Schema charter.Schema

	// AskingFieldID is the field the agent is currently expected to be asking
	// about. Plain values are attributed to it.
	AskingFieldID string

	// AskingCaptured reports whether AskingFieldID already has a value, which
	// enables the "keep it" command.
	AskingCaptured bool

	// LastPromptAt is when the controller last asked the agent to speak.
	LastPromptAt time.Time

	// Now is the time the transcript arrived.
	Now time.Time

	// Cooldown is the window after LastPromptAt during which only short,
	// simple text is accepted as user speech. Zero disables the safeguard.
	Cooldown time.Duration
}

// InCooldown reports whether Now falls inside the post-prompt window.
func (c Context) InCooldown() bool {
	if c.Cooldown <= 0 || c.LastPromptAt.IsZero() {
		return false
	}
	elapsed := c.Now.Sub(c.LastPromptAt)
	return elapsed >= 0 && elapsed < c.Cooldown
}

// Result is the outcome of [Classifier.Classify].
type Result struct {
	Kind    Kind
	Command Command

	// FieldID is the target field for corrections, go-to navigation and
	// values. It is empty when a command names a field that does not exist;
	// callers ignore such commands.
	FieldID string

	// Value is the raw (uncleaned) value text for corrections and values, or
	// the rewritten text for a rewrite marker.
	Value string

	// Rule names the pattern that decided the classification.
	Rule string
}

// Classifier routes transcript text. It holds no session state and is safe
// for concurrent use.
type Classifier struct {
	patterns Patterns
	matcher  *FieldMatcher
	noise    map[string]struct{}
	ackWords map[string]struct{}
}

// Option configures a [Classifier].
type Option func(*Classifier)

// WithPatterns replaces the default pattern table.
func WithPatterns(p Patterns) Option {
	return func(c *Classifier) { c.patterns = p }
}

// WithMatcher replaces the default field matcher.
func WithMatcher(m *FieldMatcher) Option {
	return func(c *Classifier) { c.matcher = m }
}

// New returns a Classifier using [DefaultPatterns] unless overridden.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		patterns: DefaultPatterns(),
		matcher:  NewFieldMatcher(),
	}
	for _, o := range opts {
		o(c)
	}
	c.noise = toSet(c.patterns.Noise)
	c.ackWords = toSet(c.patterns.AckWords)
	return c
}

// Matcher returns the field matcher used for field mentions.
func (c *Classifier) Matcher() *FieldMatcher { return c.matcher }

// Classify assigns a category to text. It has no side effects.
func (c *Classifier) Classify(text string, ctx Context) Result {
	text = strings.TrimSpace(text)

	// 1. Reformulation marker.
	if rewritten, name, ok := c.matchRewrite(text); ok {
		return Result{Kind: KindRewrite, Value: rewritten, Rule: name}
	}

	// 2. Corrections, then navigation. A correction naming the asking field
	// is an answer; it skips navigation and continues as a value.
	r, answer, ok := c.correction(text, ctx)
	if ok {
		return r
	}
	if !answer {
		if r, ok := c.navigation(text, ctx.Schema); ok {
			return r
		}
	}

	// 3. Noise.
	if c.IsNoise(text) {
		return Result{Kind: KindNoise, Rule: "noise"}
	}

	// 4. Agent echo.
	if name, ok := c.echo(text); ok {
		return Result{Kind: KindAgentEcho, Rule: name}
	}

	// 5. Cooldown safeguard.
	if ctx.InCooldown() && c.looksComplex(text) {
		return Result{Kind: KindAgentEcho, Rule: "cooldown"}
	}

	if answer {
		return Result{Kind: KindValue, FieldID: ctx.AskingFieldID, Value: r.Value, Rule: r.Rule}
	}

	// 6. Bare command words.
	if r, ok := c.commandWord(text, ctx); ok {
		return r
	}

	// 7. Value.
	return Result{Kind: KindValue, FieldID: ctx.AskingFieldID, Value: text, Rule: "value"}
}

// MatchRewrite returns the rewritten text following an agent reformulation
// marker, if text contains one.
func (c *Classifier) MatchRewrite(text string) (string, bool) {
	rewritten, _, ok := c.matchRewrite(text)
	return rewritten, ok
}

func (c *Classifier) matchRewrite(text string) (string, string, bool) {
	for _, r := range c.patterns.Rewrite {
		m := r.Regex.FindStringSubmatch(text)
		if m == nil || len(m) < 2 {
			continue
		}
		if rewritten := strings.TrimSpace(m[1]); rewritten != "" {
			return rewritten, r.Name, true
		}
	}
	return "", "", false
}

// HasTransition reports whether text contains an agent transition phrase
// such as "moving on" or "let's continue".
func (c *Classifier) HasTransition(text string) bool {
	_, ok := firstMatch(c.patterns.Transition, text)
	return ok
}

// MovedOn reports whether the agent's speech shows it has left fieldID: it
// contains a transition phrase, or it is a question naming a different field
// and not fieldID itself.
func (c *Classifier) MovedOn(text, fieldID string, schema charter.Schema) bool {
	if c.HasTransition(text) {
		return true
	}
	if !strings.Contains(text, "?") {
		return false
	}
	if f, ok := schema.Field(fieldID); ok && c.matcher.Mentions(text, f) {
		return false
	}
	for _, f := range schema {
		if f.ID != fieldID && c.matcher.Mentions(text, f) {
			return true
		}
	}
	return false
}

// IsNoise reports whether text is an allow-listed filler phrase or carries no
// words at all (for example an ellipsis).
func (c *Classifier) IsNoise(text string) bool {
	norm := normaliseText(text)
	if norm == "" {
		return true
	}
	_, ok := c.noise[norm]
	return ok
}

// Interrupts reports whether text is the user speaking over a held rewrite
// for fieldID rather than the agent continuing it: filler, a navigation or
// command word, or a correction naming any field.
func (c *Classifier) Interrupts(text, fieldID string, schema charter.Schema) bool {
	text = strings.TrimSpace(text)
	if c.IsNoise(text) {
		return true
	}
	ctx := Context{Schema: schema, AskingFieldID: fieldID}
	if _, answer, ok := c.correction(text, ctx); ok || answer {
		return true
	}
	if _, ok := c.navigation(text, schema); ok {
		return true
	}
	_, ok := c.commandWord(text, ctx)
	return ok
}

// correction matches the correction table. When the mentioned field is the
// asking field it returns answer=true with the value in r and ok=false.
func (c *Classifier) correction(text string, ctx Context) (r Result, answer, ok bool) {
	question := strings.Contains(text, "?")
	for _, rule := range c.patterns.Corrections {
		if question && !rule.Explicit {
			continue
		}
		m := rule.Regex.FindStringSubmatch(text)
		if m == nil || rule.FieldGroup >= len(m) || rule.ValueGroup >= len(m) {
			continue
		}
		value := strings.TrimSpace(m[rule.ValueGroup])
		f, found := c.resolveCorrection(rule, m[rule.FieldGroup], ctx.Schema)
		switch {
		case found && f.ID == ctx.AskingFieldID:
			return Result{Value: value, Rule: rule.Name}, true, false
		case found:
			return Result{Kind: KindCorrection, FieldID: f.ID, Value: value, Rule: rule.Name}, false, true
		case rule.Explicit:
			return Result{Kind: KindCorrection, Value: value, Rule: rule.Name}, false, true
		}
	}
	return Result{}, false, false
}

// resolveCorrection resolves the field named by a correction. Implicit rules
// match ordinary sentences, so partial field names do not count for them.
func (c *Classifier) resolveCorrection(rule CorrectionRule, mention string, schema charter.Schema) (charter.FieldSpec, bool) {
	if rule.Explicit {
		return c.matcher.Resolve(mention, schema)
	}
	return c.matcher.resolveWhole(mention, schema)
}

func (c *Classifier) navigation(text string, schema charter.Schema) (Result, bool) {
	if m, name, ok := firstSubmatch(c.patterns.BackTo, text); ok {
		return c.goTo(m, name, schema), true
	}
	if name, ok := firstMatch(c.patterns.Back, text); ok {
		return Result{Kind: KindNavigation, Command: CommandBack, Rule: name}, true
	}
	if m, name, ok := firstSubmatch(c.patterns.GoTo, text); ok {
		return c.goTo(m, name, schema), true
	}
	return Result{}, false
}

func (c *Classifier) goTo(m []string, rule string, schema charter.Schema) Result {
	r := Result{Kind: KindNavigation, Command: CommandGoTo, Rule: rule}
	if len(m) > 1 {
		if f, ok := c.matcher.Resolve(m[1], schema); ok {
			r.FieldID = f.ID
		}
	}
	return r
}

func (c *Classifier) echo(text string) (string, bool) {
	if name, ok := firstMatch(c.patterns.Echo, text); ok {
		return name, true
	}
	if strings.Contains(text, "?") {
		words := strings.Fields(normaliseText(text))
		if len(words) > 0 {
			if _, ok := c.ackWords[words[0]]; ok {
				return "ack-question", true
			}
		}
	}
	return "", false
}

// looksComplex reports whether text is too long or too punctuated to be a
// short user reply.
func (c *Classifier) looksComplex(text string) bool {
	if c.patterns.CooldownMaxWords > 0 && len(strings.Fields(text)) > c.patterns.CooldownMaxWords {
		return true
	}
	punct := strings.Count(text, ".") + strings.Count(text, ",") + strings.Count(text, "!") +
		strings.Count(text, "?") + strings.Count(text, ";") + strings.Count(text, ":")
	return c.patterns.CooldownMaxPunct > 0 && punct > c.patterns.CooldownMaxPunct
}

type commandTable struct {
	rules []Rule
	cmd   Command
}

func (c *Classifier) commandWord(text string, ctx Context) (Result, bool) {
	tables := []commandTable{
		{c.patterns.Skip, CommandSkip},
		{c.patterns.Done, CommandDone},
		{c.patterns.Review, CommandReview},
	}
	if ctx.AskingCaptured {
		tables = append(tables, commandTable{c.patterns.Keep, CommandKeep})
	}
	for _, t := range tables {
		if name, ok := firstMatch(t.rules, text); ok {
			return Result{Kind: KindNavigation, Command: t.cmd, FieldID: ctx.AskingFieldID, Rule: name}, true
		}
	}
	return Result{}, false
}

func firstMatch(rules []Rule, text string) (string, bool) {
	for _, r := range rules {
		if r.Regex.MatchString(text) {
			return r.Name, true
		}
	}
	return "", false
}

func firstSubmatch(rules []Rule, text string) ([]string, string, bool) {
	for _, r := range rules {
		if m := r.Regex.FindStringSubmatch(text); m != nil {
			return m, r.Name, true
		}
	}
	return nil, "", false
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[normaliseText(w)] = struct{}{}
	}
	return set
}
