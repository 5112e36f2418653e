package classify

import "regexp"

// Rule pairs a compiled regex with a name used in logs and test fixtures.
type Rule struct {
	// Name is a human-readable label for logging.
	Name string

	// Regex is the compiled pattern. Capture-group meaning depends on the
	// table the rule lives in (see [Patterns]).
	Regex *regexp.Regexp
}

// CorrectionRule matches a "field is value" style correction.
type CorrectionRule struct {
	Name  string
	Regex *regexp.Regexp

	// FieldGroup and ValueGroup index the submatches holding the field
	// mention and the new value.
	FieldGroup int
	ValueGroup int

	// Explicit rules ("change X to Y") are commands even when the mentioned
	// field cannot be resolved; implicit rules fall through to value
	// classification in that case. Implicit rules never match questions.
	Explicit bool
}

// Patterns is the replaceable table of phrase patterns used by the
// [Classifier]. Every slice is evaluated in order and the first match wins.
// Fixtures can append to or replace any table without touching control flow.
type Patterns struct {
	// Rewrite matches the agent's reformulation marker. Group 1 holds the
	// rewritten text.
	Rewrite []Rule

	// Corrections are checked before navigation.
	Corrections []CorrectionRule

	// BackTo matches "go back to <field>". Group 1 holds the field mention.
	BackTo []Rule

	// Back matches a bare "go back".
	Back []Rule

	// GoTo matches "go to / edit <field>". Group 1 holds the field mention.
	GoTo []Rule

	// Noise lists normalised short phrases that carry no value.
	Noise []string

	// Echo matches phrasing characteristic of the agent's own speech.
	Echo []Rule

	// AckWords are leading acknowledgment words; together with a question
	// mark they mark text as agent echo.
	AckWords []string

	// Transition matches the agent moving on to another field.
	Transition []Rule

	// Skip, Done, Review and Keep match bare command words.
	Skip   []Rule
	Done   []Rule
	Review []Rule
	Keep   []Rule

	// CooldownMaxWords and CooldownMaxPunct bound what is still accepted as
	// user speech inside the post-prompt cooldown window.
	CooldownMaxWords int
	CooldownMaxPunct int
}

func rule(name, expr string) Rule {
	return Rule{Name: name, Regex: regexp.MustCompile(expr)}
}

// DefaultPatterns returns the built-in pattern table. The phrase lists are a
// tuning surface: they bias toward rejecting agent speech during the cooldown
// window at the cost of occasionally dropping a genuine reply.
func DefaultPatterns() Patterns {
	return Patterns{
		Rewrite: []Rule{
			rule("tag", `(?is)\[\s*captured?\s*\]\s*:?\s*(.+)`),
			rule("xml-tag", `(?is)<capture>\s*(.+?)\s*(?:</capture>|$)`),
			rule("capture-as", `(?is)\bi(?:'ll| will) (?:capture|record|note|put) (?:that|this|it)(?: down)? as\s*:\s*(.+)`),
			rule("captured-colon", `(?is)\bcaptured\s*:\s*(.+)`),
		},

		Corrections: []CorrectionRule{
			{
				Name:       "change-to",
				Regex:      regexp.MustCompile(`(?i)^(?:please\s+|can you\s+|could you\s+|let's\s+|i want to\s+|i'd like to\s+)?(?:change|update|set|make|switch)\s+(?:the\s+|my\s+|our\s+)?(.+?)\s+to\s+(.+?)[.!?]*$`),
				FieldGroup: 1, ValueGroup: 2, Explicit: true,
			},
			{
				Name:       "prefixed-is",
				Regex:      regexp.MustCompile(`(?i)^(?:no|nope|actually|wait|sorry|oops|correction|scratch that)\b[,.!]*\s+(?:the\s+|my\s+|our\s+)?(.+?)\s+(?:is|are|was|should be|should say)\s+(.+?)[.!]*$`),
				FieldGroup: 1, ValueGroup: 2,
			},
			{
				Name:       "should-be",
				Regex:      regexp.MustCompile(`(?i)^(?:the\s+|my\s+|our\s+)?(.+?)\s+should (?:be|say)\s+(.+?)[.!]*$`),
				FieldGroup: 1, ValueGroup: 2,
			},
			{
				Name:       "field-is",
				Regex:      regexp.MustCompile(`(?i)^(?:the\s+|my\s+|our\s+)?((?:\S+\s+){0,3}?\S+)\s+(?:is|are)\s+(.+?)[.!]*$`),
				FieldGroup: 1, ValueGroup: 2,
			},
		},

		BackTo: []Rule{
			rule("go-back-to", `(?i)^(?:(?:no|wait|oops|actually)\b[,.!]*\s+)?(?:let's\s+|can we\s+|could we\s+|please\s+)?go back to\s+(?:the\s+)?(.+?)(?:,?\s+please)?[.!?]*$`),
		},
		Back: []Rule{
			rule("go-back", `(?i)^(?:(?:no|wait|oops|actually)\b[,.!]*\s+)?(?:let's\s+|can we\s+|could we\s+|please\s+)?go back(?:\s+one|\s+a step)?(?:,?\s+please)?[.!?]*$`),
			rule("previous", `(?i)^(?:the\s+)?(?:previous|last)(?:\s+(?:field|question|one))?(?:,?\s+please)?[.!?]*$`),
			rule("back", `(?i)^back[.!]*$`),
		},
		GoTo: []Rule{
			rule("go-to", `(?i)^(?:let's\s+|can we\s+|could we\s+|please\s+|i want to\s+|i'd like to\s+)?(?:go to|jump to|skip to|switch to|move to|return to)\s+(?:the\s+)?(.+?)(?:\s+field)?(?:,?\s+please)?[.!?]*$`),
			rule("edit", `(?i)^(?:let's\s+|can we\s+|could we\s+|please\s+|i want to\s+|i'd like to\s+)?(?:edit|change|update|revisit|fix)\s+(?:the\s+|my\s+|our\s+)?(.+?)(?:\s+field)?(?:,?\s+please)?[.!?]*$`),
		},

		Noise: []string{
			"um", "umm", "uh", "uhh", "er", "erm", "ah", "oh", "hmm", "hm", "mm", "mhm", "uh huh", "mm hmm",
			"ok", "okay", "okay okay", "alright", "all right", "right", "cool", "got it", "i see",
			"yes", "yeah", "yep", "yup", "sure",
			"thanks", "thank you", "thank you so much", "thanks a lot", "you're welcome",
			"bye", "goodbye", "bye bye", "see you", "see ya", "cheers", "good night",
			"hi", "hello", "hey", "so", "well",
		},

		Echo: []Rule{
			rule("ack-then-question", `(?i)^(?:got it|great|perfect|thanks|thank you|okay|ok|alright|all right|excellent|wonderful|awesome|noted|understood|sounds good|lovely|fantastic|nice)\b[!.,]*\s+.*\?`),
			rule("field-question", `(?i)\b(?:what(?:'s| is| are| would be| will be)|who(?:'s| is| will be)|when(?:'s| is| will| does| do)|could you (?:tell|share|give|provide|describe|list)|can you (?:tell|share|give|provide|describe|list)|would you (?:like to )?(?:tell|share|describe)|please (?:tell|share|provide|describe|list))\b.*\?`),
			rule("field-introduction", `(?i)\b(?:let's (?:talk about|move on to|start with|turn to)|moving on to|next up is|now for the|the next field is)\b`),
			rule("navigation-ack", `(?i)^(?:sure|of course|no problem|okay|ok|alright|absolutely|certainly)\b[,!.]*\s+(?:let's|let me|i'll|we'll|going|heading|taking|jumping)\b`),
			rule("navigation-narration", `(?i)\b(?:going back to|returning to|we're back (?:on|at)|jumping (?:back )?to|skipping (?:ahead )?to)\b`),
			rule("value-recorded", `(?i)\b(?:i've|i have) (?:captured|recorded|noted|saved|updated|added|got)\b`),
			rule("value-will-record", `(?i)\bi(?:'ll| will) (?:record|note|capture|save|put|update) (?:that|this|it)\b`),
			rule("confirmation-question", `(?i)\b(?:is that (?:correct|right)|does that (?:sound|look) (?:right|good|correct)|did i get that right|would you like to (?:change|keep|update) it)\b`),
			rule("confirmation-lead", `(?i)^(?:just to confirm|to confirm|so,? to recap|let me confirm|let me read)\b`),
			rule("boundary", `(?i)\b(?:that's the first (?:field|question)|there (?:is|are) no (?:earlier|previous)|we've (?:covered|completed|finished) (?:all|every)|this field is required)\b`),
			rule("greeting", `(?i)^(?:hi|hello|welcome)\b.*\b(?:charter|help you|get started|let's begin)\b`),
		},

		AckWords: []string{
			"got", "great", "perfect", "thanks", "thank", "okay", "ok", "alright", "excellent",
			"wonderful", "awesome", "noted", "understood", "sure", "lovely", "fantastic", "nice",
			"absolutely", "certainly",
		},

		Transition: []Rule{
			rule("lets-move-on", `(?i)\b(?:let's|let us) (?:move on|continue|go on|turn to)\b`),
			rule("moving-on", `(?i)\bmoving on\b`),
			rule("next-lead", `(?i)\b(?:next|now),? (?:let's|we'll|i'd like|could you|can you|what|who|when|tell me|for the|on to)\b`),
			rule("next-field", `(?i)\bthe next (?:field|question|item|section)\b`),
			rule("on-to", `(?i)\bon to the\b`),
		},

		Skip: []Rule{
			rule("skip", `(?i)^(?:please\s+)?(?:let's\s+|can we\s+|can you\s+)?skip(?:\s+(?:it|this|that))?(?:\s+(?:one|field|question))?(?:\s+for now)?(?:,?\s+please)?[.!]*$`),
			rule("pass", `(?i)^(?:i'll\s+)?pass[.!]*$`),
			rule("dont-know-skip", `(?i)^(?:i (?:don't|do not) know|no idea|not sure)[,.]?\s+(?:let's\s+)?skip(?:\s+it)?[.!]*$`),
		},
		Done: []Rule{
			rule("done", `(?i)^(?:i'm\s+|i am\s+|we're\s+|we are\s+|that's\s+|all\s+)?(?:done|finished|complete)(?:\s+for now)?[.!]*$`),
			rule("finish", `(?i)^(?:let's\s+|please\s+)?(?:finish|finish up|wrap up|wrap it up|complete it|complete the charter)[.!]*$`),
			rule("thats-all", `(?i)^that's (?:all|it|everything)(?:\s+for now)?[.!]*$`),
		},
		Review: []Rule{
			rule("review", `(?i)^(?:can you\s+|could you\s+|please\s+|let's\s+)?(?:review|recap|summari[sz]e)(?:\s+(?:it|everything|the charter|what we have))?(?:,?\s+please)?[.!?]*$`),
			rule("show-progress", `(?i)^(?:can you\s+|could you\s+|please\s+)?(?:show|tell|read)(?:\s+me)?\s+(?:the\s+|my\s+|our\s+)?(?:progress|what we have(?: so far)?|it back|back what we have)(?:,?\s+please)?[.!?]*$`),
			rule("where-are-we", `(?i)^(?:where are we|what do we have so far|how far along are we)[.!?]*$`),
		},
		Keep: []Rule{
			rule("keep", `(?i)^(?:no,?\s+)?(?:keep it|leave it|that's fine|it's fine|no change|no changes|no thanks|no thank you|no|nope|same|keep the same)(?:\s+as is)?[.!]*$`),
		},

		CooldownMaxWords: 8,
		CooldownMaxPunct: 2,
	}
}
