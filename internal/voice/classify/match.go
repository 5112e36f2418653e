package classify

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/charterline/pkg/charter"
)

const (
	defaultPhoneticThreshold = 0.85
	defaultFuzzyThreshold    = 0.92

	// minReverseLen is the shortest mention allowed to match as a substring
	// of a longer field name.
	minReverseLen = 3

	// minPhoneticLen is the shortest mention allowed into the phonetic pass.
	minPhoneticLen = 4
)

// mentionStopwords never resolve to a field on their own.
var mentionStopwords = map[string]struct{}{
	"it": {}, "that": {}, "this": {}, "there": {}, "what": {}, "which": {}, "who": {},
	"he": {}, "she": {}, "they": {}, "we": {}, "i": {}, "you": {}, "everything": {},
	"all": {}, "one": {}, "thing": {}, "field": {},
}

var leadingDeterminers = []string{"the ", "my ", "our ", "your ", "a ", "an ", "this ", "that "}
var trailingNouns = []string{" field", " section", " question", " one", " part"}

// FieldMatcher resolves spoken field mentions against a schema.
//
// Resolution proceeds in four passes and the first pass that yields a field
// wins:
//
//  1. Exact match against the label or spoken id (id with underscores as
//     spaces), case-insensitive.
//  2. The mention contains a field name as a substring. The longest
//     contained name wins so "project start date" prefers "Start Date" over
//     "Date".
//  3. A field name contains the mention (mentions of at least three letters).
//  4. Phonetic fallback: Double Metaphone code overlap ranked by Jaro-Winkler
//     similarity, or pure Jaro-Winkler above a higher threshold. This catches
//     mis-transcribed names such as "sponser" for "sponsor".
//
// A FieldMatcher is read-only after construction and safe for concurrent use.
type FieldMatcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// MatcherOption configures a [FieldMatcher].
type MatcherOption func(*FieldMatcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a
// phonetically matched field. Default: 0.85.
func WithPhoneticThreshold(threshold float64) MatcherOption {
	return func(m *FieldMatcher) { m.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for the pure string
// similarity fallback. Default: 0.92.
func WithFuzzyThreshold(threshold float64) MatcherOption {
	return func(m *FieldMatcher) { m.fuzzyThreshold = threshold }
}

// NewFieldMatcher returns a [FieldMatcher] with default thresholds.
func NewFieldMatcher(opts ...MatcherOption) *FieldMatcher {
	m := &FieldMatcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Resolve returns the field named by mention.
func (m *FieldMatcher) Resolve(mention string, schema charter.Schema) (charter.FieldSpec, bool) {
	return m.resolve(mention, schema, false)
}

// resolveWhole is [FieldMatcher.Resolve] for mentions taken from free speech.
// Passes 3 and 4 only accept field names with no more words than the
// mention, so "project" alone does not name "Project Name".
func (m *FieldMatcher) resolveWhole(mention string, schema charter.Schema) (charter.FieldSpec, bool) {
	return m.resolve(mention, schema, true)
}

func (m *FieldMatcher) resolve(mention string, schema charter.Schema, whole bool) (charter.FieldSpec, bool) {
	norm := normaliseMention(mention)
	if norm == "" {
		return charter.FieldSpec{}, false
	}
	if _, stop := mentionStopwords[norm]; stop {
		return charter.FieldSpec{}, false
	}

	// Pass 1: exact.
	for _, f := range schema {
		for _, name := range fieldNames(f) {
			if norm == name {
				return f, true
			}
		}
	}

	// Pass 2: mention contains a field name; longest name wins.
	bestLen := 0
	var best charter.FieldSpec
	for _, f := range schema {
		for _, name := range fieldNames(f) {
			if len(name) > bestLen && strings.Contains(norm, name) {
				best, bestLen = f, len(name)
			}
		}
	}
	if bestLen > 0 {
		return best, true
	}

	words := len(strings.Fields(norm))

	// Pass 3: a field name contains the mention.
	if len(norm) >= minReverseLen {
		for _, f := range schema {
			for _, name := range fieldNames(f) {
				if whole && len(strings.Fields(name)) > words {
					continue
				}
				if strings.Contains(name, norm) {
					return f, true
				}
			}
		}
	}

	// Pass 4: phonetic / fuzzy.
	if len(norm) >= minPhoneticLen && words <= 4 {
		return m.phonetic(norm, schema, whole)
	}
	return charter.FieldSpec{}, false
}

// Mentions reports whether text names field f anywhere (passes 1–3 only).
func (m *FieldMatcher) Mentions(text string, f charter.FieldSpec) bool {
	norm := normaliseText(text)
	for _, name := range fieldNames(f) {
		if containsWord(norm, name) {
			return true
		}
	}
	return false
}

func (m *FieldMatcher) phonetic(norm string, schema charter.Schema, whole bool) (charter.FieldSpec, bool) {
	inputTokens := strings.Fields(norm)
	inputCodes := codesForTokens(inputTokens)

	var (
		best         charter.FieldSpec
		bestScore    float64
		bestPhonetic bool
		found        bool
	)
	for _, f := range schema {
		for _, name := range fieldNames(f) {
			nameTokens := strings.Fields(name)
			if whole && len(nameTokens) > len(inputTokens) {
				continue
			}
			score := jwScore(inputTokens, nameTokens, norm, name)
			if codesOverlap(inputCodes, codesForTokens(nameTokens)) {
				if score >= m.phoneticThreshold && (!bestPhonetic || score > bestScore) {
					best, bestScore, bestPhonetic, found = f, score, true, true
				}
			} else if !bestPhonetic && score >= m.fuzzyThreshold && score > bestScore {
				best, bestScore, found = f, score, true
			}
		}
	}
	return best, found
}

// fieldNames returns the normalised label and spoken id of f, deduplicated.
func fieldNames(f charter.FieldSpec) []string {
	label := normaliseText(f.Label)
	id := normaliseText(f.SpokenID())
	switch {
	case label == "":
		return []string{id}
	case id == "" || id == label:
		return []string{label}
	}
	return []string{label, id}
}

// normaliseText lower-cases s, replaces punctuation (except apostrophes) with
// spaces and collapses whitespace.
func normaliseText(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func normaliseMention(s string) string {
	norm := normaliseText(s)
	for changed := true; changed; {
		changed = false
		for _, d := range leadingDeterminers {
			if strings.HasPrefix(norm, d) {
				norm, changed = strings.TrimPrefix(norm, d), true
			}
		}
		for _, n := range trailingNouns {
			if strings.HasSuffix(norm, n) {
				norm, changed = strings.TrimSuffix(norm, n), true
			}
		}
	}
	return norm
}

// containsWord reports whether needle occurs in haystack on word boundaries.
func containsWord(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// jwScore is the best of full-string and space-stripped Jaro-Winkler
// similarity.
func jwScore(inputTokens, nameTokens []string, inputFull, nameFull string) float64 {
	score := matchr.JaroWinkler(inputFull, nameFull, false)
	if len(inputTokens) > 1 || len(nameTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(inputTokens, ""), strings.Join(nameTokens, ""), false); s > score {
			score = s
		}
	}
	return score
}
