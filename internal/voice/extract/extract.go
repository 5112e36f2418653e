// Package extract cleans raw value transcripts into field-appropriate values.
//
// Cleaning runs in two stages:
//
//  1. Filler stripping: a table of leading and trailing patterns (hedges,
//     disfluencies, copulas and field-name restatements such as "the sponsor
//     is") is applied repeatedly until nothing more matches. If stripping would
//     empty the string, the original text is kept. A single trailing period
//     that does not end an abbreviation is then removed.
//
//  2. Shaping by field type: spoken dates become YYYY-MM-DD, names are
//     title-cased, and list fields are split into items or records.
//
// An [Extractor] is read-only after construction and safe for concurrent use.
package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/MrWong99/charterline/pkg/charter"
)

// Value is a cleaned field value. Text is always set; Items is set for
// string-list fields and Records for object-list fields.
type Value struct {
	Text    string
	Items   []string
	Records []map[string]string
}

// Option is a functional option for configuring an [Extractor].
type Option func(*Extractor)

// WithClock sets the clock used to infer missing years and months in spoken
// dates. Default: [time.Now].
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithFillers replaces the filler pattern table.
func WithFillers(leading, trailing []*regexp.Regexp) Option {
	return func(e *Extractor) {
		e.leading = leading
		e.trailing = trailing
	}
}

// Extractor cleans value transcripts.
type Extractor struct {
	now      func() time.Time
	leading  []*regexp.Regexp
	trailing []*regexp.Regexp
}

// New returns an [Extractor] using the default filler tables.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		now:      time.Now,
		leading:  DefaultLeadingFillers(),
		trailing: DefaultTrailingFillers(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract cleans raw for field f. Non-empty input never yields an empty Text.
func (e *Extractor) Extract(raw string, f charter.FieldSpec) Value {
	text := e.Clean(raw, f)
	v := Value{Text: text}

	switch f.Kind() {
	case charter.TypeDate:
		if iso, ok := e.ParseDate(text); ok {
			v.Text = iso
		}
	case charter.TypeName:
		v.Text = TitleCaseName(text)
	case charter.TypeStringList:
		v.Items = SplitList(text)
	case charter.TypeObjectList:
		v.Records = SplitRecords(text, f.Children)
	}
	return v
}

// Clean strips filler phrases and a trailing sentence period from raw.
func (e *Extractor) Clean(raw string, f charter.FieldSpec) string {
	original := strings.TrimSpace(raw)
	if original == "" {
		return ""
	}

	restate := restatementPatterns(f)
	text := original
	for {
		next := text
		for _, re := range restate {
			next = strings.TrimSpace(re.ReplaceAllString(next, ""))
		}
		for _, re := range e.leading {
			next = strings.TrimSpace(re.ReplaceAllString(next, ""))
		}
		for _, re := range e.trailing {
			next = strings.TrimSpace(re.ReplaceAllString(next, ""))
		}
		next = strings.TrimLeft(next, ",;: ")
		if next == "" {
			// Never turn a non-empty answer into an empty capture.
			text = original
			break
		}
		if next == text {
			break
		}
		text = next
	}

	return trimSentencePeriod(text)
}

// DefaultLeadingFillers returns the built-in leading filler patterns.
func DefaultLeadingFillers() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(?:um+|uh+|er+m?|ah+|hmm+|mm+)\b[,.]*\s*`),
		regexp.MustCompile(`(?i)^(?:so|well|okay|ok|alright|yeah)\b,?\s+`),
		regexp.MustCompile(`(?i)^(?:you know|i mean|i think|i guess|i believe|i suppose|maybe|probably|basically|honestly|actually)\b,?\s+`),
		regexp.MustCompile(`(?i)^(?:i'd say|i would say|let's say|let's go with|we'll go with|go with|call it|put down|write down)\b,?\s+`),
		regexp.MustCompile(`(?i)^(?:it is|it's|it was|that is|that's|this is|it would be|it'd be|it will be|it'll be|that would be|that'd be|it should be)\b\s+`),
	}
}

// DefaultTrailingFillers returns the built-in trailing filler patterns.
func DefaultTrailingFillers() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)[,\s]+(?:i think|i guess|i suppose|i believe|probably|maybe|basically|you know|or so|or something|i'd say)[.?!]*$`),
		regexp.MustCompile(`(?i)[,\s]+(?:um+|uh+|er+|hmm+)[.?!]*$`),
		regexp.MustCompile(`(?i)[,\s]+(?:please|thanks|thank you)[.?!]*$`),
	}
}

// restatementPatterns builds the "the <field> is" prefixes for f.
func restatementPatterns(f charter.FieldSpec) []*regexp.Regexp {
	names := make([]string, 0, 2)
	for _, n := range []string{f.Label, f.SpokenID()} {
		n = strings.TrimSpace(strings.ToLower(n))
		if n == "" {
			continue
		}
		dup := false
		for _, seen := range names {
			if seen == n {
				dup = true
			}
		}
		if !dup {
			names = append(names, regexp.QuoteMeta(n))
		}
	}
	if len(names) == 0 {
		return nil
	}
	alt := strings.Join(names, "|")
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(?:the|our|my|your)?\s*(?:` + alt + `)\s+(?:is|are|was|will be|would be|should be|shall be)\b[:,]?\s*`),
		regexp.MustCompile(`(?i)^(?:for\s+)?(?:the\s+)?(?:` + alt + `)\s*[:,-]\s*`),
	}
}

// abbreviations whose trailing period must be kept.
var abbreviations = map[string]struct{}{
	"inc": {}, "ltd": {}, "co": {}, "corp": {}, "llc": {}, "jr": {}, "sr": {},
	"dr": {}, "mr": {}, "mrs": {}, "ms": {}, "st": {}, "etc": {}, "vs": {},
	"e.g": {}, "i.e": {}, "a.m": {}, "p.m": {}, "u.s": {}, "no": {}, "prof": {},
}

// trimSentencePeriod removes one trailing period unless it ends an
// abbreviation, an initial or an ellipsis.
func trimSentencePeriod(s string) string {
	if !strings.HasSuffix(s, ".") || strings.HasSuffix(s, "..") {
		return s
	}
	body := s[:len(s)-1]
	last := body
	if i := strings.LastIndexAny(body, " \t"); i >= 0 {
		last = body[i+1:]
	}
	lower := strings.ToLower(last)
	if _, ok := abbreviations[lower]; ok {
		return s
	}
	if len([]rune(last)) == 1 && strings.ToUpper(last) == last && strings.ToLower(last) != last {
		return s
	}
	return body
}
