package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TitleCaseName capitalises the first letter of every word, and of every
// hyphen- or apostrophe-separated segment within a word. Trailing question
// and exclamation marks left by speech recognition are dropped.
func TitleCaseName(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), "?!")
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = capitaliseSegments(w)
	}
	return strings.Join(words, " ")
}

func capitaliseSegments(w string) string {
	var b strings.Builder
	b.Grow(len(w))
	upperNext := true
	for _, r := range w {
		if upperNext && unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
			upperNext = false
			continue
		}
		b.WriteRune(r)
		if r == '-' || r == '\'' || r == '’' {
			upperNext = true
		}
	}
	return b.String()
}

var (
	reListSplit  = regexp.MustCompile(`\r?\n|,|;|•`)
	reBullet     = regexp.MustCompile(`^\s*(?:[-*•·]|\d+[.)])\s+`)
	reFieldSplit = regexp.MustCompile(`\s*(?:/|\||:\s)\s*`)
)

// SplitList splits s on newlines, commas, semicolons and bullet markers into
// trimmed, non-empty items. When nothing survives, the whole trimmed string is
// returned as a single item.
func SplitList(s string) []string {
	var items []string
	for _, part := range reListSplit.Split(s, -1) {
		part = strings.TrimSpace(reBullet.ReplaceAllString(part, ""))
		part = trimSentencePeriod(part)
		if part != "" {
			items = append(items, part)
		}
	}
	if len(items) == 0 {
		if whole := strings.TrimSpace(s); whole != "" {
			return []string{whole}
		}
		return nil
	}
	return items
}

// SplitRecords splits s into one record per line. Each line is split on "/",
// "|" or ": " and the parts are assigned to children in order. A line whose
// parts cannot be assigned is stored whole under the first child. When the
// field declares no children the key "value" is used.
func SplitRecords(s string, children []string) []map[string]string {
	keys := children
	if len(keys) == 0 {
		keys = []string{"value"}
	}

	var records []map[string]string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(reBullet.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}

		rec := make(map[string]string, len(keys))
		parts := reFieldSplit.Split(line, -1)
		for i, p := range parts {
			if p = strings.TrimSpace(p); p == "" {
				continue
			}
			if i >= len(keys) {
				// Overflow parts are folded into the last child.
				last := keys[len(keys)-1]
				rec[last] = strings.TrimSpace(rec[last] + " " + p)
				continue
			}
			rec[keys[i]] = p
		}
		if len(rec) == 0 {
			rec[keys[0]] = line
		}
		records = append(records, rec)
	}
	return records
}

// SentenceComplete reports whether s ends with a period or exclamation mark.
func SentenceComplete(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(strings.TrimSpace(s))
	return r == '.' || r == '!'
}
