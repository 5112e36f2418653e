package extract

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sept": time.September, "sep": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

const (
	monthAlt = `(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)\.?`
	dayAlt   = `(\d{1,2})(?:st|nd|rd|th)?`
)

// Date grammars, tried in order. Each compiled regex is matched against the
// lower-cased, ordinal-normalised text.
var (
	reMonthDayYear = regexp.MustCompile(`^` + monthAlt + `\s+(?:the\s+)?` + dayAlt + `,?\s+(\d{4})$`)
	reDayMonthYear = regexp.MustCompile(`^(?:the\s+)?` + dayAlt + `\s+(?:of\s+)?` + monthAlt + `,?\s+(\d{4})$`)
	reNumeric      = regexp.MustCompile(`^(\d{1,2})[/.-](\d{1,2})[/.-](\d{2}|\d{4})$`)
	reMonthDay     = regexp.MustCompile(`^` + monthAlt + `\s+(?:the\s+)?` + dayAlt + `$`)
	reDayMonth     = regexp.MustCompile(`^(?:the\s+)?` + dayAlt + `\s+(?:of\s+)?` + monthAlt + `$`)
	reOrdinalDay   = regexp.MustCompile(`^(?:the\s+)?(\d{1,2})(?:st|nd|rd|th)$`)
	reDayYear      = regexp.MustCompile(`^(?:the\s+)?` + dayAlt + `,\s*(\d{4})$`)
	reISO          = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)

	reDatePrefix = regexp.MustCompile(`^(?:starting on|starting|beginning|around|on|by)\s+`)
	reWeekday    = regexp.MustCompile(`^(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday),?\s+`)
)

// ParseDate parses a spoken date into YYYY-MM-DD. Missing years resolve to
// the current year when the date has not yet passed and to the next year
// otherwise; a missing month resolves to the current month.
func (e *Extractor) ParseDate(text string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.TrimRight(s, ".!?")
	s = normaliseOrdinals(s)
	s = reDatePrefix.ReplaceAllString(s, "")
	s = reWeekday.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")

	now := e.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if m := reISO.FindStringSubmatch(s); m != nil {
		return build(atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3]))
	}
	if m := reMonthDayYear.FindStringSubmatch(s); m != nil {
		return build(atoi(m[3]), monthNames[m[1]], atoi(m[2]))
	}
	if m := reDayMonthYear.FindStringSubmatch(s); m != nil {
		return build(atoi(m[3]), monthNames[m[2]], atoi(m[1]))
	}
	if m := reNumeric.FindStringSubmatch(s); m != nil {
		year := atoi(m[3])
		if len(m[3]) == 2 {
			year += 2000
		}
		return build(year, time.Month(atoi(m[1])), atoi(m[2]))
	}
	if m := reMonthDay.FindStringSubmatch(s); m != nil {
		return buildInferred(today, monthNames[m[1]], atoi(m[2]))
	}
	if m := reDayMonth.FindStringSubmatch(s); m != nil {
		return buildInferred(today, monthNames[m[2]], atoi(m[1]))
	}
	if m := reOrdinalDay.FindStringSubmatch(s); m != nil {
		return buildInferred(today, today.Month(), atoi(m[1]))
	}
	if m := reDayYear.FindStringSubmatch(s); m != nil {
		return build(atoi(m[2]), today.Month(), atoi(m[1]))
	}
	return "", false
}

// buildInferred picks the current year unless that date is already in the
// past, in which case it rolls to the next year.
func buildInferred(today time.Time, month time.Month, day int) (string, bool) {
	if !validDay(today.Year(), month, day) && !validDay(today.Year()+1, month, day) {
		return "", false
	}
	year := today.Year()
	candidate := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if !validDay(year, month, day) || candidate.Before(today) {
		year++
	}
	return build(year, month, day)
}

func build(year int, month time.Month, day int) (string, bool) {
	if !validDay(year, month, day) {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, int(month), day), true
}

// validDay reports whether year-month-day names a real calendar date.
func validDay(year int, month time.Month, day int) bool {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return t.Month() == month && t.Day() == day
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// ordinalWords maps spoken ordinals to their numeric form ("fifteenth" →
// "15th").
var ordinalWords = func() map[string]string {
	units := []string{"first", "second", "third", "fourth", "fifth", "sixth", "seventh", "eighth", "ninth"}
	teens := []string{"tenth", "eleventh", "twelfth", "thirteenth", "fourteenth", "fifteenth", "sixteenth", "seventeenth", "eighteenth", "nineteenth"}
	m := make(map[string]string, 40)
	for i, w := range units {
		m[w] = ordinal(i + 1)
		m["twenty "+w] = ordinal(i + 21)
		m["twenty-"+w] = ordinal(i + 21)
	}
	for i, w := range teens {
		m[w] = ordinal(i + 10)
	}
	m["twentieth"] = ordinal(20)
	m["thirtieth"] = ordinal(30)
	m["thirty first"] = ordinal(31)
	m["thirty-first"] = ordinal(31)
	return m
}()

var reOrdinalWord = func() *regexp.Regexp {
	words := slices.Collect(maps.Keys(ordinalWords))
	// Longest alternatives first so "twenty first" wins over "first".
	slices.SortFunc(words, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	return regexp.MustCompile(`\b(?:` + strings.Join(words, "|") + `)\b`)
}()

func normaliseOrdinals(s string) string {
	return reOrdinalWord.ReplaceAllStringFunc(s, func(w string) string {
		return ordinalWords[w]
	})
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return strconv.Itoa(n) + suffix
}
