package extract

import (
	"reflect"
	"testing"
	"time"

	"github.com/MrWong99/charterline/pkg/charter"
)

// fixedClock pins "today" to 2026-10-14 so year inference is deterministic.
func fixedClock() time.Time {
	return time.Date(2026, time.October, 14, 9, 30, 0, 0, time.UTC)
}

func newTestExtractor() *Extractor {
	return New(WithClock(fixedClock))
}

func TestClean(t *testing.T) {
	t.Parallel()

	e := newTestExtractor()
	sponsor := charter.FieldSpec{ID: "sponsor", Label: "Sponsor"}
	projectName := charter.FieldSpec{ID: "project_name", Label: "Project Name"}

	tests := []struct {
		name  string
		field charter.FieldSpec
		in    string
		want  string
	}{
		{"plain", projectName, "Acme Rollout", "Acme Rollout"},
		{"leading disfluency", projectName, "um, Acme Rollout", "Acme Rollout"},
		{"hedge then copula", projectName, "I think it's Acme Rollout", "Acme Rollout"},
		{"trailing hedge", projectName, "Acme Rollout, I think", "Acme Rollout"},
		{"restated label", sponsor, "the sponsor is Jane Doe.", "Jane Doe"},
		{"restated spoken id", projectName, "the project name is Acme", "Acme"},
		{"label with colon", projectName, "project name: Atlas", "Atlas"},
		{"trailing period", projectName, "We launch in Q3.", "We launch in Q3"},
		{"abbreviation kept", projectName, "Acme Inc.", "Acme Inc."},
		{"initial kept", sponsor, "John Q.", "John Q."},
		{"ellipsis kept", projectName, "Atlas...", "Atlas..."},
		{"only filler kept verbatim", projectName, "um", "um"},
		{"whitespace", projectName, "   Atlas  ", "Atlas"},
		{"empty", projectName, "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := e.Clean(tc.in, tc.field); got != tc.want {
				t.Errorf("Clean(%q) = %q; want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	e := newTestExtractor()

	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"January 15th, 2025", "2025-01-15", true},
		{"15 January 2025", "2025-01-15", true},
		{"3/4/2026", "2026-03-04", true},
		{"3-4-26", "2026-03-04", true},
		{"2026-11-02", "2026-11-02", true},
		{"the 15th of January 2025", "2025-01-15", true},
		{"Jan. 2nd 2027", "2027-01-02", true},
		{"January fifteenth, 2025", "2025-01-15", true},
		{"on March twenty first 2026", "2026-03-21", true},
		{"December 1st", "2026-12-01", true},
		{"March 5th", "2027-03-05", true},
		{"October fourteenth", "2026-10-14", true},
		{"5 November", "2026-11-05", true},
		{"the 20th", "2026-10-20", true},
		{"the 3rd", "2027-10-03", true},
		{"15th, 2027", "2027-10-15", true},
		{"Monday, June 1st 2026", "2026-06-01", true},
		{"February 30th, 2025", "", false},
		{"13/45/2026", "", false},
		{"next quarter", "", false},
		{"15", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, ok := e.ParseDate(tc.in)
			if ok != tc.wantOK || got != tc.want {
				t.Errorf("ParseDate(%q) = (%q, %v); want (%q, %v)", tc.in, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestExtract_DateField(t *testing.T) {
	t.Parallel()

	e := newTestExtractor()
	start := charter.FieldSpec{ID: "start_date", Label: "Start Date", Type: charter.TypeDate}

	if got := e.Extract("It's January 15th, 2025.", start).Text; got != "2025-01-15" {
		t.Errorf("Extract = %q; want 2025-01-15", got)
	}
	if got := e.Extract("sometime next spring", start).Text; got != "sometime next spring" {
		t.Errorf("unparseable date = %q; want cleaned text unchanged", got)
	}
}

func TestTitleCaseName(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"jane doe", "Jane Doe"},
		{"mary-jane o'neil?", "Mary-Jane O'Neil"},
		{"  jean-luc   picard! ", "Jean-Luc Picard"},
		{"McDonald", "McDonald"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := TitleCaseName(tc.in); got != tc.want {
			t.Errorf("TitleCaseName(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtract_NameField(t *testing.T) {
	t.Parallel()

	e := newTestExtractor()
	sponsor := charter.FieldSpec{ID: "sponsor", Label: "Sponsor", Type: charter.TypeName}

	if got := e.Extract("the sponsor is jane doe", sponsor).Text; got != "Jane Doe" {
		t.Errorf("Extract = %q; want Jane Doe", got)
	}
}

func TestSplitList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"commas", "scope creep, vendor delays", []string{"scope creep", "vendor delays"}},
		{"bullets and newlines", "- budget cuts\n* hiring freeze\n• churn", []string{"budget cuts", "hiring freeze", "churn"}},
		{"numbered", "1. design\n2) build", []string{"design", "build"}},
		{"single", "vendor lock-in.", []string{"vendor lock-in"}},
		{"only separators", ", ,", []string{", ,"}},
		{"empty", "", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := SplitList(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("SplitList(%q) = %#v; want %#v", tc.in, got, tc.want)
			}
		})
	}
}

func TestSplitRecords(t *testing.T) {
	t.Parallel()

	children := []string{"name", "role"}

	tests := []struct {
		name     string
		in       string
		children []string
		want     []map[string]string
	}{
		{
			name:     "slash and pipe",
			in:       "Jane Doe / Sponsor\nBob | Engineer",
			children: children,
			want: []map[string]string{
				{"name": "Jane Doe", "role": "Sponsor"},
				{"name": "Bob", "role": "Engineer"},
			},
		},
		{
			name:     "colon space",
			in:       "- Alice: tech lead",
			children: children,
			want:     []map[string]string{{"name": "Alice", "role": "tech lead"}},
		},
		{
			name:     "single part",
			in:       "Carol",
			children: children,
			want:     []map[string]string{{"name": "Carol"}},
		},
		{
			name:     "overflow folds into last child",
			in:       "Dan / QA / part time",
			children: children,
			want:     []map[string]string{{"name": "Dan", "role": "QA part time"}},
		},
		{
			name:     "trailing separator",
			in:       "Eve / Ops /",
			children: children,
			want:     []map[string]string{{"name": "Eve", "role": "Ops"}},
		},
		{
			name:     "empty overflow parts dropped",
			in:       "Frank / / /",
			children: children,
			want:     []map[string]string{{"name": "Frank"}},
		},
		{
			name:     "nothing assignable",
			in:       "/ /",
			children: children,
			want:     []map[string]string{{"name": "/ /"}},
		},
		{
			name: "no children",
			in:   "anything",
			want: []map[string]string{{"value": "anything"}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := SplitRecords(tc.in, tc.children); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("SplitRecords(%q) = %#v; want %#v", tc.in, got, tc.want)
			}
		})
	}
}

func TestExtract_ListFields(t *testing.T) {
	t.Parallel()

	e := newTestExtractor()
	risks := charter.FieldSpec{ID: "risks", Label: "Risks", Type: charter.TypeStringList}
	team := charter.FieldSpec{ID: "team", Label: "Team", Type: charter.TypeObjectList, Children: []string{"name", "role"}}

	v := e.Extract("the risks are vendor delays, budget cuts", risks)
	if !reflect.DeepEqual(v.Items, []string{"vendor delays", "budget cuts"}) {
		t.Errorf("Items = %#v", v.Items)
	}

	v = e.Extract("Jane / lead", team)
	if len(v.Records) != 1 || v.Records[0]["name"] != "Jane" || v.Records[0]["role"] != "lead" {
		t.Errorf("Records = %#v", v.Records)
	}
}

func TestSentenceComplete(t *testing.T) {
	t.Parallel()

	if !SentenceComplete("Done.") || !SentenceComplete("Great! ") {
		t.Error("expected complete")
	}
	if SentenceComplete("We will modernise") || SentenceComplete("") {
		t.Error("expected incomplete")
	}
}
