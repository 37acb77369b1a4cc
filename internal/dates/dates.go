package dates

import (
	"strings"
	"time"
)

// LayoutLong matches the source sheet's "January 2, 2006" dates.
const LayoutLong = "January 2, 2006"

var DefaultLayouts = []string{
	LayoutLong,
	"2 January 2006",
	"2006-01-02",
	"01-02-06",
	"1/2/2006",
}

var missingValues = map[string]struct{}{
	"":    {},
	"-":   {},
	"nan": {},
	"nat": {},
	"n/a": {},
}

// Parse tries each layout in order and returns the matching date at UTC
// midnight. Unparseable text reports false instead of an error.
func Parse(text string, layouts ...string) (time.Time, bool) {
	value := strings.Join(strings.Fields(text), " ")
	if _, missing := missingValues[strings.ToLower(value)]; missing {
		return time.Time{}, false
	}
	if len(layouts) == 0 {
		layouts = DefaultLayouts
	}
	for _, layout := range layouts {
		parsed, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		if shortYear(layout) && parsed.Year() > time.Now().Year() {
			parsed = parsed.AddDate(-100, 0, 0)
		}
		return Day(parsed), true
	}
	return time.Time{}, false
}

// shortYear reports whether layout carries a two-digit year. time.Parse maps
// those to 1969-2068; years past the current one are taken from the last century.
func shortYear(layout string) bool {
	return strings.Contains(layout, "06") && !strings.Contains(layout, "2006")
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func EndOfYear(year int) time.Time {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}

func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// MergeLayouts appends extra layouts after the defaults, skipping duplicates.
func MergeLayouts(extra []string) []string {
	seen := make(map[string]struct{}, len(DefaultLayouts)+len(extra))
	out := make([]string, 0, len(DefaultLayouts)+len(extra))
	for _, layout := range append(append([]string{}, DefaultLayouts...), extra...) {
		layout = strings.TrimSpace(layout)
		if layout == "" {
			continue
		}
		if _, ok := seen[layout]; ok {
			continue
		}
		seen[layout] = struct{}{}
		out = append(out, layout)
	}
	return out
}
