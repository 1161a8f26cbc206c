package ingest

import (
	"regexp"
	"strings"
	"time"
)

// textDatePatterns are tried in order; the first pattern whose first match parses wins.
var textDatePatterns = []struct {
	re     *regexp.Regexp
	layout string
}{
	{regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`), "1/2/2006"},
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}`), "2006-01-02"},
	{regexp.MustCompile(`\d{1,2}-\d{1,2}-\d{4}`), "1-2-2006"},
}

// extractDateFromText finds the first recognizable calendar date in free text.
func extractDateFromText(text string) *time.Time {
	for _, p := range textDatePatterns {
		match := p.re.FindString(text)
		if match == "" {
			continue
		}
		if t, err := time.Parse(p.layout, match); err == nil {
			return &t
		}
	}
	return nil
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseISODeadline parses an API timestamp. Offset-less values are taken as UTC.
func parseISODeadline(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
