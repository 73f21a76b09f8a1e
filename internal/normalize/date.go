package normalize

import (
	"regexp"
	"strings"
	"time"
)

// OutputDateLayout is the canonical rendering for every recognized date
const OutputDateLayout = "01/02/06"

// datePattern pairs a structural pattern with the exact layout used to parse it
type datePattern struct {
	name    string
	pattern *regexp.Regexp
	layout  string
}

// datePatterns are tried in priority order; the first structural match decides the layout
var datePatterns = []datePattern{
	{
		name:    "datetime",
		pattern: regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})T(\d{2}):(\d{2}):(\d{2})$`),
		layout:  "2006-01-02T15:04:05",
	},
	{
		name:    "iso-date",
		pattern: regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`),
		layout:  "2006-01-02",
	},
	{
		name:    "us-date",
		pattern: regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})`),
		layout:  "01/02/2006",
	},
	{
		name:    "slash-iso-date",
		pattern: regexp.MustCompile(`^(\d{4})/(\d{2})/(\d{2})`),
		layout:  "2006/01/02",
	},
}

// FormatDate rewrites date-like values as MM/DD/YY.
//
// The returned bool is true when the value looked like a date but could not be
// parsed as one; in that case the original value is returned untouched.
func FormatDate(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)

	for _, dp := range datePatterns {
		if !dp.pattern.MatchString(trimmed) {
			continue
		}

		parsed, err := time.Parse(dp.layout, trimmed)
		// year 0000 parses in Go but is not a calendar year
		if err != nil || parsed.Year() == 0 {
			return value, true
		}
		return parsed.Format(OutputDateLayout), false
	}

	return value, false
}
