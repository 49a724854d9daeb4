package property

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used for lease and start dates.
const DateLayout = "2006-01-02"

// ParseDate parses a calendar date. Full RFC 3339 timestamps are accepted too.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t.UTC(), nil
}

// FormatDate renders t as a calendar date.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
