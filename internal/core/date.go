package core

import (
	"strings"
	"time"
)

// RangeSeparator splits a date range such as "2024-01-01 to 2024-01-31".
const RangeSeparator = " to "

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01",
}

// ParseDate parses an income date. Ranges are anchored on their first part.
// The result is midnight UTC of the parsed calendar day, taken in the
// value's own offset.
func ParseDate(s string) (time.Time, error) {
	t, err := parseLayouts(s)
	if err != nil {
		return time.Time{}, err
	}
	return NewDate(t.Year(), int(t.Month()), t.Day()), nil
}

// ParseInstant parses an income date like ParseDate but keeps the time of
// day, converted to UTC. Date-only values are midnight UTC.
func ParseInstant(s string) (time.Time, error) {
	t, err := parseLayouts(s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func parseLayouts(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if first, _, ok := strings.Cut(s, RangeSeparator); ok {
		s = strings.TrimSpace(first)
	}
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// NewDate creates midnight UTC of the given calendar day.
func NewDate(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a calendar day in the ISO form stored on records.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
