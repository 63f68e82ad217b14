package model

import (
	"strings"
	"time"
)

// DateLayout is the calendar-date layout used for project start/end dates.
const DateLayout = "2006-01-02"

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	DateLayout,
}

// ParseInstant parses the timestamp formats written by the web client.
// It returns nil for blank or unparseable input.
func ParseInstant(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// FormatInstant renders t as an ISO-8601 UTC string with millisecond precision,
// matching what the web client writes. A nil time formats as "".
func FormatInstant(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

func instantPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatInstant(t)
	return &s
}

func derefInstant(s *string) *time.Time {
	if s == nil {
		return nil
	}
	return ParseInstant(*s)
}
