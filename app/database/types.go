package database

import (
	"fmt"
	"time"
)

// Timestamps are stored as text. Historical rows carry a mix of formats
// (timezone-aware RFC3339 and naive datetimes), so readers try several
// layouts before giving up.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses a stored timestamp in any of the supported layouts.
// Layouts without a zone are interpreted as UTC.
func ParseTime(value string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp: %q", value)
}

// FormatTime is the canonical serialization for stored timestamps.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FormatDate is the canonical serialization for date-granularity columns.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
