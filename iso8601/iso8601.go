// Package iso8601 provides consistent ISO 8601 timestamp formatting for
// log entries and wire payloads.
package iso8601

import "time"

// Format is the layout used for all emitted timestamps: UTC with second
// precision and a Z suffix.
const format = "2006-01-02T15:04:05Z"

// Format renders t in UTC as an ISO 8601 string.
func Format(t time.Time) string {
	return t.UTC().Format(format)
}

// Parse parses an ISO 8601 string as produced by Format. It also accepts
// full RFC 3339 timestamps with offsets or fractional seconds.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(format, s)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
