package utilities

import "time"

// MARK: ParseTimestamp
// Parses an RFC3339 timestamp, returning the zero time when it cannot be read.
func ParseTimestamp(timeStr string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, timeStr); err == nil {
			return t
		}
	}
	return time.Time{}
}

// MARK: FormatTimestamp
func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// MARK: CurrentTimestamp
func CurrentTimestamp() string {
	return FormatTimestamp(time.Now())
}

// MARK: Seconds
// Converts a whole number of seconds from configuration into a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
