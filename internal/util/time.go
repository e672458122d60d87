package util

import "time"

// humanTimeFormat is the layout for human-readable timestamps with timezone.
const humanTimeFormat = "2 Jan 2006 15:04 MST"

// HumanTime formats t in the local zone in a human-readable format.
func HumanTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(humanTimeFormat)
}

// FormatHumanTime converts an RFC3339 timestamp to human-readable local time format.
func FormatHumanTime(rfc3339 string) string {
	if rfc3339 == "" || rfc3339 == "unknown" {
		return "unknown"
	}
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		return rfc3339
	}
	return HumanTime(t)
}
