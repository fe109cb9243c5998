// Package week computes the Monday-anchored week keys that partition
// per-week records (KPI entries, meeting runs, meeting feedback).
package week

import "time"

// KeyLayout is the ISO date form used for week keys, e.g. "2024-01-01".
const KeyLayout = "2006-01-02"

// StartOfWeek returns the most recent Monday at 00:00 in t's location.
// A Monday input maps to itself. Idempotent.
func StartOfWeek(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return day.AddDate(0, 0, -offset)
}

// Key returns the week key for t.
func Key(t time.Time) string {
	return StartOfWeek(t).Format(KeyLayout)
}

// ParseKey parses a week key back into its Monday anchor (UTC midnight).
func ParseKey(key string) (time.Time, error) {
	return time.Parse(KeyLayout, key)
}
