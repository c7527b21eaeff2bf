// Package calendar provides trading-day arithmetic for the daily rates feed
package calendar

import "time"

// IsBusinessDay returns true if the given day is a weekday (Monday through Friday)
func IsBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

// PreviousBusinessDay returns the closest weekday strictly before the given day.
// The time of day and location are preserved
func PreviousBusinessDay(t time.Time) time.Time {
	prev := t.AddDate(0, 0, -1)

	for !IsBusinessDay(prev) {
		prev = prev.AddDate(0, 0, -1)
	}

	return prev
}
