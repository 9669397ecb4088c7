// Package timeutil provides UTC calendar-day utilities for the progress
// engine. Streaks, daily challenges, and engagement counters are all keyed
// on UTC calendar days, so day boundaries must be computed consistently.
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// DayFormat is the canonical key format for a calendar day.
const DayFormat = "2006-01-02"

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// StartOfDay returns the start of the UTC calendar day containing t.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the end of the UTC calendar day containing t.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(24*time.Hour - time.Nanosecond)
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return StartOfDay(a).Equal(StartOfDay(b))
}

// DaysBetween returns the number of whole calendar days from a to b.
// The result is negative if b is before a.
func DaysBetween(a, b time.Time) int {
	start := StartOfDay(a)
	end := StartOfDay(b)
	return int(end.Sub(start).Hours() / 24)
}

// DayKey returns the canonical string key for the UTC calendar day of t.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayFormat)
}

// Date creates a UTC time at midnight on the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// IsNight reports whether t falls in the night window (22:00-06:00 UTC).
func IsNight(t time.Time) bool {
	h := t.UTC().Hour()
	return h >= 22 || h < 6
}

// IsEarlyMorning reports whether t falls before 07:00 UTC.
func IsEarlyMorning(t time.Time) bool {
	return t.UTC().Hour() < 7
}
