// Package timeutil provides timezone utilities for the school timezone (UTC+7).
// Attendance windows, due dates and payroll months are all evaluated in
// school-local time; storage keeps calendar dates as UTC midnight.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// SchoolTZ is the school timezone (UTC+7, no DST).
var SchoolTZ = time.FixedZone("Asia/Ho_Chi_Minh", 7*60*60)

// SetLocation overrides SchoolTZ. It is meant to be called once at startup.
func SetLocation(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("timeutil: failed to load location %q: %w", name, err)
	}
	SchoolTZ = loc
	return nil
}

// ToSchool converts a time to the school timezone.
func ToSchool(t time.Time) time.Time {
	return t.In(SchoolTZ)
}

// Date creates a calendar date (UTC midnight).
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// Today returns the school-local calendar date of t as UTC midnight.
func Today(t time.Time) time.Time {
	local := ToSchool(t)
	return Date(local.Year(), int(local.Month()), local.Day())
}

// StartOfMonth returns the start of the month in the school timezone.
func StartOfMonth(t time.Time) time.Time {
	local := ToSchool(t)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, SchoolTZ)
}

// DueDate returns the calendar date days after t's school-local date.
func DueDate(t time.Time, days int) time.Time {
	return Today(t).AddDate(0, 0, days)
}

// ─────────────────────────────────────────────────────────────────────────────
// Formatting
// ─────────────────────────────────────────────────────────────────────────────

const (
	// LayoutDate is the storage and API date layout.
	LayoutDate = "2006-01-02"

	// LayoutDisplayDate is the day-first layout used in messages.
	LayoutDisplayDate = "02/01/2006"
)

// FormatDateStr formats a date as DD/MM/YYYY.
func FormatDateStr(t time.Time) string {
	return t.Format(LayoutDisplayDate)
}
