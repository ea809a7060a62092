// Package window computes the comparison date ranges used by every
// analysis kind. Dates are calendar days represented as UTC midnights.
package window

import (
	"errors"
	"fmt"
	"time"
)

const day = 24 * time.Hour

// DateLayout is the wire format used by Search Console and the spreadsheets.
const DateLayout = "2006-01-02"

var (
	// ErrMissingEnd is returned when a core update is marked as ended without an end date.
	ErrMissingEnd = errors.New("core update marked as ended without an end date")
	// ErrEndBeforeStart is returned when the core update end precedes its start.
	ErrEndBeforeStart = errors.New("core update end date precedes start date")
	// ErrNegativeLag is returned for lag values below zero.
	ErrNegativeLag = errors.New("lag days must not be negative")
)

// Range is an inclusive span of calendar days.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days returns the inclusive number of days in the range.
func (r Range) Days() int {
	return daysBetween(r.Start, r.End) + 1
}

// Contains reports whether d falls inside the range.
func (r Range) Contains(d time.Time) bool {
	d = Truncate(d)
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r Range) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

// Date builds a calendar day.
func Date(year int, month time.Month, dayOfMonth int) time.Time {
	return time.Date(year, month, dayOfMonth, 0, 0, 0, 0, time.UTC)
}

// Truncate drops the clock part of t, keeping its calendar day in t's location.
func Truncate(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// Parse reads a YYYY-MM-DD date.
func Parse(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return t, nil
}

// Reference returns today minus the lag, the last day considered complete.
func Reference(today time.Time, lagDays int) (time.Time, error) {
	if lagDays < 0 {
		return time.Time{}, ErrNegativeLag
	}
	return addDays(Truncate(today), -lagDays), nil
}

func addDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

func daysBetween(from, to time.Time) int {
	return int(Truncate(to).Sub(Truncate(from)) / day)
}

func firstOfMonth(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), 1)
}

func lastOfMonth(t time.Time) time.Time {
	return addDays(firstOfMonth(t).AddDate(0, 1, 0), -1)
}
