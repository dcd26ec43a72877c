package model

import (
	"time"
)

// DayLayout is the wire and storage format of a calendar day.
const DayLayout = "2006-01-02"

// Day is a calendar date in YYYY-MM-DD form.
//
// Days compare correctly as strings, which is what the store relies on for
// range queries and ordering.
type Day string

// ParseDay validates s and returns it as a Day.
// Returns a VALIDATION_ERROR for anything that is not a real calendar date.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return "", NewValidationError("day", "invalid date "+quote(s)+": expected YYYY-MM-DD")
	}
	return Day(t.Format(DayLayout)), nil
}

// DayOf returns the UTC calendar day of t.
func DayOf(t time.Time) Day {
	return Day(t.UTC().Format(DayLayout))
}

// Time returns midnight UTC of the day. A malformed Day yields the zero time.
func (d Day) Time() time.Time {
	t, err := time.Parse(DayLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays returns the day n calendar days after d (n may be negative).
func (d Day) AddDays(n int) Day {
	return DayOf(d.Time().AddDate(0, 0, n))
}

func (d Day) String() string { return string(d) }

// Window returns the n days ending at end, oldest first.
func Window(end Day, n int) []Day {
	days := make([]Day, 0, n)
	for i := n - 1; i >= 0; i-- {
		days = append(days, end.AddDays(-i))
	}
	return days
}

func quote(s string) string { return `"` + s + `"` }
