// Package dates provides calendar-day helpers used by scheduling and
// status rendering. A day is a time.Time at midnight UTC.
package dates

import (
	"fmt"
	"iter"
	"time"

	"github.com/teambition/rrule-go"
)

// Layout is the storage and wire format for calendar days.
const Layout = "2006-01-02"

// Day returns the calendar day for the given year, month and day.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Truncate drops the clock part of t, keeping the date as seen in t's location.
func Truncate(t time.Time) time.Time {
	return Day(t.Year(), t.Month(), t.Day())
}

// Today returns the current calendar day in local time.
func Today() time.Time {
	return Truncate(time.Now())
}

// Parse parses a YYYY-MM-DD string.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// Format renders a day as YYYY-MM-DD.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// Overlaps reports whether [aStart, aEnd] and [bStart, bEnd] share at least
// one day. Both ranges are inclusive.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !bStart.After(aEnd)
}

// DaysBetween yields every day from start to end inclusive. The sequence is
// empty when end is before start and can be ranged over more than once.
func DaysBetween(start, end time.Time) iter.Seq[time.Time] {
	start, end = Truncate(start), Truncate(end)
	return func(yield func(time.Time) bool) {
		if end.Before(start) {
			return
		}
		r, err := rrule.NewRRule(rrule.ROption{
			Freq:    rrule.DAILY,
			Dtstart: start,
			Until:   end,
		})
		if err != nil {
			for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
				if !yield(d) {
					return
				}
			}
			return
		}
		next := r.Iterator()
		for {
			d, ok := next()
			if !ok || !yield(d) {
				return
			}
		}
	}
}

// Max returns the later of a and b.
func Max(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// Min returns the earlier of a and b.
func Min(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}
