// Package schedule builds the per-apartment, per-day status grid shown to
// owners.
package schedule

import (
	"encoding/json"
	"time"

	"github.com/evcraddock/turnover/internal/apartment"
	"github.com/evcraddock/turnover/internal/dates"
)

// today is replaced in tests.
var today = dates.Today

// ApartmentSchedule is one apartment's statuses for every day in range.
type ApartmentSchedule struct {
	Number      int
	Description string
	Days        []apartment.DayStatus
}

// Statuses returns the statuses for day, or nil when day is out of range.
func (s ApartmentSchedule) Statuses(day time.Time) []apartment.Status {
	day = dates.Truncate(day)
	for _, d := range s.Days {
		if d.Day.Equal(day) {
			return d.Statuses
		}
	}
	return nil
}

// MarshalJSON renders days as a date-keyed map.
func (s ApartmentSchedule) MarshalJSON() ([]byte, error) {
	days := make(map[string][]apartment.Status, len(s.Days))
	for _, d := range s.Days {
		days[dates.Format(d.Day)] = d.Statuses
	}
	return json.Marshal(struct {
		Number      int                           `json:"number"`
		Description string                        `json:"description,omitempty"`
		Schedule    map[string][]apartment.Status `json:"schedule"`
	}{s.Number, s.Description, days})
}

// Schedule is the grid for a list of apartments over [Start, End]. Start and
// End are nil only when there were no apartments.
type Schedule struct {
	Apartments []ApartmentSchedule
	Start      *time.Time
	End        *time.Time
}

// Days returns every day of the range.
func (s Schedule) Days() []time.Time {
	if s.Start == nil || s.End == nil {
		return nil
	}
	var out []time.Time
	for d := range dates.DaysBetween(*s.Start, *s.End) {
		out = append(out, d)
	}
	return out
}

// MarshalJSON renders the schedule with YYYY-MM-DD bounds.
func (s Schedule) MarshalJSON() ([]byte, error) {
	apartments := s.Apartments
	if apartments == nil {
		apartments = []ApartmentSchedule{}
	}
	return json.Marshal(struct {
		Calendars []ApartmentSchedule `json:"calendars"`
		StartDate *string             `json:"start_date"`
		EndDate   *string             `json:"end_date"`
	}{apartments, formatPtr(s.Start), formatPtr(s.End)})
}

// Build projects every apartment over one shared range. from and to are
// used when given; otherwise the range runs from the earliest check-in to
// the furthest deadline (or cleaning day, or checkout) across all bookings,
// falling back to today.
func Build(apartments []*apartment.Apartment, from, to *time.Time) Schedule {
	if len(apartments) == 0 {
		return Schedule{}
	}

	start, end := bounds(apartments, from, to)

	out := Schedule{
		Apartments: make([]ApartmentSchedule, 0, len(apartments)),
		Start:      &start,
		End:        &end,
	}
	for _, a := range apartments {
		out.Apartments = append(out.Apartments, ApartmentSchedule{
			Number:      a.Number,
			Description: a.Description,
			Days:        a.StatusRange(start, end),
		})
	}
	return out
}

func bounds(apartments []*apartment.Apartment, from, to *time.Time) (time.Time, time.Time) {
	var earliest, latest *time.Time
	for _, a := range apartments {
		for _, b := range a.Bookings {
			if earliest == nil || b.StartDate.Before(*earliest) {
				s := b.StartDate
				earliest = &s
			}
			if h := b.Horizon(); latest == nil || h.After(*latest) {
				latest = &h
			}
		}
	}

	start, end := today(), today()
	switch {
	case from != nil:
		start = dates.Truncate(*from)
	case earliest != nil:
		start = *earliest
	}
	switch {
	case to != nil:
		end = dates.Truncate(*to)
	case latest != nil:
		end = *latest
	}
	return start, end
}

func formatPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := dates.Format(*t)
	return &s
}
