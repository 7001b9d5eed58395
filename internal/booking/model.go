// Package booking provides the booking domain model and data access.
package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/evcraddock/turnover/internal/dates"
)

// ValidationError reports a booking whose interval is empty or inverted.
type ValidationError struct {
	Start time.Time
	End   time.Time
}

func (e *ValidationError) Error() string {
	if e.Start.Equal(e.End) {
		return fmt.Sprintf("booking %s to %s: there must be at least one day between start and end dates",
			dates.Format(e.Start), dates.Format(e.End))
	}
	return fmt.Sprintf("booking %s to %s: start date cannot come after end date",
		dates.Format(e.Start), dates.Format(e.End))
}

// Booking is a guest stay in one apartment.
type Booking struct {
	ID          string
	ApartmentID string
	StartDate   time.Time
	EndDate     time.Time
	// CleaningDeadline is the last acceptable cleaning day, nil when unbounded.
	CleaningDeadline *time.Time
	// CleaningDate is nil until the scheduler assigns it.
	CleaningDate *time.Time
	Summary      string
}

// New creates an unsaved booking with a fresh ID. Dates are truncated to
// calendar days.
func New(start, end time.Time, deadline *time.Time) (*Booking, error) {
	b := &Booking{
		ID:        uuid.NewString(),
		StartDate: dates.Truncate(start),
		EndDate:   dates.Truncate(end),
	}
	if deadline != nil {
		d := dates.Truncate(*deadline)
		b.CleaningDeadline = &d
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks that the stay covers at least one night.
func (b *Booking) Validate() error {
	if !b.StartDate.Before(b.EndDate) {
		return &ValidationError{Start: b.StartDate, End: b.EndDate}
	}
	return nil
}

// VacancyWindow returns the span from checkout to the cleaning deadline, or
// the checkout day alone when there is no deadline.
func (b *Booking) VacancyWindow() (time.Time, time.Time) {
	if b.CleaningDeadline != nil {
		return b.EndDate, *b.CleaningDeadline
	}
	return b.EndDate, b.EndDate
}

// CleanableOn reports whether the unit can be cleaned on day: on or after
// checkout and not past the deadline. No deadline means no upper bound.
func (b *Booking) CleanableOn(day time.Time) bool {
	if day.Before(b.EndDate) {
		return false
	}
	return b.CleaningDeadline == nil || !day.After(*b.CleaningDeadline)
}

// SetCleaningDate stamps the cleaning day.
func (b *Booking) SetCleaningDate(day time.Time) {
	d := dates.Truncate(day)
	b.CleaningDate = &d
}

// LastDay returns the final day the booking touches the apartment: the
// cleaning day when assigned, otherwise checkout.
func (b *Booking) LastDay() time.Time {
	if b.CleaningDate != nil {
		return *b.CleaningDate
	}
	return b.EndDate
}

// Horizon returns the furthest relevant day for display: the deadline, else
// the cleaning day, else checkout.
func (b *Booking) Horizon() time.Time {
	if b.CleaningDeadline != nil {
		return *b.CleaningDeadline
	}
	return b.LastDay()
}
