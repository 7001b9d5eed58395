// Package cleaning decides which day each booking's post-checkout cleaning
// happens so one cleaner visit covers as many vacant units as possible.
package cleaning

import (
	"time"

	"github.com/evcraddock/turnover/internal/booking"
	"github.com/evcraddock/turnover/internal/dates"
)

// CandidateDay is a day on which a set of bookings from other apartments
// are all cleanable.
type CandidateDay struct {
	Day      time.Time
	Bookings []*booking.Booking
}

// Count returns how many other bookings would be cleaned on Day.
func (c *CandidateDay) Count() int {
	return len(c.Bookings)
}

// BestCleaningDate picks the day from nb's checkout to the search bound on
// which the most overlapping bookings are cleanable. The earliest day wins
// ties. It returns nil when overlapping is empty or no day has a cleanable
// booking.
func BestCleaningDate(nb *booking.Booking, overlapping []*booking.Booking) *CandidateDay {
	if len(overlapping) == 0 {
		return nil
	}

	var best *CandidateDay
	for day := range dates.DaysBetween(nb.EndDate, searchBound(nb, overlapping)) {
		var cleanable []*booking.Booking
		for _, b := range overlapping {
			if b.CleanableOn(day) {
				cleanable = append(cleanable, b)
			}
		}
		if len(cleanable) == 0 {
			continue
		}
		if best == nil || len(cleanable) > best.Count() {
			best = &CandidateDay{Day: day, Bookings: cleanable}
		}
	}

	return best
}

// searchBound is nb's deadline, else the latest deadline among overlapping,
// else the latest checkout among overlapping and nb.
func searchBound(nb *booking.Booking, overlapping []*booking.Booking) time.Time {
	if nb.CleaningDeadline != nil {
		return *nb.CleaningDeadline
	}

	var latest *time.Time
	for _, b := range overlapping {
		if b.CleaningDeadline != nil && (latest == nil || b.CleaningDeadline.After(*latest)) {
			latest = b.CleaningDeadline
		}
	}
	if latest != nil {
		return *latest
	}

	bound := nb.EndDate
	for _, b := range overlapping {
		bound = dates.Max(bound, b.EndDate)
	}
	return bound
}
