package cleaning

import (
	"time"

	"github.com/evcraddock/turnover/internal/booking"
)

// Assignment is the cleaning day chosen for a new booking and the other
// bookings moved onto the same day.
type Assignment struct {
	Day     time.Time
	Booking *booking.Booking
	Bundled []*booking.Booking
}

// Changed returns every booking whose cleaning date the assignment sets,
// the new booking first.
func (a Assignment) Changed() []*booking.Booking {
	return append([]*booking.Booking{a.Booking}, a.Bundled...)
}

// BundledIDs returns the IDs of the bundled bookings.
func (a Assignment) BundledIDs() []string {
	ids := make([]string, len(a.Bundled))
	for i, b := range a.Bundled {
		ids[i] = b.ID
	}
	return ids
}

// Assign stamps the cleaning date in memory. With no candidate the new
// booking is cleaned at checkout; otherwise the new booking and every
// candidate booking get the candidate day.
func Assign(nb *booking.Booking, best *CandidateDay) Assignment {
	if best == nil {
		nb.SetCleaningDate(nb.EndDate)
		return Assignment{Day: nb.EndDate, Booking: nb}
	}

	nb.SetCleaningDate(best.Day)
	for _, b := range best.Bookings {
		b.SetCleaningDate(best.Day)
	}
	return Assignment{Day: best.Day, Booking: nb, Bundled: best.Bookings}
}
