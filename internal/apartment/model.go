// Package apartment provides the apartment aggregate, its day-by-day status
// projection, and data access.
package apartment

import (
	"slices"
	"time"

	"github.com/evcraddock/turnover/internal/booking"
	"github.com/evcraddock/turnover/internal/dates"
)

// Status is an operational event on an apartment for one day.
type Status string

const (
	CheckIn  Status = "checkin"
	CheckOut Status = "checkout"
	Cleaning Status = "cleaning"
	Occupied Status = "occupied"
	Vacant   Status = "vacant"
)

// Label returns a human-readable label for the status.
func (s Status) Label() string {
	switch s {
	case CheckIn:
		return "Check-in"
	case CheckOut:
		return "Check-out"
	case Cleaning:
		return "Cleaning"
	case Occupied:
		return "Occupied"
	case Vacant:
		return "Vacant"
	default:
		return string(s)
	}
}

// Apartment is identified by owner and number and owns its bookings.
type Apartment struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"-"`
	Number      int       `json:"number"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Bookings are ordered by start date.
	Bookings []*booking.Booking `json:"-"`
}

// DayStatus is the status list for one day.
type DayStatus struct {
	Day      time.Time
	Statuses []Status
}

// SortBookings orders bookings by start date.
func (a *Apartment) SortBookings() {
	slices.SortStableFunc(a.Bookings, func(x, y *booking.Booking) int {
		return x.StartDate.Compare(y.StartDate)
	})
}

// Status derives the ordered status labels for day. Bookings must be sorted
// and carry their cleaning dates.
func (a *Apartment) Status(day time.Time) []Status {
	day = dates.Truncate(day)

	var spanning []*booking.Booking
	for _, b := range a.Bookings {
		if b.StartDate.After(day) {
			break
		}
		if day.After(b.LastDay()) {
			continue
		}
		spanning = append(spanning, b)
		if len(spanning) == 2 {
			break
		}
	}

	switch len(spanning) {
	case 0:
		return []Status{Vacant}
	case 1:
		return singleStatus(spanning[0], day)
	}

	// Cleaning of the first stay coincides with check-in of the next.
	first := spanning[0]
	if first.CleaningDate != nil && first.EndDate.Equal(*first.CleaningDate) {
		return []Status{CheckOut, Cleaning, CheckIn}
	}
	return []Status{Cleaning, CheckIn}
}

func singleStatus(b *booking.Booking, day time.Time) []Status {
	cleaning := b.CleaningDate != nil && b.CleaningDate.Equal(day)

	switch {
	case b.EndDate.Equal(day) && cleaning:
		return []Status{CheckOut, Cleaning}
	case b.StartDate.Equal(day):
		return []Status{CheckIn}
	case b.EndDate.Equal(day):
		return []Status{CheckOut}
	case cleaning:
		return []Status{Cleaning}
	case b.StartDate.Before(day) && day.Before(b.EndDate):
		return []Status{Occupied}
	default:
		return []Status{Vacant}
	}
}

// StatusRange projects Status over every day from start to end inclusive.
func (a *Apartment) StatusRange(start, end time.Time) []DayStatus {
	var out []DayStatus
	for day := range dates.DaysBetween(start, end) {
		out = append(out, DayStatus{Day: day, Statuses: a.Status(day)})
	}
	return out
}
