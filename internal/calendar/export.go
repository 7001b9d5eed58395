package calendar

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/evcraddock/turnover/internal/apartment"
	"github.com/evcraddock/turnover/internal/dates"
)

const productID = "-//turnover//cleaning schedule//EN"

// Filename returns the feed name an apartment imports from and exports to.
func Filename(number int) string {
	return fmt.Sprintf("apartment_%d.ics", number)
}

// Export renders the apartment's bookings as an iCalendar feed of all-day
// events. The cleaning day, when known, goes in each event's description.
func Export(a *apartment.Apartment, now time.Time) (string, []byte) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, b := range a.Bookings {
		ev := cal.AddEvent(b.ID)
		ev.SetDtStampTime(now.UTC())
		ev.SetAllDayStartAt(b.StartDate)
		ev.SetAllDayEndAt(b.EndDate)
		if b.Summary != "" {
			ev.SetSummary(b.Summary)
		}
		if b.CleaningDate != nil {
			ev.SetDescription("Cleaning " + dates.Format(*b.CleaningDate))
		}
	}

	return Filename(a.Number), []byte(cal.Serialize())
}
