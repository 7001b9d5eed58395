// Package calendar converts between iCalendar feeds and bookings.
package calendar

import (
	"cmp"
	"fmt"
	"io"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/evcraddock/turnover/internal/booking"
	"github.com/evcraddock/turnover/internal/dates"
)

// ParseError reports a calendar that cannot be turned into bookings.
type ParseError struct {
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// Calendar is a parsed feed for one apartment.
type Calendar struct {
	ApartmentNumber int
	Bookings        []*booking.Booking
}

// ApartmentNumber extracts n from a name like "apartment_<n>.ics". name may
// be a file name or a URL path.
func ApartmentNumber(name string) (int, error) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return 0, &ParseError{Msg: "cannot parse apartment number"}
	}
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[:i]
	}
	if i := strings.LastIndex(base, "_"); i >= 0 {
		base = base[i+1:]
	}
	n, err := strconv.Atoi(base)
	if err != nil || n < 0 {
		return 0, &ParseError{Msg: fmt.Sprintf("cannot parse apartment number from %q", name), Err: err}
	}
	return n, nil
}

// ParseFile parses a feed whose apartment number is encoded in name.
func ParseFile(r io.Reader, name string) (*Calendar, error) {
	number, err := ApartmentNumber(name)
	if err != nil {
		return nil, err
	}
	bookings, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return &Calendar{ApartmentNumber: number, Bookings: bookings}, nil
}

type event struct {
	uid        string
	start, end time.Time
	summary    string
}

// Parse reads every event as a booking, ordered by start date. Each
// booking's cleaning deadline is the next booking's start date; the last
// has none.
func Parse(r io.Reader) ([]*booking.Booking, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, &ParseError{Msg: "invalid calendar", Err: err}
	}

	var events []event
	for _, ve := range cal.Events() {
		ev, err := readEvent(ve)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	slices.SortStableFunc(events, func(a, b event) int {
		return cmp.Or(a.start.Compare(b.start), a.end.Compare(b.end))
	})

	bookings := make([]*booking.Booking, 0, len(events))
	for i, ev := range events {
		var deadline *time.Time
		if i+1 < len(events) {
			next := events[i+1].start
			deadline = &next
		}
		b, err := booking.New(ev.start, ev.end, deadline)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", ev.uid, err)
		}
		b.Summary = ev.summary
		bookings = append(bookings, b)
	}

	return bookings, nil
}

func readEvent(ve *ical.VEvent) (event, error) {
	var ev event
	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		ev.uid = p.Value
	}

	start, err := eventDay(ve, ical.ComponentPropertyDtStart)
	if err != nil {
		return ev, &ParseError{Msg: fmt.Sprintf("event %s", ev.uid), Err: err}
	}
	end, err := eventDay(ve, ical.ComponentPropertyDtEnd)
	if err != nil {
		return ev, &ParseError{Msg: fmt.Sprintf("event %s", ev.uid), Err: err}
	}
	ev.start, ev.end = start, end

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.summary = strings.TrimSpace(p.Value)
	}
	if ev.summary == "" {
		if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
			ev.summary = strings.TrimSpace(p.Value)
		}
	}

	return ev, nil
}

// eventDay reads DTSTART or DTEND as a calendar day. VALUE=DATE properties
// are parsed directly; date-times go through the library's TZID handling.
func eventDay(ve *ical.VEvent, prop ical.ComponentProperty) (time.Time, error) {
	p := ve.GetProperty(prop)
	if p == nil || strings.TrimSpace(p.Value) == "" {
		return time.Time{}, fmt.Errorf("missing %s", prop)
	}

	v := strings.TrimSpace(p.Value)
	if !strings.Contains(v, "T") {
		t, err := time.Parse("20060102", v)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing %s %q: %w", prop, v, err)
		}
		return t, nil
	}

	var t time.Time
	var err error
	if prop == ical.ComponentPropertyDtStart {
		t, err = ve.GetStartAt()
	} else {
		t, err = ve.GetEndAt()
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s %q: %w", prop, v, err)
	}
	return dates.Truncate(t), nil
}
