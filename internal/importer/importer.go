// Package importer replaces an apartment's bookings and schedules a cleaning
// day for each, inside one transaction.
package importer

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"time"

	"github.com/evcraddock/turnover/internal/apartment"
	"github.com/evcraddock/turnover/internal/booking"
	"github.com/evcraddock/turnover/internal/calendar"
	"github.com/evcraddock/turnover/internal/cleaning"
	"github.com/evcraddock/turnover/internal/db"
)

// ErrContention is returned when the database stayed locked by another
// import for every attempt.
var ErrContention = errors.New("calendar import kept conflicting with another import")

const (
	defaultAttempts = 3
	defaultBackoff  = 100 * time.Millisecond
)

// Fetcher downloads a remote calendar.
type Fetcher interface {
	Fetch(ctx context.Context, url string, c calendar.Conditions) (*calendar.Feed, error)
}

// Result describes a completed import.
type Result struct {
	Apartment *apartment.Apartment
	// Created is true when the import created the apartment.
	Created bool
	// Replaced counts the bookings the import deleted.
	Replaced int64
	// Bundled counts bookings of other apartments moved onto a shared day.
	Bundled int
}

// Service runs imports against one database.
type Service struct {
	db       *sql.DB
	attempts int
	backoff  time.Duration
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRetry sets how many times a contended import is tried and the base
// delay between attempts.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(s *Service) {
		s.attempts = max(attempts, 1)
		s.backoff = backoff
	}
}

// WithClock overrides the time recorded as the apartment's update time.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an import service. The database must be opened with
// db.Open so transactions take the write lock immediately.
func NewService(d *sql.DB, opts ...Option) *Service {
	s := &Service{
		db:       d,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Import replaces the bookings of the owner's apartment with bookings and
// schedules each in start order. Either every booking and every bundled
// cleaning date is saved or nothing is. Contention retries the whole batch.
func (s *Service) Import(ctx context.Context, ownerID string, number int, bookings []*booking.Booking) (*Result, error) {
	for attempt := 1; ; attempt++ {
		res, err := s.importOnce(ctx, ownerID, number, bookings)
		if err == nil {
			return res, nil
		}
		if !db.IsBusy(err) {
			return nil, err
		}
		if attempt >= s.attempts {
			return nil, fmt.Errorf("%w: %w", ErrContention, err)
		}

		slog.WarnContext(ctx, "import contended, retrying",
			"apartment", number,
			"attempt", attempt,
			"err", err,
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.backoff * time.Duration(attempt)):
		}
	}
}

// ImportCalendar imports a parsed calendar file.
func (s *Service) ImportCalendar(ctx context.Context, ownerID string, cal *calendar.Calendar) (*Result, error) {
	return s.Import(ctx, ownerID, cal.ApartmentNumber, cal.Bookings)
}

// ImportURL fetches a calendar feed named like apartment_<n>.ics and
// imports it. For an existing apartment the fetch is conditional on the
// apartment's last update; calendar.ErrNotModified means nothing changed.
func (s *Service) ImportURL(ctx context.Context, ownerID, rawURL string, f Fetcher) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &calendar.ParseError{Msg: fmt.Sprintf("invalid calendar url %q", rawURL), Err: err}
	}
	number, err := calendar.ApartmentNumber(u.Path)
	if err != nil {
		return nil, err
	}

	var cond calendar.Conditions
	existing, err := apartment.NewRepository(s.db).Get(ctx, ownerID, number)
	switch {
	case err == nil:
		cond.Since = existing.UpdatedAt
	case !errors.Is(err, apartment.ErrNotFound):
		return nil, err
	}

	feed, err := f.Fetch(ctx, rawURL, cond)
	if err != nil {
		return nil, err
	}

	bookings, err := calendar.Parse(bytes.NewReader(feed.Body))
	if err != nil {
		return nil, err
	}
	return s.Import(ctx, ownerID, number, bookings)
}

func (s *Service) importOnce(ctx context.Context, ownerID string, number int, input []*booking.Booking) (_ *Result, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	apartments := apartment.NewRepository(tx)
	bookings := booking.NewRepository(tx)

	a, created, err := apartments.GetOrCreate(ctx, ownerID, number)
	if err != nil {
		return nil, err
	}
	replaced, err := bookings.DeleteByApartment(ctx, a.ID)
	if err != nil {
		return nil, err
	}

	batch := prepare(input, a.ID)
	pipeline := cleaning.NewPipeline(bookings, bookings)
	bundled := 0
	for _, b := range batch {
		if err := b.Validate(); err != nil {
			return nil, err
		}
		assignment, err := pipeline.Schedule(ctx, b)
		if err != nil {
			return nil, err
		}
		bundled += len(assignment.Bundled)
	}

	now := s.now().UTC()
	if err := apartments.Touch(ctx, a.ID, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing import: %w", err)
	}

	a.Bookings = batch
	a.UpdatedAt = now

	slog.InfoContext(ctx, "calendar imported",
		"apartment", number,
		"bookings", len(batch),
		"replaced", replaced,
		"bundled", bundled,
	)

	return &Result{Apartment: a, Created: created, Replaced: replaced, Bundled: bundled}, nil
}

// prepare copies the input so a retried attempt starts from unscheduled
// bookings, and orders it by start date.
func prepare(input []*booking.Booking, apartmentID string) []*booking.Booking {
	batch := make([]*booking.Booking, len(input))
	for i, b := range input {
		c := *b
		c.ApartmentID = apartmentID
		c.CleaningDate = nil
		batch[i] = &c
	}
	slices.SortStableFunc(batch, func(a, b *booking.Booking) int {
		return a.StartDate.Compare(b.StartDate)
	})
	return batch
}
