package cleaning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/evcraddock/turnover/internal/booking"
	"github.com/evcraddock/turnover/internal/dates"
)

// OverlapResolver finds bookings of other apartments that could share a
// cleaning visit with nb. Implementations must keep the returned rows
// locked until the caller's writes commit.
type OverlapResolver interface {
	FindOverlapping(ctx context.Context, nb *booking.Booking, apartmentID string) ([]*booking.Booking, error)
}

// Store persists scheduled bookings.
type Store interface {
	Insert(ctx context.Context, b *booking.Booking) error
	SetCleaningDate(ctx context.Context, day time.Time, ids ...string) error
}

// Pipeline schedules one booking at a time: resolve overlaps, pick the best
// day, assign it and persist every changed booking.
type Pipeline struct {
	resolver OverlapResolver
	store    Store
}

// NewPipeline creates a pipeline. booking.Repository satisfies both
// interfaces.
func NewPipeline(resolver OverlapResolver, store Store) *Pipeline {
	return &Pipeline{resolver: resolver, store: store}
}

// Schedule assigns and saves nb's cleaning date. nb.ApartmentID must be set.
func (p *Pipeline) Schedule(ctx context.Context, nb *booking.Booking) (Assignment, error) {
	overlapping, err := p.resolver.FindOverlapping(ctx, nb, nb.ApartmentID)
	if err != nil {
		return Assignment{}, err
	}

	a := Assign(nb, BestCleaningDate(nb, overlapping))

	if err := p.store.Insert(ctx, nb); err != nil {
		return Assignment{}, fmt.Errorf("saving booking %s: %w", dates.Format(nb.StartDate), err)
	}
	if err := p.store.SetCleaningDate(ctx, a.Day, a.BundledIDs()...); err != nil {
		return Assignment{}, fmt.Errorf("saving bundled cleaning date: %w", err)
	}

	slog.DebugContext(ctx, "cleaning scheduled",
		"booking", nb.ID,
		"checkout", dates.Format(nb.EndDate),
		"cleaning", dates.Format(a.Day),
		"candidates", len(overlapping),
		"bundled", len(a.Bundled),
	)

	return a, nil
}
