package subscription

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/evcraddock/turnover/internal/booking"
	"github.com/evcraddock/turnover/internal/calendar"
	"github.com/evcraddock/turnover/internal/importer"
)

// Outcome is what a sync did with a subscription.
type Outcome string

const (
	Imported    Outcome = "imported"
	Unchanged   Outcome = "unchanged"
	NotModified Outcome = "not modified"
)

// Importer replaces an apartment's bookings.
type Importer interface {
	Import(ctx context.Context, ownerID string, number int, bookings []*booking.Booking) (*importer.Result, error)
}

// Syncer refreshes subscriptions from their remote feeds.
type Syncer struct {
	repo     *Repository
	importer Importer
	fetcher  importer.Fetcher
	now      func() time.Time
}

// NewSyncer creates a syncer.
func NewSyncer(repo *Repository, imp Importer, fetcher importer.Fetcher) *Syncer {
	return &Syncer{repo: repo, importer: imp, fetcher: fetcher, now: time.Now}
}

// Sync fetches one subscription and imports it when the body changed. A
// failure is recorded on the subscription and returned.
func (s *Syncer) Sync(ctx context.Context, sub *Subscription) (Outcome, error) {
	outcome, err := s.sync(ctx, sub)
	if err != nil {
		if recErr := s.repo.RecordError(ctx, sub, err); recErr != nil {
			return "", errors.Join(err, recErr)
		}
		return "", err
	}
	if err := s.repo.RecordSync(ctx, sub, s.now()); err != nil {
		return "", err
	}
	return outcome, nil
}

func (s *Syncer) sync(ctx context.Context, sub *Subscription) (Outcome, error) {
	cond := calendar.Conditions{ETag: sub.ETag}
	if sub.LastModified != "" {
		if t, err := http.ParseTime(sub.LastModified); err == nil {
			cond.Since = t
		}
	}

	feed, err := s.fetcher.Fetch(ctx, sub.URL, cond)
	if errors.Is(err, calendar.ErrNotModified) {
		return NotModified, nil
	}
	if err != nil {
		return "", err
	}

	sub.ETag = feed.ETag
	if !feed.LastModified.IsZero() {
		sub.LastModified = feed.LastModified.UTC().Format(http.TimeFormat)
	}
	if feed.SHA == sub.SHA {
		return Unchanged, nil
	}

	bookings, err := calendar.Parse(bytes.NewReader(feed.Body))
	if err != nil {
		return "", err
	}
	if _, err := s.importer.Import(ctx, sub.OwnerID, sub.ApartmentNumber, bookings); err != nil {
		return "", fmt.Errorf("importing apartment %d: %w", sub.ApartmentNumber, err)
	}
	sub.SHA = feed.SHA
	return Imported, nil
}

// SyncAll syncs every subscription, continuing past failures. It returns the
// failures joined.
func (s *Syncer) SyncAll(ctx context.Context) error {
	subs, err := s.repo.ListAll(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, sub := range subs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		outcome, err := s.Sync(ctx, sub)
		if err != nil {
			slog.WarnContext(ctx, "subscription sync failed",
				"subscription", sub.ID,
				"apartment", sub.ApartmentNumber,
				"err", err,
			)
			errs = append(errs, fmt.Errorf("subscription %s: %w", sub.ID, err))
			continue
		}
		slog.InfoContext(ctx, "subscription synced",
			"subscription", sub.ID,
			"apartment", sub.ApartmentNumber,
			"outcome", outcome,
		)
	}
	return errors.Join(errs...)
}
