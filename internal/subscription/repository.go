// Package subscription keeps owners' remote calendar feeds in sync.
package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/evcraddock/turnover/internal/calendar"
	"github.com/evcraddock/turnover/internal/db"
)

var (
	// ErrNotFound is returned when the owner has no subscription with the ID.
	ErrNotFound = errors.New("subscription not found")
	// ErrExists is returned when the owner already subscribes to the URL.
	ErrExists = errors.New("already subscribed to this url")
)

// Subscription is a remote calendar feed imported into one apartment.
type Subscription struct {
	ID              string     `json:"id"`
	OwnerID         string     `json:"-"`
	URL             string     `json:"url"`
	ApartmentNumber int        `json:"apartment_number"`
	SHA             string     `json:"sha,omitempty"`
	ETag            string     `json:"etag,omitempty"`
	LastModified    string     `json:"last_modified,omitempty"`
	SyncedAt        *time.Time `json:"synced_at,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

const columns = "id, owner_id, url, apartment_number, sha, etag, last_modified, synced_at, last_error, created_at"

// Repository stores subscriptions.
type Repository struct {
	q db.Querier
}

// NewRepository creates a subscription repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// Create subscribes the owner to rawURL. The apartment number comes from
// the URL path, which must end in apartment_<n>.ics.
func (r *Repository) Create(ctx context.Context, ownerID, rawURL string) (*Subscription, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &calendar.ParseError{Msg: fmt.Sprintf("invalid calendar url %q", rawURL), Err: err}
	}
	number, err := calendar.ApartmentNumber(u.Path)
	if err != nil {
		return nil, err
	}

	s := &Subscription{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		URL:             rawURL,
		ApartmentNumber: number,
		CreatedAt:       time.Now().UTC(),
	}
	_, err = r.q.ExecContext(ctx,
		"INSERT INTO calendar_subscriptions (id, owner_id, url, apartment_number, created_at) VALUES (?, ?, ?, ?, ?)",
		s.ID, s.OwnerID, s.URL, s.ApartmentNumber, s.CreatedAt,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrExists
		}
		return nil, fmt.Errorf("inserting subscription: %w", err)
	}
	return s, nil
}

// Get returns one of the owner's subscriptions.
func (r *Repository) Get(ctx context.Context, ownerID, id string) (*Subscription, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+columns+" FROM calendar_subscriptions WHERE id = ? AND owner_id = ?",
		id, ownerID,
	)
	s, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// List returns the owner's subscriptions ordered by apartment number.
func (r *Repository) List(ctx context.Context, ownerID string) ([]*Subscription, error) {
	return r.query(ctx,
		"SELECT "+columns+" FROM calendar_subscriptions WHERE owner_id = ? ORDER BY apartment_number, url",
		ownerID,
	)
}

// ListAll returns every subscription of every owner.
func (r *Repository) ListAll(ctx context.Context) ([]*Subscription, error) {
	return r.query(ctx,
		"SELECT " + columns + " FROM calendar_subscriptions ORDER BY owner_id, apartment_number, url",
	)
}

// Delete removes one of the owner's subscriptions. Imported bookings stay.
func (r *Repository) Delete(ctx context.Context, ownerID, id string) error {
	result, err := r.q.ExecContext(ctx,
		"DELETE FROM calendar_subscriptions WHERE id = ? AND owner_id = ?",
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("deleting subscription: %w", err)
	}
	return checkAffected(result)
}

// RecordSync stores the validators of a successful check and clears the
// last error.
func (r *Repository) RecordSync(ctx context.Context, s *Subscription, at time.Time) error {
	at = at.UTC()
	result, err := r.q.ExecContext(ctx,
		`UPDATE calendar_subscriptions
		 SET sha = ?, etag = ?, last_modified = ?, synced_at = ?, last_error = ''
		 WHERE id = ?`,
		s.SHA, s.ETag, s.LastModified, at, s.ID,
	)
	if err != nil {
		return fmt.Errorf("recording sync: %w", err)
	}
	if err := checkAffected(result); err != nil {
		return err
	}
	s.SyncedAt = &at
	s.LastError = ""
	return nil
}

// RecordError stores why the last sync failed. Validators are kept so the
// next attempt stays conditional.
func (r *Repository) RecordError(ctx context.Context, s *Subscription, syncErr error) error {
	result, err := r.q.ExecContext(ctx,
		"UPDATE calendar_subscriptions SET last_error = ? WHERE id = ?",
		syncErr.Error(), s.ID,
	)
	if err != nil {
		return fmt.Errorf("recording sync error: %w", err)
	}
	if err := checkAffected(result); err != nil {
		return err
	}
	s.LastError = syncErr.Error()
	return nil
}

func (r *Repository) query(ctx context.Context, query string, args ...any) (_ []*Subscription, err error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	var subs []*Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func scanSubscription(row interface{ Scan(...any) error }) (*Subscription, error) {
	var s Subscription
	var syncedAt sql.NullTime
	err := row.Scan(&s.ID, &s.OwnerID, &s.URL, &s.ApartmentNumber, &s.SHA, &s.ETag,
		&s.LastModified, &syncedAt, &s.LastError, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning subscription: %w", err)
	}
	if syncedAt.Valid {
		t := syncedAt.Time
		s.SyncedAt = &t
	}
	return &s, nil
}

func checkAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
