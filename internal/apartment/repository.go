package apartment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/evcraddock/turnover/internal/booking"
	"github.com/evcraddock/turnover/internal/db"
)

var (
	// ErrNotFound is returned when an owner has no apartment with the number.
	ErrNotFound = errors.New("apartment not found")
	// ErrExists is returned when the owner already uses the number.
	ErrExists = errors.New("apartment already exists")
)

const columns = "id, owner_id, number, description, created_at, updated_at"

// Repository loads apartments together with their ordered bookings.
type Repository struct {
	q db.Querier
}

// NewRepository creates an apartment repository over a *sql.DB or *sql.Tx.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// Create inserts a new apartment for the owner.
func (r *Repository) Create(ctx context.Context, ownerID string, number int, description string) (*Apartment, error) {
	now := time.Now().UTC()
	a := &Apartment{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Number:      number,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := r.q.ExecContext(ctx,
		"INSERT INTO apartments (id, owner_id, number, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		a.ID, a.OwnerID, a.Number, nullString(description), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("apartment %d: %w", number, ErrExists)
		}
		return nil, fmt.Errorf("inserting apartment: %w", err)
	}

	return a, nil
}

// Get returns the owner's apartment with the given number and its bookings.
func (r *Repository) Get(ctx context.Context, ownerID string, number int) (*Apartment, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+columns+" FROM apartments WHERE owner_id = ? AND number = ?",
		ownerID, number,
	)
	a, err := scanApartment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("apartment %d: %w", number, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	a.Bookings, err = booking.NewRepository(r.q).ListByApartment(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetOrCreate returns the owner's apartment, creating it when missing. The
// second result reports whether it was created.
func (r *Repository) GetOrCreate(ctx context.Context, ownerID string, number int) (*Apartment, bool, error) {
	a, err := r.Get(ctx, ownerID, number)
	if err == nil {
		return a, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	a, err = r.Create(ctx, ownerID, number, "")
	if err != nil {
		return nil, false, err
	}
	return a, true, nil
}

// List returns the owner's apartments ordered by number, each with its
// bookings, using one query for apartments and one for bookings.
func (r *Repository) List(ctx context.Context, ownerID string) (_ []*Apartment, err error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+columns+" FROM apartments WHERE owner_id = ? ORDER BY number",
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing apartments: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	var apartments []*Apartment
	for rows.Next() {
		a, err := scanApartment(rows)
		if err != nil {
			return nil, err
		}
		apartments = append(apartments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating apartments: %w", err)
	}

	grouped, err := booking.NewRepository(r.q).ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, a := range apartments {
		a.Bookings = grouped[a.ID]
	}

	return apartments, nil
}

// Touch sets updated_at, recording when the apartment's calendar was last
// imported.
func (r *Repository) Touch(ctx context.Context, id string, at time.Time) error {
	result, err := r.q.ExecContext(ctx, "UPDATE apartments SET updated_at = ? WHERE id = ?", at.UTC(), id)
	if err != nil {
		return fmt.Errorf("updating apartment: %w", err)
	}
	return checkAffected(result, id)
}

// SetDescription updates the apartment's free-text description.
func (r *Repository) SetDescription(ctx context.Context, id, description string) error {
	result, err := r.q.ExecContext(ctx,
		"UPDATE apartments SET description = ? WHERE id = ?",
		nullString(description), id,
	)
	if err != nil {
		return fmt.Errorf("updating description: %w", err)
	}
	return checkAffected(result, id)
}

// Delete removes an apartment and its bookings.
func (r *Repository) Delete(ctx context.Context, ownerID string, number int) error {
	result, err := r.q.ExecContext(ctx,
		"DELETE FROM apartments WHERE owner_id = ? AND number = ?",
		ownerID, number,
	)
	if err != nil {
		return fmt.Errorf("deleting apartment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("apartment %d: %w", number, ErrNotFound)
	}
	return nil
}

func checkAffected(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("apartment %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanApartment(row interface{ Scan(...any) error }) (*Apartment, error) {
	var a Apartment
	var description sql.NullString
	err := row.Scan(&a.ID, &a.OwnerID, &a.Number, &description, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning apartment: %w", err)
	}
	a.Description = description.String
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
