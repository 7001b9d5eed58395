package booking

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/evcraddock/turnover/internal/dates"
	"github.com/evcraddock/turnover/internal/db"
)

const columns = "b.id, b.apartment_id, b.start_date, b.end_date, b.cleaning_deadline, b.cleaning_date, b.summary"

// Repository stores bookings. Overlap lookups are only race-free when the
// repository wraps a transaction opened on a db.Open handle, whose
// transactions take the write lock at BEGIN.
type Repository struct {
	q db.Querier
}

// NewRepository creates a booking repository over a *sql.DB or *sql.Tx.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// Insert saves a booking. ApartmentID must be set.
func (r *Repository) Insert(ctx context.Context, b *Booking) error {
	if err := b.Validate(); err != nil {
		return err
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO bookings (id, apartment_id, start_date, end_date, cleaning_deadline, cleaning_date, summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ApartmentID, dates.Format(b.StartDate), dates.Format(b.EndDate),
		nullDate(b.CleaningDeadline), nullDate(b.CleaningDate), nullString(b.Summary),
	)
	if err != nil {
		return fmt.Errorf("inserting booking: %w", err)
	}
	return nil
}

// ListByApartment returns an apartment's bookings ordered by start date.
func (r *Repository) ListByApartment(ctx context.Context, apartmentID string) ([]*Booking, error) {
	return r.query(ctx,
		"SELECT "+columns+" FROM bookings b WHERE b.apartment_id = ? ORDER BY b.start_date, b.id",
		apartmentID,
	)
}

// ListByOwner returns every booking of the owner's apartments, grouped by
// apartment ID and ordered by start date.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) (map[string][]*Booking, error) {
	list, err := r.query(ctx,
		`SELECT `+columns+` FROM bookings b
		 JOIN apartments a ON a.id = b.apartment_id
		 WHERE a.owner_id = ?
		 ORDER BY b.apartment_id, b.start_date, b.id`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]*Booking)
	for _, b := range list {
		grouped[b.ApartmentID] = append(grouped[b.ApartmentID], b)
	}
	return grouped, nil
}

// DeleteByApartment removes every booking of an apartment and returns how
// many were removed.
func (r *Repository) DeleteByApartment(ctx context.Context, apartmentID string) (int64, error) {
	result, err := r.q.ExecContext(ctx, "DELETE FROM bookings WHERE apartment_id = ?", apartmentID)
	if err != nil {
		return 0, fmt.Errorf("deleting bookings: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// FindOverlapping returns bookings of the same owner's other apartments
// that could share a cleaning visit with nb: their checkout falls on or
// before the end of nb's vacancy window and the two vacancy windows meet.
func (r *Repository) FindOverlapping(ctx context.Context, nb *Booking, apartmentID string) ([]*Booking, error) {
	winStart, winEnd := nb.VacancyWindow()

	candidates, err := r.query(ctx,
		`SELECT `+columns+` FROM bookings b
		 JOIN apartments a ON a.id = b.apartment_id
		 WHERE a.owner_id = (SELECT owner_id FROM apartments WHERE id = ?)
		   AND b.apartment_id != ?
		   AND b.end_date <= ?
		 ORDER BY b.end_date, b.id`,
		apartmentID, apartmentID, dates.Format(winEnd),
	)
	if err != nil {
		return nil, fmt.Errorf("finding overlapping bookings: %w", err)
	}

	var overlapping []*Booking
	for _, b := range candidates {
		start, end := b.VacancyWindow()
		if dates.Overlaps(winStart, winEnd, start, end) {
			overlapping = append(overlapping, b)
		}
	}
	return overlapping, nil
}

// SetCleaningDate writes the same cleaning day to every listed booking in a
// single statement.
func (r *Repository) SetCleaningDate(ctx context.Context, day time.Time, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, dates.Format(day))
	for _, id := range ids {
		args = append(args, id)
	}

	query := "UPDATE bookings SET cleaning_date = ? WHERE id IN (" +
		strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")"
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating cleaning dates: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n != int64(len(ids)) {
		return fmt.Errorf("updating cleaning dates: %d of %d bookings found", n, len(ids))
	}
	return nil
}

func (r *Repository) query(ctx context.Context, query string, args ...any) (_ []*Booking, err error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying bookings: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	var list []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bookings: %w", err)
	}
	return list, nil
}

func scanBooking(row interface{ Scan(...any) error }) (*Booking, error) {
	var b Booking
	var start, end string
	var deadline, cleaning, summary sql.NullString

	if err := row.Scan(&b.ID, &b.ApartmentID, &start, &end, &deadline, &cleaning, &summary); err != nil {
		return nil, fmt.Errorf("scanning booking: %w", err)
	}

	var err error
	if b.StartDate, err = dates.Parse(start); err != nil {
		return nil, err
	}
	if b.EndDate, err = dates.Parse(end); err != nil {
		return nil, err
	}
	if b.CleaningDeadline, err = parseNullDate(deadline); err != nil {
		return nil, err
	}
	if b.CleaningDate, err = parseNullDate(cleaning); err != nil {
		return nil, err
	}
	b.Summary = summary.String

	return &b, nil
}

func parseNullDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := dates.Parse(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: dates.Format(*t), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
