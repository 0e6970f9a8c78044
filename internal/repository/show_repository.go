// Package repository contains data access logic for show counters. A
// Show row carries the aggregate available/locked/booked counters of a
// scheduled event; the catalog data around it is managed elsewhere.
package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"errors"
	"fmt"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// ShowRepo manages persistence for show counters.
type ShowRepo struct {
	db *sql.DB
}

// NewShowRepo constructs a ShowRepo with the given DB handle.
func NewShowRepo(db *sql.DB) *ShowRepo {
	return &ShowRepo{db: db}
}

// Get retrieves a show by its ID.  It returns ErrNotFound if there is no
// matching row.
func (r *ShowRepo) Get(ctx context.Context, id uint64) (*model.Show, error) {
	const q = `SELECT id, title, total_seats, available_seats, locked_seats, booked_seats, created_at, updated_at
	           FROM shows WHERE id = ?`
	var s model.Show
	err := conn(ctx, r.db).QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.Title, &s.TotalSeats, &s.AvailableSeats, &s.LockedSeats, &s.BookedSeats, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Adjust applies a balanced counter delta to a show in one UPDATE.  The
// WHERE clause refuses any change that would leave a counter negative, in
// which case ErrCounterUnderflow is returned.  ErrNotFound is returned for
// an unknown show.
func (r *ShowRepo) Adjust(ctx context.Context, showID uint64, d model.CounterDelta) error {
	if !d.Balanced() {
		return fmt.Errorf("unbalanced counter delta %+v", d)
	}
	if d.IsZero() {
		return nil
	}
	const q = `UPDATE shows
	           SET available_seats = available_seats + ?, locked_seats = locked_seats + ?, booked_seats = booked_seats + ?,
	               updated_at = UTC_TIMESTAMP(6)
	           WHERE id = ? AND available_seats + ? >= 0 AND locked_seats + ? >= 0 AND booked_seats + ? >= 0`
	res, err := conn(ctx, r.db).ExecContext(ctx, q,
		d.Available, d.Locked, d.Booked, showID, d.Available, d.Locked, d.Booked)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	// Zero rows: either the show is missing or the guard rejected the change.
	if _, err := r.Get(ctx, showID); err != nil {
		return err
	}
	return ErrCounterUnderflow
}
