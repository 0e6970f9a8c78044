package repository // repository defines data access for seats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// seatColumns is the column list shared by every seat SELECT.  The order
// must match scanSeat.
const seatColumns = `id, show_id, seat_number, status, locked_by, locked_at, lock_expiry,
	booked_by, booked_at, booking_id, booking_ref, price_cents, created_at, updated_at`

// MarkBookedParams describes the locked→booked transition of a set of
// seats.  Only seats still locked by HolderID with an expiry after Now are
// transitioned.
type MarkBookedParams struct {
	ShowID      uint64
	SeatNumbers []string
	HolderID    string
	BookingID   string
	BookingRef  string
	Now         time.Time
}

// SeatRepo provides data access to the seats table.  Every state change is
// a single conditional UPDATE whose WHERE clause carries the precondition,
// so two callers racing on the same row can never both succeed.  All
// timestamps are stored in UTC.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// Get returns a single seat.  It returns ErrNotFound when the show has no
// seat with that number.
func (r *SeatRepo) Get(ctx context.Context, showID uint64, seatNumber string) (*model.Seat, error) {
	q := `SELECT ` + seatColumns + ` FROM seats WHERE show_id = ? AND seat_number = ?`
	s, err := scanSeat(conn(ctx, r.db).QueryRowContext(ctx, q, showID, seatNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// LockIfAvailable moves an available seat to locked for holderID.  It
// reports false, without error, when the seat was not available.
func (r *SeatRepo) LockIfAvailable(ctx context.Context, showID uint64, seatNumber, holderID string, now, expiry time.Time) (bool, error) {
	const q = `UPDATE seats
	           SET status = 'locked', locked_by = ?, locked_at = ?, lock_expiry = ?,
	               booked_by = NULL, booked_at = NULL, booking_id = NULL, booking_ref = NULL, updated_at = ?
	           WHERE show_id = ? AND seat_number = ? AND status = 'available'`
	return r.execOne(ctx, q, holderID, now.UTC(), expiry.UTC(), now.UTC(), showID, seatNumber)
}

// ReclaimExpired hands a seat whose lock lapsed at or before now to
// holderID, discarding the previous holder.  It reports false when the
// seat is not locked or its lock is still valid.
func (r *SeatRepo) ReclaimExpired(ctx context.Context, showID uint64, seatNumber, holderID string, now, expiry time.Time) (bool, error) {
	const q = `UPDATE seats
	           SET locked_by = ?, locked_at = ?, lock_expiry = ?, updated_at = ?
	           WHERE show_id = ? AND seat_number = ? AND status = 'locked' AND lock_expiry <= ?`
	return r.execOne(ctx, q, holderID, now.UTC(), expiry.UTC(), now.UTC(), showID, seatNumber, now.UTC())
}

// ReleaseIfHeld returns a seat locked by holderID, expired or not, to
// available.  It reports false when the seat is not locked by holderID.
func (r *SeatRepo) ReleaseIfHeld(ctx context.Context, showID uint64, seatNumber, holderID string) (bool, error) {
	const q = `UPDATE seats
	           SET status = 'available', locked_by = NULL, locked_at = NULL, lock_expiry = NULL, updated_at = UTC_TIMESTAMP(6)
	           WHERE show_id = ? AND seat_number = ? AND status = 'locked' AND locked_by = ?`
	return r.execOne(ctx, q, showID, seatNumber, holderID)
}

// ListByShow returns the seats of a show ordered by seat number.  When
// onlyAvailable is set, only seats whose status is available are returned;
// seats holding a lapsed lock are not included.
func (r *SeatRepo) ListByShow(ctx context.Context, showID uint64, onlyAvailable bool) ([]model.Seat, error) {
	q := `SELECT ` + seatColumns + ` FROM seats WHERE show_id = ?`
	if onlyAvailable {
		q += ` AND status = 'available'`
	}
	q += ` ORDER BY seat_number`
	return r.query(ctx, q, showID)
}

// FindLockedBy returns the requested seats that are currently locked by
// holderID with an expiry after now.  Seats that are missing, available,
// booked, locked by someone else or whose lock lapsed are omitted.
func (r *SeatRepo) FindLockedBy(ctx context.Context, showID uint64, seatNumbers []string, holderID string, now time.Time) ([]model.Seat, error) {
	if len(seatNumbers) == 0 {
		return []model.Seat{}, nil
	}
	in, inArgs := inClause(seatNumbers)
	q := `SELECT ` + seatColumns + ` FROM seats
	      WHERE show_id = ? AND seat_number IN (` + in + `)
	        AND status = 'locked' AND locked_by = ? AND lock_expiry > ?
	      ORDER BY seat_number`
	args := append([]any{showID}, inArgs...)
	args = append(args, holderID, now.UTC())
	return r.query(ctx, q, args...)
}

// MarkBooked transitions the given seats from locked to booked and clears
// their lock fields.  It returns the number of seats transitioned; callers
// compare it with len(p.SeatNumbers) to detect a concurrent change.
func (r *SeatRepo) MarkBooked(ctx context.Context, p MarkBookedParams) (int64, error) {
	if len(p.SeatNumbers) == 0 {
		return 0, nil
	}
	in, inArgs := inClause(p.SeatNumbers)
	q := `UPDATE seats
	      SET status = 'booked', booked_by = ?, booked_at = ?, booking_id = ?, booking_ref = ?,
	          locked_by = NULL, locked_at = NULL, lock_expiry = NULL, updated_at = ?
	      WHERE show_id = ? AND seat_number IN (` + in + `)
	        AND status = 'locked' AND locked_by = ? AND lock_expiry > ?`
	now := p.Now.UTC()
	args := []any{p.HolderID, now, p.BookingID, p.BookingRef, now, p.ShowID}
	args = append(args, inArgs...)
	args = append(args, p.HolderID, now)
	res, err := conn(ctx, r.db).ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReleaseBooked returns every seat booked under bookingID to available and
// clears the booking fields.  It returns the number of seats released.
func (r *SeatRepo) ReleaseBooked(ctx context.Context, showID uint64, bookingID string) (int64, error) {
	const q = `UPDATE seats
	           SET status = 'available', booked_by = NULL, booked_at = NULL, booking_id = NULL, booking_ref = NULL,
	               updated_at = UTC_TIMESTAMP(6)
	           WHERE show_id = ? AND booking_id = ? AND status = 'booked'`
	res, err := conn(ctx, r.db).ExecContext(ctx, q, showID, bookingID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SeatRepo) execOne(ctx context.Context, q string, args ...any) (bool, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *SeatRepo) query(ctx context.Context, q string, args ...any) ([]model.Seat, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := make([]model.Seat, 0)
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		seats = append(seats, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSeat(row rowScanner) (*model.Seat, error) {
	var (
		s                              model.Seat
		status                         string
		lockedBy, bookedBy             sql.NullString
		bookingID, bookingRef          sql.NullString
		lockedAt, lockExpiry, bookedAt sql.NullTime
	)
	if err := row.Scan(
		&s.ID, &s.ShowID, &s.SeatNumber, &status, &lockedBy, &lockedAt, &lockExpiry,
		&bookedBy, &bookedAt, &bookingID, &bookingRef, &s.PriceCents, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Status = model.SeatStatus(status)
	if !s.Status.Valid() {
		return nil, fmt.Errorf("seat %d: unknown status %q", s.ID, status)
	}
	s.LockedBy = nullString(lockedBy)
	s.BookedBy = nullString(bookedBy)
	s.BookingID = nullString(bookingID)
	s.BookingRef = nullString(bookingRef)
	s.LockedAt = nullTime(lockedAt)
	s.LockExpiry = nullTime(lockExpiry)
	s.BookedAt = nullTime(bookedAt)
	return &s, nil
}

// inClause builds "?, ?, ?" for len(values) placeholders.
func inClause(values []string) (string, []any) {
	placeholders := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	for _, v := range values {
		placeholders = append(placeholders, "?")
		args = append(args, v)
	}
	return strings.Join(placeholders, ", "), args
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}
