package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// BookingRepo provides access to the bookings table.  A booking row is
// keyed by its generated ID and carries a unique booking reference.  The
// ordered seat numbers are stored as a JSON array.  All timestamp fields
// are stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, reference, show_id, holder_id, seat_numbers, total_price_cents, status, payment_status,
	transaction_id, email, phone, created_at, confirmed_at, updated_at`

// Create inserts a new booking.  It returns ErrDuplicateReference when the
// reference (or ID) is already taken; the caller must then retry with a
// new one.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	seats, err := json.Marshal(b.SeatNumbers)
	if err != nil {
		return err
	}
	const q = `INSERT INTO bookings (id, reference, show_id, holder_id, seat_numbers, total_price_cents, status,
	                                 payment_status, transaction_id, email, phone, created_at, confirmed_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = conn(ctx, r.db).ExecContext(ctx, q,
		b.ID, b.Reference, b.ShowID, b.HolderID, string(seats), b.TotalPriceCents, string(b.Status),
		string(b.PaymentStatus), b.TransactionID, b.Email, b.Phone, b.CreatedAt.UTC(), b.ConfirmedAt, b.UpdatedAt.UTC(),
	)
	if isDuplicateKey(err) {
		return ErrDuplicateReference
	}
	return err
}

// GetByID returns a single booking or ErrNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(conn(ctx, r.db).QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListByHolder returns every booking created by holderID, newest first.
// When the holder has no bookings an empty slice is returned.
func (r *BookingRepo) ListByHolder(ctx context.Context, holderID string) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE holder_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, holderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bookings := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

// UpdateStatus applies a conditional status transition.  It returns
// ErrNotFound for an unknown booking and ErrStatusConflict when the
// booking is not in upd.From.
func (r *BookingRepo) UpdateStatus(ctx context.Context, id string, upd model.StatusUpdate) error {
	const q = `UPDATE bookings
	           SET status = ?, payment_status = ?, transaction_id = COALESCE(?, transaction_id),
	               confirmed_at = COALESCE(?, confirmed_at), updated_at = ?
	           WHERE id = ? AND status = ?`
	res, err := conn(ctx, r.db).ExecContext(ctx, q,
		string(upd.To), string(upd.PaymentStatus), upd.TransactionID, upd.ConfirmedAt, upd.UpdatedAt.UTC(),
		id, string(upd.From))
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
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrStatusConflict
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var (
		b                     model.Booking
		seats                 string
		status, paymentStatus string
		transactionID         sql.NullString
		confirmedAt           sql.NullTime
	)
	if err := row.Scan(
		&b.ID, &b.Reference, &b.ShowID, &b.HolderID, &seats, &b.TotalPriceCents, &status, &paymentStatus,
		&transactionID, &b.Email, &b.Phone, &b.CreatedAt, &confirmedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(seats), &b.SeatNumbers); err != nil {
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	b.PaymentStatus = model.PaymentStatus(paymentStatus)
	b.TransactionID = nullString(transactionID)
	b.ConfirmedAt = nullTime(confirmedAt)
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}
