package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

var bookingCols = []string{"id", "reference", "show_id", "holder_id", "seat_numbers", "total_price_cents", "status", "payment_status", "transaction_id", "email", "phone", "created_at", "confirmed_at", "updated_at"}

func sampleBooking() *model.Booking {
	return &model.Booking{
		ID:              "b-1",
		Reference:       "BK0011223344556677",
		ShowID:          1,
		HolderID:        "H1",
		SeatNumbers:     []string{"A1", "A2"},
		TotalPriceCents: 20,
		Status:          model.BookingPending,
		PaymentStatus:   model.PaymentPending,
		Email:           "h1@example.com",
		Phone:           "+15550100",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestBookingRepo_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepo(db)
	b := sampleBooking()

	mock.ExpectExec(q("INSERT INTO bookings")).
		WithArgs("b-1", b.Reference, uint64(1), "H1", `["A1","A2"]`, uint64(20), "pending", "pending",
			sqlmock.AnyArg(), "h1@example.com", "+15550100", now, sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), b))
}

func TestBookingRepo_CreateDuplicateReference(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepo(db)

	mock.ExpectExec(q("INSERT INTO bookings")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry for key 'uq_bookings_reference'"})

	err := repo.Create(context.Background(), sampleBooking())
	assert.ErrorIs(t, err, ErrDuplicateReference)
}

func TestBookingRepo_GetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepo(db)

	mock.ExpectQuery(q("FROM bookings WHERE id = ?")).
		WithArgs("b-1").
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow("b-1", "BK0011223344556677", 1, "H1", `["A1","A2"]`, 20, "confirmed", "completed", "txn-9", "h1@example.com", "+15550100", now, now, now))

	b, err := repo.GetByID(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2"}, b.SeatNumbers)
	assert.Equal(t, model.BookingConfirmed, b.Status)
	require.NotNil(t, b.TransactionID)
	assert.Equal(t, "txn-9", *b.TransactionID)
	require.NotNil(t, b.ConfirmedAt)
}

func TestBookingRepo_GetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepo(db)

	mock.ExpectQuery(q("FROM bookings WHERE id = ?")).WillReturnRows(sqlmock.NewRows(bookingCols))

	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookingRepo_ListByHolder(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepo(db)

	mock.ExpectQuery(q("FROM bookings WHERE holder_id = ? ORDER BY created_at DESC")).
		WithArgs("H1").
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow("b-2", "BK02", 1, "H1", `["A3"]`, 10, "pending", "pending", nil, "h1@example.com", "+15550100", now, nil, now).
			AddRow("b-1", "BK01", 1, "H1", `["A1"]`, 10, "cancelled", "failed", nil, "h1@example.com", "+15550100", now, nil, now))

	list, err := repo.ListByHolder(context.Background(), "H1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b-2", list[0].ID)
	assert.Nil(t, list[0].TransactionID)
	assert.Equal(t, model.BookingCancelled, list[1].Status)
}

func TestBookingRepo_UpdateStatus(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepo(db)
	txn := "txn-1"

	mock.ExpectExec(q("UPDATE bookings SET status = ?")+".*"+q("WHERE id = ? AND status = ?")).
		WithArgs("confirmed", "completed", &txn, &now, now, "b-1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "b-1", model.StatusUpdate{
		From: model.BookingPending, To: model.BookingConfirmed, PaymentStatus: model.PaymentCompleted,
		TransactionID: &txn, ConfirmedAt: &now, UpdatedAt: now,
	})
	require.NoError(t, err)
}

func TestBookingRepo_UpdateStatusConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepo(db)

	mock.ExpectExec(q("UPDATE bookings")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("FROM bookings WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow("b-1", "BK01", 1, "H1", `["A1"]`, 10, "confirmed", "completed", nil, "h1@example.com", "+15550100", now, now, now))

	err := repo.UpdateStatus(context.Background(), "b-1", model.StatusUpdate{
		From: model.BookingPending, To: model.BookingCancelled, PaymentStatus: model.PaymentFailed, UpdatedAt: now,
	})
	assert.ErrorIs(t, err, ErrStatusConflict)
}
