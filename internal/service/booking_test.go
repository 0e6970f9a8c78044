package service_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
	"github.com/iliyamo/cinema-seat-booking/internal/queue"
	"github.com/iliyamo/cinema-seat-booking/internal/repository"
	"github.com/iliyamo/cinema-seat-booking/internal/service"
)

// Scenario B.
func TestCreateBooking_CommitsLockedSeats(t *testing.T) {
	f := newFixture(t, "A1", "A2", "A3")
	f.lock(t, "A1", "H1")
	f.lock(t, "A2", "H1")
	before := f.show(t)

	b, err := f.bookings.CreateBooking(context.Background(), bookingInput("H1", "A1", "A2"))
	require.NoError(t, err)

	assert.Equal(t, uint64(20), b.TotalPriceCents)
	assert.Equal(t, model.BookingPending, b.Status)
	assert.Equal(t, model.PaymentPending, b.PaymentStatus)
	assert.Equal(t, []string{"A1", "A2"}, b.SeatNumbers)
	assert.Regexp(t, regexp.MustCompile(`^BK[0-9A-F]{16}$`), b.Reference)
	assert.NotEmpty(t, b.ID)

	for _, n := range []string{"A1", "A2"} {
		seat := f.seat(t, n)
		assert.Equal(t, model.SeatBooked, seat.Status)
		require.NotNil(t, seat.BookingID)
		assert.Equal(t, b.ID, *seat.BookingID)
		assert.Equal(t, b.Reference, *seat.BookingRef)
		assert.Equal(t, "H1", *seat.BookedBy)
		assert.Nil(t, seat.LockedBy)
		assert.Nil(t, seat.LockExpiry)
	}

	after := f.show(t)
	assert.Equal(t, before.LockedSeats-2, after.LockedSeats)
	assert.Equal(t, before.BookedSeats+2, after.BookedSeats)
	assert.Equal(t, before.AvailableSeats, after.AvailableSeats)

	stored, err := f.bookings.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, b, stored)

	events := f.events.published()
	require.Len(t, events, 1)
	assert.Equal(t, queue.EventBookingCreated, events[0].Type)
	assert.Equal(t, b.Reference, events[0].Reference)
	assert.Equal(t, []string{"A1", "A2"}, events[0].SeatNumbers)
}

// Scenario D.
func TestCreateBooking_LockMismatch(t *testing.T) {
	f := newFixture(t, "A4")
	f.lock(t, "A4", "H1")
	seatBefore := f.seat(t, "A4")
	showBefore := f.show(t)

	_, err := f.bookings.CreateBooking(context.Background(), bookingInput("H2", "A4"))
	require.ErrorIs(t, err, service.ErrLockMismatch)

	assert.Equal(t, seatBefore, f.seat(t, "A4"))
	assert.Equal(t, showBefore, f.show(t))
	list, err := f.bookings.ListUserBookings(context.Background(), "H2")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, f.events.published())
}

func TestCreateBooking_PartialLocksRejected(t *testing.T) {
	f := newFixture(t, "A1", "A2")
	f.lock(t, "A1", "H1")

	_, err := f.bookings.CreateBooking(context.Background(), bookingInput("H1", "A1", "A2"))
	require.ErrorIs(t, err, service.ErrLockMismatch)
	assert.Equal(t, model.SeatLocked, f.seat(t, "A1").Status)
	assert.Equal(t, model.SeatAvailable, f.seat(t, "A2").Status)
}

func TestCreateBooking_ExpiredLockRejected(t *testing.T) {
	f := newFixture(t, "A1")
	f.lock(t, "A1", "H1")
	f.clk.Advance(service.DefaultLockTTL)

	_, err := f.bookings.CreateBooking(context.Background(), bookingInput("H1", "A1"))
	assert.ErrorIs(t, err, service.ErrLockMismatch)
}

func TestCreateBooking_Validation(t *testing.T) {
	f := newFixture(t, "A1", "A2")
	f.lock(t, "A1", "H1")

	cases := map[string]func(in *service.CreateBookingInput){
		"no seats":       func(in *service.CreateBookingInput) { in.SeatNumbers = nil },
		"duplicate seat": func(in *service.CreateBookingInput) { in.SeatNumbers = []string{"A1", "A1"} },
		"empty seat":     func(in *service.CreateBookingInput) { in.SeatNumbers = []string{"A1", " "} },
		"no holder":      func(in *service.CreateBookingInput) { in.HolderID = "" },
		"no email":       func(in *service.CreateBookingInput) { in.Email = "" },
		"bad email":      func(in *service.CreateBookingInput) { in.Email = "not-an-email" },
		"no phone":       func(in *service.CreateBookingInput) { in.Phone = "" },
		"no show":        func(in *service.CreateBookingInput) { in.ShowID = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := bookingInput("H1", "A1")
			mutate(&in)
			_, err := f.bookings.CreateBooking(context.Background(), in)
			assert.ErrorIs(t, err, service.ErrValidation)
		})
	}
	assert.Equal(t, model.SeatLocked, f.seat(t, "A1").Status)
}

func TestCreateBooking_RetriesReferenceCollision(t *testing.T) {
	f := newFixture(t, "A1", "A2")
	refs := []string{"BKDUP", "BKDUP", "BKFRESH"}
	gen := func() (string, error) {
		r := refs[0]
		refs = refs[1:]
		return r, nil
	}
	coord := service.NewBookingCoordinator(f.store.Seats(), f.store.Shows(), f.store.Bookings(), f.store, f.clk,
		service.WithReferenceGenerator(gen))

	f.lock(t, "A1", "H1")
	first, err := coord.CreateBooking(context.Background(), bookingInput("H1", "A1"))
	require.NoError(t, err)
	assert.Equal(t, "BKDUP", first.Reference)

	f.lock(t, "A2", "H2")
	second, err := coord.CreateBooking(context.Background(), bookingInput("H2", "A2"))
	require.NoError(t, err)
	assert.Equal(t, "BKFRESH", second.Reference)
	assert.Equal(t, "BKFRESH", *f.seat(t, "A2").BookingRef)
	assert.Equal(t, 2, f.show(t).BookedSeats)
}

func TestCreateBooking_GivesUpAfterRepeatedCollisions(t *testing.T) {
	f := newFixture(t, "A1", "A2")
	coord := service.NewBookingCoordinator(f.store.Seats(), f.store.Shows(), f.store.Bookings(), f.store, f.clk,
		service.WithReferenceGenerator(func() (string, error) { return "BKSAME", nil }))

	f.lock(t, "A1", "H1")
	_, err := coord.CreateBooking(context.Background(), bookingInput("H1", "A1"))
	require.NoError(t, err)

	f.lock(t, "A2", "H2")
	_, err = coord.CreateBooking(context.Background(), bookingInput("H2", "A2"))
	require.ErrorIs(t, err, service.ErrTransactionFailure)
	assert.ErrorIs(t, err, repository.ErrDuplicateReference)
	assert.Equal(t, model.SeatLocked, f.seat(t, "A2").Status)
}

func TestCreateBooking_CounterFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t, "A1", "A2")
	f.lock(t, "A1", "H1")
	f.lock(t, "A2", "H1")
	showBefore := f.show(t)

	shows := &failingShows{ShowCounterStore: f.store.Shows(), err: errors.New("disk full")}
	coord := service.NewBookingCoordinator(f.store.Seats(), shows, f.store.Bookings(), f.store, f.clk)

	_, err := coord.CreateBooking(context.Background(), bookingInput("H1", "A1", "A2"))
	require.ErrorIs(t, err, service.ErrTransactionFailure)

	for _, n := range []string{"A1", "A2"} {
		seat := f.seat(t, n)
		assert.Equal(t, model.SeatLocked, seat.Status)
		assert.Equal(t, "H1", *seat.LockedBy)
		assert.Nil(t, seat.BookingID)
	}
	assert.Equal(t, showBefore, f.show(t))
	list, err := f.bookings.ListUserBookings(context.Background(), "H1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateBooking_ConcurrentChangeAbandonsCommit(t *testing.T) {
	f := newFixture(t, "A1", "A2")
	f.lock(t, "A1", "H1")
	f.lock(t, "A2", "H1")

	// A2's lock is taken away between the lock check and the commit.
	seats := &stealingSeats{SeatStore: f.store.Seats(), steal: func(ctx context.Context) {
		_, err := f.store.Seats().ReleaseIfHeld(ctx, showS, "A2", "H1")
		require.NoError(t, err)
	}}
	coord := service.NewBookingCoordinator(seats, f.store.Shows(), f.store.Bookings(), f.store, f.clk)

	_, err := coord.CreateBooking(context.Background(), bookingInput("H1", "A1", "A2"))
	require.ErrorIs(t, err, service.ErrTransactionFailure)
	assert.ErrorIs(t, err, repository.ErrConcurrentModification)

	assert.Equal(t, model.SeatLocked, f.seat(t, "A1").Status)
	assert.Nil(t, f.seat(t, "A1").BookingID)
	list, err := f.bookings.ListUserBookings(context.Background(), "H1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateBooking_PublishFailureIsNotSurfaced(t *testing.T) {
	f := newFixture(t, "A1")
	f.events.err = errors.New("broker down")
	f.lock(t, "A1", "H1")

	b, err := f.bookings.CreateBooking(context.Background(), bookingInput("H1", "A1"))
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, b.Status)
}

func TestGetBooking_NotFound(t *testing.T) {
	f := newFixture(t, "A1")
	_, err := f.bookings.GetBooking(context.Background(), "missing")
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = f.bookings.GetBooking(context.Background(), "")
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestListUserBookings_NewestFirst(t *testing.T) {
	f := newFixture(t, "A1", "A2")
	f.lock(t, "A1", "H1")
	older, err := f.bookings.CreateBooking(context.Background(), bookingInput("H1", "A1"))
	require.NoError(t, err)

	f.clk.Advance(time.Minute)
	f.lock(t, "A2", "H1")
	newer, err := f.bookings.CreateBooking(context.Background(), bookingInput("H1", "A2"))
	require.NoError(t, err)

	list, err := f.bookings.ListUserBookings(context.Background(), "H1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)

	none, err := f.bookings.ListUserBookings(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestConfirmBooking(t *testing.T) {
	f := newFixture(t, "A1")
	f.lock(t, "A1", "H1")
	b, err := f.bookings.CreateBooking(context.Background(), bookingInput("H1", "A1"))
	require.NoError(t, err)

	f.clk.Advance(time.Minute)
	confirmed, err := f.bookings.ConfirmBooking(context.Background(), b.ID, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, confirmed.Status)
	assert.Equal(t, model.PaymentCompleted, confirmed.PaymentStatus)
	require.NotNil(t, confirmed.TransactionID)
	assert.Equal(t, "txn-1", *confirmed.TransactionID)
	require.NotNil(t, confirmed.ConfirmedAt)
	assert.Equal(t, t0.Add(time.Minute), *confirmed.ConfirmedAt)
	assert.Equal(t, b.TotalPriceCents, confirmed.TotalPriceCents)

	_, err = f.bookings.ConfirmBooking(context.Background(), b.ID, "txn-2")
	assert.ErrorIs(t, err, service.ErrInvalidTransition)
	_, err = f.bookings.CancelBooking(context.Background(), b.ID)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)
	_, err = f.bookings.ConfirmBooking(context.Background(), "missing", "txn-3")
	assert.ErrorIs(t, err, service.ErrNotFound)

	events := f.events.published()
	require.Len(t, events, 2)
	assert.Equal(t, queue.EventBookingConfirmed, events[1].Type)
}

func TestCancelBooking_ReleasesSeats(t *testing.T) {
	f := newFixture(t, "A1", "A2", "A3")
	f.lock(t, "A1", "H1")
	f.lock(t, "A2", "H1")
	b, err := f.bookings.CreateBooking(context.Background(), bookingInput("H1", "A1", "A2"))
	require.NoError(t, err)

	cancelled, err := f.bookings.CancelBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, cancelled.Status)
	assert.Equal(t, model.PaymentFailed, cancelled.PaymentStatus)

	for _, n := range []string{"A1", "A2"} {
		seat := f.seat(t, n)
		assert.Equal(t, model.SeatAvailable, seat.Status)
		assert.Nil(t, seat.BookingID)
		assert.Nil(t, seat.BookedBy)
	}
	show := f.show(t)
	assert.Equal(t, 3, show.AvailableSeats)
	assert.Equal(t, 0, show.BookedSeats)

	// The released seats can be locked again.
	f.lock(t, "A1", "H2")
}

func TestKind(t *testing.T) {
	assert.Equal(t, "ValidationError", service.Kind(service.ErrValidation))
	assert.Equal(t, "SeatUnavailable", service.Kind(service.ErrSeatUnavailable))
	assert.Equal(t, "LockNotHeld", service.Kind(service.ErrLockNotHeld))
	assert.Equal(t, "LockMismatch", service.Kind(service.ErrLockMismatch))
	assert.Equal(t, "TransactionFailure", service.Kind(errors.Join(service.ErrTransactionFailure, repository.ErrNotFound)))
	assert.Equal(t, "NotFound", service.Kind(service.ErrNotFound))
	assert.Equal(t, "InvalidTransition", service.Kind(service.ErrInvalidTransition))
	assert.Equal(t, "InternalError", service.Kind(errors.New("boom")))
	assert.Equal(t, "", service.Kind(nil))
}

func TestReferenceGenerator(t *testing.T) {
	gen := service.NewReferenceGenerator("BK")
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		ref, err := gen()
		require.NoError(t, err)
		assert.Regexp(t, `^BK[0-9A-F]{16}$`, ref)
		assert.False(t, seen[ref])
		seen[ref] = true
	}
}

type stealingSeats struct {
	service.SeatStore
	steal func(ctx context.Context)
}

func (s *stealingSeats) MarkBooked(ctx context.Context, p repository.MarkBookedParams) (int64, error) {
	s.steal(ctx)
	return s.SeatStore.MarkBooked(ctx, p)
}
