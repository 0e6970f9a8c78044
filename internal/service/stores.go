package service

import (
	"context"
	"time"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
	"github.com/iliyamo/cinema-seat-booking/internal/queue"
	"github.com/iliyamo/cinema-seat-booking/internal/repository"
)

// SeatStore is the per-seat record store.  Each mutating method is a
// single conditional update: it either applies in full or reports that its
// precondition did not hold.  Implementations return repository.ErrNotFound
// for unknown seats.
type SeatStore interface {
	Get(ctx context.Context, showID uint64, seatNumber string) (*model.Seat, error)
	LockIfAvailable(ctx context.Context, showID uint64, seatNumber, holderID string, now, expiry time.Time) (bool, error)
	ReclaimExpired(ctx context.Context, showID uint64, seatNumber, holderID string, now, expiry time.Time) (bool, error)
	ReleaseIfHeld(ctx context.Context, showID uint64, seatNumber, holderID string) (bool, error)
	ListByShow(ctx context.Context, showID uint64, onlyAvailable bool) ([]model.Seat, error)
	FindLockedBy(ctx context.Context, showID uint64, seatNumbers []string, holderID string, now time.Time) ([]model.Seat, error)
	MarkBooked(ctx context.Context, p repository.MarkBookedParams) (int64, error)
	ReleaseBooked(ctx context.Context, showID uint64, bookingID string) (int64, error)
}

// ShowCounterStore holds the aggregate counters of each show.
type ShowCounterStore interface {
	Get(ctx context.Context, showID uint64) (*model.Show, error)
	Adjust(ctx context.Context, showID uint64, d model.CounterDelta) error
}

// BookingStore holds committed bookings.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	ListByHolder(ctx context.Context, holderID string) ([]model.Booking, error)
	UpdateStatus(ctx context.Context, id string, upd model.StatusUpdate) error
}

// TxRunner runs fn as one all-or-nothing unit across every store sharing
// the runner's backend.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SeatCache caches seat listings per show.  A nil SeatCache is never
// consulted.  Get reports, on a miss, the generation the listing must be
// stored under; Set with a generation that Invalidate has since retired
// must not be visible to later reads.
type SeatCache interface {
	Get(ctx context.Context, showID uint64, onlyAvailable bool) (seats []model.SeatSummary, gen int64, ok bool)
	Set(ctx context.Context, showID uint64, onlyAvailable bool, gen int64, seats []model.SeatSummary)
	Invalidate(ctx context.Context, showID uint64)
}

// EventPublisher delivers booking events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}
