package model

import "time"

// SeatStatus is the reservation state of a seat for one show.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatLocked    SeatStatus = "locked"
	SeatBooked    SeatStatus = "booked"
)

// Valid reports whether s is one of the known seat states.
func (s SeatStatus) Valid() bool {
	switch s {
	case SeatAvailable, SeatLocked, SeatBooked:
		return true
	}
	return false
}

// Seat describes a physical seat for a particular show together with its
// current reservation state.  Seats are uniquely identified by the pair
// (ShowID, SeatNumber) and are created once when the show is set up.
//
// Fields:
//
//	ID         – primary key identifier.
//	ShowID     – show to which this seat belongs.
//	SeatNumber – label of the seat within the show (e.g. "A1").
//	Status     – available, locked or booked.
//	LockedBy   – holder currently owning the lock (nil unless locked).
//	LockedAt   – when the current lock was taken.
//	LockExpiry – instant after which the lock may be reclaimed.
//	BookedBy   – holder that booked the seat (nil unless booked).
//	BookedAt   – when the seat was booked.
//	BookingID  – booking that owns the seat (nil unless booked).
//	BookingRef – reference of that booking (nil unless booked).
//	PriceCents – price fixed at seat creation.
type Seat struct {
	ID         uint64     // seats.id
	ShowID     uint64     // seats.show_id
	SeatNumber string     // seats.seat_number
	Status     SeatStatus // seats.status
	LockedBy   *string    // seats.locked_by (nullable)
	LockedAt   *time.Time // seats.locked_at (nullable)
	LockExpiry *time.Time // seats.lock_expiry (nullable)
	BookedBy   *string    // seats.booked_by (nullable)
	BookedAt   *time.Time // seats.booked_at (nullable)
	BookingID  *string    // seats.booking_id (nullable)
	BookingRef *string    // seats.booking_ref (nullable)
	PriceCents uint32     // seats.price_cents
	CreatedAt  time.Time  // seats.created_at
	UpdatedAt  time.Time  // seats.updated_at
}

// LockExpired reports whether the seat is locked and its lock lapsed at or
// before now.
func (s Seat) LockExpired(now time.Time) bool {
	return s.Status == SeatLocked && s.LockExpiry != nil && !s.LockExpiry.After(now)
}

// LockedByHolder reports whether the seat is locked by holderID with an
// expiry still in the future.
func (s Seat) LockedByHolder(holderID string, now time.Time) bool {
	return s.Status == SeatLocked &&
		s.LockedBy != nil && *s.LockedBy == holderID &&
		s.LockExpiry != nil && s.LockExpiry.After(now)
}

// SeatSummary is the read-only projection returned by seat listings.
// Status is omitted from the available-seat listing.
type SeatSummary struct {
	SeatNumber string     `json:"seat_number"`
	Status     SeatStatus `json:"status,omitempty"`
	PriceCents uint32     `json:"price_cents"`
}
