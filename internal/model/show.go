package model

import "time"

// Show holds the aggregate seat counters for a scheduled event.  The
// counters always satisfy AvailableSeats + LockedSeats + BookedSeats ==
// TotalSeats; every mutation is expressed as a balanced CounterDelta.
//
// Fields:
//
//	ID             – primary key identifier.
//	Title          – name of the show (catalog data, informational only).
//	TotalSeats     – number of seats created for the show.
//	AvailableSeats – seats currently available.
//	LockedSeats    – seats currently locked (including lapsed locks not yet reclaimed).
//	BookedSeats    – seats booked.
type Show struct {
	ID             uint64    // shows.id
	Title          string    // shows.title
	TotalSeats     int       // shows.total_seats
	AvailableSeats int       // shows.available_seats
	LockedSeats    int       // shows.locked_seats
	BookedSeats    int       // shows.booked_seats
	CreatedAt      time.Time // shows.created_at
	UpdatedAt      time.Time // shows.updated_at
}

// Conserved reports whether the counters add up to the total.
func (s Show) Conserved() bool {
	return s.AvailableSeats >= 0 && s.LockedSeats >= 0 && s.BookedSeats >= 0 &&
		s.AvailableSeats+s.LockedSeats+s.BookedSeats == s.TotalSeats
}

// CounterDelta is a change applied to a show's counters in one step.
type CounterDelta struct {
	Available int
	Locked    int
	Booked    int
}

// Balanced reports whether the delta preserves the show total.
func (d CounterDelta) Balanced() bool {
	return d.Available+d.Locked+d.Booked == 0
}

// IsZero reports whether the delta changes nothing.
func (d CounterDelta) IsZero() bool {
	return d.Available == 0 && d.Locked == 0 && d.Booked == 0
}

// Common deltas used by the lock and booking paths.
var (
	DeltaLock    = CounterDelta{Available: -1, Locked: 1}
	DeltaRelease = CounterDelta{Available: 1, Locked: -1}
)

// DeltaCommit moves n seats from locked to booked.
func DeltaCommit(n int) CounterDelta { return CounterDelta{Locked: -n, Booked: n} }

// DeltaCancel moves n seats from booked back to available.
func DeltaCancel(n int) CounterDelta { return CounterDelta{Available: n, Booked: -n} }
