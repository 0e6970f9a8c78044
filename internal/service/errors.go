// Package service implements the seat lock manager and the booking
// coordinator on top of the seat, show counter and booking stores.
package service

import "errors"

var (
	// ErrValidation reports malformed input.
	ErrValidation = errors.New("validation error")
	// ErrSeatUnavailable is returned when a seat is booked or validly locked
	// by any holder.
	ErrSeatUnavailable = errors.New("seat unavailable")
	// ErrLockNotHeld is returned on release when the caller does not hold
	// the seat's lock.
	ErrLockNotHeld = errors.New("lock not held")
	// ErrLockMismatch is returned on commit when some requested seats are
	// not validly locked by the holder.
	ErrLockMismatch = errors.New("lock mismatch")
	// ErrTransactionFailure wraps any store failure or commit-time
	// concurrent modification.  No partial effects remain.
	ErrTransactionFailure = errors.New("transaction failure")
	// ErrNotFound is returned for unknown seats, shows and bookings.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when a booking status change is
	// requested from a state other than pending.
	ErrInvalidTransition = errors.New("invalid booking transition")
)

// Kind returns the taxonomy name of err, or "InternalError" when err is
// not one of the service errors.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrSeatUnavailable):
		return "SeatUnavailable"
	case errors.Is(err, ErrLockNotHeld):
		return "LockNotHeld"
	case errors.Is(err, ErrLockMismatch):
		return "LockMismatch"
	case errors.Is(err, ErrTransactionFailure):
		return "TransactionFailure"
	case errors.Is(err, ErrInvalidTransition):
		return "InvalidTransition"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	}
	return "InternalError"
}
