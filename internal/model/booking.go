package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// PaymentStatus is recorded opaquely; the engine never processes payments.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Booking records a holder's purchase of one or more seats of a show.  It
// is created in the pending state atomically with the seat and counter
// transition and may later move to confirmed or cancelled, only from
// pending.  TotalPriceCents is the sum of the seat prices at commit time
// and is never recomputed.
type Booking struct {
	ID              string        `json:"id"`
	Reference       string        `json:"booking_reference"`
	ShowID          uint64        `json:"show_id"`
	HolderID        string        `json:"user_id"`
	SeatNumbers     []string      `json:"seat_numbers"`
	TotalPriceCents uint64        `json:"total_price_cents"`
	Status          BookingStatus `json:"status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	TransactionID   *string       `json:"transaction_id,omitempty"`
	Email           string        `json:"email"`
	Phone           string        `json:"phone"`
	CreatedAt       time.Time     `json:"created_at"`
	ConfirmedAt     *time.Time    `json:"confirmed_at,omitempty"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// StatusUpdate describes a conditional booking status transition.  The
// update applies only when the stored status equals From.
type StatusUpdate struct {
	From          BookingStatus
	To            BookingStatus
	PaymentStatus PaymentStatus
	TransactionID *string
	ConfirmedAt   *time.Time
	UpdatedAt     time.Time
}
