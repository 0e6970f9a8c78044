// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the log-writing consumer.
package queue

import (
	"time"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// BookingEventType names the booking lifecycle step an event reports.
type BookingEventType string

const (
	EventBookingCreated   BookingEventType = "booking.created"
	EventBookingConfirmed BookingEventType = "booking.confirmed"
	EventBookingCancelled BookingEventType = "booking.cancelled"
)

// BookingEvent is published after a booking is committed, confirmed or
// cancelled.  It carries enough information for downstream consumers to log,
// notify or trigger analytics without querying the primary database.
type BookingEvent struct {
	Type            BookingEventType `json:"type"`
	BookingID       string           `json:"booking_id"`
	Reference       string           `json:"booking_reference"`
	ShowID          uint64           `json:"show_id"`
	HolderID        string           `json:"user_id"`
	SeatNumbers     []string         `json:"seats"`
	TotalPriceCents uint64           `json:"total_price_cents"`
	Status          string           `json:"status"`
	OccurredAt      string           `json:"occurred_at"`
}

// NewBookingEvent builds the event for b.  OccurredAt is formatted as RFC 3339
// in UTC.
func NewBookingEvent(t BookingEventType, b *model.Booking, at time.Time) BookingEvent {
	seats := make([]string, len(b.SeatNumbers))
	copy(seats, b.SeatNumbers)
	return BookingEvent{
		Type:            t,
		BookingID:       b.ID,
		Reference:       b.Reference,
		ShowID:          b.ShowID,
		HolderID:        b.HolderID,
		SeatNumbers:     seats,
		TotalPriceCents: b.TotalPriceCents,
		Status:          string(b.Status),
		OccurredAt:      at.UTC().Format(time.RFC3339),
	}
}
