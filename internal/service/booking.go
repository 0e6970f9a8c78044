package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-booking/internal/clock"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
	"github.com/iliyamo/cinema-seat-booking/internal/queue"
	"github.com/iliyamo/cinema-seat-booking/internal/repository"
)

// maxReferenceAttempts bounds the retries on a booking reference collision.
const maxReferenceAttempts = 3

// BookingCoordinator turns a holder's valid locks into a committed
// booking.  The booking insert, the seat transition and the counter update
// happen in one unit of work: either all take effect or none do.
type BookingCoordinator struct {
	seats    SeatStore
	shows    ShowCounterStore
	bookings BookingStore
	tx       TxRunner
	clk      clock.Clock
	newRef   ReferenceGenerator
	newID    func() string
	cache    SeatCache
	events   EventPublisher
	log      *zap.Logger
}

// BookingOption configures a BookingCoordinator.
type BookingOption func(*BookingCoordinator)

// WithReferenceGenerator replaces the booking reference generator.
func WithReferenceGenerator(g ReferenceGenerator) BookingOption {
	return func(c *BookingCoordinator) {
		if g != nil {
			c.newRef = g
		}
	}
}

// WithReferencePrefix sets the prefix of generated booking references.
func WithReferencePrefix(prefix string) BookingOption {
	return func(c *BookingCoordinator) { c.newRef = NewReferenceGenerator(prefix) }
}

// WithBookingCache sets the seat listing cache invalidated after commits.
func WithBookingCache(sc SeatCache) BookingOption {
	return func(c *BookingCoordinator) { c.cache = sc }
}

// WithEventPublisher sets the publisher notified after booking changes.
func WithEventPublisher(p EventPublisher) BookingOption {
	return func(c *BookingCoordinator) { c.events = p }
}

// WithBookingLogger sets the logger.
func WithBookingLogger(l *zap.Logger) BookingOption {
	return func(c *BookingCoordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// NewBookingCoordinator wires a coordinator over the given stores.
func NewBookingCoordinator(seats SeatStore, shows ShowCounterStore, bookings BookingStore, tx TxRunner, clk clock.Clock, opts ...BookingOption) *BookingCoordinator {
	c := &BookingCoordinator{
		seats:    seats,
		shows:    shows,
		bookings: bookings,
		tx:       tx,
		clk:      clk,
		newRef:   NewReferenceGenerator(DefaultReferencePrefix),
		newID:    uuid.NewString,
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CreateBookingInput is the commit request of a holder.
type CreateBookingInput struct {
	ShowID      uint64
	SeatNumbers []string
	HolderID    string
	Email       string
	Phone       string
}

func (in *CreateBookingInput) normalize() error {
	in.HolderID = strings.TrimSpace(in.HolderID)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	switch {
	case in.ShowID == 0:
		return fmt.Errorf("%w: show id is required", ErrValidation)
	case len(in.SeatNumbers) == 0:
		return fmt.Errorf("%w: at least one seat is required", ErrValidation)
	case in.HolderID == "":
		return fmt.Errorf("%w: user id is required", ErrValidation)
	case in.Email == "":
		return fmt.Errorf("%w: email is required", ErrValidation)
	case in.Phone == "":
		return fmt.Errorf("%w: phone is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("%w: invalid email", ErrValidation)
	}
	seen := make(map[string]bool, len(in.SeatNumbers))
	seats := make([]string, 0, len(in.SeatNumbers))
	for _, s := range in.SeatNumbers {
		s = strings.TrimSpace(s)
		if s == "" {
			return fmt.Errorf("%w: empty seat number", ErrValidation)
		}
		if seen[s] {
			return fmt.Errorf("%w: duplicate seat %s", ErrValidation, s)
		}
		seen[s] = true
		seats = append(seats, s)
	}
	in.SeatNumbers = seats
	return nil
}

// CreateBooking commits the holder's locked seats into a pending booking.
//
// Every requested seat must be locked by the holder with an unexpired
// lock, otherwise ErrLockMismatch is returned and nothing changes.  If a
// seat is taken between that check and the commit, the whole unit is
// abandoned and ErrTransactionFailure is returned.  A booking reference
// collision is retried with a fresh reference.
func (c *BookingCoordinator) CreateBooking(ctx context.Context, in CreateBookingInput) (*model.Booking, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	now := c.clk.Now()

	locked, err := c.seats.FindLockedBy(ctx, in.ShowID, in.SeatNumbers, in.HolderID, now)
	if err != nil {
		return nil, classify(c.log, "find locked seats", err)
	}
	if len(locked) != len(in.SeatNumbers) {
		return nil, fmt.Errorf("%w: %d of %d seats are locked by the caller", ErrLockMismatch, len(locked), len(in.SeatNumbers))
	}
	var total uint64
	for _, s := range locked {
		total += uint64(s.PriceCents)
	}

	n := len(in.SeatNumbers)
	for attempt := 1; ; attempt++ {
		ref, err := c.newRef()
		if err != nil {
			return nil, fmt.Errorf("%w: generate reference: %w", ErrTransactionFailure, err)
		}
		b := &model.Booking{
			ID:              c.newID(),
			Reference:       ref,
			ShowID:          in.ShowID,
			HolderID:        in.HolderID,
			SeatNumbers:     append([]string(nil), in.SeatNumbers...),
			TotalPriceCents: total,
			Status:          model.BookingPending,
			PaymentStatus:   model.PaymentPending,
			Email:           in.Email,
			Phone:           in.Phone,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		err = c.tx.WithTx(ctx, func(ctx context.Context) error {
			if err := c.bookings.Create(ctx, b); err != nil {
				return err
			}
			marked, err := c.seats.MarkBooked(ctx, repository.MarkBookedParams{
				ShowID:      in.ShowID,
				SeatNumbers: in.SeatNumbers,
				HolderID:    in.HolderID,
				BookingID:   b.ID,
				BookingRef:  b.Reference,
				Now:         now,
			})
			if err != nil {
				return err
			}
			if marked != int64(n) {
				return repository.ErrConcurrentModification
			}
			return c.shows.Adjust(ctx, in.ShowID, model.DeltaCommit(n))
		})
		if errors.Is(err, repository.ErrDuplicateReference) && attempt < maxReferenceAttempts {
			c.log.Info("booking reference collision, retrying", zap.String("reference", ref), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			c.log.Warn("booking commit failed",
				zap.Uint64("show_id", in.ShowID),
				zap.String("holder", in.HolderID),
				zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrTransactionFailure, err)
		}
		c.afterChange(ctx, queue.EventBookingCreated, b)
		c.log.Debug("booking committed",
			zap.String("booking_id", b.ID),
			zap.String("reference", b.Reference),
			zap.Int("seats", n))
		return b, nil
	}
}

// GetBooking returns a booking by ID.
func (c *BookingCoordinator) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: booking id is required", ErrValidation)
	}
	b, err := c.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, classify(c.log, "get booking", err)
	}
	return b, nil
}

// ListUserBookings returns the holder's bookings, newest first.  A holder
// without bookings gets an empty list.
func (c *BookingCoordinator) ListUserBookings(ctx context.Context, holderID string) ([]model.Booking, error) {
	holderID = strings.TrimSpace(holderID)
	if holderID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	out, err := c.bookings.ListByHolder(ctx, holderID)
	if err != nil {
		return nil, classify(c.log, "list bookings", err)
	}
	return out, nil
}

// ConfirmBooking records a completed payment for a pending booking.
func (c *BookingCoordinator) ConfirmBooking(ctx context.Context, id, transactionID string) (*model.Booking, error) {
	id = strings.TrimSpace(id)
	transactionID = strings.TrimSpace(transactionID)
	if id == "" {
		return nil, fmt.Errorf("%w: booking id is required", ErrValidation)
	}
	if transactionID == "" {
		return nil, fmt.Errorf("%w: transaction id is required", ErrValidation)
	}
	now := c.clk.Now()
	var b *model.Booking
	err := c.tx.WithTx(ctx, func(ctx context.Context) error {
		err := c.bookings.UpdateStatus(ctx, id, model.StatusUpdate{
			From:          model.BookingPending,
			To:            model.BookingConfirmed,
			PaymentStatus: model.PaymentCompleted,
			TransactionID: &transactionID,
			ConfirmedAt:   &now,
			UpdatedAt:     now,
		})
		if err != nil {
			return err
		}
		b, err = c.bookings.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, c.transitionErr("confirm booking", err)
	}
	c.afterChange(ctx, queue.EventBookingConfirmed, b)
	return b, nil
}

// CancelBooking cancels a pending booking and returns its seats to
// available.
func (c *BookingCoordinator) CancelBooking(ctx context.Context, id string) (*model.Booking, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: booking id is required", ErrValidation)
	}
	now := c.clk.Now()
	var b *model.Booking
	err := c.tx.WithTx(ctx, func(ctx context.Context) error {
		err := c.bookings.UpdateStatus(ctx, id, model.StatusUpdate{
			From:          model.BookingPending,
			To:            model.BookingCancelled,
			PaymentStatus: model.PaymentFailed,
			UpdatedAt:     now,
		})
		if err != nil {
			return err
		}
		b, err = c.bookings.GetByID(ctx, id)
		if err != nil {
			return err
		}
		released, err := c.seats.ReleaseBooked(ctx, b.ShowID, b.ID)
		if err != nil {
			return err
		}
		if released != int64(len(b.SeatNumbers)) {
			return repository.ErrConcurrentModification
		}
		return c.shows.Adjust(ctx, b.ShowID, model.DeltaCancel(len(b.SeatNumbers)))
	})
	if err != nil {
		return nil, c.transitionErr("cancel booking", err)
	}
	c.afterChange(ctx, queue.EventBookingCancelled, b)
	return b, nil
}

func (c *BookingCoordinator) transitionErr(op string, err error) error {
	if errors.Is(err, repository.ErrStatusConflict) {
		return fmt.Errorf("%w: booking is not pending", ErrInvalidTransition)
	}
	return classify(c.log, op, err)
}

// afterChange invalidates cached listings and publishes the event.  Both
// are best effort: the booking change is already durable.
func (c *BookingCoordinator) afterChange(ctx context.Context, t queue.BookingEventType, b *model.Booking) {
	if c.cache != nil {
		c.cache.Invalidate(ctx, b.ShowID)
	}
	if c.events == nil {
		return
	}
	if err := c.events.Publish(ctx, queue.NewBookingEvent(t, b, c.clk.Now())); err != nil {
		c.log.Warn("publish booking event failed",
			zap.String("type", string(t)),
			zap.String("booking_id", b.ID),
			zap.Error(err))
	}
}
