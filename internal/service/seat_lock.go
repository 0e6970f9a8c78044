package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-booking/internal/clock"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
	"github.com/iliyamo/cinema-seat-booking/internal/repository"
)

// DefaultLockTTL is the lock duration used when none is requested.
const DefaultLockTTL = 5 * time.Minute

// MaxLockTTL bounds caller-supplied lock durations.
const MaxLockTTL = time.Hour

// SeatLockManager grants and releases time-bounded exclusive seat locks.
// Locks are never swept in the background: a lapsed lock is treated as
// free by the next Acquire on that seat and reclaimed there.
type SeatLockManager struct {
	seats SeatStore
	shows ShowCounterStore
	tx    TxRunner
	clk   clock.Clock
	ttl   time.Duration
	cache SeatCache
	log   *zap.Logger
}

// LockOption configures a SeatLockManager.
type LockOption func(*SeatLockManager)

// WithLockTTL sets the default lock duration.
func WithLockTTL(d time.Duration) LockOption {
	return func(m *SeatLockManager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithLockCache sets the seat listing cache.
func WithLockCache(c SeatCache) LockOption {
	return func(m *SeatLockManager) { m.cache = c }
}

// WithLockLogger sets the logger.
func WithLockLogger(l *zap.Logger) LockOption {
	return func(m *SeatLockManager) {
		if l != nil {
			m.log = l
		}
	}
}

// NewSeatLockManager wires a lock manager over the given stores.
func NewSeatLockManager(seats SeatStore, shows ShowCounterStore, tx TxRunner, clk clock.Clock, opts ...LockOption) *SeatLockManager {
	m := &SeatLockManager{
		seats: seats,
		shows: shows,
		tx:    tx,
		clk:   clk,
		ttl:   DefaultLockTTL,
		log:   zap.NewNop(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// AcquireInput identifies the seat to lock and the caller.  A zero TTL
// selects the manager default.
type AcquireInput struct {
	ShowID     uint64
	SeatNumber string
	HolderID   string
	TTL        time.Duration
}

// ReleaseInput identifies the seat to unlock and the caller.
type ReleaseInput struct {
	ShowID     uint64
	SeatNumber string
	HolderID   string
}

// Acquire locks a seat for the caller.  It succeeds when the seat is
// available, or locked with a lapsed expiry (the previous holder is
// discarded).  It fails with ErrSeatUnavailable whenever neither applies:
// the seat is booked, validly locked by anyone (the caller included), or
// does not exist.
func (m *SeatLockManager) Acquire(ctx context.Context, in AcquireInput) (*model.Seat, error) {
	in.SeatNumber = strings.TrimSpace(in.SeatNumber)
	in.HolderID = strings.TrimSpace(in.HolderID)
	if err := validateSeatRef(in.ShowID, in.SeatNumber, in.HolderID); err != nil {
		return nil, err
	}
	ttl := in.TTL
	switch {
	case ttl < 0 || ttl > MaxLockTTL:
		return nil, fmt.Errorf("%w: lock duration must be between 0 and %s", ErrValidation, MaxLockTTL)
	case ttl == 0:
		ttl = m.ttl
	}
	now := m.clk.Now()
	expiry := now.Add(ttl)

	var seat *model.Seat
	err := m.tx.WithTx(ctx, func(ctx context.Context) error {
		ok, err := m.seats.LockIfAvailable(ctx, in.ShowID, in.SeatNumber, in.HolderID, now, expiry)
		if err != nil {
			return err
		}
		if ok {
			if err := m.shows.Adjust(ctx, in.ShowID, model.DeltaLock); err != nil {
				return err
			}
		} else {
			ok, err = m.seats.ReclaimExpired(ctx, in.ShowID, in.SeatNumber, in.HolderID, now, expiry)
			if err != nil {
				return err
			}
		}
		if !ok {
			return ErrSeatUnavailable
		}
		seat, err = m.seats.Get(ctx, in.ShowID, in.SeatNumber)
		return err
	})
	if err != nil {
		return nil, classify(m.log, "acquire", err)
	}
	m.invalidate(ctx, in.ShowID)
	m.log.Debug("seat locked",
		zap.Uint64("show_id", in.ShowID),
		zap.String("seat", in.SeatNumber),
		zap.String("holder", in.HolderID),
		zap.Time("expires_at", expiry))
	return seat, nil
}

// Release returns a seat locked by the caller to available.  It fails with
// ErrLockNotHeld when the seat is not locked by the caller.  A caller whose
// own lock lapsed, but was not yet reclaimed, may still release it.
func (m *SeatLockManager) Release(ctx context.Context, in ReleaseInput) (*model.Seat, error) {
	in.SeatNumber = strings.TrimSpace(in.SeatNumber)
	in.HolderID = strings.TrimSpace(in.HolderID)
	if err := validateSeatRef(in.ShowID, in.SeatNumber, in.HolderID); err != nil {
		return nil, err
	}
	var seat *model.Seat
	err := m.tx.WithTx(ctx, func(ctx context.Context) error {
		ok, err := m.seats.ReleaseIfHeld(ctx, in.ShowID, in.SeatNumber, in.HolderID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrLockNotHeld
		}
		if err := m.shows.Adjust(ctx, in.ShowID, model.DeltaRelease); err != nil {
			return err
		}
		seat, err = m.seats.Get(ctx, in.ShowID, in.SeatNumber)
		return err
	})
	if err != nil {
		return nil, classify(m.log, "release", err)
	}
	m.invalidate(ctx, in.ShowID)
	m.log.Debug("seat unlocked",
		zap.Uint64("show_id", in.ShowID),
		zap.String("seat", in.SeatNumber),
		zap.String("holder", in.HolderID))
	return seat, nil
}

// ListAvailable returns the seats of a show whose status is available,
// ordered by seat number.  Seats with a lapsed but unreclaimed lock are not
// listed.
func (m *SeatLockManager) ListAvailable(ctx context.Context, showID uint64) ([]model.SeatSummary, error) {
	return m.list(ctx, showID, true)
}

// ListAll returns every seat of a show with its stored status.
func (m *SeatLockManager) ListAll(ctx context.Context, showID uint64) ([]model.SeatSummary, error) {
	return m.list(ctx, showID, false)
}

// Show returns the counters of a show.
func (m *SeatLockManager) Show(ctx context.Context, showID uint64) (*model.Show, error) {
	if showID == 0 {
		return nil, fmt.Errorf("%w: show id is required", ErrValidation)
	}
	show, err := m.shows.Get(ctx, showID)
	if err != nil {
		return nil, classify(m.log, "show", err)
	}
	return show, nil
}

func (m *SeatLockManager) list(ctx context.Context, showID uint64, onlyAvailable bool) ([]model.SeatSummary, error) {
	if showID == 0 {
		return nil, fmt.Errorf("%w: show id is required", ErrValidation)
	}
	// The generation is read before the store so a change landing in
	// between retires this listing instead of being masked by it.
	gen := int64(-1)
	if m.cache != nil {
		seats, g, ok := m.cache.Get(ctx, showID, onlyAvailable)
		if ok {
			return seats, nil
		}
		gen = g
	}
	seats, err := m.seats.ListByShow(ctx, showID, onlyAvailable)
	if err != nil {
		return nil, classify(m.log, "list", err)
	}
	out := make([]model.SeatSummary, 0, len(seats))
	for _, s := range seats {
		sum := model.SeatSummary{SeatNumber: s.SeatNumber, PriceCents: s.PriceCents}
		if !onlyAvailable {
			sum.Status = s.Status
		}
		out = append(out, sum)
	}
	if m.cache != nil {
		m.cache.Set(ctx, showID, onlyAvailable, gen, out)
	}
	return out, nil
}

func (m *SeatLockManager) invalidate(ctx context.Context, showID uint64) {
	if m.cache != nil {
		m.cache.Invalidate(ctx, showID)
	}
}

// classify passes service errors through, maps a missing record to
// ErrNotFound and wraps everything else as ErrTransactionFailure.
func classify(log *zap.Logger, op string, err error) error {
	switch {
	case isServiceErr(err):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	}
	log.Warn("store operation failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %w", ErrTransactionFailure, err)
}

func isServiceErr(err error) bool {
	for _, target := range []error{
		ErrValidation, ErrSeatUnavailable, ErrLockNotHeld, ErrLockMismatch,
		ErrTransactionFailure, ErrNotFound, ErrInvalidTransition,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func validateSeatRef(showID uint64, seatNumber, holderID string) error {
	switch {
	case showID == 0:
		return fmt.Errorf("%w: show id is required", ErrValidation)
	case seatNumber == "":
		return fmt.Errorf("%w: seat number is required", ErrValidation)
	case holderID == "":
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	return nil
}
