// Package memory provides an in-process backend for the seat, show counter
// and booking stores, used by the service, handler and router tests.  All
// three stores share one mutex, so every conditional update is
// linearizable and WithTx makes a unit of work all-or-nothing by restoring
// a snapshot when it fails.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
	"github.com/iliyamo/cinema-seat-booking/internal/repository"
)

type seatKey struct {
	showID     uint64
	seatNumber string
}

type state struct {
	shows      map[uint64]model.Show
	seats      map[seatKey]model.Seat
	bookings   map[string]model.Booking
	references map[string]string
}

func (s *state) clone() *state {
	c := &state{
		shows:      make(map[uint64]model.Show, len(s.shows)),
		seats:      make(map[seatKey]model.Seat, len(s.seats)),
		bookings:   make(map[string]model.Booking, len(s.bookings)),
		references: make(map[string]string, len(s.references)),
	}
	for k, v := range s.shows {
		c.shows[k] = v
	}
	for k, v := range s.seats {
		c.seats[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.references {
		c.references[k] = v
	}
	return c
}

// SeatSpec describes a seat created by AddShow.
type SeatSpec struct {
	Number     string
	PriceCents uint32
}

// Store is the shared state behind Seats, Shows and Bookings.
type Store struct {
	mu     sync.Mutex
	st     *state
	nextID uint64
	now    func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		st: &state{
			shows:      map[uint64]model.Show{},
			seats:      map[seatKey]model.Seat{},
			bookings:   map[string]model.Booking{},
			references: map[string]string{},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// AddShow creates a show with the given seats, all available.  It returns
// an error if the show already exists or a seat number repeats.
func (s *Store) AddShow(showID uint64, title string, seats ...SeatSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.shows[showID]; ok {
		return fmt.Errorf("show %d already exists", showID)
	}
	now := s.now()
	seen := make(map[string]bool, len(seats))
	for _, sp := range seats {
		if sp.Number == "" || seen[sp.Number] {
			return fmt.Errorf("invalid or duplicate seat number %q", sp.Number)
		}
		seen[sp.Number] = true
	}
	for _, sp := range seats {
		s.nextID++
		s.st.seats[seatKey{showID, sp.Number}] = model.Seat{
			ID:         s.nextID,
			ShowID:     showID,
			SeatNumber: sp.Number,
			Status:     model.SeatAvailable,
			PriceCents: sp.PriceCents,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}
	s.st.shows[showID] = model.Show{
		ID:             showID,
		Title:          title,
		TotalSeats:     len(seats),
		AvailableSeats: len(seats),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return nil
}

// Seats returns the seat store view.
func (s *Store) Seats() *Seats { return &Seats{s: s} }

// Shows returns the show counter store view.
func (s *Store) Shows() *Shows { return &Shows{s: s} }

// Bookings returns the booking store view.
func (s *Store) Bookings() *Bookings { return &Bookings{s: s} }

type txKey struct{}

// WithTx runs fn while holding the store lock.  If fn returns an error the
// state is restored to what it was before fn ran.  Nested calls with a
// context from an enclosing unit run fn directly.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock acquires the store mutex unless ctx belongs to a unit of work that
// already holds it.  The returned func releases what was acquired.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Seats implements the seat store.
type Seats struct{ s *Store }

// Get returns a copy of a seat or repository.ErrNotFound.
func (v *Seats) Get(ctx context.Context, showID uint64, seatNumber string) (*model.Seat, error) {
	defer v.s.lock(ctx)()
	seat, ok := v.s.st.seats[seatKey{showID, seatNumber}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &seat, nil
}

// LockIfAvailable moves an available seat to locked for holderID.
func (v *Seats) LockIfAvailable(ctx context.Context, showID uint64, seatNumber, holderID string, now, expiry time.Time) (bool, error) {
	defer v.s.lock(ctx)()
	k := seatKey{showID, seatNumber}
	seat, ok := v.s.st.seats[k]
	if !ok || seat.Status != model.SeatAvailable {
		return false, nil
	}
	setLock(&seat, holderID, now, expiry)
	seat.BookedBy, seat.BookedAt, seat.BookingID, seat.BookingRef = nil, nil, nil, nil
	v.s.st.seats[k] = seat
	return true, nil
}

// ReclaimExpired hands a seat whose lock lapsed at or before now to holderID.
func (v *Seats) ReclaimExpired(ctx context.Context, showID uint64, seatNumber, holderID string, now, expiry time.Time) (bool, error) {
	defer v.s.lock(ctx)()
	k := seatKey{showID, seatNumber}
	seat, ok := v.s.st.seats[k]
	if !ok || !seat.LockExpired(now) {
		return false, nil
	}
	setLock(&seat, holderID, now, expiry)
	v.s.st.seats[k] = seat
	return true, nil
}

// ReleaseIfHeld returns a seat locked by holderID to available.
func (v *Seats) ReleaseIfHeld(ctx context.Context, showID uint64, seatNumber, holderID string) (bool, error) {
	defer v.s.lock(ctx)()
	k := seatKey{showID, seatNumber}
	seat, ok := v.s.st.seats[k]
	if !ok || seat.Status != model.SeatLocked || seat.LockedBy == nil || *seat.LockedBy != holderID {
		return false, nil
	}
	seat.Status = model.SeatAvailable
	seat.LockedBy, seat.LockedAt, seat.LockExpiry = nil, nil, nil
	seat.UpdatedAt = v.s.now()
	v.s.st.seats[k] = seat
	return true, nil
}

// ListByShow returns the show's seats ordered by seat number.
func (v *Seats) ListByShow(ctx context.Context, showID uint64, onlyAvailable bool) ([]model.Seat, error) {
	defer v.s.lock(ctx)()
	seats := make([]model.Seat, 0)
	for k, seat := range v.s.st.seats {
		if k.showID != showID {
			continue
		}
		if onlyAvailable && seat.Status != model.SeatAvailable {
			continue
		}
		seats = append(seats, seat)
	}
	sortSeats(seats)
	return seats, nil
}

// FindLockedBy returns the requested seats validly locked by holderID.
func (v *Seats) FindLockedBy(ctx context.Context, showID uint64, seatNumbers []string, holderID string, now time.Time) ([]model.Seat, error) {
	defer v.s.lock(ctx)()
	seats := make([]model.Seat, 0, len(seatNumbers))
	seen := make(map[string]bool, len(seatNumbers))
	for _, n := range seatNumbers {
		if seen[n] {
			continue
		}
		seen[n] = true
		seat, ok := v.s.st.seats[seatKey{showID, n}]
		if ok && seat.LockedByHolder(holderID, now) {
			seats = append(seats, seat)
		}
	}
	sortSeats(seats)
	return seats, nil
}

// MarkBooked transitions the seats still validly locked by p.HolderID to
// booked and returns how many were transitioned.
func (v *Seats) MarkBooked(ctx context.Context, p repository.MarkBookedParams) (int64, error) {
	defer v.s.lock(ctx)()
	var n int64
	for _, num := range p.SeatNumbers {
		k := seatKey{p.ShowID, num}
		seat, ok := v.s.st.seats[k]
		if !ok || !seat.LockedByHolder(p.HolderID, p.Now) {
			continue
		}
		now := p.Now.UTC()
		holder, id, ref := p.HolderID, p.BookingID, p.BookingRef
		seat.Status = model.SeatBooked
		seat.BookedBy, seat.BookedAt, seat.BookingID, seat.BookingRef = &holder, &now, &id, &ref
		seat.LockedBy, seat.LockedAt, seat.LockExpiry = nil, nil, nil
		seat.UpdatedAt = now
		v.s.st.seats[k] = seat
		n++
	}
	return n, nil
}

// ReleaseBooked returns the seats booked under bookingID to available.
func (v *Seats) ReleaseBooked(ctx context.Context, showID uint64, bookingID string) (int64, error) {
	defer v.s.lock(ctx)()
	var n int64
	now := v.s.now()
	for k, seat := range v.s.st.seats {
		if k.showID != showID || seat.Status != model.SeatBooked || seat.BookingID == nil || *seat.BookingID != bookingID {
			continue
		}
		seat.Status = model.SeatAvailable
		seat.BookedBy, seat.BookedAt, seat.BookingID, seat.BookingRef = nil, nil, nil, nil
		seat.UpdatedAt = now
		v.s.st.seats[k] = seat
		n++
	}
	return n, nil
}

// Shows implements the show counter store.
type Shows struct{ s *Store }

// Get returns a copy of a show or repository.ErrNotFound.
func (v *Shows) Get(ctx context.Context, showID uint64) (*model.Show, error) {
	defer v.s.lock(ctx)()
	show, ok := v.s.st.shows[showID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &show, nil
}

// Adjust applies a balanced delta, refusing any change that would leave a
// counter negative.
func (v *Shows) Adjust(ctx context.Context, showID uint64, d model.CounterDelta) error {
	if !d.Balanced() {
		return fmt.Errorf("unbalanced counter delta %+v", d)
	}
	defer v.s.lock(ctx)()
	show, ok := v.s.st.shows[showID]
	if !ok {
		return repository.ErrNotFound
	}
	if d.IsZero() {
		return nil
	}
	if show.AvailableSeats+d.Available < 0 || show.LockedSeats+d.Locked < 0 || show.BookedSeats+d.Booked < 0 {
		return repository.ErrCounterUnderflow
	}
	show.AvailableSeats += d.Available
	show.LockedSeats += d.Locked
	show.BookedSeats += d.Booked
	show.UpdatedAt = v.s.now()
	v.s.st.shows[showID] = show
	return nil
}

// Bookings implements the booking store.
type Bookings struct{ s *Store }

// Create stores b.  It returns repository.ErrDuplicateReference when the ID
// or reference is already taken.
func (v *Bookings) Create(ctx context.Context, b *model.Booking) error {
	defer v.s.lock(ctx)()
	if _, ok := v.s.st.bookings[b.ID]; ok {
		return repository.ErrDuplicateReference
	}
	if _, ok := v.s.st.references[b.Reference]; ok {
		return repository.ErrDuplicateReference
	}
	stored := *b
	stored.SeatNumbers = append([]string(nil), b.SeatNumbers...)
	v.s.st.bookings[b.ID] = stored
	v.s.st.references[b.Reference] = b.ID
	return nil
}

// GetByID returns a copy of a booking or repository.ErrNotFound.
func (v *Bookings) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	defer v.s.lock(ctx)()
	b, ok := v.s.st.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	b.SeatNumbers = append([]string(nil), b.SeatNumbers...)
	return &b, nil
}

// ListByHolder returns the holder's bookings, newest first.
func (v *Bookings) ListByHolder(ctx context.Context, holderID string) ([]model.Booking, error) {
	defer v.s.lock(ctx)()
	out := make([]model.Booking, 0)
	for _, b := range v.s.st.bookings {
		if b.HolderID != holderID {
			continue
		}
		b.SeatNumbers = append([]string(nil), b.SeatNumbers...)
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// UpdateStatus applies upd only when the booking is in upd.From.
func (v *Bookings) UpdateStatus(ctx context.Context, id string, upd model.StatusUpdate) error {
	defer v.s.lock(ctx)()
	b, ok := v.s.st.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	if b.Status != upd.From {
		return repository.ErrStatusConflict
	}
	b.Status = upd.To
	b.PaymentStatus = upd.PaymentStatus
	if upd.TransactionID != nil {
		tid := *upd.TransactionID
		b.TransactionID = &tid
	}
	if upd.ConfirmedAt != nil {
		at := upd.ConfirmedAt.UTC()
		b.ConfirmedAt = &at
	}
	b.UpdatedAt = upd.UpdatedAt.UTC()
	v.s.st.bookings[id] = b
	return nil
}

func setLock(seat *model.Seat, holderID string, now, expiry time.Time) {
	holder := holderID
	at, exp := now.UTC(), expiry.UTC()
	seat.Status = model.SeatLocked
	seat.LockedBy, seat.LockedAt, seat.LockExpiry = &holder, &at, &exp
	seat.UpdatedAt = at
}

func sortSeats(seats []model.Seat) {
	sort.Slice(seats, func(i, j int) bool { return seats[i].SeatNumber < seats[j].SeatNumber })
}
