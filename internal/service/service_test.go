package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-booking/internal/clock"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
	"github.com/iliyamo/cinema-seat-booking/internal/queue"
	"github.com/iliyamo/cinema-seat-booking/internal/repository/memory"
	"github.com/iliyamo/cinema-seat-booking/internal/service"
)

const showS = uint64(1)

var t0 = time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

type fixture struct {
	store    *memory.Store
	clk      *clock.Manual
	locks    *service.SeatLockManager
	bookings *service.BookingCoordinator
	cache    *recordingCache
	events   *recordingPublisher
}

func newFixture(t *testing.T, seats ...string) *fixture {
	t.Helper()
	st := memory.New()
	specs := make([]memory.SeatSpec, 0, len(seats))
	for _, s := range seats {
		specs = append(specs, memory.SeatSpec{Number: s, PriceCents: 10})
	}
	require.NoError(t, st.AddShow(showS, "Evening show", specs...))
	f := &fixture{
		store:  st,
		clk:    clock.NewManual(t0),
		cache:  &recordingCache{},
		events: &recordingPublisher{},
	}
	f.locks = service.NewSeatLockManager(st.Seats(), st.Shows(), st, f.clk,
		service.WithLockCache(f.cache))
	f.bookings = service.NewBookingCoordinator(st.Seats(), st.Shows(), st.Bookings(), st, f.clk,
		service.WithBookingCache(f.cache), service.WithEventPublisher(f.events))
	return f
}

func (f *fixture) lock(t *testing.T, seat, holder string) {
	t.Helper()
	_, err := f.locks.Acquire(context.Background(), service.AcquireInput{ShowID: showS, SeatNumber: seat, HolderID: holder})
	require.NoError(t, err)
}

func (f *fixture) seat(t *testing.T, number string) *model.Seat {
	t.Helper()
	s, err := f.store.Seats().Get(context.Background(), showS, number)
	require.NoError(t, err)
	return s
}

func (f *fixture) show(t *testing.T) *model.Show {
	t.Helper()
	s, err := f.store.Shows().Get(context.Background(), showS)
	require.NoError(t, err)
	require.True(t, s.Conserved(), "counters not conserved: %+v", s)
	return s
}

func bookingInput(holder string, seats ...string) service.CreateBookingInput {
	return service.CreateBookingInput{
		ShowID:      showS,
		SeatNumbers: seats,
		HolderID:    holder,
		Email:       holder + "@example.com",
		Phone:       "+15550100",
	}
}

type cacheKey struct {
	showID        uint64
	gen           int64
	onlyAvailable bool
}

// recordingCache mirrors the generation scheme of the Redis seat cache.
type recordingCache struct {
	mu          sync.Mutex
	invalidated []uint64
	gens        map[uint64]int64
	entries     map[cacheKey][]model.SeatSummary
}

func (c *recordingCache) Get(_ context.Context, showID uint64, onlyAvailable bool) ([]model.SeatSummary, int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.gens[showID]
	v, ok := c.entries[cacheKey{showID, gen, onlyAvailable}]
	return v, gen, ok
}

func (c *recordingCache) Set(_ context.Context, showID uint64, onlyAvailable bool, gen int64, seats []model.SeatSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[cacheKey][]model.SeatSummary{}
	}
	c.entries[cacheKey{showID, gen, onlyAvailable}] = seats
}

func (c *recordingCache) Invalidate(_ context.Context, showID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, showID)
	if c.gens == nil {
		c.gens = map[uint64]int64{}
	}
	c.gens[showID]++
}

func (c *recordingCache) invalidations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.invalidated)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) published() []queue.BookingEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.BookingEvent(nil), p.events...)
}
