package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-booking/internal/middleware"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
	"github.com/iliyamo/cinema-seat-booking/internal/service"
)

// SeatLocker is the part of the seat lock manager used over HTTP.
type SeatLocker interface {
	Acquire(ctx context.Context, in service.AcquireInput) (*model.Seat, error)
	Release(ctx context.Context, in service.ReleaseInput) (*model.Seat, error)
	ListAvailable(ctx context.Context, showID uint64) ([]model.SeatSummary, error)
	ListAll(ctx context.Context, showID uint64) ([]model.SeatSummary, error)
	Show(ctx context.Context, showID uint64) (*model.Show, error)
}

// SeatHandler serves the seat lock and listing endpoints.
type SeatHandler struct {
	locks SeatLocker
}

// NewSeatHandler returns a SeatHandler.
func NewSeatHandler(locks SeatLocker) *SeatHandler { return &SeatHandler{locks: locks} }

type lockRequest struct {
	ShowID     uint64 `json:"show_id" validate:"required"`
	SeatNumber string `json:"seat_number" validate:"required,max=16"`
	UserID     string `json:"user_id" validate:"max=64"`
	TTLSeconds int    `json:"ttl_seconds" validate:"gte=0,lte=3600"`
}

type unlockRequest struct {
	ShowID     uint64 `json:"show_id" validate:"required"`
	SeatNumber string `json:"seat_number" validate:"required,max=16"`
	UserID     string `json:"user_id" validate:"max=64"`
}

// SeatView is the JSON form of a seat after a lock change.
type SeatView struct {
	ShowID     uint64           `json:"show_id"`
	SeatNumber string           `json:"seat_number"`
	Status     model.SeatStatus `json:"status"`
	LockedBy   *string          `json:"locked_by,omitempty"`
	LockExpiry *time.Time       `json:"lock_expiry,omitempty"`
	PriceCents uint32           `json:"price_cents"`
}

func seatView(s *model.Seat) SeatView {
	return SeatView{
		ShowID:     s.ShowID,
		SeatNumber: s.SeatNumber,
		Status:     s.Status,
		LockedBy:   s.LockedBy,
		LockExpiry: s.LockExpiry,
		PriceCents: s.PriceCents,
	}
}

// Lock handles POST /v1/seats/lock.
func (h *SeatHandler) Lock(c echo.Context) error {
	var req lockRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	seat, err := h.locks.Acquire(c.Request().Context(), service.AcquireInput{
		ShowID:     req.ShowID,
		SeatNumber: req.SeatNumber,
		HolderID:   middleware.HolderID(c, req.UserID),
		TTL:        time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, seatView(seat))
}

// Unlock handles POST /v1/seats/unlock.
func (h *SeatHandler) Unlock(c echo.Context) error {
	var req unlockRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	seat, err := h.locks.Release(c.Request().Context(), service.ReleaseInput{
		ShowID:     req.ShowID,
		SeatNumber: req.SeatNumber,
		HolderID:   middleware.HolderID(c, req.UserID),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, seatView(seat))
}

// ListSeats handles GET /v1/shows/:id/seats.
func (h *SeatHandler) ListSeats(c echo.Context) error {
	showID, err := showIDParam(c)
	if err != nil {
		return writeError(c, err)
	}
	seats, err := h.locks.ListAll(c.Request().Context(), showID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"show_id": showID, "seats": seats})
}

// ListAvailable handles GET /v1/shows/:id/seats/available.
func (h *SeatHandler) ListAvailable(c echo.Context) error {
	showID, err := showIDParam(c)
	if err != nil {
		return writeError(c, err)
	}
	seats, err := h.locks.ListAvailable(c.Request().Context(), showID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"show_id": showID, "seats": seats})
}

// GetShow handles GET /v1/shows/:id and reports the show counters.
func (h *SeatHandler) GetShow(c echo.Context) error {
	showID, err := showIDParam(c)
	if err != nil {
		return writeError(c, err)
	}
	show, err := h.locks.Show(c.Request().Context(), showID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":              show.ID,
		"title":           show.Title,
		"total_seats":     show.TotalSeats,
		"available_seats": show.AvailableSeats,
		"locked_seats":    show.LockedSeats,
		"booked_seats":    show.BookedSeats,
	})
}

func showIDParam(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid show id", service.ErrValidation)
	}
	return id, nil
}
