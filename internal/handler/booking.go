package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-booking/internal/middleware"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
	"github.com/iliyamo/cinema-seat-booking/internal/service"
)

// Booker is the part of the booking coordinator used over HTTP.
type Booker interface {
	CreateBooking(ctx context.Context, in service.CreateBookingInput) (*model.Booking, error)
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	ListUserBookings(ctx context.Context, holderID string) ([]model.Booking, error)
	ConfirmBooking(ctx context.Context, id, transactionID string) (*model.Booking, error)
	CancelBooking(ctx context.Context, id string) (*model.Booking, error)
}

// BookingHandler serves the booking endpoints.  When the request carries an
// authenticated holder, bookings of other holders are reported as not
// found.
type BookingHandler struct {
	bookings Booker
}

// NewBookingHandler returns a BookingHandler.
func NewBookingHandler(b Booker) *BookingHandler { return &BookingHandler{bookings: b} }

type createBookingRequest struct {
	ShowID      uint64   `json:"show_id" validate:"required"`
	SeatNumbers []string `json:"seat_numbers" validate:"required,min=1,max=50,unique,dive,required,max=16"`
	UserID      string   `json:"user_id" validate:"max=64"`
	Email       string   `json:"email" validate:"required,email,max=255"`
	Phone       string   `json:"phone" validate:"required,max=32"`
}

type confirmBookingRequest struct {
	TransactionID string `json:"transaction_id" validate:"required,max=128"`
}

// Create handles POST /v1/bookings.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	b, err := h.bookings.CreateBooking(c.Request().Context(), service.CreateBookingInput{
		ShowID:      req.ShowID,
		SeatNumbers: req.SeatNumbers,
		HolderID:    middleware.HolderID(c, req.UserID),
		Email:       req.Email,
		Phone:       req.Phone,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	b, err := h.owned(c)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// ListByUser handles GET /v1/users/:userId/bookings.
func (h *BookingHandler) ListByUser(c echo.Context) error {
	list, err := h.bookings.ListUserBookings(c.Request().Context(), middleware.HolderID(c, c.Param("userId")))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

// Confirm handles POST /v1/bookings/:id/confirm.
func (h *BookingHandler) Confirm(c echo.Context) error {
	var req confirmBookingRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	if _, err := h.owned(c); err != nil {
		return writeError(c, err)
	}
	b, err := h.bookings.ConfirmBooking(c.Request().Context(), c.Param("id"), req.TransactionID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Cancel handles POST /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	if _, err := h.owned(c); err != nil {
		return writeError(c, err)
	}
	b, err := h.bookings.CancelBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// owned loads the booking named by the :id parameter and hides it from an
// authenticated holder who does not own it.
func (h *BookingHandler) owned(c echo.Context) (*model.Booking, error) {
	b, err := h.bookings.GetBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if middleware.Authenticated(c) && b.HolderID != middleware.HolderID(c, "") {
		return nil, service.ErrNotFound
	}
	return b, nil
}
