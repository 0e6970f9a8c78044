package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-booking/internal/service"
)

// statusFor maps a service error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrSeatUnavailable),
		errors.Is(err, service.ErrLockMismatch),
		errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, service.ErrLockNotHeld), errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrTransactionFailure):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": kind, "message": ...}.  Store failures
// are not described to the client.
func writeError(c echo.Context, err error) error {
	status := statusFor(err)
	body := echo.Map{"error": service.Kind(err)}
	switch {
	case status >= http.StatusInternalServerError && errors.Is(err, service.ErrTransactionFailure):
		body["message"] = "the operation could not be completed, please retry"
	case status >= http.StatusInternalServerError:
		body["message"] = "internal server error"
	default:
		body["message"] = err.Error()
	}
	var fields FieldErrors
	if errors.As(err, &fields) {
		body["details"] = fields
	}
	return c.JSON(status, body)
}

// bind decodes the JSON body into req and validates it.  The returned error
// is always a validation error.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: malformed request body", service.ErrValidation)
	}
	return c.Validate(req)
}
