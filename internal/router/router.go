package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/cinema-seat-booking/internal/handler"    // handlers for seats, bookings and health
	"github.com/iliyamo/cinema-seat-booking/internal/middleware" // JWT authentication
)

// Deps bundles what RegisterRoutes needs.  JWTSecret empty means the /v1
// endpoints trust the user_id sent by the caller.  RateLimit may be nil.
type Deps struct {
	Seats     *handler.SeatHandler
	Bookings  *handler.BookingHandler
	DB        handler.Pinger
	JWTSecret string
	RateLimit echo.MiddlewareFunc
}

// RegisterRoutes registers the health check and every /v1 endpoint on e.
func RegisterRoutes(e *echo.Echo, d Deps) {
	// Load balancers and monitoring systems poll this endpoint.
	e.GET("/healthz", handler.Health(d.DB))

	v1 := e.Group("/v1")
	if d.JWTSecret != "" {
		v1.Use(middleware.JWTAuth(d.JWTSecret))
	}
	// Mutations share the rate limiter; reads are served from the cache.
	limited := []echo.MiddlewareFunc{}
	if d.RateLimit != nil {
		limited = append(limited, d.RateLimit)
	}

	// Seat availability and show counters
	v1.GET("/shows/:id", d.Seats.GetShow)
	v1.GET("/shows/:id/seats", d.Seats.ListSeats)
	v1.GET("/shows/:id/seats/available", d.Seats.ListAvailable)

	// Temporary seat locks
	v1.POST("/seats/lock", d.Seats.Lock, limited...)
	v1.POST("/seats/unlock", d.Seats.Unlock, limited...)

	// Bookings
	v1.POST("/bookings", d.Bookings.Create, limited...)
	v1.GET("/bookings/:id", d.Bookings.Get)
	v1.POST("/bookings/:id/confirm", d.Bookings.Confirm, limited...)
	v1.POST("/bookings/:id/cancel", d.Bookings.Cancel, limited...)
	v1.GET("/users/:userId/bookings", d.Bookings.ListByUser)
}
