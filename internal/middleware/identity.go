package middleware

// identity.go defines how the holder of a request is resolved.  When JWTAuth
// ran, the token subject is authoritative.  Otherwise the caller-supplied
// user id is used as is.

import (
	"strings"

	"github.com/labstack/echo/v4"
)

const holderKey = "holder_id"

// Authenticated reports whether JWTAuth stored a holder for this request.
func Authenticated(c echo.Context) bool {
	s, ok := c.Get(holderKey).(string)
	return ok && s != ""
}

// HolderID returns the authenticated holder when present, otherwise the
// trimmed fallback supplied by the caller.
func HolderID(c echo.Context, fallback string) string {
	if s, ok := c.Get(holderKey).(string); ok && s != "" {
		return s
	}
	return strings.TrimSpace(fallback)
}

// rateLimitIdentity identifies the caller for rate limiting.  Unauthenticated
// callers share the "anon" bucket per IP and route.
func rateLimitIdentity(c echo.Context) string {
	if s := HolderID(c, ""); s != "" {
		return s
	}
	return "anon"
}
