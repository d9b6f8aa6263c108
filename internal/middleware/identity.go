package middleware

// identity.go holds the context plumbing shared by the auth and rate limit
// middleware and the handlers behind them.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cardioai-backend/internal/service"
)

const identityKey = "identity"

// IdentityFrom returns the identity JWTAuth stored for this request.
func IdentityFrom(c echo.Context) (service.Identity, bool) {
	who, ok := c.Get(identityKey).(service.Identity)
	return who, ok
}

// userID returns the authenticated user's id as a string, or "anon" on
// routes that do not require a token.
func userID(c echo.Context) string {
	if who, ok := IdentityFrom(c); ok && who.ID != 0 {
		return strconv.FormatUint(who.ID, 10)
	}
	return "anon"
}
