package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cardioai-backend/internal/service"
)

// Authenticator turns a raw bearer token into the caller's identity.
// *service.AuthService implements it.
type Authenticator interface {
	Authenticate(raw string) (service.Identity, error)
}

// JWTAuth returns an Echo middleware that validates the access token in the
// Authorization header and stores the caller's identity in the context for
// handlers (see IdentityFrom).  A missing token yields 401, a token that
// fails verification yields 403.
func JWTAuth(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			who, err := auth.Authenticate(bearerToken(c.Request().Header.Get(echo.HeaderAuthorization)))
			if err != nil {
				status := http.StatusUnauthorized
				if errors.Is(err, service.ErrForbidden) {
					status = http.StatusForbidden
				}
				return c.JSON(status, echo.Map{"error": service.Message(err)})
			}
			c.Set(identityKey, who)
			return next(c)
		}
	}
}

// bearerToken returns the second space separated field of an Authorization
// header ("Bearer <token>"), or "" when there is none.
func bearerToken(header string) string {
	parts := strings.Split(header, " ")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
