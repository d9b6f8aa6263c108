package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cardioai-backend/internal/logging"
	"github.com/iliyamo/cardioai-backend/internal/service"
)

// statusOf maps a service error kind to its HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": message}.  Server-side failures are
// logged with their cause; the caller only sees the public message.
func writeError(c echo.Context, err error) error {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request().Context()).Error("request failed", "err", err)
	}
	return c.JSON(status, echo.Map{"error": service.Message(err)})
}
