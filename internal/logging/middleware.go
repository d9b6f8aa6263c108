package logging

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"
)

// HeaderRequestID is echoed back on every response.
const HeaderRequestID = echo.HeaderXRequestID

// RequestLogger tags each request with an ID (the client's X-Request-ID, or
// a fresh ULID), attaches a contextual logger to the request context and
// writes one line per request once the response is known.
func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			reqID := req.Header.Get(HeaderRequestID)
			if reqID == "" {
				reqID = ulid.Make().String()
			}
			c.Response().Header().Set(HeaderRequestID, reqID)

			logger := base.With(
				"req_id", reqID,
				"method", req.Method,
				"path", req.URL.Path,
				"remote_addr", c.RealIP(),
			)
			c.SetRequest(req.WithContext(WithContext(req.Context(), logger)))

			err := next(c)
			if err != nil {
				// let echo render the error so the logged status is the real one
				c.Error(err)
			}

			logger.Info("http_request",
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"user_agent", req.UserAgent(),
			)
			return nil
		}
	}
}
