package router // package router defines how HTTP routes are registered for the API

import (
	"net"

	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/cardioai-backend/internal/handler"    // handlers that translate HTTP to service calls
	"github.com/iliyamo/cardioai-backend/internal/middleware" // JWT authentication and rate limiting
)

// RegisterRoutes registers the liveness and readiness probes.
func RegisterRoutes(e *echo.Echo, checks map[string]handler.Check) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(checks))
}

// ClientIP picks how c.RealIP() finds the client.  With no trusted proxies
// the socket peer is used and forwarding headers are ignored; otherwise
// X-Forwarded-For is walked back only through the listed networks.
func ClientIP(trusted []*net.IPNet) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, n := range trusted {
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

// RegisterAuth registers the credential endpoints under /api.  Endpoints
// that accept a password or a reset code without a session go through the
// limiter; profile endpoints require a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, auth middleware.Authenticator, limiter echo.MiddlewareFunc) {
	api := e.Group("/api")

	open := api.Group("", limiter)
	open.POST("/signup", a.Signup)
	open.POST("/login", a.Login)
	open.POST("/forgot-password", a.ForgotPassword)
	open.POST("/verify-otp", a.VerifyOTP)
	open.POST("/reset-password", a.ResetPassword)

	protected := api.Group("/profile", middleware.JWTAuth(auth))
	protected.GET("", a.Profile)
	protected.POST("/update", a.UpdateProfile)
}
