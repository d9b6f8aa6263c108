package router

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cardioai-backend/internal/config"
	"github.com/iliyamo/cardioai-backend/internal/handler"
	"github.com/iliyamo/cardioai-backend/internal/middleware"
	"github.com/iliyamo/cardioai-backend/internal/model"
	"github.com/iliyamo/cardioai-backend/internal/service"
	"github.com/iliyamo/cardioai-backend/internal/utils"
)

type okAuth struct{}

func (okAuth) Signup(context.Context, service.SignupInput) (uint64, error) { return 1, nil }
func (okAuth) Login(_ context.Context, u, _ string) (service.LoginResult, error) {
	return service.LoginResult{Token: "t", Username: u}, nil
}
func (okAuth) Profile(_ context.Context, id uint64) (model.User, error) {
	return model.User{ID: id, Username: "alice", Email: "a@x.com"}, nil
}
func (okAuth) UpdateProfile(_ context.Context, who service.Identity, _ service.UpdateInput) (string, error) {
	return who.Username, nil
}
func (okAuth) ForgotPassword(context.Context, string) (bool, error)        { return true, nil }
func (okAuth) VerifyOTP(context.Context, string, string) error             { return nil }
func (okAuth) ResetPassword(context.Context, string, string, string) error { return nil }

func newServer(t *testing.T, capacity int) (*echo.Echo, string) {
	t.Helper()
	e := echo.New()
	e.IPExtractor = ClientIP(nil)
	verifier := service.NewAuthService(nil, utils.Hasher{Cost: 4}, nil, service.Options{JWTSecret: "router-secret"})
	limiter := middleware.NewTokenBucket(config.RateLimitConfig{
		Enabled: true, Capacity: capacity, RefillTokens: 1, RefillInterval: time.Hour,
		TTL: time.Hour, KeyStrategy: "ip_route", Prefix: "rl",
	}, nil)

	RegisterRoutes(e, map[string]handler.Check{"db": func(context.Context) error { return nil }})
	RegisterAuth(e, handler.NewAuthHandler(okAuth{}, time.Second), verifier, limiter)

	tok, err := utils.NewAccessToken("router-secret", 7, "alice", time.Hour, time.Now())
	require.NoError(t, err)
	return e, tok.Token
}

func do(e *echo.Echo, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	e, tok := newServer(t, 100)

	cases := []struct {
		method, path, body, token string
		want                      int
	}{
		{http.MethodGet, "/healthz", "", "", http.StatusOK},
		{http.MethodGet, "/readyz", "", "", http.StatusOK},
		{http.MethodPost, "/api/signup", `{}`, "", http.StatusCreated},
		{http.MethodPost, "/api/login", `{}`, "", http.StatusOK},
		{http.MethodPost, "/api/forgot-password", `{}`, "", http.StatusOK},
		{http.MethodPost, "/api/verify-otp", `{}`, "", http.StatusOK},
		{http.MethodPost, "/api/reset-password", `{}`, "", http.StatusOK},
		{http.MethodGet, "/api/profile", "", tok, http.StatusOK},
		{http.MethodPost, "/api/profile/update", `{"email":"b@x.com"}`, tok, http.StatusOK},
		{http.MethodGet, "/api/profile", "", "", http.StatusUnauthorized},
		{http.MethodPost, "/api/profile/update", `{}`, "garbage", http.StatusForbidden},
		{http.MethodGet, "/api/nope", "", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := do(e, tc.method, tc.path, tc.body, tc.token)
		assert.Equal(t, tc.want, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRoutes_ProfileUsesTokenIdentity(t *testing.T) {
	e, tok := newServer(t, 100)
	rec := do(e, http.MethodGet, "/api/profile", "", tok)
	assert.JSONEq(t, `{"id":7,"username":"alice","email":"a@x.com"}`, rec.Body.String())
}

func TestRoutes_CredentialEndpointsAreRateLimited(t *testing.T) {
	e, tok := newServer(t, 2)

	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/api/verify-otp", `{}`, "").Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/api/verify-otp", `{}`, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(e, http.MethodPost, "/api/verify-otp", `{}`, "").Code)

	// profile is not behind the limiter
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/profile", "", tok).Code)
	}
}

func TestRoutes_ForwardedForDoesNotResetTheBucket(t *testing.T) {
	e, _ := newServer(t, 1)

	allowed := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/verify-otp", strings.NewReader(`{}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(echo.HeaderXForwardedFor, fmt.Sprintf("10.0.0.%d", i))
		req.RemoteAddr = "203.0.113.7:40000"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:40000"
	req.Header.Set(echo.HeaderXForwardedFor, "198.51.100.9, 10.1.2.3")

	assert.Equal(t, "203.0.113.7", ClientIP(nil)(req))

	_, proxies, err := net.ParseCIDR("203.0.113.0/24")
	require.NoError(t, err)
	// 10.1.2.3 is not a listed proxy, so it is the client
	assert.Equal(t, "10.1.2.3", ClientIP([]*net.IPNet{proxies})(req))

	_, both, err := net.ParseCIDR("10.0.0.0/8")
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.9", ClientIP([]*net.IPNet{proxies, both})(req))
}
