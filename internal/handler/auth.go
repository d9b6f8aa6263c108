package handler

import (
	"context"  // provides context with cancellation for store calls
	"net/http" // HTTP status codes and primitives
	"time"     // timeouts for store calls

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/cardioai-backend/internal/model"
	"github.com/iliyamo/cardioai-backend/internal/service"
)

// Auth is what the handlers need from the credential service.
// *service.AuthService implements it.
type Auth interface {
	Signup(ctx context.Context, in service.SignupInput) (uint64, error)
	Login(ctx context.Context, username, password string) (service.LoginResult, error)
	Profile(ctx context.Context, id uint64) (model.User, error)
	UpdateProfile(ctx context.Context, who service.Identity, in service.UpdateInput) (string, error)
	ForgotPassword(ctx context.Context, email string) (bool, error)
	VerifyOTP(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
}

// AuthHandler serves the signup, login and password reset endpoints.
type AuthHandler struct {
	Svc     Auth
	Timeout time.Duration // deadline applied to each request's store calls
}

func NewAuthHandler(svc Auth, timeout time.Duration) *AuthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AuthHandler{Svc: svc, Timeout: timeout}
}

// ----- DTOs -----

type signupReq struct {
	Username text `json:"username"`
	Email    text `json:"email"`
	Password text `json:"password"`
}
type loginReq struct {
	Username text `json:"username"`
	Password text `json:"password"`
}
type forgotReq struct {
	Email text `json:"email"`
}
type verifyReq struct {
	Email text `json:"email"`
	OTP   text `json:"otp"`
}
type resetReq struct {
	Email       text `json:"email"`
	OTP         text `json:"otp"`
	NewPassword text `json:"newPassword"`
}

type messageResp struct {
	Message string `json:"message"`
}
type loginResp struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

const (
	msgRegistered   = "User registered successfully"
	msgOTPSent      = "OTP sent successfully to your email!"
	msgOTPFallback  = "OTP generated! (Email failed, check server console for fallback OTP)"
	msgOTPVerified  = "OTP verified! Now enter your new password."
	msgPasswordDone = "Password reset successfully! You can now login."
	msgInvalidBody  = "invalid body"
)

func (h *AuthHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), h.Timeout)
}

// Signup: validate and create a user.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msgInvalidBody})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	_, err := h.Svc.Signup(ctx, service.SignupInput{
		Username: string(req.Username),
		Email:    string(req.Email),
		Password: string(req.Password),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, messageResp{Message: msgRegistered})
}

// Login: verify credentials and return a session token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msgInvalidBody})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := h.Svc.Login(ctx, string(req.Username), string(req.Password))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, loginResp{Token: res.Token, Username: res.Username})
}

// ForgotPassword: issue a reset code and mail it.  A mail failure still
// answers 200, with a message pointing at the server log.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msgInvalidBody})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	delivered, err := h.Svc.ForgotPassword(ctx, string(req.Email))
	if err != nil {
		return writeError(c, err)
	}
	if !delivered {
		return c.JSON(http.StatusOK, messageResp{Message: msgOTPFallback})
	}
	return c.JSON(http.StatusOK, messageResp{Message: msgOTPSent})
}

// VerifyOTP: check a reset code without consuming it.
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req verifyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msgInvalidBody})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Svc.VerifyOTP(ctx, string(req.Email), string(req.OTP)); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, messageResp{Message: msgOTPVerified})
}

// ResetPassword: consume a reset code and set the new password.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msgInvalidBody})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Svc.ResetPassword(ctx, string(req.Email), string(req.OTP), string(req.NewPassword)); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, messageResp{Message: msgPasswordDone})
}
