package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cardioai-backend/internal/model"
	"github.com/iliyamo/cardioai-backend/internal/service"
)

// stubAuth records arguments and returns canned results.
type stubAuth struct {
	err       error
	delivered bool
	user      model.User
	username  string

	gotSignup service.SignupInput
	gotUpdate service.UpdateInput
	gotWho    service.Identity
	gotArgs   []string
}

func (s *stubAuth) Signup(_ context.Context, in service.SignupInput) (uint64, error) {
	s.gotSignup = in
	return 1, s.err
}
func (s *stubAuth) Login(_ context.Context, u, p string) (service.LoginResult, error) {
	s.gotArgs = []string{u, p}
	if s.err != nil {
		return service.LoginResult{}, s.err
	}
	return service.LoginResult{Token: "tok", Username: u}, nil
}
func (s *stubAuth) Profile(_ context.Context, id uint64) (model.User, error) {
	s.gotWho = service.Identity{ID: id}
	return s.user, s.err
}
func (s *stubAuth) UpdateProfile(_ context.Context, who service.Identity, in service.UpdateInput) (string, error) {
	s.gotWho, s.gotUpdate = who, in
	return s.username, s.err
}
func (s *stubAuth) ForgotPassword(_ context.Context, email string) (bool, error) {
	s.gotArgs = []string{email}
	return s.delivered, s.err
}
func (s *stubAuth) VerifyOTP(_ context.Context, email, code string) error {
	s.gotArgs = []string{email, code}
	return s.err
}
func (s *stubAuth) ResetPassword(_ context.Context, email, code, pw string) error {
	s.gotArgs = []string{email, code, pw}
	return s.err
}

func kindErr(kind error, msg string) error {
	return oops.Code("TEST").With("message", msg).Wrap(kind)
}

func call(h echo.HandlerFunc, method, body string, who *service.Identity) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if who != nil {
		c.Set("identity", *who)
	}
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestSignup(t *testing.T) {
	s := &stubAuth{}
	h := NewAuthHandler(s, time.Second)

	rec := call(h.Signup, http.MethodPost, `{"username":"alice","email":"a@x.com","password":"Str0ng!pw"}`, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"message":"User registered successfully"}`, rec.Body.String())
	assert.Equal(t, service.SignupInput{Username: "alice", Email: "a@x.com", Password: "Str0ng!pw"}, s.gotSignup)

	s.err = kindErr(service.ErrConflict, service.MsgSignupDuplicate)
	rec = call(h.Signup, http.MethodPost, `{"username":"alice","email":"a@x.com","password":"Str0ng!pw"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.MsgSignupDuplicate, decode(t, rec)["error"])

	rec = call(h.Signup, http.MethodPost, `{"username":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid body", decode(t, rec)["error"])
}

func TestLogin(t *testing.T) {
	s := &stubAuth{}
	h := NewAuthHandler(s, time.Second)

	rec := call(h.Login, http.MethodPost, `{"username":"alice","password":"pw"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"token":"tok","username":"alice"}`, rec.Body.String())

	s.err = kindErr(service.ErrUnauthorized, service.MsgInvalidPassword)
	rec = call(h.Login, http.MethodPost, `{"username":"alice","password":"bad"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid password", decode(t, rec)["error"])
}

func TestProfile(t *testing.T) {
	s := &stubAuth{user: model.User{ID: 7, Username: "alice", Email: "a@x.com", PasswordHash: "secret-hash"}}
	h := NewAuthHandler(s, time.Second)

	rec := call(h.Profile, http.MethodGet, "", &service.Identity{ID: 7, Username: "alice"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":7,"username":"alice","email":"a@x.com"}`, rec.Body.String())
	assert.Equal(t, uint64(7), s.gotWho.ID)

	s.err = kindErr(service.ErrNotFound, service.MsgUserNotFound)
	rec = call(h.Profile, http.MethodGet, "", &service.Identity{ID: 7})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(h.Profile, http.MethodGet, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateProfile(t *testing.T) {
	s := &stubAuth{username: "alice"}
	h := NewAuthHandler(s, time.Second)
	who := &service.Identity{ID: 7, Username: "alice"}

	rec := call(h.UpdateProfile, http.MethodPost, `{"email":"new@x.com"}`, who)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Profile updated successfully!","username":"alice"}`, rec.Body.String())
	assert.Equal(t, service.UpdateInput{Email: "new@x.com"}, s.gotUpdate)
	assert.Equal(t, *who, s.gotWho)

	s.err = kindErr(service.ErrValidation, service.MsgNoFields)
	rec = call(h.UpdateProfile, http.MethodPost, `{}`, who)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.MsgNoFields, decode(t, rec)["error"])
}

func TestForgotPassword(t *testing.T) {
	s := &stubAuth{delivered: true}
	h := NewAuthHandler(s, time.Second)

	rec := call(h.ForgotPassword, http.MethodPost, `{"email":"a@x.com"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OTP sent successfully to your email!", decode(t, rec)["message"])

	s.delivered = false
	rec = call(h.ForgotPassword, http.MethodPost, `{"email":"a@x.com"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OTP generated! (Email failed, check server console for fallback OTP)", decode(t, rec)["message"])

	s.err = kindErr(service.ErrNotFound, service.MsgEmailNotFound)
	rec = call(h.ForgotPassword, http.MethodPost, `{"email":"x@x.com"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Email not found", decode(t, rec)["error"])
}

func TestVerifyOTP_AcceptsNumericCode(t *testing.T) {
	s := &stubAuth{}
	h := NewAuthHandler(s, time.Second)

	rec := call(h.VerifyOTP, http.MethodPost, `{"email":"a@x.com","otp":123456}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OTP verified! Now enter your new password.", decode(t, rec)["message"])
	assert.Equal(t, []string{"a@x.com", "123456"}, s.gotArgs)

	s.err = kindErr(service.ErrValidation, service.MsgInvalidOTP)
	rec = call(h.VerifyOTP, http.MethodPost, `{"email":"a@x.com","otp":"000000"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid or expired OTP", decode(t, rec)["error"])
}

func TestResetPassword(t *testing.T) {
	s := &stubAuth{}
	h := NewAuthHandler(s, time.Second)

	rec := call(h.ResetPassword, http.MethodPost, `{"email":"a@x.com","otp":"123456","newPassword":"NewStr0ng!"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Password reset successfully! You can now login.", decode(t, rec)["message"])
	assert.Equal(t, []string{"a@x.com", "123456", "NewStr0ng!"}, s.gotArgs)

	s.err = kindErr(service.ErrDependency, service.MsgUpdateFailed)
	rec = call(h.ResetPassword, http.MethodPost, `{"email":"a@x.com","otp":"123456","newPassword":"NewStr0ng!"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Update failed", decode(t, rec)["error"])
}

func TestStatusOf(t *testing.T) {
	cases := map[error]int{
		service.ErrValidation:   http.StatusBadRequest,
		service.ErrConflict:     http.StatusBadRequest,
		service.ErrUnauthorized: http.StatusUnauthorized,
		service.ErrForbidden:    http.StatusForbidden,
		service.ErrNotFound:     http.StatusNotFound,
		service.ErrDependency:   http.StatusInternalServerError,
		errors.New("other"):     http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, statusOf(kindErr(kind, "m")), kind.Error())
	}
}

func TestText_UnmarshalJSON(t *testing.T) {
	var v struct {
		A text `json:"a"`
		B text `json:"b"`
		C text `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"x","b":42,"c":null}`), &v))
	assert.Equal(t, text("x"), v.A)
	assert.Equal(t, text("42"), v.B)
	assert.Equal(t, text(""), v.C)

	assert.Error(t, json.Unmarshal([]byte(`{"a":{}}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"a":true}`), &v))
}

func TestHealthAndReady(t *testing.T) {
	rec := call(Health, http.MethodGet, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("refused") }

	rec = call(Ready(map[string]Check{"db": ok}), http.MethodGet, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"checks":{"db":"up"}}`, rec.Body.String())

	rec = call(Ready(map[string]Check{"db": ok, "redis": down}), http.MethodGet, "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"checks":{"db":"up","redis":"down"}}`, rec.Body.String())
}
