package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cardioai-backend/internal/middleware"
	"github.com/iliyamo/cardioai-backend/internal/service"
)

type profileResp struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type updateReq struct {
	Username text `json:"username"`
	Email    text `json:"email"`
	Password text `json:"password"`
}

type updateResp struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

const msgProfileUpdated = "Profile updated successfully!"

// Profile returns the caller's id, username and email.  Requires JWTAuth.
func (h *AuthHandler) Profile(c echo.Context) error {
	who, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": service.MsgTokenMissing})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	u, err := h.Svc.Profile(ctx, who.ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, profileResp{ID: u.ID, Username: u.Username, Email: u.Email})
}

// UpdateProfile changes any of username, email and password.  Requires
// JWTAuth.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	who, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": service.MsgTokenMissing})
	}
	var req updateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msgInvalidBody})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	name, err := h.Svc.UpdateProfile(ctx, who, service.UpdateInput{
		Username: string(req.Username),
		Email:    string(req.Email),
		Password: string(req.Password),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, updateResp{Message: msgProfileUpdated, Username: name})
}
