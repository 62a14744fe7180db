// Package handlers contains the handlers for the API
package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/nsvirk/profileapi/internal/api/middleware"
	"github.com/nsvirk/profileapi/internal/service"
	"github.com/nsvirk/profileapi/pkg/utils/response"
)

// SessionHandler is the handler for the auth API
type SessionHandler struct {
	service *service.SessionService
}

// NewSessionHandler creates a new handler for the auth API
func NewSessionHandler(service *service.SessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

// Register creates a new account
func (h *SessionHandler) Register(c echo.Context) error {
	var in service.RegisterInput
	if err := c.Bind(&in); err != nil {
		return errInvalidBody
	}
	user, err := h.service.Register(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return response.CreatedResponse(c, user)
}

// Login starts a session and returns its token
func (h *SessionHandler) Login(c echo.Context) error {
	var in service.LoginInput
	if err := c.Bind(&in); err != nil {
		return errInvalidBody
	}
	result, err := h.service.Login(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return response.SuccessResponse(c, result)
}

// Logout ends the caller's session
func (h *SessionHandler) Logout(c echo.Context) error {
	id, err := middleware.GetIdentity(c)
	if err != nil {
		return err
	}
	if err := h.service.Logout(c.Request().Context(), id.Session); err != nil {
		return err
	}
	return response.SuccessResponse(c, "Logged out")
}

type confirmRequest struct {
	Email string `json:"email" form:"email"`
	Code  string `json:"code" form:"code"`
}

// ConfirmEmail checks the code sent on registration
func (h *SessionHandler) ConfirmEmail(c echo.Context) error {
	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	user, err := h.service.ConfirmEmail(c.Request().Context(), req.Email, req.Code)
	if err != nil {
		return err
	}
	return response.SuccessResponse(c, user)
}

// ForgotPassword mails a reset code. The answer is the same whether or not
// the address is registered.
func (h *SessionHandler) ForgotPassword(c echo.Context) error {
	var req struct {
		Email string `json:"email" form:"email" validate:"required,email"`
	}
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.service.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return response.SuccessResponse(c, "If the address is registered, a reset code was sent")
}

type resetPasswordRequest struct {
	Email       string `json:"email" form:"email" validate:"required,email"`
	Code        string `json:"code" form:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" form:"newPassword" validate:"required"`
}

// ResetPassword sets a new password with a mailed reset code
func (h *SessionHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.service.ResetPassword(c.Request().Context(), req.Email, req.Code, req.NewPassword); err != nil {
		return err
	}
	return response.SuccessResponse(c, "Password updated")
}
