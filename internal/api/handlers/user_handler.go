// Package handlers contains the handlers for the API
package handlers

import (
	"bytes"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nsvirk/profileapi/internal/api/middleware"
	"github.com/nsvirk/profileapi/internal/models"
	"github.com/nsvirk/profileapi/internal/service"
	"github.com/nsvirk/profileapi/internal/validator"
	"github.com/nsvirk/profileapi/pkg/utils/response"
)

// AvatarFormField is the multipart field carrying the avatar file
const AvatarFormField = "avatar"

var errInvalidBody = response.BadRequest(service.CodeInvalidInput, "Invalid request body")

// bindAndValidate binds the body into req and checks its validate tags
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return errInvalidBody
	}
	if err := c.Validate(req); err != nil {
		field, ok := validator.InvalidField(err)
		if !ok {
			return errInvalidBody.Wrap(err)
		}
		return response.BadRequest(service.CodeInvalidInput, "Invalid "+field).Wrap(err)
	}
	return nil
}

// UserHandler is the handler for the user API
type UserHandler struct {
	service *service.UserService
}

// NewUserHandler creates a new handler for the user API
func NewUserHandler(service *service.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// TokenUserResponse is returned by profile writes
type TokenUserResponse struct {
	Token string            `json:"token"`
	User  *models.UserModel `json:"user"`
}

// GetUser returns any user by id
func (h *UserHandler) GetUser(c echo.Context) error {
	user, err := h.service.GetUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return response.SuccessResponse(c, user)
}

// SearchUsers returns users whose name or email matches the search term
func (h *UserHandler) SearchUsers(c echo.Context) error {
	users, err := h.service.SearchUsers(c.Request().Context(), c.Param("search"))
	if err != nil {
		return err
	}
	if users == nil {
		users = []models.UserModel{}
	}
	return response.SuccessResponse(c, users)
}

// GetCurrentUser returns the caller
func (h *UserHandler) GetCurrentUser(c echo.Context) error {
	id, err := middleware.GetIdentity(c)
	if err != nil {
		return err
	}
	user, err := h.service.GetCurrentUser(c.Request().Context(), id.UserID)
	if err != nil {
		return err
	}
	return response.SuccessResponse(c, user)
}

// UpdateProfile merges the request body into the caller's profile
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	id, err := middleware.GetIdentity(c)
	if err != nil {
		return err
	}
	var in service.ProfileInput
	if err := c.Bind(&in); err != nil {
		return errInvalidBody
	}
	user, err := h.service.UpdateProfile(c.Request().Context(), id.UserID, in)
	if err != nil {
		return err
	}
	return response.SuccessResponse(c, TokenUserResponse{Token: id.Session.Token, User: user})
}

// UpdateAvatar stores the uploaded avatar and links it to the caller
func (h *UserHandler) UpdateAvatar(c echo.Context) error {
	id, err := middleware.GetIdentity(c)
	if err != nil {
		return err
	}

	file, err := c.FormFile(AvatarFormField)
	if err != nil {
		return response.BadRequest(service.CodeInvalidAvatar, "Invalid avatar").Wrap(err)
	}
	src, err := file.Open()
	if err != nil {
		return response.BadRequest(service.CodeInvalidAvatar, "Invalid avatar").Wrap(err)
	}
	defer src.Close()

	// the declared part type is not trusted, the content is sniffed instead
	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return response.BadRequest(service.CodeInvalidAvatar, "Invalid avatar").Wrap(err)
	}
	head = head[:n]

	upload := &service.AvatarUpload{
		ContentType: http.DetectContentType(head),
		Size:        file.Size,
		Body:        io.MultiReader(bytes.NewReader(head), src),
	}
	user, err := h.service.UpdateAvatar(c.Request().Context(), id.UserID, upload)
	if err != nil {
		return err
	}
	return response.SuccessResponse(c, TokenUserResponse{Token: id.Session.Token, User: user})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" form:"currentPassword"`
	NewPassword     string `json:"newPassword" form:"newPassword"`
}

// ChangePassword replaces the caller's password
func (h *UserHandler) ChangePassword(c echo.Context) error {
	id, err := middleware.GetIdentity(c)
	if err != nil {
		return err
	}
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	user, err := h.service.ChangePassword(c.Request().Context(), id.UserID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		return err
	}
	return response.SuccessResponse(c, user)
}

type blockRequest struct {
	UserID  string `json:"userId" form:"userId" validate:"required"`
	Blocked bool   `json:"blocked" form:"blocked"`
}

// ToggleBlocked blocks or unblocks a user. Admin only.
func (h *UserHandler) ToggleBlocked(c echo.Context) error {
	id, err := middleware.GetIdentity(c)
	if err != nil {
		return err
	}
	var req blockRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.service.ToggleBlocked(c.Request().Context(), id.UserID, req.UserID, req.Blocked)
	if err != nil {
		return err
	}
	return response.CreatedResponse(c, user)
}
