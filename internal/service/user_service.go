// Package service contains the service layer for the Profile API
package service

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/nsvirk/profileapi/internal/models"
	"github.com/nsvirk/profileapi/internal/repository"
	"github.com/nsvirk/profileapi/internal/storage"
	"github.com/nsvirk/profileapi/internal/validator"
	"github.com/nsvirk/profileapi/pkg/utils/auditlog"
	"github.com/nsvirk/profileapi/pkg/utils/response"
	"github.com/nsvirk/profileapi/pkg/utils/zaplogger"
	"golang.org/x/crypto/bcrypt"
)

// UserService reads and updates user profiles
type UserService struct {
	users          repository.UserStore
	sessions       repository.SessionStore
	avatars        storage.AvatarStore
	audit          Auditor
	avatarMaxBytes int64
	validate       *validator.Validator
}

// NewUserService creates a new user service
func NewUserService(users repository.UserStore, sessions repository.SessionStore, avatars storage.AvatarStore, audit Auditor, avatarMaxBytes int64) *UserService {
	return &UserService{
		users:          users,
		sessions:       sessions,
		avatars:        avatars,
		audit:          audit,
		avatarMaxBytes: avatarMaxBytes,
		validate:       validator.New(),
	}
}

// GetUser gets any user by id
func (s *UserService) GetUser(ctx context.Context, id string) (*models.UserModel, error) {
	user, err := s.users.ReadUser(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, response.NotFound(CodeUserNotFound, "User not found")
		}
		return nil, response.Internal(CodeUserStore, err)
	}
	return user, nil
}

// SearchUsers finds users by name or email
func (s *UserService) SearchUsers(ctx context.Context, term string) ([]models.UserModel, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, response.BadRequest(CodeInvalidSearch, "Invalid search")
	}
	users, err := s.users.SearchUsers(ctx, term, repository.MaxSearchResults)
	if err != nil {
		return nil, response.Internal(CodeUserStore, err)
	}
	return users, nil
}

// GetCurrentUser gets the authenticated user
func (s *UserService) GetCurrentUser(ctx context.Context, userID string) (*models.UserModel, error) {
	user, err := s.users.ReadUser(ctx, userID)
	if err != nil {
		return nil, response.Internal(CodeCurrentUserStore, err)
	}
	return user, nil
}

// ProfileInput holds the updatable profile fields. Empty fields keep the
// stored value.
type ProfileInput struct {
	Firstname string `json:"firstname" form:"firstname" validate:"omitempty,max=60,name"`
	Lastname  string `json:"lastname" form:"lastname" validate:"omitempty,max=60,name"`
	Cpf       string `json:"cpf" form:"cpf" validate:"omitempty,cpf"`
	Gender    string `json:"gender" form:"gender" validate:"omitempty,oneof=M F O"`
	Avatar    string `json:"avatar" form:"avatar" validate:"omitempty,max=2048,http_url"`
	Birthday  string `json:"birthday" form:"birthday" validate:"omitempty,birthday"`
	About     string `json:"about" form:"about" validate:"max=500"`
	Celular   string `json:"celular" form:"celular" validate:"omitempty,celular"`
}

func (in ProfileInput) empty() bool {
	return in == ProfileInput{}
}

func (s *UserService) validateProfile(in ProfileInput) *response.APIError {
	err := s.validate.Validate(in)
	if err == nil {
		return nil
	}
	field, ok := validator.InvalidField(err)
	switch {
	case !ok:
		return response.BadRequest(CodeInvalidField, "Invalid parameters").Wrap(err)
	case field == "celular":
		return response.BadRequest(CodeInvalidPhone, "Invalid mobile/phone").Wrap(err)
	}
	return response.BadRequest(CodeInvalidField, "Invalid "+field).Wrap(err)
}

// UpdateProfile merges the provided fields into the stored profile
func (s *UserService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.UserModel, error) {
	if apiErr := s.validateProfile(in); apiErr != nil {
		return nil, apiErr
	}
	if in.empty() {
		return nil, response.BadRequest(CodeNoParameters, "Invalid parameters")
	}

	user, err := s.users.ReadUser(ctx, userID)
	if err != nil {
		return nil, response.Internal(CodeProfileUserStore, err)
	}
	// store URLs are only set by UpdateAvatar
	if in.Avatar != "" && in.Avatar != user.Avatar && s.avatars.Owns(in.Avatar) {
		return nil, response.BadRequest(CodeInvalidField, "Invalid avatar")
	}

	user.Firstname = firstNonEmpty(in.Firstname, user.Firstname)
	user.Lastname = firstNonEmpty(in.Lastname, user.Lastname)
	user.Cpf = firstNonEmpty(in.Cpf, user.Cpf)
	user.Avatar = firstNonEmpty(in.Avatar, user.Avatar)
	user.Gender = firstNonEmpty(in.Gender, user.Gender)
	user.Birthday = firstNonEmpty(in.Birthday, user.Birthday)
	user.About = firstNonEmpty(in.About, user.About)
	user.Celular = firstNonEmpty(in.Celular, user.Celular)

	updated, err := s.users.UpdateUser(ctx, user)
	if err != nil {
		return nil, response.Internal(CodeProfileUpdate, err)
	}
	s.audit.Record(ctx, auditlog.EventProfileUpdated, userID, userID, nil)
	return updated, nil
}

// AvatarUpload is an uploaded avatar file
type AvatarUpload struct {
	ContentType string
	Size        int64
	Body        io.Reader
}

// UpdateAvatar validates and stores a new avatar, then points the profile
// at it. The previous avatar is removed on success, the new one if the
// profile update fails. Both removals are best effort.
func (s *UserService) UpdateAvatar(ctx context.Context, userID string, upload *AvatarUpload) (*models.UserModel, error) {
	if upload == nil {
		return nil, response.BadRequest(CodeInvalidAvatar, "Invalid avatar")
	}
	if err := storage.Validate(upload.ContentType, upload.Size, s.avatarMaxBytes); err != nil {
		return nil, response.BadRequest(CodeInvalidAvatar, "Invalid avatar").Wrap(err)
	}

	user, err := s.users.ReadUser(ctx, userID)
	if err != nil {
		return nil, response.Internal(CodeAvatarUserStore, err)
	}

	url, err := s.avatars.Save(ctx, userID, upload.ContentType, upload.Body, upload.Size)
	if err != nil {
		return nil, response.Internal(CodeAvatarStorage, err)
	}

	previous := user.Avatar
	user.Avatar = url
	updated, err := s.users.UpdateUser(ctx, user)
	if err != nil {
		s.removeAvatar(ctx, userID, url)
		return nil, response.Internal(CodeProfileUpdate, err)
	}
	if previous != "" && previous != url {
		s.removeAvatar(ctx, userID, previous)
	}

	s.audit.Record(ctx, auditlog.EventAvatarUpdated, userID, userID, map[string]interface{}{"avatar": url})
	return updated, nil
}

func (s *UserService) removeAvatar(ctx context.Context, userID, url string) {
	if err := s.avatars.Remove(ctx, userID, url); err != nil {
		zaplogger.Warn("failed to remove avatar", zaplogger.Fields{"user_id": userID, "avatar": url, "error": err.Error()})
	}
}

// ChangePassword replaces the password after checking the current one
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (*models.UserModel, error) {
	if !s.validate.Password(newPassword) {
		return nil, response.BadRequest(CodeInvalidPassword, "Invalid new password")
	}

	user, err := s.users.ReadUser(ctx, userID)
	if err != nil {
		return nil, response.Internal(CodePasswordUserStore, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(currentPassword)) != nil {
		return nil, response.Unauthorized(CodeWrongPassword, "Wrong current password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, response.Internal(CodePasswordUpdate, err)
	}
	user.Password = string(hash)

	updated, err := s.users.UpdateUser(ctx, user)
	if err != nil {
		return nil, response.Internal(CodePasswordUpdate, err)
	}
	s.audit.Record(ctx, auditlog.EventPasswordChanged, userID, userID, nil)
	return updated, nil
}

// ToggleBlocked sets the blocked flag of a user. Only admins may do this.
// Blocking ends every session of the target user.
func (s *UserService) ToggleBlocked(ctx context.Context, actorID, targetID string, blocked bool) (*models.UserModel, error) {
	actor, err := s.users.ReadUser(ctx, actorID)
	if err != nil {
		return nil, response.Internal(CodeBlockStore, err)
	}
	if actor.Role != models.RoleAdmin {
		return nil, response.Forbidden(CodePermissionDenied, "Permission denied")
	}
	if targetID == "" {
		return nil, response.BadRequest(CodeInvalidInput, "`userId` is required")
	}

	user, err := s.users.ToggleBlockedUser(ctx, targetID, blocked)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, response.NotFound(CodeBlockNotFound, "User not found")
		}
		return nil, response.Internal(CodeBlockStore, err)
	}

	event := auditlog.EventUnblocked
	if blocked {
		event = auditlog.EventBlocked
		if _, err := s.sessions.DeleteUserSessions(ctx, targetID); err != nil {
			zaplogger.Error("failed to revoke sessions of blocked user", zaplogger.Fields{"user_id": targetID, "error": err.Error()})
		}
	}
	s.audit.Record(ctx, event, targetID, actorID, nil)
	return user, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
