// Package service contains the service layer for the Profile API
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nsvirk/profileapi/internal/mailer"
	"github.com/nsvirk/profileapi/internal/models"
	"github.com/nsvirk/profileapi/internal/repository"
	"github.com/nsvirk/profileapi/internal/validator"
	"github.com/nsvirk/profileapi/pkg/utils/auditlog"
	"github.com/nsvirk/profileapi/pkg/utils/response"
	"github.com/nsvirk/profileapi/pkg/utils/zaplogger"
	"golang.org/x/crypto/bcrypt"
)

// ResetCodeTTL is how long a password reset code stays valid
const ResetCodeTTL = time.Hour

// MaxCodeAttempts is how many wrong guesses a confirmation or reset code
// takes before it is replaced
const MaxCodeAttempts = 5

var errInvalidCredentials = response.NewError(CodeInvalidCredentials, http.StatusUnauthorized, response.AuthenticationException, "Invalid email or password")

// SessionService registers users and manages their sessions
type SessionService struct {
	users    repository.UserStore
	sessions repository.SessionStore
	mailer   mailer.Mailer
	audit    Auditor
	validate *validator.Validator
	now      func() time.Time
}

// NewSessionService creates a new session service
func NewSessionService(users repository.UserStore, sessions repository.SessionStore, m mailer.Mailer, audit Auditor) *SessionService {
	return &SessionService{
		users:    users,
		sessions: sessions,
		mailer:   m,
		audit:    audit,
		validate: validator.New(),
		now:      time.Now,
	}
}

// RegisterInput is the registration payload
type RegisterInput struct {
	Firstname string `json:"firstname" form:"firstname" validate:"required,max=60,name"`
	Lastname  string `json:"lastname" form:"lastname" validate:"omitempty,max=60,name"`
	Email     string `json:"email" form:"email" validate:"required,email"`
	Password  string `json:"password" form:"password" validate:"min=6,max=64"`
	Celular   string `json:"celular" form:"celular" validate:"omitempty,celular"`
	Birthday  string `json:"birthday" form:"birthday" validate:"omitempty,birthday"`
	Gender    string `json:"gender" form:"gender" validate:"omitempty,oneof=M F O"`
	Cpf       string `json:"cpf" form:"cpf" validate:"omitempty,cpf"`
	About     string `json:"about" form:"about" validate:"max=500"`
}

func (s *SessionService) validateRegister(in RegisterInput) *response.APIError {
	err := s.validate.Validate(in)
	if err == nil {
		return nil
	}
	field, ok := validator.InvalidField(err)
	switch {
	case !ok:
		return response.BadRequest(CodeInvalidInput, "Invalid parameters").Wrap(err)
	case field == "celular":
		return response.BadRequest(CodeInvalidInput, "Invalid mobile/phone").Wrap(err)
	}
	return response.BadRequest(CodeInvalidInput, "Invalid "+field).Wrap(err)
}

// Register creates an unconfirmed user and mails the confirmation code
func (s *SessionService) Register(ctx context.Context, in RegisterInput) (*models.UserModel, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if apiErr := s.validateRegister(in); apiErr != nil {
		return nil, apiErr
	}

	_, err := s.users.ReadUserByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, response.BadRequest(CodeEmailInUse, "Email already registered")
	case !errors.Is(err, repository.ErrNotFound):
		return nil, response.Internal(CodeAuthStore, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, response.Internal(CodeAuthStore, err)
	}
	code, err := newCode()
	if err != nil {
		return nil, response.Internal(CodeAuthStore, err)
	}

	user := &models.UserModel{
		ID:               uuid.NewString(),
		Firstname:        strings.TrimSpace(in.Firstname),
		Lastname:         strings.TrimSpace(in.Lastname),
		Email:            in.Email,
		Celular:          in.Celular,
		Password:         string(hash),
		Birthday:         in.Birthday,
		Gender:           in.Gender,
		About:            in.About,
		Cpf:              in.Cpf,
		Active:           true,
		ConfirmationCode: code,
		Role:             models.RoleUser,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, response.Internal(CodeAuthStore, err)
	}

	s.audit.Record(ctx, auditlog.EventRegistered, user.ID, user.ID, nil)
	s.mailAsync(ctx, "welcome", user, func(ctx context.Context) error {
		return s.mailer.SendWelcome(ctx, user, code)
	})
	return user, nil
}

// LoginInput is the login payload
type LoginInput struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Platform string `json:"platform" form:"platform"`
	DeviceID string `json:"deviceId" form:"deviceId"`
}

// LoginResult is returned by a successful login
type LoginResult struct {
	Token string            `json:"token"`
	User  *models.UserModel `json:"user"`
}

// Login checks the credentials and starts a new session
func (s *SessionService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if in.Email == "" || in.Password == "" {
		return nil, errInvalidCredentials
	}

	user, err := s.users.ReadUserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, response.Internal(CodeAuthStore, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)) != nil {
		return nil, errInvalidCredentials
	}
	if user.Blocked {
		return nil, response.Unauthorized(CodeAccountBlocked, "Your account is blocked")
	}

	token, err := newToken()
	if err != nil {
		return nil, response.Internal(CodeAuthStore, err)
	}
	now := s.now()
	session := &models.SessionModel{
		ID:              uuid.NewString(),
		User:            user.ID,
		Token:           token,
		Platform:        in.Platform,
		DeviceID:        in.DeviceID,
		StartedOn:       now,
		LastInteraction: now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, response.Internal(CodeAuthStore, err)
	}

	s.audit.Record(ctx, auditlog.EventLogin, user.ID, user.ID, map[string]interface{}{"session_id": session.ID, "platform": in.Platform})
	return &LoginResult{Token: token, User: user}, nil
}

// Logout ends the session behind token
func (s *SessionService) Logout(ctx context.Context, session *models.SessionModel) error {
	if _, err := s.sessions.DeleteSession(ctx, session.Token); err != nil {
		return response.Internal(CodeAuthStore, err)
	}
	s.audit.Record(ctx, auditlog.EventLogout, session.User, session.User, map[string]interface{}{"session_id": session.ID})
	return nil
}

// ConfirmEmail marks the user confirmed when the code matches
func (s *SessionService) ConfirmEmail(ctx context.Context, email, code string) (*models.UserModel, error) {
	invalid := response.BadRequest(CodeInvalidConfirmation, "Invalid confirmation code")

	user, err := s.users.ReadUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalid
		}
		return nil, response.Internal(CodeAuthStore, err)
	}
	if user.Confirmed {
		return user, nil
	}
	if !codeMatches(code, user.ConfirmationCode) {
		if err := s.confirmFailed(ctx, user); err != nil {
			return nil, err
		}
		return nil, invalid
	}

	user.Confirmed = true
	user.ConfirmationCode = ""
	user.ConfirmAttempts = 0
	updated, err := s.users.UpdateUser(ctx, user)
	if err != nil {
		return nil, response.Internal(CodeAuthStore, err)
	}
	s.audit.Record(ctx, auditlog.EventConfirmed, user.ID, user.ID, nil)
	return updated, nil
}

// ForgotPassword stores a reset code and mails it. Unknown addresses
// succeed silently so the endpoint cannot be used to probe accounts.
func (s *SessionService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.ReadUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return response.Internal(CodeAuthStore, err)
	}

	code, err := newCode()
	if err != nil {
		return response.Internal(CodeAuthStore, err)
	}
	expires := s.now().Add(ResetCodeTTL)
	user.ResetCode = code
	user.ResetExpiresAt = &expires
	user.ResetAttempts = 0
	if _, err := s.users.UpdateUser(ctx, user); err != nil {
		return response.Internal(CodeAuthStore, err)
	}

	s.mailAsync(ctx, "reset password", user, func(ctx context.Context) error {
		return s.mailer.SendResetPassword(ctx, user, code)
	})
	return nil
}

// ResetPassword sets a new password when the reset code is valid, and
// ends every session of the user
func (s *SessionService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	invalid := response.BadRequest(CodeInvalidResetCode, "Invalid or expired reset code")
	if !s.validate.Password(newPassword) {
		return response.BadRequest(CodeInvalidPassword, "Invalid new password")
	}

	user, err := s.users.ReadUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return invalid
		}
		return response.Internal(CodeAuthStore, err)
	}
	if user.ResetCode == "" || user.ResetExpiresAt == nil || s.now().After(*user.ResetExpiresAt) {
		return invalid
	}
	if !codeMatches(code, user.ResetCode) {
		user.ResetAttempts++
		if user.ResetAttempts >= MaxCodeAttempts {
			user.ResetCode = ""
			user.ResetExpiresAt = nil
			user.ResetAttempts = 0
			zaplogger.Warn("reset code discarded after failed attempts", zaplogger.Fields{"user_id": user.ID})
		}
		if _, err := s.users.UpdateUser(ctx, user); err != nil {
			return response.Internal(CodeAuthStore, err)
		}
		return invalid
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return response.Internal(CodeAuthStore, err)
	}
	user.Password = string(hash)
	user.ResetCode = ""
	user.ResetExpiresAt = nil
	user.ResetAttempts = 0
	if _, err := s.users.UpdateUser(ctx, user); err != nil {
		return response.Internal(CodeAuthStore, err)
	}
	if _, err := s.sessions.DeleteUserSessions(ctx, user.ID); err != nil {
		zaplogger.Error("failed to revoke sessions after password reset", zaplogger.Fields{"user_id": user.ID, "error": err.Error()})
	}

	s.audit.Record(ctx, auditlog.EventPasswordReset, user.ID, user.ID, nil)
	return nil
}

// confirmFailed counts a wrong confirmation code. Once the limit is hit the
// code is replaced and the new one mailed.
func (s *SessionService) confirmFailed(ctx context.Context, user *models.UserModel) error {
	user.ConfirmAttempts++
	var fresh string
	if user.ConfirmAttempts >= MaxCodeAttempts {
		code, err := newCode()
		if err != nil {
			return response.Internal(CodeAuthStore, err)
		}
		fresh = code
		user.ConfirmationCode = code
		user.ConfirmAttempts = 0
	}
	if _, err := s.users.UpdateUser(ctx, user); err != nil {
		return response.Internal(CodeAuthStore, err)
	}
	if fresh != "" {
		zaplogger.Warn("confirmation code replaced after failed attempts", zaplogger.Fields{"user_id": user.ID})
		s.mailAsync(ctx, "welcome", user, func(ctx context.Context) error {
			return s.mailer.SendWelcome(ctx, user, fresh)
		})
	}
	return nil
}

func codeMatches(given, stored string) bool {
	return given != "" && stored != "" && subtle.ConstantTimeCompare([]byte(given), []byte(stored)) == 1
}

// PurgeExpiredSessions deletes sessions idle since before the cutoff
func (s *SessionService) PurgeExpiredSessions(ctx context.Context, before time.Time) (int, error) {
	tokens, err := s.sessions.PurgeExpiredSessions(ctx, before)
	if err != nil {
		return 0, err
	}
	return len(tokens), nil
}

// RevokeUserSessions deletes every session of a user
func (s *SessionService) RevokeUserSessions(ctx context.Context, userID string) (int, error) {
	tokens, err := s.sessions.DeleteUserSessions(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(tokens), nil
}

// mailAsync sends mail without holding up the request
func (s *SessionService) mailAsync(ctx context.Context, kind string, user *models.UserModel, send func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := send(ctx); err != nil {
			zaplogger.Error("failed to send "+kind+" e-mail", zaplogger.Fields{"user_id": user.ID, "error": err.Error()})
		}
	}()
}
