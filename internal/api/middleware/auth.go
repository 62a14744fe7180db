// Package middleware provides the middleware for the Echo instance
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nsvirk/profileapi/internal/models"
	"github.com/nsvirk/profileapi/internal/repository"
	"github.com/nsvirk/profileapi/pkg/utils/response"
	"github.com/nsvirk/profileapi/pkg/utils/zaplogger"
)

// TokenHeader is the request header carrying the session token
const TokenHeader = "token"

// Error codes returned by the auth gate
const (
	CodeInvalidToken        = 1000
	CodeSessionLookupFailed = 1001
	CodeUnknownToken        = 1002
	CodeIntegrityFault      = 1003
	CodeAccountBlocked      = 3120
)

var (
	ErrInvalidToken   = response.Unauthorized(CodeInvalidToken, "Invalid token")
	ErrUnknownToken   = response.Unauthorized(CodeUnknownToken, "Invalid token")
	ErrAccountBlocked = response.Unauthorized(CodeAccountBlocked, "Your account is blocked")
)

// SessionReader resolves a token to its session
type SessionReader interface {
	ReadSession(ctx context.Context, token string) (*models.SessionModel, error)
}

// UserReader resolves a user id to its user
type UserReader interface {
	ReadUser(ctx context.Context, id string) (*models.UserModel, error)
}

// AuthConfig configures the auth gate
type AuthConfig struct {
	// Enabled turns the whole gate on or off
	Enabled bool
	// Whitelist holds literal "METHOD:PATH" pairs that skip authentication.
	// Paths are compared against the raw request path, so a parameterized
	// route can only be whitelisted one concrete path at a time.
	Whitelist []string
}

// AuthMiddleware resolves the request token to a session and its user and
// rejects the request on any failure. Checks run in a fixed order and the
// first failure ends the request. The gate never writes to the stores.
func AuthMiddleware(cfg AuthConfig, sessions SessionReader, users UserReader) echo.MiddlewareFunc {
	whitelist := make(map[string]struct{}, len(cfg.Whitelist))
	for _, entry := range cfg.Whitelist {
		whitelist[entry] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Enabled {
				return next(c)
			}

			req := c.Request()
			if _, ok := whitelist[req.Method+":"+req.URL.Path]; ok {
				return next(c)
			}

			token := req.Header.Get(TokenHeader)
			if token == "" {
				return ErrInvalidToken
			}

			ctx := req.Context()
			session, err := sessions.ReadSession(ctx, token)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return ErrUnknownToken
				}
				zaplogger.Error("session lookup failed", zaplogger.Fields{"path": req.URL.Path, "error": err.Error()})
				return response.Internal(CodeSessionLookupFailed, err)
			}

			user, err := users.ReadUser(ctx, session.User)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					zaplogger.Error("session references a missing user", zaplogger.Fields{"session_id": session.ID, "user_id": session.User})
					return response.NewError(CodeIntegrityFault, http.StatusInternalServerError, response.ServerException, "Session references a missing user")
				}
				zaplogger.Error("user lookup failed", zaplogger.Fields{"session_id": session.ID, "user_id": session.User, "error": err.Error()})
				return response.Internal(CodeSessionLookupFailed, err)
			}

			if user.Blocked {
				return ErrAccountBlocked
			}

			c.SetRequest(req.WithContext(WithIdentity(ctx, Identity{Session: session, UserID: session.User})))
			c.Set(ContextKeyUserID, session.User)
			c.Set(ContextKeySession, session)

			return next(c)
		}
	}
}
