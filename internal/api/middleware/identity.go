package middleware

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/nsvirk/profileapi/internal/models"
)

// Echo context keys mirroring the request identity
const (
	ContextKeyUserID  = "user_id"
	ContextKeySession = "session"
)

// Identity is the authenticated caller resolved by the auth gate
type Identity struct {
	Session *models.SessionModel
	UserID  string
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity attached by the auth gate
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// GetIdentity returns the caller identity or ErrInvalidToken when the
// request did not pass through the gate
func GetIdentity(c echo.Context) (Identity, error) {
	id, ok := IdentityFromContext(c.Request().Context())
	if !ok || id.UserID == "" || id.Session == nil {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}
