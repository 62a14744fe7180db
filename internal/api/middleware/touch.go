package middleware

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nsvirk/profileapi/pkg/utils/zaplogger"
)

// SessionToucher records activity on a session
type SessionToucher interface {
	TouchSession(ctx context.Context, token string, at time.Time) error
}

// SessionTouch updates the last interaction time of the caller's session.
// It runs after the auth gate, does not wait for the write and never fails
// the request.
func SessionTouch(sessions SessionToucher) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFromContext(c.Request().Context())
			if ok && id.Session != nil {
				ctx := context.WithoutCancel(c.Request().Context())
				token := id.Session.Token
				go func() {
					if err := sessions.TouchSession(ctx, token, time.Now()); err != nil {
						zaplogger.Warn("failed to touch session", zaplogger.Fields{"session_id": id.Session.ID, "error": err.Error()})
					}
				}()
			}
			return next(c)
		}
	}
}
