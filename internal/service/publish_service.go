// Package service contains the service layer for the Profile API
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/nsvirk/profileapi/internal/repository"
	"github.com/nsvirk/profileapi/pkg/utils/zaplogger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// UserEventsChannel is the Redis channel user block events are republished on
const UserEventsChannel = "CH:API:USER:EVENTS"

// SessionRevoker ends every session of a user
type SessionRevoker interface {
	RevokeUserSessions(ctx context.Context, userID string) (int, error)
}

// UserBlockedEvent is the payload of a users.blocked notification
type UserBlockedEvent struct {
	ID      string `json:"id"`
	Blocked bool   `json:"blocked"`
}

// PublishService relays Postgres block notifications. Every blocked user
// has its sessions revoked and the event is republished to Redis, so
// blocks made directly in the database take effect as well.
type PublishService struct {
	redisClient *redis.Client
	revoker     SessionRevoker
	pgConnStr   string
}

// NewPublishService creates a new PublishService
func NewPublishService(redisClient *redis.Client, revoker SessionRevoker, pgConnStr string) *PublishService {
	return &PublishService{
		redisClient: redisClient,
		revoker:     revoker,
		pgConnStr:   pgConnStr,
	}
}

// ListenUserBlocked listens on the users.blocked channel until ctx is done
func (s *PublishService) ListenUserBlocked(ctx context.Context) error {
	listener := pq.NewListener(s.pgConnStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			zaplogger.Error("Postgres listener event", zaplogger.Fields{"event": int(ev), "error": err.Error()})
		}
	})
	defer listener.Close()

	if err := listener.Listen(repository.UserBlockedChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", repository.UserBlockedChannel, err)
	}
	zaplogger.Info("Listening for user block notifications", zaplogger.Fields{"channel": repository.UserBlockedChannel})

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			// nil after a reconnect; notifications in between are lost
			if n == nil {
				continue
			}
			s.handleNotification(ctx, n.Extra)
		case <-time.After(90 * time.Second):
			go func() {
				if err := listener.Ping(); err != nil {
					zaplogger.Error("Error pinging PostgreSQL", zaplogger.Fields{"error": err.Error()})
				}
			}()
		}
	}
}

func (s *PublishService) handleNotification(ctx context.Context, payload string) {
	var event UserBlockedEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil || event.ID == "" {
		zaplogger.Error("Invalid user blocked payload", zaplogger.Fields{"payload": payload})
		return
	}

	logger := zaplogger.WithFields(zaplogger.Fields{"user_id": event.ID, "blocked": event.Blocked})
	if event.Blocked {
		revoked, err := s.revoker.RevokeUserSessions(ctx, event.ID)
		if err != nil {
			logger.Error("Failed to revoke sessions of blocked user", zap.Error(err))
		} else {
			logger.Info("Revoked sessions of blocked user", zap.Int("revoked", revoked))
		}
	}

	if err := s.redisClient.Publish(ctx, UserEventsChannel, payload).Err(); err != nil {
		logger.Error("Failed to publish to Redis", zap.String("channel", UserEventsChannel), zap.Error(err))
	}
}
