// Package repository contains the repository layer for the Profile API
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nsvirk/profileapi/internal/models"
	"github.com/nsvirk/profileapi/pkg/utils/zaplogger"
	"github.com/redis/go-redis/v9"
)

// SessionStore is the persistence contract for sessions
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.SessionModel) error
	ReadSession(ctx context.Context, token string) (*models.SessionModel, error)
	TouchSession(ctx context.Context, token string, at time.Time) error
	DeleteSession(ctx context.Context, token string) (int64, error)
	DeleteUserSessions(ctx context.Context, userID string) ([]string, error)
	PurgeExpiredSessions(ctx context.Context, before time.Time) ([]string, error)
}

const sessionCachePrefix = "API:SESSION:"

// CachedSessionStore is a Redis read-through cache in front of a SessionStore.
// Deletes evict synchronously, so a revoked token is never served from cache.
// Redis failures fall back to the backing store.
type CachedSessionStore struct {
	next  SessionStore
	redis *redis.Client
	ttl   time.Duration
}

// NewCachedSessionStore wraps next with a cache holding entries for ttl
func NewCachedSessionStore(next SessionStore, redisClient *redis.Client, ttl time.Duration) *CachedSessionStore {
	return &CachedSessionStore{next: next, redis: redisClient, ttl: ttl}
}

func sessionCacheKey(token string) string {
	return sessionCachePrefix + token
}

// CreateSession inserts the session and primes the cache
func (s *CachedSessionStore) CreateSession(ctx context.Context, session *models.SessionModel) error {
	if err := s.next.CreateSession(ctx, session); err != nil {
		return err
	}
	s.set(ctx, session)
	return nil
}

// ReadSession serves from cache, falling back to the backing store
func (s *CachedSessionStore) ReadSession(ctx context.Context, token string) (*models.SessionModel, error) {
	raw, err := s.redis.Get(ctx, sessionCacheKey(token)).Bytes()
	switch {
	case err == nil:
		var session models.SessionModel
		jsonErr := json.Unmarshal(raw, &session)
		if jsonErr == nil {
			return &session, nil
		}
		zaplogger.Warn("discarding corrupt cached session", zaplogger.Fields{"error": jsonErr.Error()})
	case !errors.Is(err, redis.Nil):
		zaplogger.Warn("session cache read failed", zaplogger.Fields{"error": err})
	}

	session, err := s.next.ReadSession(ctx, token)
	if err != nil {
		return nil, err
	}
	s.set(ctx, session)
	return session, nil
}

// TouchSession updates the backing store only
func (s *CachedSessionStore) TouchSession(ctx context.Context, token string, at time.Time) error {
	return s.next.TouchSession(ctx, token, at)
}

// DeleteSession deletes the session and evicts it
func (s *CachedSessionStore) DeleteSession(ctx context.Context, token string) (int64, error) {
	n, err := s.next.DeleteSession(ctx, token)
	if err != nil {
		return 0, err
	}
	s.evict(ctx, token)
	return n, nil
}

// DeleteUserSessions deletes all sessions of a user and evicts them
func (s *CachedSessionStore) DeleteUserSessions(ctx context.Context, userID string) ([]string, error) {
	tokens, err := s.next.DeleteUserSessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.evict(ctx, tokens...)
	return tokens, nil
}

// PurgeExpiredSessions purges expired sessions and evicts them
func (s *CachedSessionStore) PurgeExpiredSessions(ctx context.Context, before time.Time) ([]string, error) {
	tokens, err := s.next.PurgeExpiredSessions(ctx, before)
	if err != nil {
		return nil, err
	}
	s.evict(ctx, tokens...)
	return tokens, nil
}

func (s *CachedSessionStore) set(ctx context.Context, session *models.SessionModel) {
	b, err := json.Marshal(session)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, sessionCacheKey(session.Token), b, s.ttl).Err(); err != nil {
		zaplogger.Warn("session cache write failed", zaplogger.Fields{"error": err})
	}
}

func (s *CachedSessionStore) evict(ctx context.Context, tokens ...string) {
	if len(tokens) == 0 {
		return
	}
	keys := make([]string, len(tokens))
	for i, token := range tokens {
		keys[i] = sessionCacheKey(token)
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		zaplogger.Error("session cache eviction failed", zaplogger.Fields{"error": err, "keys": len(keys)})
	}
}
