// Package repository contains the repository layer for the Profile API
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nsvirk/profileapi/internal/models"
	"gorm.io/gorm"
)

// SessionRepository is the Postgres backed session store
type SessionRepository struct {
	DB  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewSessionRepository creates a session repository. Sessions idle for
// longer than ttl read as not found; a zero ttl disables expiry.
func NewSessionRepository(db *gorm.DB, ttl time.Duration) *SessionRepository {
	return &SessionRepository{DB: db, ttl: ttl, now: time.Now}
}

// CreateSession inserts a new session
func (r *SessionRepository) CreateSession(ctx context.Context, session *models.SessionModel) error {
	if err := r.DB.WithContext(ctx).Create(session).Error; err != nil {
		return storeError("create session", err)
	}
	return nil
}

// ReadSession gets a live session by token
func (r *SessionRepository) ReadSession(ctx context.Context, token string) (*models.SessionModel, error) {
	var session models.SessionModel
	q := r.DB.WithContext(ctx).Where("token = ?", token)
	if r.ttl > 0 {
		q = q.Where("last_interaction > ?", r.now().Add(-r.ttl))
	}

	err := q.First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeError("read session", err)
	}
	return &session, nil
}

// TouchSession sets the last interaction time of a session
func (r *SessionRepository) TouchSession(ctx context.Context, token string, at time.Time) error {
	err := r.DB.WithContext(ctx).Model(&models.SessionModel{}).
		Where("token = ?", token).
		Update("last_interaction", at).Error
	if err != nil {
		return storeError("touch session", err)
	}
	return nil
}

// DeleteSession deletes the session for a token
func (r *SessionRepository) DeleteSession(ctx context.Context, token string) (int64, error) {
	result := r.DB.WithContext(ctx).Where("token = ?", token).Delete(&models.SessionModel{})
	if result.Error != nil {
		return 0, storeError("delete session", result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteUserSessions deletes every session of a user and returns their tokens
func (r *SessionRepository) DeleteUserSessions(ctx context.Context, userID string) ([]string, error) {
	var tokens []string
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.SessionModel{}).Where("user_id = ?", userID).Pluck("token", &tokens).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&models.SessionModel{}).Error
	})
	if err != nil {
		return nil, storeError("delete user sessions", err)
	}
	return tokens, nil
}

// PurgeExpiredSessions deletes sessions idle since before the cutoff and
// returns their tokens
func (r *SessionRepository) PurgeExpiredSessions(ctx context.Context, before time.Time) ([]string, error) {
	var tokens []string
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.SessionModel{}).Where("last_interaction < ?", before).Pluck("token", &tokens).Error; err != nil {
			return err
		}
		return tx.Where("last_interaction < ?", before).Delete(&models.SessionModel{}).Error
	})
	if err != nil {
		return nil, storeError("purge sessions", err)
	}
	return tokens, nil
}
