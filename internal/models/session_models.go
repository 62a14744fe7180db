// Package models contains the models for the Profile API
package models

import (
	"time"
)

const SessionsTableName = "sessions"

// SessionModel binds an opaque token to a user
type SessionModel struct {
	ID              string    `gorm:"primaryKey;type:uuid" json:"id"`
	User            string    `gorm:"column:user_id;type:uuid;not null;index" json:"user"`
	Token           string    `gorm:"uniqueIndex;not null" json:"token"`
	Platform        string    `json:"platform,omitempty"`
	DeviceID        string    `json:"deviceId,omitempty"`
	StartedOn       time.Time `gorm:"not null" json:"startedOn"`
	LastInteraction time.Time `gorm:"not null;index" json:"lastInteraction"`
}

func (SessionModel) TableName() string {
	return SessionsTableName
}
