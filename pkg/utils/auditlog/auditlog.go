// Package auditlog records user lifecycle events in the database
package auditlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nsvirk/profileapi/pkg/utils/zaplogger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const TableName = "_audit_logs"

// Event names
const (
	EventRegistered      = "user.registered"
	EventConfirmed       = "user.confirmed"
	EventLogin           = "session.login"
	EventLogout          = "session.logout"
	EventProfileUpdated  = "user.profile_updated"
	EventAvatarUpdated   = "user.avatar_updated"
	EventPasswordChanged = "user.password_changed"
	EventPasswordReset   = "user.password_reset"
	EventBlocked         = "user.blocked"
	EventUnblocked       = "user.unblocked"
)

// Entry is an audit log row
type Entry struct {
	ID        uint64         `gorm:"primaryKey"`
	Timestamp time.Time      `gorm:"index"`
	Event     string         `gorm:"index"`
	UserID    string         `gorm:"index"`
	ActorID   string         `gorm:"index"`
	Fields    datatypes.JSON `gorm:"type:jsonb"`
}

func (Entry) TableName() string {
	return TableName
}

// Logger writes audit entries
type Logger struct {
	db *gorm.DB
}

// New creates the audit table if needed and returns a Logger
func New(db *gorm.DB) (*Logger, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate %s: %w", TableName, err)
	}
	return &Logger{db: db}, nil
}

// Record stores an event. Failures are logged and never returned.
func (l *Logger) Record(ctx context.Context, event, userID, actorID string, fields map[string]interface{}) {
	var fieldsJSON datatypes.JSON
	if len(fields) > 0 {
		b, err := json.Marshal(fields)
		if err != nil {
			zaplogger.Error("failed to marshal audit fields", zaplogger.Fields{"event": event, "error": err})
			return
		}
		fieldsJSON = datatypes.JSON(b)
	}

	entry := Entry{
		Timestamp: time.Now(),
		Event:     event,
		UserID:    userID,
		ActorID:   actorID,
		Fields:    fieldsJSON,
	}
	if err := l.db.WithContext(ctx).Create(&entry).Error; err != nil {
		zaplogger.Error("failed to insert audit entry", zaplogger.Fields{"event": event, "user_id": userID, "error": err})
	}
}
