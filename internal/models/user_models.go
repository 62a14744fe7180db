// Package models contains the models for the Profile API
package models

import "time"

const UsersTableName = "users"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// UserModel is a user profile record. Password holds a bcrypt hash only.
type UserModel struct {
	ID               string     `gorm:"primaryKey;type:uuid" json:"id"`
	Firstname        string     `json:"firstname"`
	Lastname         string     `json:"lastname"`
	Email            string     `gorm:"uniqueIndex;not null" json:"email"`
	Celular          string     `json:"celular"`
	Password         string     `gorm:"not null" json:"-"`
	Birthday         string     `json:"birthday"`
	Gender           string     `json:"gender"`
	About            string     `json:"about"`
	Avatar           string     `json:"avatar,omitempty"`
	Cpf              string     `gorm:"index" json:"cpf"`
	Confirmed        bool       `gorm:"not null;default:false" json:"confirmed"`
	Active           bool       `gorm:"not null;default:true" json:"active"`
	Blocked          bool       `gorm:"not null;default:false" json:"blocked"`
	ConfirmationCode string     `json:"-"`
	ConfirmAttempts  int        `gorm:"not null;default:0" json:"-"`
	ResetCode        string     `json:"-"`
	ResetExpiresAt   *time.Time `json:"-"`
	ResetAttempts    int        `gorm:"not null;default:0" json:"-"`
	Role             string     `gorm:"not null;default:user" json:"role"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (UserModel) TableName() string {
	return UsersTableName
}

// FullName returns the first and last name joined by a space
func (u *UserModel) FullName() string {
	if u.Lastname == "" {
		return u.Firstname
	}
	return u.Firstname + " " + u.Lastname
}
