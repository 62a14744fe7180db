// Package repository contains the repository layer for the Profile API
package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/nsvirk/profileapi/internal/models"
	"gorm.io/gorm"
)

// MaxSearchResults caps the rows returned by SearchUsers
const MaxSearchResults = 50

// UserStore is the persistence contract for users
type UserStore interface {
	CreateUser(ctx context.Context, user *models.UserModel) error
	ReadUser(ctx context.Context, id string) (*models.UserModel, error)
	ReadUserByEmail(ctx context.Context, email string) (*models.UserModel, error)
	SearchUsers(ctx context.Context, term string, limit int) ([]models.UserModel, error)
	UpdateUser(ctx context.Context, user *models.UserModel) (*models.UserModel, error)
	ToggleBlockedUser(ctx context.Context, id string, blocked bool) (*models.UserModel, error)
}

// UserRepository is the Postgres backed user store
type UserRepository struct {
	DB *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// CreateUser inserts a user
func (r *UserRepository) CreateUser(ctx context.Context, user *models.UserModel) error {
	if err := r.DB.WithContext(ctx).Create(user).Error; err != nil {
		return storeError("create user", err)
	}
	return nil
}

// ReadUser gets a user by id
func (r *UserRepository) ReadUser(ctx context.Context, id string) (*models.UserModel, error) {
	return r.first(ctx, "read user", "id = ?", id)
}

// ReadUserByEmail gets a user by email, case-insensitively
func (r *UserRepository) ReadUserByEmail(ctx context.Context, email string) (*models.UserModel, error) {
	return r.first(ctx, "read user by email", "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *UserRepository) first(ctx context.Context, op, query string, args ...interface{}) (*models.UserModel, error) {
	var user models.UserModel
	err := r.DB.WithContext(ctx).Where(query, args...).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeError(op, err)
	}
	return &user, nil
}

// SearchUsers matches term against first name, last name, full name and email
func (r *UserRepository) SearchUsers(ctx context.Context, term string, limit int) ([]models.UserModel, error) {
	if limit <= 0 || limit > MaxSearchResults {
		limit = MaxSearchResults
	}
	pattern := "%" + escapeLike(strings.TrimSpace(term)) + "%"

	users := []models.UserModel{}
	err := r.DB.WithContext(ctx).
		Where("firstname ILIKE ? OR lastname ILIKE ? OR (firstname || ' ' || lastname) ILIKE ? OR email ILIKE ?",
			pattern, pattern, pattern, pattern).
		Order("firstname, lastname").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, storeError("search users", err)
	}
	return users, nil
}

// UpdateUser writes every mutable column of the given record
func (r *UserRepository) UpdateUser(ctx context.Context, user *models.UserModel) (*models.UserModel, error) {
	result := r.DB.WithContext(ctx).Model(user).Select(
		"firstname", "lastname", "celular", "password", "birthday", "gender", "about", "avatar", "cpf",
		"confirmed", "active", "confirmation_code", "confirm_attempts", "reset_code", "reset_expires_at",
		"reset_attempts", "role", "updated_at",
	).Updates(user)
	if result.Error != nil {
		return nil, storeError("update user", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return user, nil
}

// ToggleBlockedUser sets the blocked flag only
func (r *UserRepository) ToggleBlockedUser(ctx context.Context, id string, blocked bool) (*models.UserModel, error) {
	result := r.DB.WithContext(ctx).Model(&models.UserModel{}).Where("id = ?", id).Update("blocked", blocked)
	if result.Error != nil {
		return nil, storeError("toggle blocked user", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.ReadUser(ctx, id)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
