package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/partsdepot/partsdepot-backend/pkg/db"
	"github.com/partsdepot/partsdepot-backend/pkg/db/models"
)

// Repository handles user persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a users repository backed by the shared client.
func NewRepository(client *db.Client) (*Repository, error) {
	if client == nil {
		return nil, fmt.Errorf("db client is required")
	}
	return &Repository{db: client.DB()}, nil
}

// NewRepositoryWithDB wraps an existing gorm handle directly.
func NewRepositoryWithDB(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle is required")
	}
	return &Repository{db: db}, nil
}

// Create inserts a new user. The caller assigns the ID.
func (r *Repository) Create(ctx context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("user is required")
	}
	user.Email = NormalizeEmail(user.Email)
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// FindByID loads one user; nil when absent.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindByEmail loads one user by normalized email; nil when absent.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("email = ?", NormalizeEmail(email)).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// UpdateLastLogin stamps the most recent successful login.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_login_at": at,
			"updated_at":    at,
		}).Error
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// NormalizeEmail lowercases and trims for the unique index.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
