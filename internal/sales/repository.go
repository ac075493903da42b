package sales

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
	"github.com/partsdepot/partsdepot-backend/pkg/pagination"
)

// Repository persists the append-only sales log. There are no update or
// delete paths on purpose.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a sales repository backed by the shared client.
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

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create appends one sale row. The caller assigns the ID.
func (r *Repository) Create(ctx context.Context, sale *models.Sale) error {
	if sale == nil {
		return fmt.Errorf("sale is required")
	}
	if err := r.db.WithContext(ctx).Create(sale).Error; err != nil {
		return fmt.Errorf("create sale: %w", err)
	}
	return nil
}

// FindByID loads one sale; nil when absent.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&sale).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find sale: %w", err)
	}
	return &sale, nil
}

// ListQuery filters the sales log listing.
type ListQuery struct {
	CustomerID *uuid.UUID
	SoldFrom   *time.Time
	SoldUntil  *time.Time
}

// List returns one page of sales ordered newest first. The limit should
// include the pagination buffer row.
func (r *Repository) List(ctx context.Context, query ListQuery, limit int, cursor *pagination.Cursor) ([]models.Sale, error) {
	conditions := make([]string, 0, 4)
	args := make([]any, 0, 6)

	if query.CustomerID != nil {
		conditions = append(conditions, "customer_id = ?")
		args = append(args, *query.CustomerID)
	}
	if query.SoldFrom != nil {
		conditions = append(conditions, "sold_at >= ?")
		args = append(args, *query.SoldFrom)
	}
	if query.SoldUntil != nil {
		conditions = append(conditions, "sold_at < ?")
		args = append(args, *query.SoldUntil)
	}
	if cursor != nil {
		conditions = append(conditions, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	sqlQuery := `
		SELECT id, reservation_id, order_number, customer_id, customer_name,
			customer_email, items, total_cents, sold_at, created_at
		FROM sales`
	if len(conditions) > 0 {
		sqlQuery += " WHERE " + strings.Join(conditions, " AND ")
	}
	sqlQuery += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	var sales []models.Sale
	if err := r.db.WithContext(ctx).Raw(sqlQuery, args...).Scan(&sales).Error; err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return sales, nil
}
