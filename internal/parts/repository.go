package parts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/partsdepot/partsdepot-backend/pkg/db"
	"github.com/partsdepot/partsdepot-backend/pkg/db/models"
	"github.com/partsdepot/partsdepot-backend/pkg/enums"
	"github.com/partsdepot/partsdepot-backend/pkg/pagination"
)

// Repository handles parts persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a parts repository backed by the shared client.
func NewRepository(client *db.Client) (*Repository, error) {
	if client == nil {
		return nil, fmt.Errorf("db client is required")
	}
	return &Repository{db: client.DB()}, nil
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads a single listing; nil when absent.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Part, error) {
	var part models.Part
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&part).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find part by id: %w", err)
	}
	return &part, nil
}

// FindByMergeKey loads the listing matching the fitment key, if any.
// Matching is case-insensitive on the text columns.
func (r *Repository) FindByMergeKey(ctx context.Context, brand, model string, year int, partType string) (*models.Part, error) {
	var part models.Part
	err := r.db.WithContext(ctx).
		Where("LOWER(brand) = LOWER(?) AND LOWER(model) = LOWER(?) AND year = ? AND LOWER(part_type) = LOWER(?)",
			brand, model, year, partType).
		First(&part).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find part by merge key: %w", err)
	}
	return &part, nil
}

// Create inserts a new listing. The caller assigns the ID.
func (r *Repository) Create(ctx context.Context, part *models.Part) error {
	if part == nil {
		return fmt.Errorf("part is required")
	}
	if err := r.db.WithContext(ctx).Create(part).Error; err != nil {
		return fmt.Errorf("create part: %w", err)
	}
	return nil
}

// UpdateMetadata persists the editable listing columns. Stock counters
// are deliberately excluded; those go through internal/inventory.
func (r *Repository) UpdateMetadata(ctx context.Context, part *models.Part) error {
	if part == nil {
		return fmt.Errorf("part is required")
	}
	err := r.db.WithContext(ctx).
		Model(&models.Part{}).
		Where("id = ?", part.ID).
		Updates(map[string]any{
			"name":        part.Name,
			"description": part.Description,
			"condition":   part.Condition,
			"price_cents": part.PriceCents,
			"photo_keys":  part.PhotoKeys,
			"updated_at":  time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("update part metadata: %w", err)
	}
	return nil
}

type catalogRecord struct {
	ID          uuid.UUID
	Brand       string
	Model       string
	Year        int
	PartType    string
	Name        string
	Description sql.NullString
	Condition   string
	PriceCents  int
	PhotoKeys   pq.StringArray `gorm:"type:text[]"`
	TotalQty    int
	ReservedQty int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ListCatalog returns one page of listings ordered newest first. The
// limit should include the pagination buffer row.
func (r *Repository) ListCatalog(ctx context.Context, query CatalogQuery, limit int, cursor *pagination.Cursor) ([]PartView, error) {
	// A listing is public iff it has unreserved units left.
	conditions := []string{"total_qty - reserved_qty > 0"}
	args := make([]any, 0, 10)

	if strings.TrimSpace(query.Brand) != "" {
		conditions = append(conditions, "LOWER(brand) = LOWER(?)")
		args = append(args, strings.TrimSpace(query.Brand))
	}
	if strings.TrimSpace(query.Model) != "" {
		conditions = append(conditions, "LOWER(model) = LOWER(?)")
		args = append(args, strings.TrimSpace(query.Model))
	}
	if query.Year > 0 {
		conditions = append(conditions, "year = ?")
		args = append(args, query.Year)
	}
	if strings.TrimSpace(query.PartType) != "" {
		conditions = append(conditions, "LOWER(part_type) = LOWER(?)")
		args = append(args, strings.TrimSpace(query.PartType))
	}
	if term := strings.TrimSpace(query.Search); term != "" {
		pattern := "%" + strings.ToLower(term) + "%"
		conditions = append(conditions, "(LOWER(name) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ?)")
		args = append(args, pattern, pattern)
	}
	if query.MinPriceCents != nil {
		conditions = append(conditions, "price_cents >= ?")
		args = append(args, *query.MinPriceCents)
	}
	if query.MaxPriceCents != nil {
		conditions = append(conditions, "price_cents <= ?")
		args = append(args, *query.MaxPriceCents)
	}
	if cursor != nil {
		conditions = append(conditions, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	sqlQuery := `
		SELECT id, brand, model, year, part_type, name, description, condition,
			price_cents, photo_keys, total_qty, reserved_qty, created_at, updated_at
		FROM parts`
	if len(conditions) > 0 {
		sqlQuery += " WHERE " + strings.Join(conditions, " AND ")
	}
	sqlQuery += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	var records []catalogRecord
	if err := r.db.WithContext(ctx).Raw(sqlQuery, args...).Scan(&records).Error; err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}

	views := make([]PartView, 0, len(records))
	for _, rec := range records {
		available := rec.TotalQty - rec.ReservedQty
		if available < 0 {
			available = 0
		}
		views = append(views, PartView{
			ID:           rec.ID,
			Brand:        rec.Brand,
			Model:        rec.Model,
			Year:         rec.Year,
			PartType:     rec.PartType,
			Name:         rec.Name,
			Description:  nullStringPtr(rec.Description),
			Condition:    enums.PartCondition(rec.Condition),
			Price:        formatPrice(rec.PriceCents),
			PriceCents:   rec.PriceCents,
			PhotoKeys:    append([]string{}, rec.PhotoKeys...),
			TotalQty:     rec.TotalQty,
			ReservedQty:  rec.ReservedQty,
			AvailableQty: available,
			CreatedAt:    rec.CreatedAt,
			UpdatedAt:    rec.UpdatedAt,
		})
	}
	return views, nil
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}
