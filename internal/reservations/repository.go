package reservations

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
	"github.com/partsdepot/partsdepot-backend/pkg/enums"
	"github.com/partsdepot/partsdepot-backend/pkg/pagination"
)

// Repository handles reservation persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a reservations repository backed by the shared client.
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

// Create inserts the reservation header and its line items. The caller
// assigns all IDs.
func (r *Repository) Create(ctx context.Context, reservation *models.Reservation) error {
	if reservation == nil {
		return fmt.Errorf("reservation is required")
	}

	items := reservation.Items
	reservation.Items = nil
	if err := r.db.WithContext(ctx).Create(reservation).Error; err != nil {
		reservation.Items = items
		return fmt.Errorf("create reservation: %w", err)
	}
	for i := range items {
		items[i].ReservationID = reservation.ID
		if err := r.db.WithContext(ctx).Create(&items[i]).Error; err != nil {
			reservation.Items = items
			return fmt.Errorf("create reservation item: %w", err)
		}
	}
	reservation.Items = items
	return nil
}

// FindByID loads a reservation with its line items; nil when absent.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find reservation: %w", err)
	}

	err = r.db.WithContext(ctx).
		Where("reservation_id = ?", id).
		Order("created_at ASC").
		Find(&reservation.Items).Error
	if err != nil {
		return nil, fmt.Errorf("load reservation items: %w", err)
	}
	return &reservation, nil
}

// ErrStaleStatus reports that the reservation left the expected status
// between the caller's read and the update.
var ErrStaleStatus = errors.New("reservation status changed")

// UpdateStatus moves a reservation from the expected status into the
// target status, stamping the matching timestamp column. The status
// predicate makes racing transitions lose instead of overwriting each
// other.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.ReservationStatus, at time.Time) error {
	updates := map[string]any{
		"status":     to,
		"updated_at": at,
	}
	switch to {
	case enums.ReservationStatusConfirmed:
		updates["confirmed_at"] = at
	case enums.ReservationStatusCompleted:
		updates["completed_at"] = at
	case enums.ReservationStatusCancelled, enums.ReservationStatusExpired:
		updates["cancelled_at"] = at
	}

	result := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update reservation status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

// FindPartForHold loads the sellable columns of one part inside the
// current transaction. Photo keys are not needed for snapshots.
func (r *Repository) FindPartForHold(ctx context.Context, partID uuid.UUID) (*models.Part, error) {
	var part models.Part
	err := r.db.WithContext(ctx).
		Select("id", "brand", "model", "year", "part_type", "name", "description",
			"condition", "price_cents", "total_qty", "reserved_qty").
		Where("id = ?", partID).
		First(&part).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find part for hold: %w", err)
	}
	return &part, nil
}

// List returns one page of reservations ordered newest first. The limit
// should include the pagination buffer row.
func (r *Repository) List(ctx context.Context, query ListQuery, limit int, cursor *pagination.Cursor) ([]models.Reservation, error) {
	conditions := make([]string, 0, 3)
	args := make([]any, 0, 5)

	if strings.TrimSpace(query.Status) != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, query.Status)
	}
	if query.CustomerID != nil {
		conditions = append(conditions, "customer_id = ?")
		args = append(args, *query.CustomerID)
	}
	if cursor != nil {
		conditions = append(conditions, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	sqlQuery := `
		SELECT id, order_number, customer_id, customer_name, customer_email,
			customer_phone, status, total_cents, notes, expires_at, confirmed_at,
			completed_at, cancelled_at, created_at, updated_at
		FROM reservations`
	if len(conditions) > 0 {
		sqlQuery += " WHERE " + strings.Join(conditions, " AND ")
	}
	sqlQuery += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	var rows []models.Reservation
	if err := r.db.WithContext(ctx).Raw(sqlQuery, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return rows, nil
}

// ListExpirableIDs returns pending reservations whose hold window has
// lapsed as of now.
func (r *Repository) ListExpirableIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("status = ? AND expires_at <= ?", enums.ReservationStatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list expirable reservations: %w", err)
	}
	return ids, nil
}
