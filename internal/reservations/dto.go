package reservations

import (
	"time"

	"github.com/google/uuid"

	"github.com/partsdepot/partsdepot-backend/pkg/db/models"
	"github.com/partsdepot/partsdepot-backend/pkg/enums"
	"github.com/partsdepot/partsdepot-backend/pkg/pagination"
)

// Actor identifies the caller for scoping and event attribution.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// IsStaff reports whether the actor may operate on any reservation.
func (a Actor) IsStaff() bool {
	return a.Role == enums.UserRoleStaff
}

// CreateItemInput is one requested hold line.
type CreateItemInput struct {
	PartID uuid.UUID `json:"part_id" validate:"required"`
	Qty    int       `json:"qty" validate:"required,gt=0"`
}

// CreateInput describes a new reservation request. All holds are placed
// in one transaction; any shortage rejects the whole request.
type CreateInput struct {
	CustomerName  string            `json:"customer_name" validate:"required"`
	CustomerEmail string            `json:"customer_email" validate:"required,email"`
	CustomerPhone *string           `json:"customer_phone,omitempty"`
	Notes         *string           `json:"notes,omitempty"`
	Items         []CreateItemInput `json:"items" validate:"required,min=1,dive"`
}

// ListQuery filters reservation listings. Customers are always pinned to
// their own CustomerID by the service.
type ListQuery struct {
	Status     string
	CustomerID *uuid.UUID
	Pagination pagination.Params
}

// LineItemView is the API shape of one held line.
type LineItemView struct {
	ID             uuid.UUID  `json:"id"`
	PartID         *uuid.UUID `json:"part_id,omitempty"`
	Name           string     `json:"name"`
	Brand          string     `json:"brand"`
	Model          string     `json:"model"`
	Year           int        `json:"year"`
	PartType       string     `json:"part_type"`
	UnitPriceCents int        `json:"unit_price_cents"`
	Qty            int        `json:"qty"`
	TotalCents     int        `json:"total_cents"`
}

// ReservationView is the API shape of a reservation.
type ReservationView struct {
	ID            uuid.UUID               `json:"id"`
	OrderNumber   string                  `json:"order_number"`
	CustomerID    uuid.UUID               `json:"customer_id"`
	CustomerName  string                  `json:"customer_name"`
	CustomerEmail string                  `json:"customer_email"`
	CustomerPhone *string                 `json:"customer_phone,omitempty"`
	Status        enums.ReservationStatus `json:"status"`
	TotalCents    int                     `json:"total_cents"`
	Notes         *string                 `json:"notes,omitempty"`
	ExpiresAt     time.Time               `json:"expires_at"`
	ConfirmedAt   *time.Time              `json:"confirmed_at,omitempty"`
	CompletedAt   *time.Time              `json:"completed_at,omitempty"`
	CancelledAt   *time.Time              `json:"cancelled_at,omitempty"`
	Items         []LineItemView          `json:"items"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// ReservationsPage is one cursor page of reservations.
type ReservationsPage struct {
	Items      []ReservationView `json:"items"`
	NextCursor *string           `json:"next_cursor,omitempty"`
}

func viewFromModel(res *models.Reservation) *ReservationView {
	if res == nil {
		return nil
	}
	items := make([]LineItemView, 0, len(res.Items))
	for _, item := range res.Items {
		items = append(items, LineItemView{
			ID:             item.ID,
			PartID:         item.PartID,
			Name:           item.Name,
			Brand:          item.Brand,
			Model:          item.Model,
			Year:           item.Year,
			PartType:       item.PartType,
			UnitPriceCents: item.UnitPriceCents,
			Qty:            item.Qty,
			TotalCents:     item.TotalCents,
		})
	}
	return &ReservationView{
		ID:            res.ID,
		OrderNumber:   res.OrderNumber,
		CustomerID:    res.CustomerID,
		CustomerName:  res.CustomerName,
		CustomerEmail: res.CustomerEmail,
		CustomerPhone: res.CustomerPhone,
		Status:        res.Status,
		TotalCents:    res.TotalCents,
		Notes:         res.Notes,
		ExpiresAt:     res.ExpiresAt,
		ConfirmedAt:   res.ConfirmedAt,
		CompletedAt:   res.CompletedAt,
		CancelledAt:   res.CancelledAt,
		Items:         items,
		CreatedAt:     res.CreatedAt,
		UpdatedAt:     res.UpdatedAt,
	}
}
