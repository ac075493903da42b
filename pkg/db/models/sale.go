package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/partsdepot/partsdepot-backend/pkg/types"
)

// Sale is the append-only record written when a reservation completes or a
// walk-in purchase is rung up. Rows are never updated or deleted.
type Sale struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReservationID *uuid.UUID              `gorm:"column:reservation_id;type:uuid"`
	OrderNumber   string                  `gorm:"column:order_number;not null"`
	CustomerID    *uuid.UUID              `gorm:"column:customer_id;type:uuid"`
	CustomerName  string                  `gorm:"column:customer_name;not null"`
	CustomerEmail string                  `gorm:"column:customer_email;not null"`
	Items         types.SaleLineSnapshots `gorm:"column:items;type:jsonb;not null"`
	TotalCents    int                     `gorm:"column:total_cents;not null"`
	SoldAt        time.Time               `gorm:"column:sold_at;not null"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
}
