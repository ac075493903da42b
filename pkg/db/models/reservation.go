package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/partsdepot/partsdepot-backend/pkg/enums"
)

// Reservation represents a customer hold on one or more parts.
type Reservation struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber   string                  `gorm:"column:order_number;not null"`
	CustomerID    uuid.UUID               `gorm:"column:customer_id;type:uuid;not null"`
	CustomerName  string                  `gorm:"column:customer_name;not null"`
	CustomerEmail string                  `gorm:"column:customer_email;not null"`
	CustomerPhone *string                 `gorm:"column:customer_phone"`
	Status        enums.ReservationStatus `gorm:"column:status;type:reservation_status;not null;default:'pending'"`
	TotalCents    int                     `gorm:"column:total_cents;not null"`
	Notes         *string                 `gorm:"column:notes"`
	ExpiresAt     time.Time               `gorm:"column:expires_at;not null"`
	ConfirmedAt   *time.Time              `gorm:"column:confirmed_at"`
	CompletedAt   *time.Time              `gorm:"column:completed_at"`
	CancelledAt   *time.Time              `gorm:"column:cancelled_at"`
	Items         []ReservationLineItem   `gorm:"foreignKey:ReservationID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
