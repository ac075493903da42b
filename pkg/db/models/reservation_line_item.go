package models

import (
	"time"

	"github.com/google/uuid"
)

// ReservationLineItem captures the snapshot of each held part. The snapshot
// fields are copied at creation and never recomputed from the parts table.
type ReservationLineItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReservationID  uuid.UUID  `gorm:"column:reservation_id;type:uuid;not null"`
	PartID         *uuid.UUID `gorm:"column:part_id;type:uuid"`
	Name           string     `gorm:"column:name;not null"`
	Brand          string     `gorm:"column:brand;not null"`
	Model          string     `gorm:"column:model;not null"`
	Year           int        `gorm:"column:year;not null"`
	PartType       string     `gorm:"column:part_type;not null"`
	UnitPriceCents int        `gorm:"column:unit_price_cents;not null"`
	Qty            int        `gorm:"column:qty;not null"`
	TotalCents     int        `gorm:"column:total_cents;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
