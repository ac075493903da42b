package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/partsdepot/partsdepot-backend/pkg/enums"
)

// Part represents one salvaged part listing with its stock counters.
// total_qty and reserved_qty are only ever written through the guarded
// statements in internal/inventory.
type Part struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Brand       string              `gorm:"column:brand;not null"`
	Model       string              `gorm:"column:model;not null"`
	Year        int                 `gorm:"column:year;not null"`
	PartType    string              `gorm:"column:part_type;not null"`
	Name        string              `gorm:"column:name;not null"`
	Description *string             `gorm:"column:description"`
	Condition   enums.PartCondition `gorm:"column:condition;type:part_condition;not null;default:'used'"`
	PriceCents  int                 `gorm:"column:price_cents;not null"`
	PhotoKeys   pq.StringArray      `gorm:"column:photo_keys;type:text[];not null;default:ARRAY[]::text[]"`
	TotalQty    int                 `gorm:"column:total_qty;not null;default:0"`
	ReservedQty int                 `gorm:"column:reserved_qty;not null;default:0"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// AvailableQty is the derived sellable count, floored at zero.
func (p Part) AvailableQty() int {
	available := p.TotalQty - p.ReservedQty
	if available < 0 {
		return 0
	}
	return available
}
