package parts

import (
	"time"

	"github.com/google/uuid"

	"github.com/partsdepot/partsdepot-backend/pkg/db/models"
	"github.com/partsdepot/partsdepot-backend/pkg/enums"
	"github.com/partsdepot/partsdepot-backend/pkg/pagination"
)

// AddInventoryInput describes one intake of salvaged stock. When a listing
// with the same fitment key already exists the quantity merges into it.
type AddInventoryInput struct {
	Brand       string   `json:"brand" validate:"required"`
	Model       string   `json:"model" validate:"required"`
	Year        int      `json:"year" validate:"required,gte=1900,lte=2100"`
	PartType    string   `json:"part_type" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Description *string  `json:"description,omitempty"`
	Condition   string   `json:"condition" validate:"required"`
	Price       string   `json:"price" validate:"required"`
	Quantity    int      `json:"quantity" validate:"required,gt=0"`
	PhotoKeys   []string `json:"photo_keys,omitempty"`
}

// AdjustStockInput carries either an absolute replacement total or a
// relative delta. Exactly one must be set.
type AdjustStockInput struct {
	NewTotal *int `json:"new_total,omitempty"`
	Delta    *int `json:"delta,omitempty"`
}

// UpdatePartInput patches listing metadata. Stock counters are not
// editable here.
type UpdatePartInput struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Condition   *string   `json:"condition,omitempty"`
	Price       *string   `json:"price,omitempty"`
	PhotoKeys   *[]string `json:"photo_keys,omitempty"`
}

// CatalogQuery filters the paginated parts listing.
type CatalogQuery struct {
	Brand         string
	Model         string
	Year          int
	PartType      string
	Search        string
	MinPriceCents *int
	MaxPriceCents *int
	Pagination    pagination.Params
}

// PartView is the API shape for a single listing.
type PartView struct {
	ID           uuid.UUID           `json:"id"`
	Brand        string              `json:"brand"`
	Model        string              `json:"model"`
	Year         int                 `json:"year"`
	PartType     string              `json:"part_type"`
	Name         string              `json:"name"`
	Description  *string             `json:"description,omitempty"`
	Condition    enums.PartCondition `json:"condition"`
	Price        string              `json:"price"`
	PriceCents   int                 `json:"price_cents"`
	PhotoKeys    []string            `json:"photo_keys"`
	TotalQty     int                 `json:"total_qty"`
	ReservedQty  int                 `json:"reserved_qty"`
	AvailableQty int                 `json:"available_qty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// CatalogPage is one page of listings plus the cursor for the next.
type CatalogPage struct {
	Items      []PartView `json:"items"`
	NextCursor *string    `json:"next_cursor,omitempty"`
}

func viewFromModel(part *models.Part) *PartView {
	if part == nil {
		return nil
	}
	return &PartView{
		ID:           part.ID,
		Brand:        part.Brand,
		Model:        part.Model,
		Year:         part.Year,
		PartType:     part.PartType,
		Name:         part.Name,
		Description:  part.Description,
		Condition:    part.Condition,
		Price:        formatPrice(part.PriceCents),
		PriceCents:   part.PriceCents,
		PhotoKeys:    append([]string{}, part.PhotoKeys...),
		TotalQty:     part.TotalQty,
		ReservedQty:  part.ReservedQty,
		AvailableQty: part.AvailableQty(),
		CreatedAt:    part.CreatedAt,
		UpdatedAt:    part.UpdatedAt,
	}
}
