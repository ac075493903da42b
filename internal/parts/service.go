package parts

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/partsdepot/partsdepot-backend/internal/inventory"
	"github.com/partsdepot/partsdepot-backend/pkg/db/models"
	"github.com/partsdepot/partsdepot-backend/pkg/enums"
	pkgerrors "github.com/partsdepot/partsdepot-backend/pkg/errors"
	"github.com/partsdepot/partsdepot-backend/pkg/logger"
	"github.com/partsdepot/partsdepot-backend/pkg/pagination"
)

// Service exposes the parts catalog operations.
type Service interface {
	AddInventory(ctx context.Context, input AddInventoryInput) (*PartView, error)
	AdjustStock(ctx context.Context, partID uuid.UUID, input AdjustStockInput) (*PartView, error)
	UpdatePart(ctx context.Context, partID uuid.UUID, input UpdatePartInput) (*PartView, error)
	DeletePart(ctx context.Context, partID uuid.UUID) error
	GetPart(ctx context.Context, partID uuid.UUID) (*PartView, error)
	ListCatalog(ctx context.Context, query CatalogQuery) (*CatalogPage, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo   *Repository
	ledger inventory.Ledger
	tx     txRunner
	logg   *logger.Logger
}

// NewService wires the parts service.
func NewService(repo *Repository, ledger inventory.Ledger, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("parts repository is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{repo: repo, ledger: ledger, tx: tx, logg: logg}, nil
}

// AddInventory records an intake of stock. A listing matching the fitment
// key (brand, model, year, part type) absorbs the quantity and takes the
// fresh price; otherwise a new listing is created.
func (s *service) AddInventory(ctx context.Context, input AddInventoryInput) (*PartView, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if strings.TrimSpace(input.Brand) == "" || strings.TrimSpace(input.Model) == "" ||
		strings.TrimSpace(input.PartType) == "" || strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "brand, model, part_type and name are required")
	}
	if input.Year < 1900 || input.Year > 2100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "year is out of range")
	}
	condition, err := enums.ParsePartCondition(input.Condition)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid part condition").
			WithDetails(map[string]any{"condition": input.Condition})
	}
	priceCents, err := parsePriceCents(input.Price)
	if err != nil {
		return nil, err
	}

	var partID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindByMergeKey(ctx, input.Brand, input.Model, input.Year, input.PartType)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing for intake")
		}

		if existing == nil {
			part := &models.Part{
				ID:          uuid.New(),
				Brand:       strings.TrimSpace(input.Brand),
				Model:       strings.TrimSpace(input.Model),
				Year:        input.Year,
				PartType:    strings.TrimSpace(input.PartType),
				Name:        strings.TrimSpace(input.Name),
				Description: input.Description,
				Condition:   condition,
				PriceCents:  priceCents,
				PhotoKeys:   input.PhotoKeys,
				TotalQty:    input.Quantity,
				ReservedQty: 0,
			}
			if err := repo.Create(ctx, part); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create listing")
			}
			partID = part.ID
			return nil
		}

		partID = existing.ID
		if err := s.ledger.AddStock(ctx, tx, existing.ID, input.Quantity); err != nil {
			return err
		}

		// Intake refreshes the sellable metadata to the latest values.
		existing.Name = strings.TrimSpace(input.Name)
		existing.Condition = condition
		existing.PriceCents = priceCents
		if input.Description != nil {
			existing.Description = input.Description
		}
		if len(input.PhotoKeys) > 0 {
			existing.PhotoKeys = input.PhotoKeys
		}
		if err := repo.UpdateMetadata(ctx, existing); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh listing metadata")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "part_id", partID.String()), "inventory intake recorded")
	return s.GetPart(ctx, partID)
}

// AdjustStock replaces or shifts the total stock count. Exactly one of
// new_total or delta must be provided.
func (s *service) AdjustStock(ctx context.Context, partID uuid.UUID, input AdjustStockInput) (*PartView, error) {
	if (input.NewTotal == nil) == (input.Delta == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provide exactly one of new_total or delta")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if input.NewTotal != nil {
			return s.ledger.SetTotal(ctx, tx, partID, *input.NewTotal)
		}
		return s.ledger.AddStock(ctx, tx, partID, *input.Delta)
	})
	if err != nil {
		return nil, err
	}
	return s.GetPart(ctx, partID)
}

// UpdatePart patches listing metadata without touching stock counters.
func (s *service) UpdatePart(ctx context.Context, partID uuid.UUID, input UpdatePartInput) (*PartView, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		part, err := repo.FindByID(ctx, partID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
		}
		if part == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "part not found")
		}

		if input.Name != nil {
			if strings.TrimSpace(*input.Name) == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
			}
			part.Name = strings.TrimSpace(*input.Name)
		}
		if input.Description != nil {
			part.Description = input.Description
		}
		if input.Condition != nil {
			condition, err := enums.ParsePartCondition(*input.Condition)
			if err != nil {
				return pkgerrors.New(pkgerrors.CodeValidation, "invalid part condition").
					WithDetails(map[string]any{"condition": *input.Condition})
			}
			part.Condition = condition
		}
		if input.Price != nil {
			priceCents, err := parsePriceCents(*input.Price)
			if err != nil {
				return err
			}
			part.PriceCents = priceCents
		}
		if input.PhotoKeys != nil {
			part.PhotoKeys = *input.PhotoKeys
		}

		return repo.UpdateMetadata(ctx, part)
	})
	if err != nil {
		return nil, err
	}
	return s.GetPart(ctx, partID)
}

// DeletePart removes a listing. Listings holding reserved units refuse
// deletion; the guard lives in the ledger.
func (s *service) DeletePart(ctx context.Context, partID uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ledger.DeletePart(ctx, tx, partID)
	})
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "part_id", partID.String()), "part listing deleted")
	return nil
}

// GetPart loads one listing by ID.
func (s *service) GetPart(ctx context.Context, partID uuid.UUID) (*PartView, error) {
	part, err := s.repo.FindByID(ctx, partID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	if part == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "part not found")
	}
	return viewFromModel(part), nil
}

// ListCatalog returns a filtered cursor page of listings.
func (s *service) ListCatalog(ctx context.Context, query CatalogQuery) (*CatalogPage, error) {
	if query.MinPriceCents != nil && *query.MinPriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "min price cannot be negative")
	}
	if query.MinPriceCents != nil && query.MaxPriceCents != nil && *query.MaxPriceCents < *query.MinPriceCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max price cannot be below min price")
	}

	cursor, err := pagination.ParseCursor(query.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(query.Pagination.Limit)
	items, err := s.repo.ListCatalog(ctx, query, pagination.LimitWithBuffer(query.Pagination.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list catalog")
	}

	page := &CatalogPage{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		last := page.Items[limit-1]
		next := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		page.NextCursor = &next
	}
	return page, nil
}

// parsePriceCents converts a decimal dollar string like "129.99" into
// integer cents. Fractions beyond cents are rejected rather than rounded.
func parsePriceCents(value string) (int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid price").
			WithDetails(map[string]any{"price": value})
	}
	if d.IsNegative() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	cents := d.Mul(decimal.NewFromInt(100))
	if !cents.Equal(cents.Truncate(0)) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "price supports at most two decimal places")
	}
	return int(cents.IntPart()), nil
}

func formatPrice(cents int) string {
	return decimal.NewFromInt(int64(cents)).Div(decimal.NewFromInt(100)).StringFixed(2)
}
