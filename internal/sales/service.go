package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/partsdepot/partsdepot-backend/pkg/db/models"
	pkgerrors "github.com/partsdepot/partsdepot-backend/pkg/errors"
	"github.com/partsdepot/partsdepot-backend/pkg/logger"
	"github.com/partsdepot/partsdepot-backend/pkg/pagination"
	"github.com/partsdepot/partsdepot-backend/pkg/types"
)

// SaleView is the API shape for one sales log entry.
type SaleView struct {
	ID            uuid.UUID               `json:"id"`
	ReservationID *uuid.UUID              `json:"reservation_id,omitempty"`
	OrderNumber   string                  `json:"order_number"`
	CustomerID    *uuid.UUID              `json:"customer_id,omitempty"`
	CustomerName  string                  `json:"customer_name"`
	CustomerEmail string                  `json:"customer_email"`
	Items         types.SaleLineSnapshots `json:"items"`
	TotalCents    int                     `json:"total_cents"`
	SoldAt        time.Time               `json:"sold_at"`
	CreatedAt     time.Time               `json:"created_at"`
}

// SalesPage is one page of the sales log plus the next cursor.
type SalesPage struct {
	Items      []SaleView `json:"items"`
	NextCursor *string    `json:"next_cursor,omitempty"`
}

// ListInput carries staff-facing filters for the sales log.
type ListInput struct {
	CustomerID *uuid.UUID
	SoldFrom   *time.Time
	SoldUntil  *time.Time
	Pagination pagination.Params
}

// Service reads the sales log. Writes happen inside the reservation
// completion transaction through the repository directly.
type Service interface {
	GetSale(ctx context.Context, saleID uuid.UUID) (*SaleView, error)
	ListSales(ctx context.Context, input ListInput) (*SalesPage, error)
}

type service struct {
	repo *Repository
	logg *logger.Logger
}

// NewService wires the sales read service.
func NewService(repo *Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sales repository is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) GetSale(ctx context.Context, saleID uuid.UUID) (*SaleView, error) {
	sale, err := s.repo.FindByID(ctx, saleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale")
	}
	if sale == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
	}
	view := viewFromModel(sale)
	return &view, nil
}

func (s *service) ListSales(ctx context.Context, input ListInput) (*SalesPage, error) {
	if input.SoldFrom != nil && input.SoldUntil != nil && input.SoldUntil.Before(*input.SoldFrom) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sold_until cannot precede sold_from")
	}

	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(input.Pagination.Limit)
	rows, err := s.repo.List(ctx, ListQuery{
		CustomerID: input.CustomerID,
		SoldFrom:   input.SoldFrom,
		SoldUntil:  input.SoldUntil,
	}, pagination.LimitWithBuffer(input.Pagination.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sales")
	}

	page := &SalesPage{Items: make([]SaleView, 0, len(rows))}
	for _, row := range rows {
		page.Items = append(page.Items, viewFromModel(&row))
	}
	if len(page.Items) > limit {
		page.Items = page.Items[:limit]
		last := page.Items[limit-1]
		next := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		page.NextCursor = &next
	}
	return page, nil
}

func viewFromModel(sale *models.Sale) SaleView {
	return SaleView{
		ID:            sale.ID,
		ReservationID: sale.ReservationID,
		OrderNumber:   sale.OrderNumber,
		CustomerID:    sale.CustomerID,
		CustomerName:  sale.CustomerName,
		CustomerEmail: sale.CustomerEmail,
		Items:         sale.Items,
		TotalCents:    sale.TotalCents,
		SoldAt:        sale.SoldAt,
		CreatedAt:     sale.CreatedAt,
	}
}
