package reservations

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/partsdepot/partsdepot-backend/internal/inventory"
	"github.com/partsdepot/partsdepot-backend/internal/sales"
	"github.com/partsdepot/partsdepot-backend/pkg/db/models"
	"github.com/partsdepot/partsdepot-backend/pkg/enums"
	pkgerrors "github.com/partsdepot/partsdepot-backend/pkg/errors"
	"github.com/partsdepot/partsdepot-backend/pkg/logger"
	"github.com/partsdepot/partsdepot-backend/pkg/outbox"
	"github.com/partsdepot/partsdepot-backend/pkg/pagination"
	"github.com/partsdepot/partsdepot-backend/pkg/types"
)

// expireBatchSize caps how many lapsed holds one sweep picks up.
const expireBatchSize = 100

// Service exposes the reservation lifecycle.
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateInput) (*ReservationView, error)
	Get(ctx context.Context, actor Actor, reservationID uuid.UUID) (*ReservationView, error)
	List(ctx context.Context, actor Actor, query ListQuery) (*ReservationsPage, error)
	Confirm(ctx context.Context, actor Actor, reservationID uuid.UUID) (*ReservationView, error)
	Cancel(ctx context.Context, actor Actor, reservationID uuid.UUID) (*ReservationView, error)
	Complete(ctx context.Context, actor Actor, reservationID uuid.UUID) (*ReservationView, error)
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo      *Repository
	salesRepo *sales.Repository
	ledger    inventory.Ledger
	tx        txRunner
	events    eventEmitter
	logg      *logger.Logger
	holdTTL   time.Duration
	now       func() time.Time
}

// Config carries the tunables for the reservation service.
type Config struct {
	HoldTTL time.Duration
	Now     func() time.Time
}

// NewService wires the reservation service.
func NewService(
	repo *Repository,
	salesRepo *sales.Repository,
	ledger inventory.Ledger,
	tx txRunner,
	events eventEmitter,
	logg *logger.Logger,
	cfg Config,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reservations repository is required")
	}
	if salesRepo == nil {
		return nil, fmt.Errorf("sales repository is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.HoldTTL <= 0 {
		return nil, fmt.Errorf("hold TTL must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &service{
		repo:      repo,
		salesRepo: salesRepo,
		ledger:    ledger,
		tx:        tx,
		events:    events,
		logg:      logg,
		holdTTL:   cfg.HoldTTL,
		now:       cfg.Now,
	}, nil
}

type reservationEventData struct {
	ReservationID string `json:"reservation_id"`
	OrderNumber   string `json:"order_number"`
	Status        string `json:"status"`
	CustomerID    string `json:"customer_id"`
	TotalCents    int    `json:"total_cents"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

// Create places holds for every requested line in one transaction. Any
// shortage rolls back the whole request so partial holds never leak.
func (s *service) Create(ctx context.Context, actor Actor, input CreateInput) (*ReservationView, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	orderNumber, err := generateOrderNumber(now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
	}

	reservationID := uuid.New()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		totalCents := 0
		items := make([]models.ReservationLineItem, 0, len(input.Items))
		for _, line := range input.Items {
			part, err := repo.FindPartForHold(ctx, line.PartID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load part for hold")
			}
			if part == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "part not found").
					WithDetails(map[string]any{"part_id": line.PartID.String()})
			}
			if err := s.ledger.Reserve(ctx, tx, part.ID, line.Qty); err != nil {
				if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeInsufficientStock {
					return typed.WithDetails(mergeDetails(typed.Details(), map[string]any{
						"part_id": part.ID.String(),
					}))
				}
				return err
			}

			lineTotal := part.PriceCents * line.Qty
			totalCents += lineTotal
			partID := part.ID
			items = append(items, models.ReservationLineItem{
				ID:             uuid.New(),
				PartID:         &partID,
				Name:           part.Name,
				Brand:          part.Brand,
				Model:          part.Model,
				Year:           part.Year,
				PartType:       part.PartType,
				UnitPriceCents: part.PriceCents,
				Qty:            line.Qty,
				TotalCents:     lineTotal,
			})
		}

		reservation := &models.Reservation{
			ID:            reservationID,
			OrderNumber:   orderNumber,
			CustomerID:    actor.UserID,
			CustomerName:  strings.TrimSpace(input.CustomerName),
			CustomerEmail: strings.ToLower(strings.TrimSpace(input.CustomerEmail)),
			CustomerPhone: input.CustomerPhone,
			Status:        enums.ReservationStatusPending,
			TotalCents:    totalCents,
			Notes:         input.Notes,
			ExpiresAt:     now.Add(s.holdTTL),
			Items:         items,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := repo.Create(ctx, reservation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation")
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationCreated,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Actor:         actorRef(actor),
			Data: reservationEventData{
				ReservationID: reservation.ID.String(),
				OrderNumber:   reservation.OrderNumber,
				Status:        reservation.Status.String(),
				CustomerID:    reservation.CustomerID.String(),
				TotalCents:    reservation.TotalCents,
				ExpiresAt:     reservation.ExpiresAt.Format(time.RFC3339),
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithReservationID(ctx, reservationID.String())
	s.logg.Info(logCtx, "reservation created")
	return s.loadView(ctx, reservationID)
}

// Get returns one reservation. Customers only see their own.
func (s *service) Get(ctx context.Context, actor Actor, reservationID uuid.UUID) (*ReservationView, error) {
	reservation, err := s.repo.FindByID(ctx, reservationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	if reservation == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	if !actor.IsStaff() && reservation.CustomerID != actor.UserID {
		// Hide existence from other customers.
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	return viewFromModel(reservation), nil
}

// List returns a cursor page. Customers are pinned to their own rows.
func (s *service) List(ctx context.Context, actor Actor, query ListQuery) (*ReservationsPage, error) {
	if query.Status != "" {
		if _, err := enums.ParseReservationStatus(query.Status); err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid reservation status").
				WithDetails(map[string]any{"status": query.Status})
		}
	}
	if !actor.IsStaff() {
		id := actor.UserID
		query.CustomerID = &id
	}

	cursor, err := pagination.ParseCursor(query.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(query.Pagination.Limit)
	rows, err := s.repo.List(ctx, query, pagination.LimitWithBuffer(query.Pagination.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reservations")
	}

	page := &ReservationsPage{Items: make([]ReservationView, 0, len(rows))}
	for i := range rows {
		page.Items = append(page.Items, *viewFromModel(&rows[i]))
	}
	if len(page.Items) > limit {
		page.Items = page.Items[:limit]
		last := page.Items[limit-1]
		next := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		page.NextCursor = &next
	}
	return page, nil
}

// Confirm moves a pending reservation to confirmed. Stock stays held.
func (s *service) Confirm(ctx context.Context, actor Actor, reservationID uuid.UUID) (*ReservationView, error) {
	now := s.now().UTC()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reservation, err := s.loadForTransition(ctx, repo, actor, reservationID)
		if err != nil {
			return err
		}
		if reservation.Status != enums.ReservationStatusPending {
			return stateConflict(reservation.Status, enums.ReservationStatusConfirmed)
		}
		if err := repo.UpdateStatus(ctx, reservationID, enums.ReservationStatusPending, enums.ReservationStatusConfirmed, now); err != nil {
			if errors.Is(err, ErrStaleStatus) {
				return stateConflict(reservation.Status, enums.ReservationStatusConfirmed)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm reservation")
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationConfirmed,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservationID,
			Actor:         actorRef(actor),
			Data: reservationEventData{
				ReservationID: reservationID.String(),
				OrderNumber:   reservation.OrderNumber,
				Status:        enums.ReservationStatusConfirmed.String(),
				CustomerID:    reservation.CustomerID.String(),
				TotalCents:    reservation.TotalCents,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithReservationID(ctx, reservationID.String()), "reservation confirmed")
	return s.loadView(ctx, reservationID)
}

// Cancel releases every held line and closes the reservation. Allowed
// while the reservation still holds stock.
func (s *service) Cancel(ctx context.Context, actor Actor, reservationID uuid.UUID) (*ReservationView, error) {
	now := s.now().UTC()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reservation, err := s.loadForTransition(ctx, repo, actor, reservationID)
		if err != nil {
			return err
		}
		if !reservation.Status.HoldsStock() {
			return stateConflict(reservation.Status, enums.ReservationStatusCancelled)
		}

		if err := s.releaseHeldItems(ctx, tx, reservation); err != nil {
			return err
		}
		if err := repo.UpdateStatus(ctx, reservationID, reservation.Status, enums.ReservationStatusCancelled, now); err != nil {
			if errors.Is(err, ErrStaleStatus) {
				return stateConflict(reservation.Status, enums.ReservationStatusCancelled)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel reservation")
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationCancelled,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservationID,
			Actor:         actorRef(actor),
			Data: reservationEventData{
				ReservationID: reservationID.String(),
				OrderNumber:   reservation.OrderNumber,
				Status:        enums.ReservationStatusCancelled.String(),
				CustomerID:    reservation.CustomerID.String(),
				TotalCents:    reservation.TotalCents,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithReservationID(ctx, reservationID.String()), "reservation cancelled")
	return s.loadView(ctx, reservationID)
}

// Complete consumes the held stock, appends the sale record and closes
// the reservation. Only confirmed reservations complete.
func (s *service) Complete(ctx context.Context, actor Actor, reservationID uuid.UUID) (*ReservationView, error) {
	now := s.now().UTC()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reservation, err := s.loadForTransition(ctx, repo, actor, reservationID)
		if err != nil {
			return err
		}
		if reservation.Status != enums.ReservationStatusConfirmed {
			return stateConflict(reservation.Status, enums.ReservationStatusCompleted)
		}

		snapshots := make(types.SaleLineSnapshots, 0, len(reservation.Items))
		for _, item := range reservation.Items {
			if item.PartID != nil {
				depleted, err := s.ledger.Consume(ctx, tx, *item.PartID, item.Qty)
				if err != nil {
					return err
				}
				if depleted {
					err := s.events.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
						EventType:     enums.EventPartDepleted,
						AggregateType: enums.AggregatePart,
						AggregateID:   *item.PartID,
						Actor:         actorRef(actor),
						Data: map[string]any{
							"part_id":        item.PartID.String(),
							"reservation_id": reservationID.String(),
						},
						OccurredAt: now,
					})
					if err != nil {
						return err
					}
				}
			}
			snapshot := types.SaleLineSnapshot{
				Name:           item.Name,
				Brand:          item.Brand,
				Model:          item.Model,
				Year:           item.Year,
				PartType:       item.PartType,
				UnitPriceCents: item.UnitPriceCents,
				Qty:            item.Qty,
				TotalCents:     item.TotalCents,
			}
			if item.PartID != nil {
				snapshot.PartID = item.PartID.String()
			}
			snapshots = append(snapshots, snapshot)
		}

		resID := reservation.ID
		custID := reservation.CustomerID
		sale := &models.Sale{
			ID:            uuid.New(),
			ReservationID: &resID,
			OrderNumber:   reservation.OrderNumber,
			CustomerID:    &custID,
			CustomerName:  reservation.CustomerName,
			CustomerEmail: reservation.CustomerEmail,
			Items:         snapshots,
			TotalCents:    reservation.TotalCents,
			SoldAt:        now,
			CreatedAt:     now,
		}
		if err := s.salesRepo.WithTx(tx).Create(ctx, sale); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record sale")
		}

		if err := repo.UpdateStatus(ctx, reservationID, enums.ReservationStatusConfirmed, enums.ReservationStatusCompleted, now); err != nil {
			if errors.Is(err, ErrStaleStatus) {
				return stateConflict(reservation.Status, enums.ReservationStatusCompleted)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete reservation")
		}

		err = s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationCompleted,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservationID,
			Actor:         actorRef(actor),
			Data: reservationEventData{
				ReservationID: reservationID.String(),
				OrderNumber:   reservation.OrderNumber,
				Status:        enums.ReservationStatusCompleted.String(),
				CustomerID:    reservation.CustomerID.String(),
				TotalCents:    reservation.TotalCents,
			},
			OccurredAt: now,
		})
		if err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSaleRecorded,
			AggregateType: enums.AggregateSale,
			AggregateID:   sale.ID,
			Actor:         actorRef(actor),
			Data: map[string]any{
				"sale_id":        sale.ID.String(),
				"reservation_id": reservationID.String(),
				"order_number":   sale.OrderNumber,
				"total_cents":    sale.TotalCents,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithReservationID(ctx, reservationID.String()), "reservation completed")
	return s.loadView(ctx, reservationID)
}

// ExpireDue sweeps lapsed pending holds. Each reservation expires in its
// own transaction so one failure does not wedge the rest of the batch.
func (s *service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.repo.ListExpirableIDs(ctx, now, expireBatchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expirable reservations")
	}

	expired := 0
	var errs error
	for _, id := range ids {
		if err := s.expireOne(ctx, id, now); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire %s: %w", id, err))
			continue
		}
		expired++
	}
	if expired > 0 {
		s.logg.Info(s.logg.WithField(ctx, "expired_count", expired), "reservation holds expired")
	}
	return expired, errs
}

func (s *service) expireOne(ctx context.Context, reservationID uuid.UUID, now time.Time) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reservation, err := repo.FindByID(ctx, reservationID)
		if err != nil {
			return err
		}
		// Re-check under the transaction; the customer may have raced us.
		if reservation == nil || reservation.Status != enums.ReservationStatusPending || reservation.ExpiresAt.After(now) {
			return nil
		}

		if err := s.releaseHeldItems(ctx, tx, reservation); err != nil {
			return err
		}
		if err := repo.UpdateStatus(ctx, reservationID, enums.ReservationStatusPending, enums.ReservationStatusExpired, now); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationExpired,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservationID,
			Data: reservationEventData{
				ReservationID: reservationID.String(),
				OrderNumber:   reservation.OrderNumber,
				Status:        enums.ReservationStatusExpired.String(),
				CustomerID:    reservation.CustomerID.String(),
				TotalCents:    reservation.TotalCents,
			},
			OccurredAt: now,
		})
	})
	if errors.Is(err, ErrStaleStatus) {
		// A customer transition won the race; the rollback undid the releases.
		return nil
	}
	return err
}

func (s *service) releaseHeldItems(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) error {
	for _, item := range reservation.Items {
		if item.PartID == nil {
			continue
		}
		if err := s.ledger.Release(ctx, tx, *item.PartID, item.Qty); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) loadForTransition(ctx context.Context, repo *Repository, actor Actor, reservationID uuid.UUID) (*models.Reservation, error) {
	reservation, err := repo.FindByID(ctx, reservationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	if reservation == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	if !actor.IsStaff() && reservation.CustomerID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	return reservation, nil
}

func (s *service) loadView(ctx context.Context, reservationID uuid.UUID) (*ReservationView, error) {
	reservation, err := s.repo.FindByID(ctx, reservationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	if reservation == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	return viewFromModel(reservation), nil
}

func validateCreateInput(input CreateInput) error {
	if strings.TrimSpace(input.CustomerName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer name is required")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(input.CustomerEmail)); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "valid customer email is required")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(input.Items))
	for _, item := range input.Items {
		if item.PartID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "item part_id is required")
		}
		if item.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "item qty must be positive")
		}
		if _, dup := seen[item.PartID]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate part in items").
				WithDetails(map[string]any{"part_id": item.PartID.String()})
		}
		seen[item.PartID] = struct{}{}
	}
	return nil
}

func stateConflict(from, to enums.ReservationStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation state does not allow this transition").
		WithDetails(map[string]any{"current_status": from.String(), "target_status": to.String()})
}

func actorRef(actor Actor) *outbox.ActorRef {
	if actor.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()}
}

func mergeDetails(existing any, extra map[string]any) map[string]any {
	merged := make(map[string]any, len(extra)+2)
	if m, ok := existing.(map[string]any); ok {
		for k, v := range m {
			merged[k] = v
		}
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}
