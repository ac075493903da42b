package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/partsdepot/partsdepot-backend/pkg/errors"
)

// Ledger applies the guarded counter updates on the parts table. Every
// operation is a single conditional statement so concurrent writers are
// serialized by the database, never by an in-process read-then-write.
// No other code writes total_qty or reserved_qty.
type Ledger interface {
	Reserve(ctx context.Context, tx *gorm.DB, partID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, partID uuid.UUID, qty int) error
	Consume(ctx context.Context, tx *gorm.DB, partID uuid.UUID, qty int) (depleted bool, err error)
	AddStock(ctx context.Context, tx *gorm.DB, partID uuid.UUID, delta int) error
	SetTotal(ctx context.Context, tx *gorm.DB, partID uuid.UUID, newTotal int) error
	DeletePart(ctx context.Context, tx *gorm.DB, partID uuid.UUID) error
}

type ledgerImpl struct{}

// NewLedger exposes the default parts counter implementation.
func NewLedger() Ledger {
	return ledgerImpl{}
}

// Reserve places a hold on qty units. The guard admits the update only when
// enough unreserved units remain; zero rows affected means the hold lost the
// race or the stock was never there.
func (ledgerImpl) Reserve(ctx context.Context, tx *gorm.DB, partID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory reserve")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE parts
		SET reserved_qty = reserved_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND total_qty - reserved_qty >= ?
	`, qty, partID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve inventory")
	}
	if res.RowsAffected == 0 {
		total, reserved, err := loadCounters(ctx, tx, partID)
		if err != nil {
			return err
		}
		available := total - reserved
		if available < 0 {
			available = 0
		}
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock available").
			WithDetails(map[string]any{"available": available, "requested": qty})
	}
	return nil
}

// Release returns qty held units. The decrement is clamped at zero so a
// compensating release after drift can never fail or go negative.
func (ledgerImpl) Release(ctx context.Context, tx *gorm.DB, partID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory release")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE parts
		SET reserved_qty = CASE WHEN reserved_qty >= ? THEN reserved_qty - ? ELSE 0 END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, qty, partID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release inventory")
	}
	return nil
}

// Consume removes qty units from stock when a reservation completes. The row
// is deleted once total_qty reaches zero; depleted reports that removal.
func (ledgerImpl) Consume(ctx context.Context, tx *gorm.DB, partID uuid.UUID, qty int) (bool, error) {
	if qty <= 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if tx == nil {
		return false, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory consume")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE parts
		SET total_qty = total_qty - ?,
			reserved_qty = CASE WHEN reserved_qty >= ? THEN reserved_qty - ? ELSE 0 END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND total_qty >= ?
	`, qty, qty, qty, partID, qty)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "consume inventory")
	}
	if res.RowsAffected == 0 {
		total, _, err := loadCounters(ctx, tx, partID)
		if err != nil {
			return false, err
		}
		return false, pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock to consume").
			WithDetails(map[string]any{"available": total, "requested": qty})
	}

	del := tx.WithContext(ctx).Exec(`DELETE FROM parts WHERE id = ? AND total_qty <= 0`, partID)
	if del.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, del.Error, "remove depleted part")
	}
	return del.RowsAffected > 0, nil
}

// AddStock shifts total_qty by a relative delta. The guard rejects any
// delta that would land the total below the units currently reserved.
func (ledgerImpl) AddStock(ctx context.Context, tx *gorm.DB, partID uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory adjust")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE parts
		SET total_qty = total_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND total_qty + ? >= reserved_qty AND total_qty + ? >= 0
	`, delta, partID, delta, delta)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "adjust inventory")
	}
	if res.RowsAffected == 0 {
		total, reserved, err := loadCounters(ctx, tx, partID)
		if err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeBelowReserved, "total cannot drop below reserved units").
			WithDetails(map[string]any{"reserved": reserved, "requested_total": total + delta})
	}
	return nil
}

// SetTotal replaces total_qty with an absolute count. The guard rejects
// totals below the units currently reserved.
func (ledgerImpl) SetTotal(ctx context.Context, tx *gorm.DB, partID uuid.UUID, newTotal int) error {
	if newTotal < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "total quantity cannot be negative")
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory set")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE parts
		SET total_qty = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND reserved_qty <= ?
	`, newTotal, partID, newTotal)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "set inventory total")
	}
	if res.RowsAffected == 0 {
		_, reserved, err := loadCounters(ctx, tx, partID)
		if err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeBelowReserved, "total cannot drop below reserved units").
			WithDetails(map[string]any{"reserved": reserved, "requested_total": newTotal})
	}
	return nil
}

// DeletePart removes the listing only when no units are held.
func (ledgerImpl) DeletePart(ctx context.Context, tx *gorm.DB, partID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for part delete")
	}

	res := tx.WithContext(ctx).Exec(`DELETE FROM parts WHERE id = ? AND reserved_qty = 0`, partID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "delete part")
	}
	if res.RowsAffected == 0 {
		_, reserved, err := loadCounters(ctx, tx, partID)
		if err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeActiveReservations, "part has active reservations").
			WithDetails(map[string]any{"reserved": reserved})
	}
	return nil
}

func loadCounters(ctx context.Context, tx *gorm.DB, partID uuid.UUID) (total int, reserved int, err error) {
	var row struct {
		TotalQty    int
		ReservedQty int
	}
	res := tx.WithContext(ctx).
		Raw(`SELECT total_qty, reserved_qty FROM parts WHERE id = ?`, partID).
		Scan(&row)
	if res.Error != nil {
		return 0, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "load part counters")
	}
	if res.RowsAffected == 0 {
		return 0, 0, pkgerrors.New(pkgerrors.CodeNotFound, "part not found")
	}
	return row.TotalQty, row.ReservedQty, nil
}
