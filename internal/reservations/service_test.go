package reservations

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/partsdepot/partsdepot-backend/internal/inventory"
	"github.com/partsdepot/partsdepot-backend/internal/sales"
	"github.com/partsdepot/partsdepot-backend/pkg/enums"
	pkgerrors "github.com/partsdepot/partsdepot-backend/pkg/errors"
	"github.com/partsdepot/partsdepot-backend/pkg/logger"
	"github.com/partsdepot/partsdepot-backend/pkg/outbox"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:reservations_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	ddl := []string{`
CREATE TABLE IF NOT EXISTS parts (
  id TEXT PRIMARY KEY,
  brand TEXT NOT NULL,
  model TEXT NOT NULL,
  year INTEGER NOT NULL,
  part_type TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT,
  condition TEXT NOT NULL DEFAULT 'used',
  price_cents INTEGER NOT NULL DEFAULT 0,
  photo_keys TEXT,
  total_qty INTEGER NOT NULL DEFAULT 0,
  reserved_qty INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS reservations (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  customer_name TEXT NOT NULL,
  customer_email TEXT NOT NULL,
  customer_phone TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  total_cents INTEGER NOT NULL DEFAULT 0,
  notes TEXT,
  expires_at DATETIME NOT NULL,
  confirmed_at DATETIME,
  completed_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS reservation_line_items (
  id TEXT PRIMARY KEY,
  reservation_id TEXT NOT NULL,
  part_id TEXT,
  name TEXT NOT NULL,
  brand TEXT NOT NULL,
  model TEXT NOT NULL,
  year INTEGER NOT NULL,
  part_type TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  qty INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS sales (
  id TEXT PRIMARY KEY,
  reservation_id TEXT,
  order_number TEXT NOT NULL,
  customer_id TEXT,
  customer_name TEXT NOT NULL,
  customer_email TEXT NOT NULL,
  items TEXT NOT NULL,
  total_cents INTEGER NOT NULL,
  sold_at DATETIME NOT NULL,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`}
	for _, stmt := range ddl {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type testClock struct {
	current time.Time
}

func (c *testClock) Now() time.Time {
	return c.current
}

func newTestService(t *testing.T) (Service, *gorm.DB, *testClock) {
	t.Helper()
	db := newTestDB(t)
	clock := &testClock{current: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)}
	logg := logger.New(logger.Options{ServiceName: "reservations-test", Output: io.Discard})

	salesRepo, err := sales.NewRepositoryWithDB(db)
	if err != nil {
		t.Fatalf("sales repository: %v", err)
	}

	svc, err := NewService(
		&Repository{db: db},
		salesRepo,
		inventory.NewLedger(),
		testTxRunner{db: db},
		outbox.NewService(outbox.NewRepository(db), logg),
		logg,
		Config{HoldTTL: 24 * time.Hour, Now: clock.Now},
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, db, clock
}

func seedPart(t *testing.T, db *gorm.DB, name string, price, total int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := db.Exec(`
		INSERT INTO parts (id, brand, model, year, part_type, name, price_cents, total_qty, reserved_qty)
		VALUES (?, 'Honda', 'Civic', 2012, ?, ?, ?, ?, 0)
	`, id, strings.ToLower(name), name, price, total).Error
	if err != nil {
		t.Fatalf("seed part: %v", err)
	}
	return id
}

func partCounters(t *testing.T, db *gorm.DB, id uuid.UUID) (int, int, bool) {
	t.Helper()
	var row struct {
		TotalQty    int
		ReservedQty int
	}
	res := db.Raw(`SELECT total_qty, reserved_qty FROM parts WHERE id = ?`, id).Scan(&row)
	if res.Error != nil {
		t.Fatalf("load counters: %v", res.Error)
	}
	return row.TotalQty, row.ReservedQty, res.RowsAffected > 0
}

func countEvents(t *testing.T, db *gorm.DB, eventType enums.OutboxEventType) int {
	t.Helper()
	var count int64
	if err := db.Raw(`SELECT COUNT(*) FROM outbox_events WHERE event_type = ?`, eventType).Scan(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	return int(count)
}

func customerActor() Actor {
	return Actor{UserID: uuid.New(), Role: enums.UserRoleCustomer}
}

func staffActor() Actor {
	return Actor{UserID: uuid.New(), Role: enums.UserRoleStaff}
}

func createInput(items ...CreateItemInput) CreateInput {
	return CreateInput{
		CustomerName:  "Dana Walker",
		CustomerEmail: "dana@example.com",
		Items:         items,
	}
}

func TestCreateHoldsAllItems(t *testing.T) {
	t.Parallel()

	svc, db, clock := newTestService(t)
	ctx := context.Background()
	actor := customerActor()

	alternator := seedPart(t, db, "Alternator", 8500, 5)
	bumper := seedPart(t, db, "Bumper", 14000, 2)

	view, err := svc.Create(ctx, actor, createInput(
		CreateItemInput{PartID: alternator, Qty: 2},
		CreateItemInput{PartID: bumper, Qty: 1},
	))
	if err != nil {
		t.Fatalf("create reservation: %v", err)
	}

	if view.Status != enums.ReservationStatusPending {
		t.Fatalf("expected pending, got %s", view.Status)
	}
	if view.TotalCents != 2*8500+14000 {
		t.Fatalf("unexpected total: %d", view.TotalCents)
	}
	if len(view.Items) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(view.Items))
	}
	if !view.ExpiresAt.Equal(clock.current.Add(24 * time.Hour)) {
		t.Fatalf("unexpected expiry: %s", view.ExpiresAt)
	}
	if !strings.HasPrefix(view.OrderNumber, "PD-20260801-") {
		t.Fatalf("unexpected order number: %s", view.OrderNumber)
	}

	if _, reserved, _ := partCounters(t, db, alternator); reserved != 2 {
		t.Fatalf("expected 2 reserved on alternator, got %d", reserved)
	}
	if _, reserved, _ := partCounters(t, db, bumper); reserved != 1 {
		t.Fatalf("expected 1 reserved on bumper, got %d", reserved)
	}
	if n := countEvents(t, db, enums.EventReservationCreated); n != 1 {
		t.Fatalf("expected 1 created event, got %d", n)
	}
}

func TestCreateInsufficientStockRollsBack(t *testing.T) {
	t.Parallel()

	svc, db, _ := newTestService(t)
	ctx := context.Background()
	actor := customerActor()

	alternator := seedPart(t, db, "Alternator", 8500, 5)
	bumper := seedPart(t, db, "Bumper", 14000, 1)

	_, err := svc.Create(ctx, actor, createInput(
		CreateItemInput{PartID: alternator, Qty: 2},
		CreateItemInput{PartID: bumper, Qty: 3},
	))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok || details["part_id"] != bumper.String() {
		t.Fatalf("expected failing part in details, got %v", typed.Details())
	}

	if _, reserved, _ := partCounters(t, db, alternator); reserved != 0 {
		t.Fatalf("first hold leaked after rollback: reserved=%d", reserved)
	}
	var count int64
	if err := db.Raw(`SELECT COUNT(*) FROM reservations`).Scan(&count).Error; err != nil || count != 0 {
		t.Fatalf("expected no reservation rows, got %d (err %v)", count, err)
	}
	if n := countEvents(t, db, enums.EventReservationCreated); n != 0 {
		t.Fatalf("expected no created events, got %d", n)
	}
}

func TestCreateRejectsDuplicateParts(t *testing.T) {
	t.Parallel()

	svc, db, _ := newTestService(t)
	ctx := context.Background()
	alternator := seedPart(t, db, "Alternator", 8500, 5)

	_, err := svc.Create(ctx, customerActor(), createInput(
		CreateItemInput{PartID: alternator, Qty: 1},
		CreateItemInput{PartID: alternator, Qty: 2},
	))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestConfirmThenCompleteRecordsSale(t *testing.T) {
	t.Parallel()

	svc, db, _ := newTestService(t)
	ctx := context.Background()
	customer := customerActor()
	staff := staffActor()

	alternator := seedPart(t, db, "Alternator", 8500, 5)
	view, err := svc.Create(ctx, customer, createInput(CreateItemInput{PartID: alternator, Qty: 2}))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	view, err = svc.Confirm(ctx, staff, view.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if view.Status != enums.ReservationStatusConfirmed || view.ConfirmedAt == nil {
		t.Fatalf("unexpected state after confirm: %+v", view)
	}
	if _, reserved, _ := partCounters(t, db, alternator); reserved != 2 {
		t.Fatalf("confirm must keep the hold, reserved=%d", reserved)
	}

	view, err = svc.Complete(ctx, staff, view.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if view.Status != enums.ReservationStatusCompleted || view.CompletedAt == nil {
		t.Fatalf("unexpected state after complete: %+v", view)
	}

	total, reserved, _ := partCounters(t, db, alternator)
	if total != 3 || reserved != 0 {
		t.Fatalf("unexpected counters after complete: total=%d reserved=%d", total, reserved)
	}

	var saleCount int64
	if err := db.Raw(`SELECT COUNT(*) FROM sales WHERE reservation_id = ?`, view.ID).Scan(&saleCount).Error; err != nil || saleCount != 1 {
		t.Fatalf("expected 1 sale row, got %d (err %v)", saleCount, err)
	}
	if n := countEvents(t, db, enums.EventSaleRecorded); n != 1 {
		t.Fatalf("expected 1 sale.recorded event, got %d", n)
	}
	if n := countEvents(t, db, enums.EventReservationCompleted); n != 1 {
		t.Fatalf("expected 1 completed event, got %d", n)
	}
}

func TestCompleteRequiresConfirmed(t *testing.T) {
	t.Parallel()

	svc, db, _ := newTestService(t)
	ctx := context.Background()
	staff := staffActor()

	alternator := seedPart(t, db, "Alternator", 8500, 5)
	view, err := svc.Create(ctx, customerActor(), createInput(CreateItemInput{PartID: alternator, Qty: 1}))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.Complete(ctx, staff, view.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCompleteDepletionRemovesPart(t *testing.T) {
	t.Parallel()

	svc, db, _ := newTestService(t)
	ctx := context.Background()
	staff := staffActor()

	bumper := seedPart(t, db, "Bumper", 14000, 1)
	view, err := svc.Create(ctx, customerActor(), createInput(CreateItemInput{PartID: bumper, Qty: 1}))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Confirm(ctx, staff, view.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := svc.Complete(ctx, staff, view.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if _, _, found := partCounters(t, db, bumper); found {
		t.Fatal("expected depleted part row to be removed")
	}
	if n := countEvents(t, db, enums.EventPartDepleted); n != 1 {
		t.Fatalf("expected 1 part.depleted event, got %d", n)
	}
}

func TestCancelReleasesHolds(t *testing.T) {
	t.Parallel()

	svc, db, _ := newTestService(t)
	ctx := context.Background()
	customer := customerActor()

	alternator := seedPart(t, db, "Alternator", 8500, 5)
	view, err := svc.Create(ctx, customer, createInput(CreateItemInput{PartID: alternator, Qty: 3}))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	view, err = svc.Cancel(ctx, customer, view.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if view.Status != enums.ReservationStatusCancelled || view.CancelledAt == nil {
		t.Fatalf("unexpected state after cancel: %+v", view)
	}

	total, reserved, _ := partCounters(t, db, alternator)
	if total != 5 || reserved != 0 {
		t.Fatalf("expected hold released: total=%d reserved=%d", total, reserved)
	}

	_, err = svc.Cancel(ctx, customer, view.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict on double cancel, got %v", err)
	}
}

func TestCustomerScopeHidesOthers(t *testing.T) {
	t.Parallel()

	svc, db, _ := newTestService(t)
	ctx := context.Background()
	owner := customerActor()
	stranger := customerActor()

	alternator := seedPart(t, db, "Alternator", 8500, 5)
	view, err := svc.Create(ctx, owner, createInput(CreateItemInput{PartID: alternator, Qty: 1}))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.Get(ctx, stranger, view.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for stranger, got %v", err)
	}
	_, err = svc.Cancel(ctx, stranger, view.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found on stranger cancel, got %v", err)
	}

	if _, err := svc.Get(ctx, owner, view.ID); err != nil {
		t.Fatalf("owner get: %v", err)
	}

	page, err := svc.List(ctx, stranger, ListQuery{})
	if err != nil {
		t.Fatalf("stranger list: %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("stranger must not see other reservations, got %d", len(page.Items))
	}
}

func TestExpireDueSweepsLapsedHolds(t *testing.T) {
	t.Parallel()

	svc, db, clock := newTestService(t)
	ctx := context.Background()
	customer := customerActor()

	alternator := seedPart(t, db, "Alternator", 8500, 5)
	bumper := seedPart(t, db, "Bumper", 14000, 2)

	lapsed, err := svc.Create(ctx, customer, createInput(CreateItemInput{PartID: alternator, Qty: 2}))
	if err != nil {
		t.Fatalf("create lapsed: %v", err)
	}

	clock.current = clock.current.Add(12 * time.Hour)
	fresh, err := svc.Create(ctx, customer, createInput(CreateItemInput{PartID: bumper, Qty: 1}))
	if err != nil {
		t.Fatalf("create fresh: %v", err)
	}

	sweepAt := clock.current.Add(13 * time.Hour)
	expired, err := svc.ExpireDue(ctx, sweepAt)
	if err != nil {
		t.Fatalf("expire due: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired, got %d", expired)
	}

	lapsedView, err := svc.Get(ctx, customer, lapsed.ID)
	if err != nil {
		t.Fatalf("get lapsed: %v", err)
	}
	if lapsedView.Status != enums.ReservationStatusExpired {
		t.Fatalf("expected expired, got %s", lapsedView.Status)
	}
	if _, reserved, _ := partCounters(t, db, alternator); reserved != 0 {
		t.Fatalf("expected lapsed hold released, reserved=%d", reserved)
	}

	freshView, err := svc.Get(ctx, customer, fresh.ID)
	if err != nil {
		t.Fatalf("get fresh: %v", err)
	}
	if freshView.Status != enums.ReservationStatusPending {
		t.Fatalf("fresh hold must stay pending, got %s", freshView.Status)
	}
	if n := countEvents(t, db, enums.EventReservationExpired); n != 1 {
		t.Fatalf("expected 1 expired event, got %d", n)
	}
}

func TestUpdateStatusGuardsCurrentStatus(t *testing.T) {
	t.Parallel()

	svc, db, clock := newTestService(t)
	ctx := context.Background()
	customer := customerActor()

	alternator := seedPart(t, db, "Alternator", 8500, 3)
	view, err := svc.Create(ctx, customer, createInput(CreateItemInput{PartID: alternator, Qty: 1}))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Cancel(ctx, customer, view.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// A transition that read an earlier status must lose, not overwrite.
	repo := &Repository{db: db}
	err = repo.UpdateStatus(ctx, view.ID, enums.ReservationStatusConfirmed, enums.ReservationStatusCompleted, clock.Now())
	if !errors.Is(err, ErrStaleStatus) {
		t.Fatalf("expected ErrStaleStatus, got %v", err)
	}

	var status string
	if err := db.Raw(`SELECT status FROM reservations WHERE id = ?`, view.ID).Scan(&status).Error; err != nil {
		t.Fatalf("load status: %v", err)
	}
	if status != enums.ReservationStatusCancelled.String() {
		t.Fatalf("terminal reservation must keep its status, got %s", status)
	}
}
