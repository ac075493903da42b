package outbox

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/partsdepot/partsdepot-backend/pkg/db/models"
	"github.com/partsdepot/partsdepot-backend/pkg/enums"
	"github.com/partsdepot/partsdepot-backend/pkg/logger"
)

func newTestGorm(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:outbox_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	ddl := []string{
		`CREATE TABLE outbox_events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			aggregate_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			published_at DATETIME,
			attempt_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT
		)`,
		`CREATE UNIQUE INDEX ux_outbox_events_event_aggregate
			ON outbox_events (event_type, aggregate_type, aggregate_id)`,
	}
	for _, stmt := range ddl {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard})
	return NewService(NewRepository(db), logg)
}

func countEvents(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.OutboxEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	return count
}

func TestEmitPersistsEnvelope(t *testing.T) {
	db := newTestGorm(t)
	svc := newTestService(t, db)
	aggregateID := uuid.New()
	actorID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventReservationCreated,
			AggregateType: enums.AggregateReservation,
			AggregateID:   aggregateID,
			Actor:         &ActorRef{UserID: actorID, Role: string(enums.UserRoleCustomer)},
			Data:          map[string]any{"order_number": "PD-20260828-ABC234"},
			Version:       1,
			OccurredAt:    time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
		})
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	var row models.OutboxEvent
	if err := db.First(&row).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if row.EventType != enums.EventReservationCreated {
		t.Fatalf("unexpected event type %s", row.EventType)
	}
	if row.AggregateID != aggregateID {
		t.Fatalf("unexpected aggregate id %s", row.AggregateID)
	}
	if row.PublishedAt != nil {
		t.Fatal("new events must start unpublished")
	}

	var envelope PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Version != 1 {
		t.Fatalf("unexpected envelope version %d", envelope.Version)
	}
	if envelope.EventID == "" {
		t.Fatal("envelope must carry an event id")
	}
	if envelope.Actor == nil || envelope.Actor.UserID != actorID {
		t.Fatal("actor reference not preserved")
	}
}

func TestEmitRequiresTransaction(t *testing.T) {
	db := newTestGorm(t)
	svc := newTestService(t, db)

	err := svc.Emit(context.Background(), nil, DomainEvent{
		EventType:     enums.EventReservationCreated,
		AggregateType: enums.AggregateReservation,
		AggregateID:   uuid.New(),
	})
	if err == nil {
		t.Fatal("expected error without transaction")
	}
}

func TestEmitIfNotExistsDeduplicates(t *testing.T) {
	db := newTestGorm(t)
	svc := newTestService(t, db)
	aggregateID := uuid.New()

	event := DomainEvent{
		EventType:     enums.EventPartDepleted,
		AggregateType: enums.AggregatePart,
		AggregateID:   aggregateID,
		Data:          map[string]any{"part_id": aggregateID.String()},
		Version:       1,
	}

	for i := 0; i < 3; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			return svc.EmitIfNotExists(context.Background(), tx, event)
		})
		if err != nil {
			t.Fatalf("emit attempt %d: %v", i, err)
		}
	}

	if got := countEvents(t, db); got != 1 {
		t.Fatalf("expected exactly one event, got %d", got)
	}
}

func TestEmitIfNotExistsAllowsDistinctAggregates(t *testing.T) {
	db := newTestGorm(t)
	svc := newTestService(t, db)

	for i := 0; i < 2; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			return svc.EmitIfNotExists(context.Background(), tx, DomainEvent{
				EventType:     enums.EventPartDepleted,
				AggregateType: enums.AggregatePart,
				AggregateID:   uuid.New(),
				Version:       1,
			})
		})
		if err != nil {
			t.Fatalf("emit %d: %v", i, err)
		}
	}

	if got := countEvents(t, db); got != 2 {
		t.Fatalf("expected two events, got %d", got)
	}
}
