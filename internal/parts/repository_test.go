package parts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/partsdepot/partsdepot-backend/pkg/pagination"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:parts_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	ddl := `
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
);`
	if err := db.Exec(ddl).Error; err != nil {
		t.Fatalf("create parts table: %v", err)
	}
	return db
}

type seedOpts struct {
	brand     string
	model     string
	year      int
	partType  string
	name      string
	price     int
	total     int
	reserved  int
	createdAt time.Time
}

func seedListing(t *testing.T, db *gorm.DB, opts seedOpts) uuid.UUID {
	t.Helper()
	if opts.brand == "" {
		opts.brand = "Honda"
	}
	if opts.model == "" {
		opts.model = "Civic"
	}
	if opts.year == 0 {
		opts.year = 2012
	}
	if opts.partType == "" {
		opts.partType = "alternator"
	}
	if opts.name == "" {
		opts.name = "Alternator"
	}
	if opts.createdAt.IsZero() {
		opts.createdAt = time.Now().UTC()
	}

	id := uuid.New()
	err := db.Exec(`
		INSERT INTO parts (id, brand, model, year, part_type, name, price_cents, photo_keys, total_qty, reserved_qty, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, '{}', ?, ?, ?, ?)
	`, id, opts.brand, opts.model, opts.year, opts.partType, opts.name, opts.price, opts.total, opts.reserved, opts.createdAt, opts.createdAt).Error
	if err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	return id
}

func TestFindByMergeKeyIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := &Repository{db: db}
	ctx := context.Background()

	id := seedListing(t, db, seedOpts{brand: "Toyota", model: "Corolla", year: 2015, partType: "headlight", total: 2})

	part, err := repo.FindByMergeKey(ctx, "toyota", "COROLLA", 2015, "Headlight")
	if err != nil {
		t.Fatalf("find by merge key: %v", err)
	}
	if part == nil || part.ID != id {
		t.Fatalf("expected listing %s, got %+v", id, part)
	}

	missing, err := repo.FindByMergeKey(ctx, "toyota", "COROLLA", 2016, "Headlight")
	if err != nil {
		t.Fatalf("find by merge key: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected no match for different year, got %+v", missing)
	}
}

func TestListCatalogHidesUnavailableByDefault(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := &Repository{db: db}
	ctx := context.Background()

	inStock := seedListing(t, db, seedOpts{total: 3, reserved: 1})
	// Fully reserved: in stock on paper, nothing left to sell.
	seedListing(t, db, seedOpts{brand: "Ford", model: "Focus", total: 2, reserved: 2})
	seedListing(t, db, seedOpts{brand: "Mazda", model: "3", total: 0})

	views, err := repo.ListCatalog(ctx, CatalogQuery{}, 10, nil)
	if err != nil {
		t.Fatalf("list catalog: %v", err)
	}
	if len(views) != 1 || views[0].ID != inStock {
		t.Fatalf("expected only the in-stock listing, got %d rows", len(views))
	}
	if views[0].AvailableQty != 2 {
		t.Fatalf("expected available 2, got %d", views[0].AvailableQty)
	}
}

func TestListCatalogFilters(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := &Repository{db: db}
	ctx := context.Background()

	honda := seedListing(t, db, seedOpts{brand: "Honda", model: "Civic", year: 2012, partType: "alternator", name: "Alternator 90A", price: 8500, total: 3})
	seedListing(t, db, seedOpts{brand: "Ford", model: "Focus", year: 2014, partType: "alternator", name: "Alternator 110A", price: 9900, total: 1})
	seedListing(t, db, seedOpts{brand: "Honda", model: "Civic", year: 2012, partType: "bumper", name: "Front Bumper", price: 14000, total: 2})

	views, err := repo.ListCatalog(ctx, CatalogQuery{Brand: "honda", PartType: "ALTERNATOR"}, 10, nil)
	if err != nil {
		t.Fatalf("list catalog: %v", err)
	}
	if len(views) != 1 || views[0].ID != honda {
		t.Fatalf("expected the honda alternator, got %d rows", len(views))
	}

	views, err = repo.ListCatalog(ctx, CatalogQuery{Search: "bumper"}, 10, nil)
	if err != nil {
		t.Fatalf("list catalog: %v", err)
	}
	if len(views) != 1 || views[0].Name != "Front Bumper" {
		t.Fatalf("expected the bumper by search, got %d rows", len(views))
	}

	minPrice := 9000
	views, err = repo.ListCatalog(ctx, CatalogQuery{MinPriceCents: &minPrice}, 10, nil)
	if err != nil {
		t.Fatalf("list catalog: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected two listings at or above 90.00, got %d", len(views))
	}
}

func TestListCatalogCursorPagination(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := &Repository{db: db}
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		id := seedListing(t, db, seedOpts{
			brand:     "Subaru",
			model:     "Outback",
			year:      2010 + i,
			total:     1,
			createdAt: base.Add(time.Duration(i) * time.Minute),
		})
		ids = append(ids, id)
	}

	first, err := repo.ListCatalog(ctx, CatalogQuery{}, 3, nil)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(first))
	}
	if first[0].ID != ids[4] || first[2].ID != ids[2] {
		t.Fatalf("unexpected ordering on first page")
	}

	cursor := &pagination.Cursor{CreatedAt: first[2].CreatedAt, ID: first[2].ID}
	second, err := repo.ListCatalog(ctx, CatalogQuery{}, 3, cursor)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("expected 2 rows on second page, got %d", len(second))
	}
	if second[0].ID != ids[1] || second[1].ID != ids[0] {
		t.Fatalf("unexpected ordering on second page")
	}
}
