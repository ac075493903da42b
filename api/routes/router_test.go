package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	authsvc "github.com/partsdepot/partsdepot-backend/internal/auth"
	mediasvc "github.com/partsdepot/partsdepot-backend/internal/media"
	partsvc "github.com/partsdepot/partsdepot-backend/internal/parts"
	reservationsvc "github.com/partsdepot/partsdepot-backend/internal/reservations"
	salesvc "github.com/partsdepot/partsdepot-backend/internal/sales"
	pkgauth "github.com/partsdepot/partsdepot-backend/pkg/auth"
	"github.com/partsdepot/partsdepot-backend/pkg/auth/session"
	"github.com/partsdepot/partsdepot-backend/pkg/config"
	"github.com/partsdepot/partsdepot-backend/pkg/enums"
	"github.com/partsdepot/partsdepot-backend/pkg/logger"
	"github.com/partsdepot/partsdepot-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSessionChecker struct{}

func (stubSessionChecker) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

type stubAuthService struct{}

func (stubAuthService) Register(ctx context.Context, input authsvc.RegisterInput) (*authsvc.AuthResult, error) {
	return &authsvc.AuthResult{}, nil
}

func (stubAuthService) Login(ctx context.Context, input authsvc.LoginInput) (*authsvc.AuthResult, error) {
	return &authsvc.AuthResult{}, nil
}

func (stubAuthService) Refresh(ctx context.Context, input authsvc.RefreshInput) (*authsvc.TokenPair, error) {
	return &authsvc.TokenPair{}, nil
}

func (stubAuthService) Logout(ctx context.Context, accessID string) error {
	return nil
}

func (stubAuthService) GetUser(ctx context.Context, userID uuid.UUID) (*authsvc.UserView, error) {
	return &authsvc.UserView{ID: userID}, nil
}

type stubPartService struct{}

func (stubPartService) AddInventory(ctx context.Context, input partsvc.AddInventoryInput) (*partsvc.PartView, error) {
	return &partsvc.PartView{}, nil
}

func (stubPartService) AdjustStock(ctx context.Context, partID uuid.UUID, input partsvc.AdjustStockInput) (*partsvc.PartView, error) {
	return &partsvc.PartView{}, nil
}

func (stubPartService) UpdatePart(ctx context.Context, partID uuid.UUID, input partsvc.UpdatePartInput) (*partsvc.PartView, error) {
	return &partsvc.PartView{}, nil
}

func (stubPartService) DeletePart(ctx context.Context, partID uuid.UUID) error {
	return nil
}

func (stubPartService) GetPart(ctx context.Context, partID uuid.UUID) (*partsvc.PartView, error) {
	return &partsvc.PartView{ID: partID}, nil
}

func (stubPartService) ListCatalog(ctx context.Context, query partsvc.CatalogQuery) (*partsvc.CatalogPage, error) {
	return &partsvc.CatalogPage{}, nil
}

type stubMediaService struct{}

func (stubMediaService) PresignPartPhoto(ctx context.Context, partID uuid.UUID, input mediasvc.PresignInput) (*mediasvc.PresignResult, error) {
	return &mediasvc.PresignResult{}, nil
}

type stubReservationService struct{}

func (stubReservationService) Create(ctx context.Context, actor reservationsvc.Actor, input reservationsvc.CreateInput) (*reservationsvc.ReservationView, error) {
	return &reservationsvc.ReservationView{}, nil
}

func (stubReservationService) Get(ctx context.Context, actor reservationsvc.Actor, reservationID uuid.UUID) (*reservationsvc.ReservationView, error) {
	return &reservationsvc.ReservationView{ID: reservationID}, nil
}

func (stubReservationService) List(ctx context.Context, actor reservationsvc.Actor, query reservationsvc.ListQuery) (*reservationsvc.ReservationsPage, error) {
	return &reservationsvc.ReservationsPage{}, nil
}

func (stubReservationService) Confirm(ctx context.Context, actor reservationsvc.Actor, reservationID uuid.UUID) (*reservationsvc.ReservationView, error) {
	return &reservationsvc.ReservationView{ID: reservationID}, nil
}

func (stubReservationService) Cancel(ctx context.Context, actor reservationsvc.Actor, reservationID uuid.UUID) (*reservationsvc.ReservationView, error) {
	return &reservationsvc.ReservationView{ID: reservationID}, nil
}

func (stubReservationService) Complete(ctx context.Context, actor reservationsvc.Actor, reservationID uuid.UUID) (*reservationsvc.ReservationView, error) {
	return &reservationsvc.ReservationView{ID: reservationID}, nil
}

func (stubReservationService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

type stubSalesService struct{}

func (stubSalesService) GetSale(ctx context.Context, saleID uuid.UUID) (*salesvc.SaleView, error) {
	return &salesvc.SaleView{ID: saleID}, nil
}

func (stubSalesService) ListSales(ctx context.Context, input salesvc.ListInput) (*salesvc.SalesPage, error) {
	return &salesvc.SalesPage{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:                 "secret",
			Issuer:                 "issuer",
			ExpirationMinutes:      60,
			RefreshTokenTTLMinutes: 120,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		(*redis.Client)(nil),
		stubSessionChecker{},
		stubAuthService{},
		stubPartService{},
		stubMediaService{},
		stubReservationService{},
		stubSalesService{},
	)
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLiveResponds(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for liveness got %d", resp.Code)
	}
}

func TestCatalogIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for public catalog got %d", resp.Code)
	}
}

func TestReservationsRejectMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestReservationsListWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations/", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for reservation list got %d", resp.Code)
	}
}

func TestReservationCreateRequiresIdempotencyKey(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without idempotency key got %d", resp.Code)
	}
}

func TestAdminGroupRequiresStaffRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	customer := httptest.NewRequest(http.MethodGet, "/api/admin/v1/sales/", nil)
	customer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, customer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer got %d", resp.Code)
	}

	staff := httptest.NewRequest(http.MethodGet, "/api/admin/v1/sales/", nil)
	staff.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleStaff))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, staff)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for staff got %d", resp.Code)
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for metrics got %d", resp.Code)
	}
}
