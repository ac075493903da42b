package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/partsdepot/partsdepot-backend/api/controllers"
	"github.com/partsdepot/partsdepot-backend/api/middleware"
	authsvc "github.com/partsdepot/partsdepot-backend/internal/auth"
	mediasvc "github.com/partsdepot/partsdepot-backend/internal/media"
	partsvc "github.com/partsdepot/partsdepot-backend/internal/parts"
	reservationsvc "github.com/partsdepot/partsdepot-backend/internal/reservations"
	salesvc "github.com/partsdepot/partsdepot-backend/internal/sales"
	"github.com/partsdepot/partsdepot-backend/pkg/auth/session"
	"github.com/partsdepot/partsdepot-backend/pkg/config"
	"github.com/partsdepot/partsdepot-backend/pkg/db"
	"github.com/partsdepot/partsdepot-backend/pkg/enums"
	"github.com/partsdepot/partsdepot-backend/pkg/logger"
	"github.com/partsdepot/partsdepot-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessions session.AccessSessionChecker,
	authService authsvc.Service,
	partService partsvc.Service,
	mediaService mediasvc.Service,
	reservationService reservationsvc.Service,
	salesService salesvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/", controllers.CatalogList(partService, logg))
		r.Get("/{partId}", controllers.CatalogDetail(partService, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg), middleware.Idempotency(redisClient, logg)).
			Post("/register", controllers.AuthRegister(authService, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).
			Post("/login", controllers.AuthLogin(authService, logg))
		r.Post("/refresh", controllers.AuthRefresh(authService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessions, logg))
			r.Post("/logout", controllers.AuthLogout(authService, logg))
			r.Get("/me", controllers.AuthMe(authService, logg))
		})
	})

	r.Route("/api/v1/reservations", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.Idempotency(redisClient, logg))
		r.Post("/", controllers.ReservationCreate(reservationService, logg))
		r.Get("/", controllers.ReservationList(reservationService, logg))
		r.Get("/{reservationId}", controllers.ReservationDetail(reservationService, logg))
		r.Post("/{reservationId}/cancel", controllers.ReservationCancel(reservationService, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.RequireRole(string(enums.UserRoleStaff), logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/parts", func(r chi.Router) {
			r.Post("/", controllers.AdminAddInventory(partService, logg))
			r.Patch("/{partId}", controllers.AdminUpdatePart(partService, logg))
			r.Delete("/{partId}", controllers.AdminDeletePart(partService, logg))
			r.Post("/{partId}/stock", controllers.AdminAdjustStock(partService, logg))
			r.Post("/{partId}/photos/presign", controllers.AdminPresignPartPhoto(mediaService, logg))
		})

		r.Route("/reservations", func(r chi.Router) {
			r.Get("/", controllers.ReservationList(reservationService, logg))
			r.Get("/{reservationId}", controllers.ReservationDetail(reservationService, logg))
			r.Post("/{reservationId}/confirm", controllers.AdminReservationConfirm(reservationService, logg))
			r.Post("/{reservationId}/cancel", controllers.AdminReservationCancel(reservationService, logg))
			r.Post("/{reservationId}/complete", controllers.AdminReservationComplete(reservationService, logg))
		})

		r.Route("/sales", func(r chi.Router) {
			r.Get("/", controllers.AdminSaleList(salesService, logg))
			r.Get("/{saleId}", controllers.AdminSaleDetail(salesService, logg))
		})
	})

	return r
}
