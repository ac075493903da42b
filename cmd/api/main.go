package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/partsdepot/partsdepot-backend/api/routes"
	"github.com/partsdepot/partsdepot-backend/internal/auth"
	"github.com/partsdepot/partsdepot-backend/internal/inventory"
	"github.com/partsdepot/partsdepot-backend/internal/media"
	"github.com/partsdepot/partsdepot-backend/internal/parts"
	"github.com/partsdepot/partsdepot-backend/internal/reservations"
	"github.com/partsdepot/partsdepot-backend/internal/sales"
	"github.com/partsdepot/partsdepot-backend/internal/users"
	"github.com/partsdepot/partsdepot-backend/pkg/auth/session"
	"github.com/partsdepot/partsdepot-backend/pkg/config"
	"github.com/partsdepot/partsdepot-backend/pkg/db"
	"github.com/partsdepot/partsdepot-backend/pkg/logger"
	"github.com/partsdepot/partsdepot-backend/pkg/migrate"
	"github.com/partsdepot/partsdepot-backend/pkg/outbox"
	"github.com/partsdepot/partsdepot-backend/pkg/redis"
	"github.com/partsdepot/partsdepot-backend/pkg/storage/gcs"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gcs", err)
		os.Exit(1)
	}
	defer func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing gcs", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	usersRepo, err := users.NewRepository(dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create users repository", err)
		os.Exit(1)
	}
	authService, err := auth.NewService(usersRepo, sessionManager, cfg.JWT, cfg.Password, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	ledger := inventory.NewLedger()

	partsRepo, err := parts.NewRepository(dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create parts repository", err)
		os.Exit(1)
	}
	partService, err := parts.NewService(partsRepo, ledger, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create parts service", err)
		os.Exit(1)
	}

	mediaService, err := media.NewService(gcsClient, partService, cfg.GCS, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create media service", err)
		os.Exit(1)
	}

	salesRepo, err := sales.NewRepository(dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create sales repository", err)
		os.Exit(1)
	}
	salesService, err := sales.NewService(salesRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create sales service", err)
		os.Exit(1)
	}

	reservationsRepo, err := reservations.NewRepository(dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create reservations repository", err)
		os.Exit(1)
	}
	eventEmitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	reservationService, err := reservations.NewService(
		reservationsRepo,
		salesRepo,
		ledger,
		dbClient,
		eventEmitter,
		logg,
		reservations.Config{HoldTTL: cfg.Reservations.HoldTTL},
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create reservations service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			authService,
			partService,
			mediaService,
			reservationService,
			salesService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
