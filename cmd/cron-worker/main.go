package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/partsdepot/partsdepot-backend/internal/cron"
	"github.com/partsdepot/partsdepot-backend/internal/inventory"
	"github.com/partsdepot/partsdepot-backend/internal/reservations"
	"github.com/partsdepot/partsdepot-backend/internal/sales"
	"github.com/partsdepot/partsdepot-backend/pkg/config"
	"github.com/partsdepot/partsdepot-backend/pkg/db"
	"github.com/partsdepot/partsdepot-backend/pkg/logger"
	"github.com/partsdepot/partsdepot-backend/pkg/metrics"
	"github.com/partsdepot/partsdepot-backend/pkg/migrate"
	"github.com/partsdepot/partsdepot-backend/pkg/outbox"
	"github.com/partsdepot/partsdepot-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, "no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to connect to database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "failed to close database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to connect to redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	reservationService, err := buildReservationService(cfg, logg, dbClient)
	if err != nil {
		logg.Error(ctx, "failed to wire reservation service", err)
		os.Exit(1)
	}

	expiryJob, err := cron.NewReservationExpiryJob(cron.ReservationExpiryJobParams{
		Logger:  logg,
		Expirer: reservationService,
	})
	if err != nil {
		logg.Error(ctx, "failed to construct expiry job", err)
		os.Exit(1)
	}

	lockKey := fmt.Sprintf("pd:cron-worker:lock:%s", cfg.App.Env)
	lock, err := cron.NewRedisLock(redisClient, lockKey, cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(ctx, "failed to construct cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expiryJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to construct cron service", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":     cfg.App.Env,
		"service": "cron-worker",
	})

	logg.Info(runCtx, "cron worker starting")
	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "cron worker stopped", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shut down")
}

func buildReservationService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (reservations.Service, error) {
	reservationRepo, err := reservations.NewRepository(dbClient)
	if err != nil {
		return nil, err
	}
	salesRepo, err := sales.NewRepository(dbClient)
	if err != nil {
		return nil, err
	}
	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	return reservations.NewService(
		reservationRepo,
		salesRepo,
		inventory.NewLedger(),
		dbClient,
		events,
		logg,
		reservations.Config{HoldTTL: cfg.Reservations.HoldTTL},
	)
}
