package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stowpoint/stowpoint-backend/internal/audit"
	"github.com/stowpoint/stowpoint-backend/internal/availability"
	"github.com/stowpoint/stowpoint-backend/internal/cron"
	"github.com/stowpoint/stowpoint-backend/internal/payments"
	"github.com/stowpoint/stowpoint-backend/internal/pricing"
	"github.com/stowpoint/stowpoint-backend/internal/reservations"
	"github.com/stowpoint/stowpoint-backend/internal/settlements"
	"github.com/stowpoint/stowpoint-backend/internal/tenants"
	"github.com/stowpoint/stowpoint-backend/pkg/config"
	"github.com/stowpoint/stowpoint-backend/pkg/db"
	"github.com/stowpoint/stowpoint-backend/pkg/enums"
	"github.com/stowpoint/stowpoint-backend/pkg/logger"
	"github.com/stowpoint/stowpoint-backend/pkg/metrics"
	"github.com/stowpoint/stowpoint-backend/pkg/migrate"
	"github.com/stowpoint/stowpoint-backend/pkg/redis"
)

const lockKeyFormat = "stow:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	reservationSvc, settlementSvc, err := buildServices(cfg, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	noShowJob, err := cron.NewNoShowJob(cron.NoShowJobParams{
		Logger:       logg,
		Reservations: reservationSvc,
		Grace:        cfg.Cron.NoShowGrace,
		Batch:        cfg.Cron.SweepBatch,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create no-show job", err)
		os.Exit(1)
	}

	settlementJob, err := cron.NewSettlementJob(cron.SettlementJobParams{
		Logger:      logg,
		Settlements: settlementSvc,
		Batch:       cfg.Cron.SweepBatch,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement job", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(noShowJob, settlementJob),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// buildServices wires the subset of the service graph the sweeps need. No
// stripe client: the worker never starts checkouts, it only voids pending
// payments and settles paid ones.
func buildServices(cfg *config.Config, dbClient *db.Client, logg *logger.Logger) (reservations.Service, settlements.Service, error) {
	reservationRepo := reservations.NewRepository(dbClient.DB())
	paymentRepo := payments.NewRepository(dbClient.DB())
	settlementRepo := settlements.NewRepository(dbClient.DB())
	pricingRepo := pricing.NewRepository(dbClient.DB())
	availabilityRepo := availability.NewRepository(dbClient.DB())
	tenantRepo := tenants.NewRepository(dbClient.DB())
	auditRepo := audit.NewRepository(dbClient.DB())

	tenantSvc, err := tenants.NewService(tenantRepo)
	if err != nil {
		return nil, nil, fmt.Errorf("tenants service: %w", err)
	}
	auditSvc, err := audit.NewService(auditRepo, logg)
	if err != nil {
		return nil, nil, fmt.Errorf("audit service: %w", err)
	}

	defaultCurrency, err := enums.ParseCurrency(cfg.Pricing.DefaultCurrency)
	if err != nil {
		return nil, nil, fmt.Errorf("default currency: %w", err)
	}
	pricingSvc, err := pricing.NewService(pricingRepo, defaultCurrency)
	if err != nil {
		return nil, nil, fmt.Errorf("pricing service: %w", err)
	}
	availabilitySvc, err := availability.NewService(availabilityRepo)
	if err != nil {
		return nil, nil, fmt.Errorf("availability service: %w", err)
	}

	paymentSvc, err := payments.NewService(
		paymentRepo,
		reservationRepo,
		tenantSvc,
		pricingSvc,
		nil,
		auditSvc,
		nil,
		logg,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("payments service: %w", err)
	}

	reservationSvc, err := reservations.NewService(
		reservationRepo,
		dbClient,
		availabilitySvc,
		pricingSvc,
		tenantSvc,
		paymentSvc,
		paymentSvc,
		auditSvc,
		nil,
		logg,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("reservations service: %w", err)
	}

	settlementSvc, err := settlements.NewService(
		settlementRepo,
		paymentRepo,
		tenantSvc,
		auditSvc,
		nil,
		logg,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("settlements service: %w", err)
	}

	return reservationSvc, settlementSvc, nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
