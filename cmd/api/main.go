package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stowpoint/stowpoint-backend/api/routes"
	"github.com/stowpoint/stowpoint-backend/internal/audit"
	"github.com/stowpoint/stowpoint-backend/internal/availability"
	"github.com/stowpoint/stowpoint-backend/internal/payments"
	"github.com/stowpoint/stowpoint-backend/internal/pricing"
	"github.com/stowpoint/stowpoint-backend/internal/reservations"
	"github.com/stowpoint/stowpoint-backend/internal/settlements"
	"github.com/stowpoint/stowpoint-backend/internal/tenants"
	stripewebhook "github.com/stowpoint/stowpoint-backend/internal/webhooks/stripe"
	"github.com/stowpoint/stowpoint-backend/pkg/config"
	"github.com/stowpoint/stowpoint-backend/pkg/db"
	"github.com/stowpoint/stowpoint-backend/pkg/enums"
	"github.com/stowpoint/stowpoint-backend/pkg/logger"
	"github.com/stowpoint/stowpoint-backend/pkg/metrics"
	"github.com/stowpoint/stowpoint-backend/pkg/migrate"
	"github.com/stowpoint/stowpoint-backend/pkg/redis"
	"github.com/stowpoint/stowpoint-backend/pkg/stripe"
)

const stripeWebhookDedupTTL = 24 * time.Hour

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

	// Stripe is optional: cash-only deployments run without keys and the
	// checkout and webhook routes degrade accordingly.
	var stripeClient *stripe.Client
	if cfg.Stripe.APIKey != "" {
		stripeClient, err = stripe.NewClient(context.Background(), cfg.Stripe, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap stripe", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "stripe api key not set, card checkout disabled")
	}

	registry := prometheus.NewRegistry()
	reservationMetrics := metrics.NewReservationMetrics(registry)
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	reservationRepo := reservations.NewRepository(dbClient.DB())
	paymentRepo := payments.NewRepository(dbClient.DB())
	settlementRepo := settlements.NewRepository(dbClient.DB())
	pricingRepo := pricing.NewRepository(dbClient.DB())
	availabilityRepo := availability.NewRepository(dbClient.DB())
	tenantRepo := tenants.NewRepository(dbClient.DB())
	auditRepo := audit.NewRepository(dbClient.DB())

	tenantSvc, err := tenants.NewService(tenantRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create tenants service", err)
		os.Exit(1)
	}

	auditSvc, err := audit.NewService(auditRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}

	defaultCurrency, err := enums.ParseCurrency(cfg.Pricing.DefaultCurrency)
	if err != nil {
		logg.Error(context.Background(), "invalid default currency", err)
		os.Exit(1)
	}

	pricingSvc, err := pricing.NewService(pricingRepo, defaultCurrency)
	if err != nil {
		logg.Error(context.Background(), "failed to create pricing service", err)
		os.Exit(1)
	}

	availabilitySvc, err := availability.NewService(availabilityRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create availability service", err)
		os.Exit(1)
	}

	var checkoutClient payments.StripeCheckoutClient
	if stripeClient != nil {
		checkoutClient = payments.NewStripeCheckoutClient(stripeClient)
	}

	paymentSvc, err := payments.NewService(
		paymentRepo,
		reservationRepo,
		tenantSvc,
		pricingSvc,
		checkoutClient,
		auditSvc,
		reservationMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
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
		reservationMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create reservations service", err)
		os.Exit(1)
	}

	settlementSvc, err := settlements.NewService(
		settlementRepo,
		paymentRepo,
		tenantSvc,
		auditSvc,
		reservationMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlements service", err)
		os.Exit(1)
	}

	var webhookService *stripewebhook.Service
	var webhookGuard *stripewebhook.IdempotencyGuard
	if stripeClient != nil {
		webhookService, err = stripewebhook.NewService(paymentSvc)
		if err != nil {
			logg.Error(context.Background(), "failed to create stripe webhook service", err)
			os.Exit(1)
		}
		webhookGuard, err = stripewebhook.NewIdempotencyGuard(redisClient, stripeWebhookDedupTTL, "stripe-webhook")
		if err != nil {
			logg.Error(context.Background(), "failed to create stripe webhook guard", err)
			os.Exit(1)
		}
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
			metricsHandler,
			reservationSvc,
			paymentSvc,
			pricingSvc,
			availabilitySvc,
			settlementSvc,
			stripeClient,
			webhookService,
			webhookGuard,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
