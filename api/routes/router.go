package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stowpoint/stowpoint-backend/api/controllers"
	webhookcontrollers "github.com/stowpoint/stowpoint-backend/api/controllers/webhooks"
	"github.com/stowpoint/stowpoint-backend/api/middleware"
	"github.com/stowpoint/stowpoint-backend/internal/availability"
	"github.com/stowpoint/stowpoint-backend/internal/payments"
	"github.com/stowpoint/stowpoint-backend/internal/pricing"
	"github.com/stowpoint/stowpoint-backend/internal/reservations"
	"github.com/stowpoint/stowpoint-backend/internal/settlements"
	stripewebhook "github.com/stowpoint/stowpoint-backend/internal/webhooks/stripe"
	"github.com/stowpoint/stowpoint-backend/pkg/config"
	"github.com/stowpoint/stowpoint-backend/pkg/db"
	"github.com/stowpoint/stowpoint-backend/pkg/enums"
	"github.com/stowpoint/stowpoint-backend/pkg/logger"
	"github.com/stowpoint/stowpoint-backend/pkg/redis"
	"github.com/stowpoint/stowpoint-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	metricsHandler http.Handler,
	reservationSvc reservations.Service,
	paymentSvc payments.Service,
	pricingSvc pricing.Service,
	availabilitySvc availability.Service,
	settlementSvc settlements.Service,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	readiness := map[string]controllers.Pinger{"database": dbP}
	if redisClient != nil {
		readiness["redis"] = redisClient
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	// Signed by Stripe, not by a staff token.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentsWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		if redisClient != nil {
			r.Use(middleware.Idempotency(redisClient, logg))
		}

		r.Route("/reservations", func(r chi.Router) {
			r.Get("/", controllers.ReservationList(reservationSvc, logg))
			r.Post("/", controllers.ReservationCreate(reservationSvc, logg))
			r.Get("/scan/{token}", controllers.ReservationScanLookup(reservationSvc, logg))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", controllers.ReservationGet(reservationSvc, logg))
				r.Post("/handover", controllers.ReservationHandover(reservationSvc, logg))
				r.Post("/return", controllers.ReservationReturn(reservationSvc, logg))
				r.Post("/extend", controllers.ReservationExtend(reservationSvc, logg))
				r.Post("/cancel", controllers.ReservationCancel(reservationSvc, logg))
				r.With(middleware.RequireRole(enums.StaffRoleManager, logg)).Post("/no-show", controllers.ReservationNoShow(reservationSvc, logg))
				r.With(middleware.RequireRole(enums.StaffRoleManager, logg)).Post("/lost", controllers.ReservationLost(reservationSvc, logg))
				r.Post("/payment", controllers.PaymentEnsure(paymentSvc, logg))
				r.Get("/payment", controllers.PaymentGetForReservation(paymentSvc, logg))
			})
		})

		r.Route("/payments", func(r chi.Router) {
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", controllers.PaymentGet(paymentSvc, logg))
				r.Post("/checkout", controllers.PaymentCheckoutStart(paymentSvc, logg))
				r.Post("/confirm-cash", controllers.PaymentConfirmCash(paymentSvc, logg))
				r.Post("/confirm-pos", controllers.PaymentConfirmPOS(paymentSvc, logg))
				r.Get("/settlement", controllers.SettlementGetForPayment(settlementSvc, logg))
				r.With(middleware.RequireRole(enums.StaffRoleManager, logg)).Post("/settlement", controllers.SettlementCalculate(settlementSvc, logg))
			})
		})

		r.Post("/pricing/quote", controllers.PricingQuote(pricingSvc, logg))

		r.Route("/storage-units/{id}", func(r chi.Router) {
			r.Get("/calendar", controllers.StorageCalendar(availabilitySvc, logg))
			r.Get("/availability", controllers.StorageAvailability(availabilitySvc, logg))
		})

		r.Route("/settlements", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.StaffRoleManager, logg))
			r.Get("/", controllers.SettlementList(settlementSvc, logg))
			r.Get("/totals", controllers.SettlementTotals(settlementSvc, logg))
			r.Get("/{id}", controllers.SettlementGet(settlementSvc, logg))
			r.Post("/{id}/complete", controllers.SettlementComplete(settlementSvc, logg))
		})
	})

	return r
}
