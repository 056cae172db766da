package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kitlyhq/kitly-backend/api/controllers"
	webhookcontrollers "github.com/kitlyhq/kitly-backend/api/controllers/webhooks"
	"github.com/kitlyhq/kitly-backend/api/middleware"
	"github.com/kitlyhq/kitly-backend/internal/entitlements"
	"github.com/kitlyhq/kitly-backend/internal/inbox"
	"github.com/kitlyhq/kitly-backend/internal/memberships"
	"github.com/kitlyhq/kitly-backend/internal/session"
	"github.com/kitlyhq/kitly-backend/internal/tenants"
	"github.com/kitlyhq/kitly-backend/pkg/config"
	"github.com/kitlyhq/kitly-backend/pkg/logger"
	"github.com/kitlyhq/kitly-backend/pkg/stripe"
)

// RouterParams carry everything the HTTP surface depends on.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DBPinger      controllers.Pinger
	RedisPinger   controllers.Pinger
	StripeClient  *stripe.Client
	InboxStore    *inbox.Store
	InboxRepo     inbox.Repository
	Catalog       *entitlements.Catalog
	Computer      *entitlements.Computer
	Overrides     *entitlements.Service
	Sessions      *session.Service
	Tenants       tenants.Repository
	Memberships   *memberships.Service
	Ledger        middleware.VersionChecker
	AdminRoleName string
}

// NewRouter assembles the chi router for the API binary.
func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	adminRole := params.AdminRoleName
	if adminRole == "" {
		adminRole = "admin"
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DBPinger, params.RedisPinger))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(params.InboxStore, params.StripeClient, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plans", controllers.ListPlans(params.Catalog, logg))

		// Refresh verifies its own (possibly expired) token.
		r.Post("/session/refresh", controllers.RefreshSession(params.Sessions, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, params.Ledger, logg))
			r.Get("/entitlements", controllers.GetEntitlements(params.Computer, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, params.Ledger, logg))
		r.Use(middleware.RequireRole(logg, adminRole))
		r.Put("/entitlements/overrides", controllers.UpsertOverride(params.Overrides, logg))
		r.Get("/inbox/events", controllers.ListInboundEvents(params.InboxRepo, logg))
		r.Post("/tenants", controllers.CreateTenant(params.Tenants, params.Memberships, logg))
		r.Put("/memberships", controllers.ChangeMembership(params.Memberships, logg))
	})

	return r
}
