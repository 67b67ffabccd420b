package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pipeflowhq/pipeflow-backend/api/controllers"
	"github.com/pipeflowhq/pipeflow-backend/api/middleware"
	"github.com/pipeflowhq/pipeflow-backend/internal/contacts"
	"github.com/pipeflowhq/pipeflow-backend/internal/invoices"
	"github.com/pipeflowhq/pipeflow-backend/internal/notifications"
	"github.com/pipeflowhq/pipeflow-backend/internal/opportunities"
	"github.com/pipeflowhq/pipeflow-backend/internal/pipelines"
	"github.com/pipeflowhq/pipeflow-backend/pkg/config"
	"github.com/pipeflowhq/pipeflow-backend/pkg/db"
	"github.com/pipeflowhq/pipeflow-backend/pkg/logger"
	"github.com/pipeflowhq/pipeflow-backend/pkg/redis"
)

// RouterParams collects everything the HTTP surface depends on.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            *db.Client
	Redis         *redis.Client
	Contacts      contacts.Service
	Pipelines     pipelines.Service
	Opportunities opportunities.Service
	Invoices      invoices.Service
	Notifications notifications.Service
	OutboxRunner  controllers.OutboxRunner
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/internal/jobs", func(r chi.Router) {
		r.Use(
			middleware.TriggerRateLimit(p.Redis, cfg.Jobs.TriggerRateLimit, cfg.Jobs.TriggerRateWindow, logg),
			middleware.TriggerAuth(cfg.Jobs, logg),
		)
		r.Post("/dispatch-outbox", controllers.DispatchOutbox(p.OutboxRunner, logg))
		r.Get("/dispatch-outbox", controllers.DispatchOutbox(p.OutboxRunner, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Auth, logg))

		r.Route("/contacts", func(r chi.Router) {
			r.Post("/", controllers.CreateContact(p.Contacts, logg))
			r.Get("/", controllers.ListContacts(p.Contacts, logg))
			r.Get("/{contactId}", controllers.GetContact(p.Contacts, logg))
			r.Patch("/{contactId}", controllers.UpdateContact(p.Contacts, logg))
			r.Delete("/{contactId}", controllers.DeleteContact(p.Contacts, logg))
		})

		r.Route("/pipelines", func(r chi.Router) {
			r.Post("/", controllers.CreatePipeline(p.Pipelines, logg))
			r.Get("/", controllers.ListPipelines(p.Pipelines, logg))
			r.Get("/{pipelineId}", controllers.GetPipeline(p.Pipelines, logg))
			r.Get("/{pipelineId}/board", controllers.PipelineBoard(p.Opportunities, logg))
		})

		r.Route("/opportunities", func(r chi.Router) {
			r.Post("/", controllers.CreateOpportunity(p.Opportunities, logg))
			r.Post("/{opportunityId}/move", controllers.MoveOpportunity(p.Opportunities, logg))
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Post("/", controllers.CreateInvoice(p.Invoices, logg))
			r.Get("/", controllers.ListInvoices(p.Invoices, logg))
			r.Get("/{invoiceId}", controllers.GetInvoice(p.Invoices, logg))
			r.Post("/{invoiceId}/issue", controllers.IssueInvoice(p.Invoices, logg))
			r.Post("/{invoiceId}/pay", controllers.PayInvoice(p.Invoices, logg))
			r.Post("/{invoiceId}/void", controllers.VoidInvoice(p.Invoices, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.Notifications, logg))
			r.Get("/unread-count", controllers.UnreadNotificationCount(p.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(p.Notifications, logg))
		})
	})

	return r
}
