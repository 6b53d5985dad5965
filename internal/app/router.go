package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vantage-ops/vantage-ops/internal/auth"
	"github.com/vantage-ops/vantage-ops/internal/billing"
	"github.com/vantage-ops/vantage-ops/internal/incentive"
	"github.com/vantage-ops/vantage-ops/internal/invoicing"
	"github.com/vantage-ops/vantage-ops/internal/masterdata"
	"github.com/vantage-ops/vantage-ops/internal/reports"
	"github.com/vantage-ops/vantage-ops/internal/timesheet"
	"github.com/vantage-ops/vantage-ops/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	AuthMiddleware    auth.Middleware
	TimesheetHandler  *timesheet.Handler
	IncentiveHandler  *incentive.Handler
	InvoicingHandler  *invoicing.Handler
	BillingHandler    *billing.Handler
	ReportsHandler    *reports.Handler
	UsersHandler      *users.Handler
	MasterDataHandler *masterdata.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(params.AuthMiddleware.Authenticate)

		r.Route("/timesheet", func(r chi.Router) {
			params.TimesheetHandler.MountRoutes(r)
		})
		r.Route("/fractional-incentives", func(r chi.Router) {
			params.IncentiveHandler.MountRoutes(r)
		})
		r.Route("/invoices", func(r chi.Router) {
			params.InvoicingHandler.MountRoutes(r)
		})
		r.Route("/billing", func(r chi.Router) {
			params.BillingHandler.MountRoutes(r)
		})
		r.Route("/financial-reports", func(r chi.Router) {
			params.ReportsHandler.MountRoutes(r)
		})
		r.Route("/users", func(r chi.Router) {
			params.UsersHandler.MountRoutes(r)
		})
		params.MasterDataHandler.MountRoutes(r)
	})

	return r
}
