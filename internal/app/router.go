package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/accounting-app/accounting-app/internal/clientvendors"
	"github.com/accounting-app/accounting-app/internal/companies"
	"github.com/accounting-app/accounting-app/internal/invoices"
	"github.com/accounting-app/accounting-app/internal/observability"
	"github.com/accounting-app/accounting-app/internal/platform/httpx"
	"github.com/accounting-app/accounting-app/internal/products"
	"github.com/accounting-app/accounting-app/internal/reports"
	"github.com/accounting-app/accounting-app/internal/users"
	"github.com/accounting-app/accounting-app/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	CompaniesHandler     *companies.Handler
	ClientVendorsHandler *clientvendors.Handler
	ProductsHandler      *products.Handler
	InvoicesHandler      *invoices.Handler
	ReportsHandler       *reports.Handler
	UsersHandler         *users.Handler
	JobHandler           *jobs.Handler
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi.Router with API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		if params.CompaniesHandler != nil {
			r.Route("/companies", params.CompaniesHandler.MountRoutes)
		}
		if params.ClientVendorsHandler != nil {
			r.Route("/client-vendors", params.ClientVendorsHandler.MountRoutes)
		}
		if params.ProductsHandler != nil {
			r.Route("/products", params.ProductsHandler.MountRoutes)
		}
		if params.InvoicesHandler != nil {
			r.Route("/invoices", params.InvoicesHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			r.Route("/reports", params.ReportsHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", r.URL.Path)
	})
	return r
}
