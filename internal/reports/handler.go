package reports

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/accounting-app/accounting-app/internal/invoices"
	"github.com/accounting-app/accounting-app/internal/platform/httpx"
	"github.com/accounting-app/accounting-app/internal/shared"
)

// ReportService is the contract the HTTP layer relies on.
type ReportService interface {
	ProfitLoss(ctx context.Context) (ProfitLoss, error)
	ByProduct(ctx context.Context) ([]ProductLine, error)
	RecentInvoices(ctx context.Context) ([]invoices.Summary, error)
	CompanyLineItems(ctx context.Context) ([]ItemRow, error)
}

// Handler exposes report endpoints.
type Handler struct {
	logger      *slog.Logger
	service     ReportService
	exportLimit int
}

// NewHandler builds the handler. exportLimit caps CSV exports per client
// per minute; zero disables the cap.
func NewHandler(logger *slog.Logger, service ReportService, exportLimit int) *Handler {
	return &Handler{logger: logger, service: service, exportLimit: exportLimit}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/profit-loss", h.profitLoss)
	r.Get("/by-product", h.byProduct)
	r.Get("/recent-invoices", h.recentInvoices)
	r.Get("/line-items", h.lineItems)
	r.Group(func(r chi.Router) {
		if h.exportLimit > 0 {
			r.Use(httprate.LimitByIP(h.exportLimit, time.Minute))
		}
		r.Get("/by-product.csv", h.byProductCSV)
	})
}

func (h *Handler) profitLoss(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ProfitLoss(r.Context())
	if err != nil {
		h.fail(w, "profit loss report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) byProduct(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ByProduct(r.Context())
	if err != nil {
		h.fail(w, "by product report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) recentInvoices(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.RecentInvoices(r.Context())
	if err != nil {
		h.fail(w, "recent invoices report", err)
		return
	}
	if out == nil {
		out = []invoices.Summary{}
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) lineItems(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.CompanyLineItems(r.Context())
	if err != nil {
		h.fail(w, "company line items", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) byProductCSV(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ByProduct(r.Context())
	if err != nil {
		h.fail(w, "by product export", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="by-product.csv"`)
	if err := WriteByProductCSV(w, out); err != nil {
		h.logger.Error("write by product csv", slog.Any("error", err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, shared.ErrCompanyUnresolved) {
		h.logger.Warn(op, slog.Any("error", err))
	} else {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
