package products

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/accounting-app/accounting-app/internal/platform/httpx"
)

type ProductService interface {
	List(ctx context.Context, companyID int64) ([]Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, in Input) (Product, error)
	ListStockLots(ctx context.Context, productID int64) ([]StockLot, error)
}

type Handler struct {
	logger  *slog.Logger
	service ProductService
}

func NewHandler(logger *slog.Logger, service ProductService) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Get("/{id}/stock-lots", h.stockLots)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var companyID int64
	if raw := r.URL.Query().Get("company_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company_id")
			return
		}
		companyID = id
	}
	items, err := h.service.List(r.Context(), companyID)
	if err != nil {
		h.fail(w, "list products", err)
		return
	}
	if items == nil {
		items = []Product{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create product", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) stockLots(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lots, err := h.service.ListStockLots(r.Context(), id)
	if err != nil {
		h.fail(w, "list stock lots", err)
		return
	}
	httpx.JSON(w, http.StatusOK, lots)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, httpx.ErrNotFound) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
