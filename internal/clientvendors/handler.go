package clientvendors

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/accounting-app/accounting-app/internal/platform/httpx"
)

// ClientVendorService is what the handler needs from the service.
type ClientVendorService interface {
	List(ctx context.Context, companyID int64) ([]ClientVendor, error)
	Create(ctx context.Context, in Input) (ClientVendor, error)
	FindByName(ctx context.Context, companyName string) (ClientVendor, error)
}

type Handler struct {
	logger  *slog.Logger
	service ClientVendorService
}

func NewHandler(logger *slog.Logger, service ClientVendorService) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/by-name/{name}", h.byName)
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
		h.fail(w, "list client vendors", err)
		return
	}
	if items == nil {
		items = []ClientVendor{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	cv, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create client vendor", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, cv)
}

func (h *Handler) byName(w http.ResponseWriter, r *http.Request) {
	cv, err := h.service.FindByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.fail(w, "find client vendor", err)
		return
	}
	httpx.JSON(w, http.StatusOK, cv)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, httpx.ErrNotFound) && !errors.Is(err, httpx.ErrDuplicate) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
