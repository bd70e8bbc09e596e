package companies

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/accounting-app/accounting-app/internal/platform/httpx"
	"github.com/accounting-app/accounting-app/internal/shared"
)

type CompanyService interface {
	List(ctx context.Context, page shared.PageRequest) ([]Company, shared.Pagination, error)
	Get(ctx context.Context, id int64) (Company, error)
	FindByEmail(ctx context.Context, email string) (Company, error)
	Create(ctx context.Context, form Form) (Company, error)
	UpdateByEmail(ctx context.Context, form Form) (Company, error)
	Reopen(ctx context.Context, id int64) error
	Close(ctx context.Context, id int64) error
}

type Handler struct {
	logger  *slog.Logger
	service CompanyService
}

func NewHandler(logger *slog.Logger, service CompanyService) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Put("/", h.update)
	r.Get("/by-email/{email}", h.byEmail)
	r.Get("/{id}", h.show)
	r.Post("/{id}/reopen", h.reopen)
	r.Post("/{id}/close", h.close)
}

type listResponse struct {
	Items      []Company         `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, page, err := h.service.List(r.Context(), shared.PageFromQuery(r.URL.Query()))
	if err != nil {
		h.fail(w, "list companies", err)
		return
	}
	if items == nil {
		items = []Company{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: items, Pagination: page})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get company", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) byEmail(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.FindByEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		h.fail(w, "find company", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var form Form
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Create(r.Context(), form)
	if err != nil {
		h.fail(w, "create company", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var form Form
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.UpdateByEmail(r.Context(), form)
	if err != nil {
		h.fail(w, "update company", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) reopen(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, "reopen company", h.service.Reopen)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, "close company", h.service.Close)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, int64) error) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := fn(r.Context(), id); err != nil {
		h.fail(w, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, httpx.ErrNotFound) && !errors.Is(err, httpx.ErrDuplicate) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
