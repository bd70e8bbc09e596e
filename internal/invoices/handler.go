package invoices

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/accounting-app/accounting-app/internal/platform/httpx"
	"github.com/accounting-app/accounting-app/internal/shared"
)

const idempotencyModule = "invoices.create"

// InvoiceService is the contract the HTTP layer relies on.
type InvoiceService interface {
	Create(ctx context.Context, draft Draft) (Summary, error)
	AddLineItem(ctx context.Context, invoiceID int64, input LineItemInput) (LineItemView, error)
	LinkCounterparty(ctx context.Context, invoiceID int64, companyName string) error
	Approve(ctx context.Context, number string) error
	Enable(ctx context.Context, invoiceID int64) error
	ApprovePurchase(ctx context.Context, invoiceID int64) error
	MaterializeStockLots(ctx context.Context, invoiceID int64) (int, error)
	SoftDelete(ctx context.Context, invoiceID int64) error
	ListByType(ctx context.Context, t Type) ([]Summary, error)
	GetByID(ctx context.Context, id int64) (Summary, error)
	IDByNumber(ctx context.Context, number string) (int64, error)
	NextNumber(ctx context.Context, t Type) (string, error)
	Today() string
}

// IdempotencyPort guards create requests carrying an Idempotency-Key header.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// ApprovalLister reads approval history.
type ApprovalLister interface {
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

// Handler exposes invoice endpoints.
type Handler struct {
	logger      *slog.Logger
	service     InvoiceService
	idempotency IdempotencyPort
	approvals   ApprovalLister
}

// NewHandler builds the invoice HTTP handler. idempotency and approvals may be nil.
func NewHandler(logger *slog.Logger, service InvoiceService, idempotency IdempotencyPort, approvals ApprovalLister) *Handler {
	return &Handler{logger: logger, service: service, idempotency: idempotency, approvals: approvals}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/next-number", h.nextNumber)
	r.Route("/by-number/{number}", func(r chi.Router) {
		r.Get("/", h.getByNumber)
		r.Post("/approve", h.approve)
	})
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Delete("/", h.softDelete)
		r.Post("/items", h.addLineItem)
		r.Post("/counterparty", h.linkCounterparty)
		r.Post("/enable", h.enable)
		r.Post("/approve-purchase", h.approvePurchase)
		r.Post("/stock-lots", h.materializeStockLots)
		r.Get("/approvals", h.listApprovals)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	t := Type(strings.ToUpper(r.URL.Query().Get("type")))
	summaries, err := h.service.ListByType(r.Context(), t)
	if err != nil {
		h.fail(w, "list invoices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summaries)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var draft Draft
	if err := httpx.DecodeJSON(r, &draft); err != nil {
		httpx.RespondError(w, err)
		return
	}
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, idempotencyModule); err != nil {
			h.fail(w, "idempotency check", err)
			return
		}
	}
	summary, err := h.service.Create(r.Context(), draft)
	if err != nil {
		if key != "" && h.idempotency != nil {
			if delErr := h.idempotency.Delete(r.Context(), key); delErr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		h.fail(w, "create invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, summary)
}

func (h *Handler) nextNumber(w http.ResponseWriter, r *http.Request) {
	t := Type(strings.ToUpper(r.URL.Query().Get("type")))
	number, err := h.service.NextNumber(r.Context(), t)
	if err != nil {
		h.fail(w, "next invoice number", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"invoice_number": number, "invoice_date": h.service.Today()})
}

func (h *Handler) getByNumber(w http.ResponseWriter, r *http.Request) {
	id, err := h.service.IDByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.fail(w, "resolve invoice number", err)
		return
	}
	h.writeSummary(w, r, id)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Approve(r.Context(), chi.URLParam(r, "number")); err != nil {
		h.fail(w, "approve invoice", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.writeSummary(w, r, id)
}

func (h *Handler) writeSummary(w http.ResponseWriter, r *http.Request, id int64) {
	summary, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) addLineItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input LineItemInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.AddLineItem(r.Context(), id, input)
	if err != nil {
		h.fail(w, "add line item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

type counterpartyRequest struct {
	CompanyName string `json:"company_name"`
}

func (h *Handler) linkCounterparty(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req counterpartyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.LinkCounterparty(r.Context(), id, req.CompanyName); err != nil {
		h.fail(w, "link counterparty", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) enable(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "enable invoice", h.service.Enable)
}

func (h *Handler) approvePurchase(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "approve purchase invoice", h.service.ApprovePurchase)
}

func (h *Handler) softDelete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "delete invoice", h.service.SoftDelete)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, int64) error) {
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

func (h *Handler) materializeStockLots(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.MaterializeStockLots(r.Context(), id)
	if err != nil {
		h.fail(w, "materialize stock lots", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"created": created})
}

func (h *Handler) listApprovals(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if h.approvals == nil {
		httpx.JSON(w, http.StatusOK, []shared.ApprovalLog{})
		return
	}
	logs, err := h.approvals.List(r.Context(), approvalModule, ApprovalRef(id))
	if err != nil {
		h.fail(w, "list approvals", err)
		return
	}
	if logs == nil {
		logs = []shared.ApprovalLog{}
	}
	httpx.JSON(w, http.StatusOK, logs)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, httpx.ErrNotFound) && !errors.Is(err, httpx.ErrValidation) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
