package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/accounting-app/accounting-app/internal/companies"
	"github.com/accounting-app/accounting-app/internal/platform/httpx"
	"github.com/accounting-app/accounting-app/internal/shared"
)

// UserService is what the handler needs from Service.
type UserService interface {
	Register(ctx context.Context, reg Registration) (User, error)
	Authenticate(ctx context.Context, email, password string) (User, error)
}

// CurrentCompanyResolver resolves the acting user's company.
type CurrentCompanyResolver interface {
	CurrentCompany(ctx context.Context) (companies.Company, error)
}

// Handler manages user endpoints.
type Handler struct {
	logger   *slog.Logger
	service  UserService
	resolver CurrentCompanyResolver
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service UserService, resolver CurrentCompanyResolver) *Handler {
	return &Handler{logger: logger, service: service, resolver: resolver}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.register)
	r.Post("/verify", h.verify)
	r.Get("/me/company", h.currentCompany)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var reg Registration
	if err := httpx.DecodeJSON(r, &reg); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Register(r.Context(), reg)
	if err != nil {
		h.fail(w, "register user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := httpx.DecodeJSON(r, &creds); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Authenticate(r.Context(), creds.Email, creds.Password)
	if err != nil {
		h.fail(w, "verify credentials", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) currentCompany(w http.ResponseWriter, r *http.Request) {
	company, err := h.resolver.CurrentCompany(r.Context())
	if err != nil {
		h.fail(w, "resolve company", err)
		return
	}
	httpx.JSON(w, http.StatusOK, company)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrCompanyUnresolved):
		h.logger.Warn(op, slog.Any("error", err))
	case errors.Is(err, httpx.ErrDuplicate), errors.Is(err, httpx.ErrUnauthorized):
	default:
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
