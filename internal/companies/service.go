package companies

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/accounting-app/accounting-app/internal/shared"
)

type Service struct {
	repo     Repository
	validate *validator.Validate
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

func (s *Service) List(ctx context.Context, page shared.PageRequest) ([]Company, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, page)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page.Page, page.PerPage, total), nil
}

func (s *Service) Get(ctx context.Context, id int64) (Company, error) {
	if id <= 0 {
		return Company{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) FindByEmail(ctx context.Context, email string) (Company, error) {
	return s.repo.FindByEmail(ctx, normaliseEmail(email))
}

// Create registers a company. New companies always start enabled.
func (s *Service) Create(ctx context.Context, form Form) (Company, error) {
	form = s.clean(form)
	if err := s.validate.Struct(form); err != nil {
		return Company{}, err
	}
	c := fromForm(form)
	c.Enabled = true
	c.Status = StatusEnabled
	return s.repo.Create(ctx, c)
}

// UpdateByEmail overwrites the profile of the company owning form.Email.
// Status and enabled flag are left untouched.
func (s *Service) UpdateByEmail(ctx context.Context, form Form) (Company, error) {
	form = s.clean(form)
	if err := s.validate.Struct(form); err != nil {
		return Company{}, err
	}
	existing, err := s.repo.FindByEmail(ctx, form.Email)
	if err != nil {
		return Company{}, err
	}
	updated := fromForm(form)
	updated.ID = existing.ID
	if err := s.repo.Update(ctx, updated); err != nil {
		return Company{}, err
	}
	return s.repo.FindByEmail(ctx, form.Email)
}

func (s *Service) Reopen(ctx context.Context, id int64) error {
	return s.repo.SetStatus(ctx, id, StatusEnabled, true)
}

func (s *Service) Close(ctx context.Context, id int64) error {
	return s.repo.SetStatus(ctx, id, StatusDisabled, false)
}

// EnabledIDs lists the ids of companies currently open for business.
func (s *Service) EnabledIDs(ctx context.Context) ([]int64, error) {
	return s.repo.EnabledIDs(ctx)
}

func (s *Service) clean(form Form) Form {
	form.Title = strings.TrimSpace(form.Title)
	form.Email = normaliseEmail(form.Email)
	return form
}

func fromForm(form Form) Company {
	return Company{
		Title:             form.Title,
		Address1:          form.Address1,
		Address2:          form.Address2,
		Zip:               form.Zip,
		Representative:    form.Representative,
		Email:             form.Email,
		EstablishmentDate: form.EstablishmentDate,
		Phone:             form.Phone,
	}
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
