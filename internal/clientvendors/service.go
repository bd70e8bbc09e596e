package clientvendors

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Service struct {
	repo     Repository
	validate *validator.Validate
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

func (s *Service) List(ctx context.Context, companyID int64) ([]ClientVendor, error) {
	return s.repo.List(ctx, companyID)
}

func (s *Service) Create(ctx context.Context, in Input) (ClientVendor, error) {
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.validate.Struct(in); err != nil {
		return ClientVendor{}, err
	}
	return s.repo.Create(ctx, ClientVendor{
		CompanyID:   in.CompanyID,
		CompanyName: in.CompanyName,
		Phone:       strings.TrimSpace(in.Phone),
		Email:       in.Email,
	})
}

// FindByName looks a counterparty up by its exact company name.
func (s *Service) FindByName(ctx context.Context, companyName string) (ClientVendor, error) {
	if strings.TrimSpace(companyName) == "" {
		return ClientVendor{}, fmt.Errorf("%w: empty company name", ErrNotFound)
	}
	return s.repo.FindByName(ctx, companyName)
}

// IDByName satisfies the invoice service's counterparty lookup.
func (s *Service) IDByName(ctx context.Context, companyName string) (int64, error) {
	cv, err := s.FindByName(ctx, companyName)
	if err != nil {
		return 0, err
	}
	return cv.ID, nil
}
