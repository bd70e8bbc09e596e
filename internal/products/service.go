package products

import (
	"context"
	"errors"
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

func (s *Service) List(ctx context.Context, companyID int64) ([]Product, error) {
	return s.repo.List(ctx, companyID)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, in Input) (Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, Product{CompanyID: in.CompanyID, Name: in.Name, Qty: in.Qty})
}

// ListStockLots returns the lots of an existing product.
func (s *Service) ListStockLots(ctx context.Context, productID int64) ([]StockLot, error) {
	if _, err := s.Get(ctx, productID); err != nil {
		return nil, err
	}
	lots, err := s.repo.ListStockLots(ctx, productID)
	if err != nil {
		return nil, err
	}
	if lots == nil {
		lots = []StockLot{}
	}
	return lots, nil
}

// IsNotFound reports whether err means the product does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
