package products

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	products []Product
	lots     map[int64][]StockLot
}

func (m *memoryRepo) List(ctx context.Context, companyID int64) ([]Product, error) {
	var out []Product
	for _, p := range m.products {
		if companyID == 0 || p.CompanyID == companyID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Product, error) {
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, ErrNotFound
}

func (m *memoryRepo) Create(ctx context.Context, p Product) (Product, error) {
	p.ID = int64(len(m.products) + 1)
	m.products = append(m.products, p)
	return p, nil
}

func (m *memoryRepo) ListStockLots(ctx context.Context, productID int64) ([]StockLot, error) {
	return m.lots[productID], nil
}

func TestCreateValidatesInput(t *testing.T) {
	svc := NewService(&memoryRepo{})

	p, err := svc.Create(context.Background(), Input{CompanyID: 2, Name: " Widget ", Qty: 4})
	require.NoError(t, err)
	require.Equal(t, "Widget", p.Name)
	require.Equal(t, 4, p.Qty)

	_, err = svc.Create(context.Background(), Input{CompanyID: 2, Name: "Broken", Qty: -1})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), Input{Name: "Orphan"})
	require.Error(t, err)
}

func TestListStockLotsRequiresProduct(t *testing.T) {
	repo := &memoryRepo{
		products: []Product{{ID: 1, CompanyID: 2, Name: "Widget"}},
		lots: map[int64][]StockLot{1: {
			{ID: 5, ProductID: 1, Price: decimal.RequireFromString("10.75"), Quantity: 3, RemainingQuantity: 3},
		}},
	}
	svc := NewService(repo)

	lots, err := svc.ListStockLots(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	require.Equal(t, "10.75", lots[0].Price.StringFixed(2))

	_, err = svc.ListStockLots(context.Background(), 99)
	require.True(t, IsNotFound(err))
}

func TestHandlerStockLotsEmptyArray(t *testing.T) {
	repo := &memoryRepo{products: []Product{{ID: 1, CompanyID: 2, Name: "Widget"}}}
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(repo))
	r := chi.NewRouter()
	r.Route("/products", h.MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products/1/stock-lots", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `[]`, rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products/7", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
