package products

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	List(ctx context.Context, companyID int64) ([]Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	ListStockLots(ctx context.Context, productID int64) ([]StockLot, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const selectProduct = `SELECT id, company_id, name, qty, created_at FROM products`

func scanProduct(row pgx.CollectableRow) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.CompanyID, &p.Name, &p.Qty, &p.CreatedAt)
	return p, err
}

func (r *repository) List(ctx context.Context, companyID int64) ([]Product, error) {
	query := selectProduct + ` WHERE is_deleted = FALSE`
	args := []any{}
	if companyID > 0 {
		query += ` AND company_id = $1`
		args = append(args, companyID)
	}
	rows, err := r.db.Query(ctx, query+` ORDER BY name, id`, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanProduct)
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	rows, err := r.db.Query(ctx, selectProduct+` WHERE id = $1 AND is_deleted = FALSE`, id)
	if err != nil {
		return Product{}, err
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *repository) Create(ctx context.Context, p Product) (Product, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO products (company_id, name, qty) VALUES ($1, $2, $3) RETURNING id, created_at`,
		p.CompanyID, p.Name, p.Qty).Scan(&p.ID, &p.CreatedAt)
	return p, err
}

// ListStockLots returns a product's lots oldest first.
func (r *repository) ListStockLots(ctx context.Context, productID int64) ([]StockLot, error) {
	rows, err := r.db.Query(ctx, `SELECT id, product_id, invoice_product_id, price, quantity, remaining_quantity, i_date
		FROM stock_details WHERE product_id = $1 ORDER BY i_date, id`, productID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (StockLot, error) {
		var lot StockLot
		err := row.Scan(&lot.ID, &lot.ProductID, &lot.InvoiceItemID, &lot.Price, &lot.Quantity, &lot.RemainingQuantity, &lot.CreatedAt)
		return lot, err
	})
}
