package reports

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accounting-app/accounting-app/internal/invoices"
)

// Repository reads report inputs from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LineItemsByCompany returns every line item of the company's active invoices.
func (r *Repository) LineItemsByCompany(ctx context.Context, companyID int64) ([]ItemRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT ip.id, ip.invoice_id, ip.product_id, i.invoice_type, ip.name, ip.price, ip.qty, ip.tax, ip.enabled
FROM invoice_products ip
JOIN invoices i ON i.id = ip.invoice_id
WHERE i.company_id = $1 AND i.is_deleted = FALSE
ORDER BY ip.id`, companyID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ItemRow, error) {
		var (
			item ItemRow
			typ  string
		)
		err := row.Scan(&item.ID, &item.InvoiceID, &item.ProductID, &typ, &item.Name, &item.Price, &item.Qty, &item.Tax, &item.Enabled)
		item.InvoiceType = invoices.Type(typ)
		return item, err
	})
}
