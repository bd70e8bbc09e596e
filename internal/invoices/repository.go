package invoices

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accounting-app/accounting-app/internal/platform/db"
)

// numberingLockKey serialises invoice creation so MAX(id)+1 is not handed out twice.
// It is only effective at read committed: a repeatable-read snapshot taken
// before the lock is granted would miss the previous holder's insert.
const numberingLockKey int64 = 0x1a0c_0001

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations. Reads only see active
// (non-deleted) invoices; mutations guarded by version fail with
// ErrConcurrentUpdate when the row moved on.
type TxRepository interface {
	MaxID(ctx context.Context) (int64, error)
	Get(ctx context.Context, id int64) (Invoice, error)
	GetByNumber(ctx context.Context, number string) (Invoice, error)
	Create(ctx context.Context, inv Invoice) (Invoice, error)
	InsertLineItem(ctx context.Context, item LineItem) (LineItem, error)
	UpdateStatus(ctx context.Context, id, version int64, status Status) error
	SetEnabled(ctx context.Context, id, version int64, enabled bool) error
	EnableLineItems(ctx context.Context, invoiceID int64) error
	SetClientVendor(ctx context.Context, id, version, clientVendorID int64) error
	SoftDelete(ctx context.Context, id, version int64) error
	IncrementProductQty(ctx context.Context, productID int64, qty int) error
	InsertStockLot(ctx context.Context, lot StockLot) (bool, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction. Serialization
// failures surface as ErrConcurrentUpdate.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
	if db.IsSerializationFailure(err) {
		return fmt.Errorf("%w: %v", ErrConcurrentUpdate, err)
	}
	return err
}

// WithNumberingTx runs fn at read committed after taking the numbering lock,
// so MaxID inside fn sees every invoice committed by earlier lock holders.
func (r *Repository) WithNumberingTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxIso(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, numberingLockKey); err != nil {
			return fmt.Errorf("lock invoice numbering: %w", err)
		}
		return fn(ctx, &txRepo{tx: tx})
	})
}

// MaxID returns the highest invoice id across every invoice, deleted or not.
func (r *Repository) MaxID(ctx context.Context) (int64, error) {
	return maxID(ctx, r.pool)
}

// Get returns an active invoice with all of its line items.
func (r *Repository) Get(ctx context.Context, id int64) (Invoice, error) {
	return getInvoice(ctx, r.pool, `WHERE i.id = $1 AND i.is_deleted = FALSE`, id)
}

// GetByNumber returns an active invoice by number.
func (r *Repository) GetByNumber(ctx context.Context, number string) (Invoice, error) {
	return getInvoice(ctx, r.pool, `WHERE i.invoice_number = $1 AND i.is_deleted = FALSE`, number)
}

// ListByType returns active invoices of type t ordered by id, with items.
func (r *Repository) ListByType(ctx context.Context, t Type) ([]Invoice, error) {
	return r.collect(ctx, selectInvoice+` WHERE i.invoice_type = $1 AND i.is_deleted = FALSE ORDER BY i.id`, string(t))
}

// RecentByCompanyTitle returns the newest active invoices of the company
// with the given title, latest invoice date first.
func (r *Repository) RecentByCompanyTitle(ctx context.Context, title string, limit int) ([]Invoice, error) {
	return r.collect(ctx, selectInvoice+` JOIN companies c ON c.id = i.company_id
WHERE c.title = $1 AND i.is_deleted = FALSE ORDER BY i.invoice_date DESC, i.id DESC LIMIT $2`, title, limit)
}

func (r *Repository) collect(ctx context.Context, sql string, args ...any) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	invoices, err := pgx.CollectRows(rows, scanInvoice)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return invoices, nil
	}
	ids := make([]int64, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
	}
	items, err := lineItemsFor(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		invoices[i].Items = items[invoices[i].ID]
	}
	return invoices, nil
}

const selectInvoice = `SELECT i.id, i.invoice_number, i.invoice_date, i.invoice_status, i.invoice_type, i.enabled, i.is_deleted, i.company_id, i.client_vendor_id, i.version FROM invoices i`

func scanInvoice(row pgx.CollectableRow) (Invoice, error) {
	var (
		inv    Invoice
		status string
		typ    string
	)
	if err := row.Scan(&inv.ID, &inv.Number, &inv.Date, &status, &typ, &inv.Enabled, &inv.Deleted, &inv.CompanyID, &inv.ClientVendorID, &inv.Version); err != nil {
		return Invoice{}, err
	}
	inv.Status = Status(status)
	inv.Type = Type(typ)
	return inv, nil
}

func getInvoice(ctx context.Context, q db.Querier, where string, arg any) (Invoice, error) {
	rows, err := q.Query(ctx, selectInvoice+" "+where, arg)
	if err != nil {
		return Invoice{}, err
	}
	inv, err := pgx.CollectExactlyOneRow(rows, scanInvoice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrNotFound
		}
		return Invoice{}, err
	}
	items, err := lineItemsFor(ctx, q, []int64{inv.ID})
	if err != nil {
		return Invoice{}, err
	}
	inv.Items = items[inv.ID]
	return inv, nil
}

func lineItemsFor(ctx context.Context, q db.Querier, invoiceIDs []int64) (map[int64][]LineItem, error) {
	rows, err := q.Query(ctx, `SELECT id, invoice_id, product_id, name, price, qty, tax, enabled
FROM invoice_products WHERE invoice_id = ANY($1) ORDER BY invoice_id, id`, invoiceIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64][]LineItem, len(invoiceIDs))
	for rows.Next() {
		var item LineItem
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.ProductID, &item.Name, &item.Price, &item.Qty, &item.Tax, &item.Enabled); err != nil {
			return nil, err
		}
		out[item.InvoiceID] = append(out[item.InvoiceID], item)
	}
	return out, rows.Err()
}

func maxID(ctx context.Context, q db.Querier) (int64, error) {
	var id int64
	if err := q.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM invoices`).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (tx *txRepo) MaxID(ctx context.Context) (int64, error) {
	return maxID(ctx, tx.tx)
}

func (tx *txRepo) Get(ctx context.Context, id int64) (Invoice, error) {
	return getInvoice(ctx, tx.tx, `WHERE i.id = $1 AND i.is_deleted = FALSE`, id)
}

func (tx *txRepo) GetByNumber(ctx context.Context, number string) (Invoice, error) {
	return getInvoice(ctx, tx.tx, `WHERE i.invoice_number = $1 AND i.is_deleted = FALSE`, number)
}

func (tx *txRepo) Create(ctx context.Context, inv Invoice) (Invoice, error) {
	err := tx.tx.QueryRow(ctx, `INSERT INTO invoices (invoice_number, invoice_date, invoice_status, invoice_type, enabled, is_deleted, company_id, client_vendor_id, version)
VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7, 1) RETURNING id, version`,
		inv.Number, inv.Date, string(inv.Status), string(inv.Type), inv.Enabled, inv.CompanyID, inv.ClientVendorID).Scan(&inv.ID, &inv.Version)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Invoice{}, fmt.Errorf("%w: number %s already issued", ErrConcurrentUpdate, inv.Number)
		}
		return Invoice{}, err
	}
	return inv, nil
}

func (tx *txRepo) InsertLineItem(ctx context.Context, item LineItem) (LineItem, error) {
	err := tx.tx.QueryRow(ctx, `INSERT INTO invoice_products (invoice_id, product_id, name, price, qty, tax, enabled)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		item.InvoiceID, item.ProductID, item.Name, item.Price, item.Qty, item.Tax, item.Enabled).Scan(&item.ID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return LineItem{}, fmt.Errorf("%w: product %d", ErrNotFound, item.ProductID)
		}
		return LineItem{}, err
	}
	return item, nil
}

func (tx *txRepo) UpdateStatus(ctx context.Context, id, version int64, status Status) error {
	return tx.casUpdate(ctx, `UPDATE invoices SET invoice_status = $3, version = version + 1 WHERE id = $1 AND version = $2 AND is_deleted = FALSE`, id, version, string(status))
}

func (tx *txRepo) SetEnabled(ctx context.Context, id, version int64, enabled bool) error {
	return tx.casUpdate(ctx, `UPDATE invoices SET enabled = $3, version = version + 1 WHERE id = $1 AND version = $2 AND is_deleted = FALSE`, id, version, enabled)
}

func (tx *txRepo) EnableLineItems(ctx context.Context, invoiceID int64) error {
	_, err := tx.tx.Exec(ctx, `UPDATE invoice_products SET enabled = TRUE WHERE invoice_id = $1`, invoiceID)
	return err
}

func (tx *txRepo) SetClientVendor(ctx context.Context, id, version, clientVendorID int64) error {
	return tx.casUpdate(ctx, `UPDATE invoices SET client_vendor_id = $3, version = version + 1 WHERE id = $1 AND version = $2 AND is_deleted = FALSE`, id, version, clientVendorID)
}

func (tx *txRepo) SoftDelete(ctx context.Context, id, version int64) error {
	return tx.casUpdate(ctx, `UPDATE invoices SET is_deleted = TRUE, version = version + 1 WHERE id = $1 AND version = $2 AND is_deleted = FALSE`, id, version)
}

func (tx *txRepo) IncrementProductQty(ctx context.Context, productID int64, qty int) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE products SET qty = qty + $2 WHERE id = $1 AND is_deleted = FALSE`, productID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *txRepo) InsertStockLot(ctx context.Context, lot StockLot) (bool, error) {
	tag, err := tx.tx.Exec(ctx, `INSERT INTO stock_details (product_id, invoice_product_id, price, quantity, remaining_quantity, i_date)
VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (invoice_product_id) DO NOTHING`,
		lot.ProductID, lot.InvoiceItemID, lot.Price, lot.Quantity, lot.RemainingQuantity, lot.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (tx *txRepo) casUpdate(ctx context.Context, sql string, args ...any) error {
	tag, err := tx.tx.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}
