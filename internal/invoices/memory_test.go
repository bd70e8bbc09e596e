package invoices

import (
	"context"
	"errors"
	"sort"

	"github.com/accounting-app/accounting-app/internal/shared"
)

type memoryInvoiceRepo struct {
	invoices  map[int64]Invoice
	items     map[int64][]LineItem
	products  map[int64]int
	lots      []StockLot
	lotByItem map[int64]bool
	nextID    int64
	failOn    string
	// ops logs transaction boundaries and numbering statements in order.
	ops []string
}

type memoryInvoiceTx struct {
	repo *memoryInvoiceRepo
}

var errInjected = errors.New("injected failure")

func newMemoryInvoiceRepo() *memoryInvoiceRepo {
	return &memoryInvoiceRepo{
		invoices:  make(map[int64]Invoice),
		items:     make(map[int64][]LineItem),
		products:  make(map[int64]int),
		lotByItem: make(map[int64]bool),
	}
}

// snapshot copies state so a failing transaction can be rolled back.
func (r *memoryInvoiceRepo) snapshot() *memoryInvoiceRepo {
	cp := newMemoryInvoiceRepo()
	for k, v := range r.invoices {
		cp.invoices[k] = v
	}
	for k, v := range r.items {
		cp.items[k] = append([]LineItem(nil), v...)
	}
	for k, v := range r.products {
		cp.products[k] = v
	}
	for k, v := range r.lotByItem {
		cp.lotByItem[k] = v
	}
	cp.lots = append([]StockLot(nil), r.lots...)
	cp.nextID = r.nextID
	cp.failOn = r.failOn
	return cp
}

func (r *memoryInvoiceRepo) restore(from *memoryInvoiceRepo) {
	r.invoices, r.items, r.products = from.invoices, from.items, from.products
	r.lots, r.lotByItem, r.nextID = from.lots, from.lotByItem, from.nextID
}

func (r *memoryInvoiceRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.ops = append(r.ops, "begin repeatable read")
	return r.run(ctx, fn)
}

func (r *memoryInvoiceRepo) WithNumberingTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.ops = append(r.ops, "begin read committed", "lock numbering")
	return r.run(ctx, fn)
}

func (r *memoryInvoiceRepo) run(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	before := r.snapshot()
	if err := fn(ctx, &memoryInvoiceTx{repo: r}); err != nil {
		r.restore(before)
		return err
	}
	return nil
}

func (r *memoryInvoiceRepo) MaxID(ctx context.Context) (int64, error) {
	var max int64
	for id := range r.invoices {
		if id > max {
			max = id
		}
	}
	return max, nil
}

func (r *memoryInvoiceRepo) Get(ctx context.Context, id int64) (Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok || inv.Deleted {
		return Invoice{}, ErrNotFound
	}
	inv.Items = append([]LineItem(nil), r.items[id]...)
	return inv, nil
}

func (r *memoryInvoiceRepo) GetByNumber(ctx context.Context, number string) (Invoice, error) {
	for id, inv := range r.invoices {
		if inv.Number == number && !inv.Deleted {
			return r.Get(ctx, id)
		}
	}
	return Invoice{}, ErrNotFound
}

func (r *memoryInvoiceRepo) ListByType(ctx context.Context, t Type) ([]Invoice, error) {
	var out []Invoice
	for id, inv := range r.invoices {
		if inv.Type != t || inv.Deleted {
			continue
		}
		full, _ := r.Get(ctx, id)
		out = append(out, full)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *memoryInvoiceTx) nextID() int64 {
	tx.repo.nextID++
	return tx.repo.nextID
}

func (tx *memoryInvoiceTx) MaxID(ctx context.Context) (int64, error) {
	tx.repo.ops = append(tx.repo.ops, "max id")
	return tx.repo.MaxID(ctx)
}

func (tx *memoryInvoiceTx) Get(ctx context.Context, id int64) (Invoice, error) {
	return tx.repo.Get(ctx, id)
}

func (tx *memoryInvoiceTx) GetByNumber(ctx context.Context, number string) (Invoice, error) {
	return tx.repo.GetByNumber(ctx, number)
}

func (tx *memoryInvoiceTx) Create(ctx context.Context, inv Invoice) (Invoice, error) {
	tx.repo.ops = append(tx.repo.ops, "insert invoice")
	inv.ID = tx.nextID()
	inv.Version = 1
	inv.Items = nil
	tx.repo.invoices[inv.ID] = inv
	return inv, nil
}

func (tx *memoryInvoiceTx) InsertLineItem(ctx context.Context, item LineItem) (LineItem, error) {
	item.ID = tx.nextID()
	tx.repo.items[item.InvoiceID] = append(tx.repo.items[item.InvoiceID], item)
	return item, nil
}

func (tx *memoryInvoiceTx) cas(id, version int64, mutate func(*Invoice)) error {
	inv, ok := tx.repo.invoices[id]
	if !ok || inv.Deleted || inv.Version != version {
		return ErrConcurrentUpdate
	}
	mutate(&inv)
	inv.Version++
	tx.repo.invoices[id] = inv
	return nil
}

func (tx *memoryInvoiceTx) UpdateStatus(ctx context.Context, id, version int64, status Status) error {
	return tx.cas(id, version, func(inv *Invoice) { inv.Status = status })
}

func (tx *memoryInvoiceTx) SetEnabled(ctx context.Context, id, version int64, enabled bool) error {
	return tx.cas(id, version, func(inv *Invoice) { inv.Enabled = enabled })
}

func (tx *memoryInvoiceTx) EnableLineItems(ctx context.Context, invoiceID int64) error {
	items := tx.repo.items[invoiceID]
	for i := range items {
		items[i].Enabled = true
	}
	return nil
}

func (tx *memoryInvoiceTx) SetClientVendor(ctx context.Context, id, version, clientVendorID int64) error {
	return tx.cas(id, version, func(inv *Invoice) { inv.ClientVendorID = &clientVendorID })
}

func (tx *memoryInvoiceTx) SoftDelete(ctx context.Context, id, version int64) error {
	return tx.cas(id, version, func(inv *Invoice) { inv.Deleted = true })
}

func (tx *memoryInvoiceTx) IncrementProductQty(ctx context.Context, productID int64, qty int) error {
	if tx.repo.failOn == "increment" {
		return errInjected
	}
	current, ok := tx.repo.products[productID]
	if !ok {
		return ErrNotFound
	}
	tx.repo.products[productID] = current + qty
	return nil
}

func (tx *memoryInvoiceTx) InsertStockLot(ctx context.Context, lot StockLot) (bool, error) {
	if tx.repo.failOn == "stock_lot" {
		return false, errInjected
	}
	if tx.repo.lotByItem[lot.InvoiceItemID] {
		return false, nil
	}
	lot.ID = tx.nextID()
	tx.repo.lots = append(tx.repo.lots, lot)
	tx.repo.lotByItem[lot.InvoiceItemID] = true
	return true, nil
}

type stubCounterparties struct {
	ids map[string]int64
}

func (s stubCounterparties) IDByName(ctx context.Context, name string) (int64, error) {
	id, ok := s.ids[name]
	if !ok {
		return 0, ErrNotFound
	}
	return id, nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type recordingApprovals struct {
	logs []shared.ApprovalLog
}

func (a *recordingApprovals) Record(ctx context.Context, log shared.ApprovalLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type recordingNotifier struct {
	companies []int64
}

func (n *recordingNotifier) InvoiceChanged(ctx context.Context, companyID int64) {
	n.companies = append(n.companies, companyID)
}
