package reports

import (
	"github.com/shopspring/decimal"

	"github.com/accounting-app/accounting-app/internal/invoices"
)

// ProfitLoss sums unit prices per invoice class. Quantities are not
// factored in.
type ProfitLoss struct {
	TotalCost decimal.Decimal `json:"total_cost"`
	TotalSale decimal.Decimal `json:"total_sale"`
	TotalTax  decimal.Decimal `json:"total_tax"`
}

// ProductLine aggregates every line item sharing one product name.
type ProductLine struct {
	Name         string          `json:"name"`
	PurchasedQty int             `json:"purchased_qty"`
	SoldQty      int             `json:"sold_qty"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	TotalIncome  decimal.Decimal `json:"total_income"`
}

// ItemRow is a line item of an active invoice together with the invoice
// class it belongs to.
type ItemRow struct {
	ID          int64           `json:"id"`
	InvoiceID   int64           `json:"invoice_id"`
	ProductID   int64           `json:"product_id"`
	InvoiceType invoices.Type   `json:"invoice_type"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Qty         int             `json:"qty"`
	Tax         decimal.Decimal `json:"tax"`
	Enabled     bool            `json:"enabled"`
}

// RecentInvoiceLimit bounds the recent invoices report.
const RecentInvoiceLimit = 3
