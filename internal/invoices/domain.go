package invoices

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/accounting-app/accounting-app/internal/platform/httpx"
)

// Type distinguishes sale invoices from purchase invoices.
type Type string

const (
	// TypeSale is an invoice issued to a client.
	TypeSale Type = "SALE"
	// TypePurchase is an invoice received from a vendor.
	TypePurchase Type = "PURCHASE"
)

// Valid reports whether t is a known invoice type.
func (t Type) Valid() bool {
	return t == TypeSale || t == TypePurchase
}

// Status captures the approval state. It only advances PENDING -> APPROVED.
type Status string

const (
	// StatusPending is assigned on creation.
	StatusPending Status = "PENDING"
	// StatusApproved is terminal.
	StatusApproved Status = "APPROVED"
)

// Invoice is the persisted invoice record.
type Invoice struct {
	ID             int64
	Number         string
	Date           time.Time
	Status         Status
	Type           Type
	Enabled        bool
	Deleted        bool
	CompanyID      int64
	ClientVendorID *int64
	Version        int64
	Items          []LineItem
}

// LineItem is one product entry on an invoice.
type LineItem struct {
	ID        int64
	InvoiceID int64
	ProductID int64
	Name      string
	Price     decimal.Decimal
	Qty       int
	// Tax is a percentage; only purchase listings read it per item.
	Tax     decimal.Decimal
	Enabled bool
}

// StockLot is a batch of inventory recorded for one approved purchase line.
type StockLot struct {
	ID                int64
	ProductID         int64
	InvoiceItemID     int64
	Price             decimal.Decimal
	Quantity          int
	RemainingQuantity int
	CreatedAt         time.Time
}

// Draft carries the caller-provided fields for a new invoice.
type Draft struct {
	Type           Type            `json:"type" validate:"required,oneof=SALE PURCHASE"`
	CompanyID      int64           `json:"company_id" validate:"required,gt=0"`
	ClientVendorID *int64          `json:"client_vendor_id,omitempty" validate:"omitempty,gt=0"`
	Enabled        bool            `json:"enabled"`
	Items          []LineItemInput `json:"items,omitempty" validate:"dive"`
}

// LineItemInput describes a line item to attach.
type LineItemInput struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Name      string          `json:"name" validate:"required,max=120"`
	Price     decimal.Decimal `json:"price"`
	Qty       int             `json:"qty" validate:"gte=0"`
	Tax       decimal.Decimal `json:"tax"`
	Enabled   bool            `json:"enabled"`
}

// Summary is the transfer form of an invoice with computed money fields.
type Summary struct {
	ID             int64           `json:"id"`
	Number         string          `json:"invoice_number"`
	Date           time.Time       `json:"invoice_date"`
	Status         Status          `json:"invoice_status"`
	Type           Type            `json:"invoice_type"`
	Enabled        bool            `json:"enabled"`
	CompanyID      int64           `json:"company_id"`
	ClientVendorID *int64          `json:"client_vendor_id,omitempty"`
	Items          []LineItemView  `json:"items"`
	Cost           decimal.Decimal `json:"cost"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
}

// MarshalJSON renders money with exactly two fractional digits.
func (s Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	return json.Marshal(struct {
		plain
		Cost  string `json:"cost"`
		Tax   string `json:"tax"`
		Total string `json:"total"`
	}{plain(s), s.Cost.StringFixed(2), s.Tax.StringFixed(2), s.Total.StringFixed(2)})
}

// LineItemView is the transfer form of a line item.
type LineItemView struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Qty       int             `json:"qty"`
	Tax       decimal.Decimal `json:"tax"`
	Enabled   bool            `json:"enabled"`
}

var (
	// ErrNotFound indicates the invoice (or a referenced record) is absent or soft-deleted.
	ErrNotFound = fmt.Errorf("invoices: %w", httpx.ErrNotFound)
	// ErrInvalidState occurs when an action does not fit the invoice type or status.
	ErrInvalidState = fmt.Errorf("invoices: invalid state transition: %w", httpx.ErrConflict)
	// ErrConcurrentUpdate occurs when the invoice changed between read and write.
	ErrConcurrentUpdate = fmt.Errorf("invoices: concurrent update: %w", httpx.ErrConflict)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("invoices: %w", httpx.ErrValidation)
)
