package products

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/accounting-app/accounting-app/internal/platform/httpx"
)

// Product is a stock item owned by a company. Qty is quantity on hand and
// only grows through approved purchase invoices.
type Product struct {
	ID        int64     `json:"id"`
	CompanyID int64     `json:"company_id"`
	Name      string    `json:"name"`
	Qty       int       `json:"qty"`
	CreatedAt time.Time `json:"created_at"`
}

// StockLot is one purchase lot recorded for a product.
type StockLot struct {
	ID                int64           `json:"id"`
	ProductID         int64           `json:"product_id"`
	InvoiceItemID     int64           `json:"invoice_product_id"`
	Price             decimal.Decimal `json:"price"`
	Quantity          int             `json:"quantity"`
	RemainingQuantity int             `json:"remaining_quantity"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Input is the create payload.
type Input struct {
	CompanyID int64  `json:"company_id" validate:"required,gt=0"`
	Name      string `json:"name" validate:"required,max=120"`
	Qty       int    `json:"qty" validate:"gte=0"`
}

var ErrNotFound = fmt.Errorf("products: %w", httpx.ErrNotFound)
