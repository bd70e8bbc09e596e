package clientvendors

import (
	"errors"
	"fmt"
	"time"

	"github.com/accounting-app/accounting-app/internal/platform/httpx"
)

// ClientVendor is a counterparty invoices can be linked to. CompanyName is
// the natural key.
type ClientVendor struct {
	ID          int64     `json:"id"`
	CompanyID   int64     `json:"company_id"`
	CompanyName string    `json:"company_name"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
}

// Input is the create payload.
type Input struct {
	CompanyID   int64  `json:"company_id" validate:"required,gt=0"`
	CompanyName string `json:"company_name" validate:"required,max=120"`
	Phone       string `json:"phone" validate:"omitempty,max=32"`
	Email       string `json:"email" validate:"omitempty,email"`
}

var (
	ErrNotFound  = fmt.Errorf("clientvendors: %w", httpx.ErrNotFound)
	ErrDuplicate = fmt.Errorf("clientvendors: company name already registered: %w", httpx.ErrDuplicate)
)

// IsNotFound reports whether err means the counterparty does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
