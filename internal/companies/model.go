package companies

import (
	"fmt"
	"time"

	"github.com/accounting-app/accounting-app/internal/platform/httpx"
)

// Status is the lifecycle state of a company.
type Status string

const (
	StatusEnabled  Status = "ENABLED"
	StatusDisabled Status = "DISABLED"
)

// Company is a tenant of the back office. Email is the natural key.
type Company struct {
	ID                int64      `json:"id"`
	Title             string     `json:"title"`
	Address1          string     `json:"address1"`
	Address2          string     `json:"address2"`
	Zip               string     `json:"zip"`
	Representative    string     `json:"representative"`
	Email             string     `json:"email"`
	EstablishmentDate *time.Time `json:"establishment_date,omitempty"`
	Enabled           bool       `json:"enabled"`
	Status            Status     `json:"company_status"`
	Phone             string     `json:"phone"`
}

// Form is the create/update payload.
type Form struct {
	Title             string     `json:"title" validate:"required,max=120"`
	Address1          string     `json:"address1" validate:"max=200"`
	Address2          string     `json:"address2" validate:"max=200"`
	Zip               string     `json:"zip" validate:"max=16"`
	Representative    string     `json:"representative" validate:"max=120"`
	Email             string     `json:"email" validate:"required,email"`
	EstablishmentDate *time.Time `json:"establishment_date,omitempty"`
	Phone             string     `json:"phone" validate:"max=32"`
}

var (
	ErrNotFound  = fmt.Errorf("companies: %w", httpx.ErrNotFound)
	ErrDuplicate = fmt.Errorf("companies: email already registered: %w", httpx.ErrDuplicate)
)
