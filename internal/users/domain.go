package users

import (
	"fmt"
	"time"

	"github.com/accounting-app/accounting-app/internal/platform/httpx"
)

// User is an account belonging to exactly one company.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	CompanyID    int64     `json:"company_id"`
	PasswordHash string    `json:"-"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
}

// Registration is the sign-up payload.
type Registration struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	CompanyID int64  `json:"company_id" validate:"required,gt=0"`
}

var (
	ErrNotFound           = fmt.Errorf("users: %w", httpx.ErrNotFound)
	ErrDuplicate          = fmt.Errorf("users: email already registered: %w", httpx.ErrDuplicate)
	ErrInvalidCredentials = fmt.Errorf("users: invalid credentials: %w", httpx.ErrUnauthorized)
)
