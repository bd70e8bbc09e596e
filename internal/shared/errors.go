package shared

import (
	"errors"
	"fmt"

	"github.com/accounting-app/accounting-app/internal/platform/httpx"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = fmt.Errorf("shared: %w", httpx.ErrNotFound)
	// ErrCompanyUnresolved occurs when no current company can be derived for a request.
	ErrCompanyUnresolved = fmt.Errorf("shared: current company unresolved: %w", httpx.ErrNotFound)
	// ErrIdempotencyConflict indicates a duplicate key.
	ErrIdempotencyConflict = fmt.Errorf("shared: idempotent request already processed: %w", httpx.ErrDuplicate)
	errNotInitialised      = errors.New("shared: store not initialised")
)
