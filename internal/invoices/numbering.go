package invoices

import (
	"context"
	"fmt"
)

const (
	salePrefix     = "S-INV"
	purchasePrefix = "P-INV"
)

// FormatNumber renders seq as an invoice number for t. Sequences above 999
// simply widen.
func FormatNumber(t Type, seq int64) string {
	prefix := salePrefix
	if t == TypePurchase {
		prefix = purchasePrefix
	}
	return fmt.Sprintf("%s%03d", prefix, seq)
}

// NextNumber previews the number the next created invoice of type t would get.
// The sequence is MAX(id)+1 over every invoice, shared by both types.
func (s *Service) NextNumber(ctx context.Context, t Type) (string, error) {
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown invoice type %q", ErrValidation, t)
	}
	maxID, err := s.repo.MaxID(ctx)
	if err != nil {
		return "", err
	}
	return FormatNumber(t, maxID+1), nil
}
