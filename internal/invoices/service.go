package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/accounting-app/accounting-app/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	// WithNumberingTx serialises invoice numbering; fn must see invoices
	// committed by the previous holder.
	WithNumberingTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	MaxID(ctx context.Context) (int64, error)
	Get(ctx context.Context, id int64) (Invoice, error)
	GetByNumber(ctx context.Context, number string) (Invoice, error)
	ListByType(ctx context.Context, t Type) ([]Invoice, error)
}

// CounterpartyLookup resolves client/vendors by their company name.
type CounterpartyLookup interface {
	IDByName(ctx context.Context, companyName string) (int64, error)
}

// AuditPort records audit entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ApprovalPort keeps approval history.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// ChangeNotifier is told after an invoice mutation commits.
type ChangeNotifier interface {
	InvoiceChanged(ctx context.Context, companyID int64)
}

// MetricsPort counts lifecycle transitions.
type MetricsPort interface {
	InvoiceTransition(action, invoiceType string)
}

// ServiceOptions carries optional collaborators.
type ServiceOptions struct {
	Audit     AuditPort
	Approvals ApprovalPort
	Notifier  ChangeNotifier
	Metrics   MetricsPort
	Logger    *slog.Logger
}

// Service orchestrates the invoice lifecycle.
type Service struct {
	repo           RepositoryPort
	counterparties CounterpartyLookup
	audit          AuditPort
	approvals      ApprovalPort
	notifier       ChangeNotifier
	metrics        MetricsPort
	logger         *slog.Logger
	validate       *validator.Validate
	now            func() time.Time
}

// NewService constructs the invoice service.
func NewService(repo RepositoryPort, counterparties CounterpartyLookup, opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:           repo,
		counterparties: counterparties,
		audit:          opts.Audit,
		approvals:      opts.Approvals,
		notifier:       opts.Notifier,
		metrics:        opts.Metrics,
		logger:         logger.With(slog.String("component", "invoices")),
		validate:       validator.New(),
		now:            time.Now,
	}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Create persists a PENDING invoice numbered from the shared sequence and dated today.
func (s *Service) Create(ctx context.Context, draft Draft) (Summary, error) {
	if err := s.validate.Struct(draft); err != nil {
		return Summary{}, err
	}
	for _, item := range draft.Items {
		if err := validateAmounts(item); err != nil {
			return Summary{}, err
		}
	}
	today := truncateDay(s.now())
	var created Invoice
	err := s.repo.WithNumberingTx(ctx, func(ctx context.Context, tx TxRepository) error {
		maxID, err := tx.MaxID(ctx)
		if err != nil {
			return err
		}
		inv, err := tx.Create(ctx, invoiceFromDraft(draft, FormatNumber(draft.Type, maxID+1), today))
		if err != nil {
			return err
		}
		for _, in := range draft.Items {
			item, err := tx.InsertLineItem(ctx, lineItemFromInput(inv.ID, in))
			if err != nil {
				return err
			}
			inv.Items = append(inv.Items, item)
		}
		created = inv
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	s.afterCommit(ctx, "create", created, map[string]any{"number": created.Number})
	return Summarize(created, ListingMode(created.Type)), nil
}

// AddLineItem attaches a line item to an active invoice.
func (s *Service) AddLineItem(ctx context.Context, invoiceID int64, input LineItemInput) (LineItemView, error) {
	if err := s.validate.Struct(input); err != nil {
		return LineItemView{}, err
	}
	if err := validateAmounts(input); err != nil {
		return LineItemView{}, err
	}
	var (
		inv  Invoice
		item LineItem
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		inv, err = tx.Get(ctx, invoiceID)
		if err != nil {
			return err
		}
		item, err = tx.InsertLineItem(ctx, lineItemFromInput(inv.ID, input))
		return err
	})
	if err != nil {
		return LineItemView{}, err
	}
	s.afterCommit(ctx, "add_line_item", inv, map[string]any{"item_id": item.ID, "product_id": item.ProductID})
	return lineItemView(item), nil
}

// LinkCounterparty attaches the client/vendor named companyName. A missing
// invoice is a silent no-op.
func (s *Service) LinkCounterparty(ctx context.Context, invoiceID int64, companyName string) error {
	if _, err := s.repo.Get(ctx, invoiceID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	name := strings.TrimSpace(companyName)
	if name == "" {
		return fmt.Errorf("%w: counterparty name required", ErrValidation)
	}
	cvID, err := s.counterparties.IDByName(ctx, name)
	if err != nil {
		return err
	}
	var inv Invoice
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		inv, err = tx.Get(ctx, invoiceID)
		if err != nil {
			return err
		}
		return tx.SetClientVendor(ctx, inv.ID, inv.Version, cvID)
	})
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.afterCommit(ctx, "link_counterparty", inv, map[string]any{"client_vendor_id": cvID})
	return nil
}

// Approve marks the invoice carrying number as APPROVED. Already approved
// invoices are left untouched.
func (s *Service) Approve(ctx context.Context, number string) error {
	number = strings.TrimSpace(number)
	if number == "" {
		return fmt.Errorf("%w: invoice number required", ErrValidation)
	}
	var (
		inv     Invoice
		changed bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		inv, err = tx.GetByNumber(ctx, number)
		if err != nil {
			return err
		}
		if inv.Status == StatusApproved {
			return nil
		}
		changed = true
		return tx.UpdateStatus(ctx, inv.ID, inv.Version, StatusApproved)
	})
	if err != nil {
		return err
	}
	if changed {
		s.recordApproval(ctx, inv)
		s.afterCommit(ctx, "approve", inv, map[string]any{"number": inv.Number})
	}
	return nil
}

// Enable sets enabled on the invoice and unconditionally on every one of its line items.
func (s *Service) Enable(ctx context.Context, invoiceID int64) error {
	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		inv, err = tx.Get(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := tx.EnableLineItems(ctx, inv.ID); err != nil {
			return err
		}
		return tx.SetEnabled(ctx, inv.ID, inv.Version, true)
	})
	if err != nil {
		return err
	}
	s.afterCommit(ctx, "enable", inv, nil)
	return nil
}

// ApprovePurchase adds every line quantity to its product's stock, records one
// stock lot per line and marks the invoice APPROVED, all in one transaction.
// The status write is a version compare-and-swap, so a concurrent approval
// fails with ErrConcurrentUpdate instead of incrementing stock twice.
func (s *Service) ApprovePurchase(ctx context.Context, invoiceID int64) error {
	var (
		inv     Invoice
		changed bool
	)
	now := s.now()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		inv, err = tx.Get(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Type != TypePurchase {
			return fmt.Errorf("%w: invoice %s is not a purchase invoice", ErrInvalidState, inv.Number)
		}
		if inv.Status == StatusApproved {
			return nil
		}
		if err := tx.UpdateStatus(ctx, inv.ID, inv.Version, StatusApproved); err != nil {
			return err
		}
		for _, item := range inv.Items {
			if err := tx.IncrementProductQty(ctx, item.ProductID, item.Qty); err != nil {
				return fmt.Errorf("increment product %d: %w", item.ProductID, err)
			}
		}
		_, err = insertStockLots(ctx, tx, inv.Items, now)
		changed = true
		return err
	})
	if err != nil {
		return err
	}
	if changed {
		s.recordApproval(ctx, inv)
		s.afterCommit(ctx, "approve_purchase", inv, map[string]any{"lines": len(inv.Items)})
	}
	return nil
}

// MaterializeStockLots records one stock lot per line item of a purchase
// invoice. Lines that already own a lot are skipped, so the call is safe to
// repeat. It returns the number of lots created.
func (s *Service) MaterializeStockLots(ctx context.Context, invoiceID int64) (int, error) {
	var (
		inv     Invoice
		created int
	)
	now := s.now()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		inv, err = tx.Get(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Type != TypePurchase {
			return fmt.Errorf("%w: invoice %s is not a purchase invoice", ErrInvalidState, inv.Number)
		}
		created, err = insertStockLots(ctx, tx, inv.Items, now)
		return err
	})
	if err != nil {
		return 0, err
	}
	if created > 0 {
		s.afterCommit(ctx, "materialize_stock_lots", inv, map[string]any{"lots": created})
	}
	return created, nil
}

// SoftDelete flags the invoice as deleted. Line items are left as they are.
func (s *Service) SoftDelete(ctx context.Context, invoiceID int64) error {
	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		inv, err = tx.Get(ctx, invoiceID)
		if err != nil {
			return err
		}
		return tx.SoftDelete(ctx, inv.ID, inv.Version)
	})
	if err != nil {
		return err
	}
	s.afterCommit(ctx, "soft_delete", inv, nil)
	return nil
}

// ListByType returns enabled invoices of type t with their enabled items and
// totals computed by the listing tax mode of t.
func (s *Service) ListByType(ctx context.Context, t Type) ([]Summary, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unknown invoice type %q", ErrValidation, t)
	}
	invoices, err := s.repo.ListByType(ctx, t)
	if err != nil {
		return nil, err
	}
	mode := ListingMode(t)
	out := make([]Summary, 0, len(invoices))
	for _, inv := range invoices {
		if !inv.Enabled {
			continue
		}
		out = append(out, Summarize(inv, mode))
	}
	return out, nil
}

// GetByID returns the transfer form of an active invoice.
func (s *Service) GetByID(ctx context.Context, id int64) (Summary, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(inv, ListingMode(inv.Type)), nil
}

// IDByNumber resolves an invoice number to its id.
func (s *Service) IDByNumber(ctx context.Context, number string) (int64, error) {
	inv, err := s.repo.GetByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		return 0, err
	}
	return inv.ID, nil
}

// NumberOf resolves an invoice id to its number.
func (s *Service) NumberOf(ctx context.Context, id int64) (string, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return inv.Number, nil
}

// Today returns the current invoice date as printed on invoice headers.
func (s *Service) Today() string {
	return FormatInvoiceDate(s.now())
}

func insertStockLots(ctx context.Context, tx TxRepository, items []LineItem, now time.Time) (int, error) {
	created := 0
	for _, item := range items {
		inserted, err := tx.InsertStockLot(ctx, stockLotFromItem(item, now))
		if err != nil {
			return created, fmt.Errorf("stock lot for item %d: %w", item.ID, err)
		}
		if inserted {
			created++
		}
	}
	return created, nil
}

func (s *Service) afterCommit(ctx context.Context, action string, inv Invoice, meta map[string]any) {
	if s.metrics != nil {
		s.metrics.InvoiceTransition(action, string(inv.Type))
	}
	if s.notifier != nil {
		s.notifier.InvoiceChanged(ctx, inv.CompanyID)
	}
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["type"] = string(inv.Type)
	err := s.audit.Record(ctx, shared.AuditLog{
		Action:   "INVOICE_" + strings.ToUpper(action),
		Entity:   "invoice",
		EntityID: strconv.FormatInt(inv.ID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("record audit", slog.Int64("invoice_id", inv.ID), slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) recordApproval(ctx context.Context, inv Invoice) {
	if s.approvals == nil {
		return
	}
	err := s.approvals.Record(ctx, shared.ApprovalLog{
		Module: approvalModule,
		RefID:  ApprovalRef(inv.ID),
		Actor:  shared.ActorEmailFromContext(ctx),
		Action: shared.ApprovalApprove,
		Note:   fmt.Sprintf("invoice %s approved", inv.Number),
	})
	if err != nil {
		s.logger.Warn("record approval", slog.Int64("invoice_id", inv.ID), slog.Any("error", err))
	}
}

const approvalModule = "INVOICE"

// ApprovalRef is the stable approval reference of an invoice id.
func ApprovalRef(id int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("INVOICE:%d", id)))
}

func validateAmounts(in LineItemInput) error {
	if in.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	if in.Tax.IsNegative() {
		return fmt.Errorf("%w: tax must not be negative", ErrValidation)
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
