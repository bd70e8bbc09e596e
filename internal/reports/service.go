package reports

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/accounting-app/accounting-app/internal/companies"
	"github.com/accounting-app/accounting-app/internal/invoices"
)

// CompanyResolver yields the company reports are scoped to.
type CompanyResolver interface {
	CurrentCompany(ctx context.Context) (companies.Company, error)
}

// ItemSource loads the line items of a company's active invoices.
type ItemSource interface {
	LineItemsByCompany(ctx context.Context, companyID int64) ([]ItemRow, error)
}

// InvoiceSource loads a company's most recent invoices.
type InvoiceSource interface {
	RecentByCompanyTitle(ctx context.Context, title string, limit int) ([]invoices.Invoice, error)
}

// CacheMetrics counts cache hits and misses per report.
type CacheMetrics interface {
	ReportCacheLookup(report string, hit bool)
}

const (
	reportProfitLoss = "profit_loss"
	reportByProduct  = "by_product"
	reportRecent     = "recent_invoices"
)

// Service aggregates invoice line items into company scoped reports.
type Service struct {
	items    ItemSource
	invoices InvoiceSource
	resolver CompanyResolver
	cache    *Cache
	metrics  CacheMetrics
	logger   *slog.Logger
	group    singleflight.Group
}

// NewService wires the report sources with a cache helper. cache and
// metrics may be nil.
func NewService(items ItemSource, invoiceSource InvoiceSource, resolver CompanyResolver, cache *Cache, metrics CacheMetrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		items:    items,
		invoices: invoiceSource,
		resolver: resolver,
		cache:    cache,
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "reports")),
	}
}

// ProfitLoss reports the current company's price sums.
func (s *Service) ProfitLoss(ctx context.Context) (ProfitLoss, error) {
	company, err := s.resolver.CurrentCompany(ctx)
	if err != nil {
		return ProfitLoss{}, err
	}
	return s.profitLossFor(ctx, company.ID)
}

// ByProduct reports per product name totals for the current company,
// sorted by name.
func (s *Service) ByProduct(ctx context.Context) ([]ProductLine, error) {
	company, err := s.resolver.CurrentCompany(ctx)
	if err != nil {
		return nil, err
	}
	return s.byProductFor(ctx, company.ID)
}

// RecentInvoices returns the current company's three latest invoices with
// the flat report tax applied to every entry.
func (s *Service) RecentInvoices(ctx context.Context) ([]invoices.Summary, error) {
	company, err := s.resolver.CurrentCompany(ctx)
	if err != nil {
		return nil, err
	}
	var out []invoices.Summary
	err = s.cached(ctx, company.ID, reportRecent, &out, func(ctx context.Context) (any, error) {
		list, err := s.invoices.RecentByCompanyTitle(ctx, company.Title, RecentInvoiceLimit)
		if err != nil {
			return nil, err
		}
		summaries := make([]invoices.Summary, 0, len(list))
		for _, inv := range list {
			summaries = append(summaries, invoices.Summarize(inv, invoices.TaxFlatReport))
		}
		return summaries, nil
	})
	return out, err
}

// CompanyLineItems lists every line item of the current company's active
// invoices.
func (s *Service) CompanyLineItems(ctx context.Context) ([]ItemRow, error) {
	company, err := s.resolver.CurrentCompany(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.items.LineItemsByCompany(ctx, company.ID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []ItemRow{}
	}
	return items, nil
}

// Warm precomputes the company's cached reports.
func (s *Service) Warm(ctx context.Context, companyID int64) error {
	if _, err := s.profitLossFor(ctx, companyID); err != nil {
		return err
	}
	_, err := s.byProductFor(ctx, companyID)
	return err
}

func (s *Service) profitLossFor(ctx context.Context, companyID int64) (ProfitLoss, error) {
	var out ProfitLoss
	err := s.cached(ctx, companyID, reportProfitLoss, &out, func(ctx context.Context) (any, error) {
		items, err := s.items.LineItemsByCompany(ctx, companyID)
		if err != nil {
			return nil, err
		}
		return AggregateProfitLoss(items), nil
	})
	return out, err
}

func (s *Service) byProductFor(ctx context.Context, companyID int64) ([]ProductLine, error) {
	var out []ProductLine
	err := s.cached(ctx, companyID, reportByProduct, &out, func(ctx context.Context) (any, error) {
		items, err := s.items.LineItemsByCompany(ctx, companyID)
		if err != nil {
			return nil, err
		}
		return AggregateByProduct(items), nil
	})
	return out, err
}

// cached serves report from the cache, collapsing concurrent fills of the
// same key into one loader call.
func (s *Service) cached(ctx context.Context, companyID int64, report string, dest any, loader func(context.Context) (any, error)) error {
	key, err := s.cache.BuildKey(ctx, companyID, report)
	if err != nil {
		return err
	}
	// The fill is shared by every waiter on key, so it must not die with
	// whichever caller happened to start it.
	fillCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		var raw json.RawMessage
		hit, err := s.cache.FetchJSON(fillCtx, key, &raw, loader)
		if err != nil {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.ReportCacheLookup(report, hit)
		}
		return raw, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.(json.RawMessage), dest)
	}
}

// AggregateProfitLoss sums unit prices of purchase items into TotalCost and
// of sale items into TotalSale; TotalTax sums the stored tax of sale items.
func AggregateProfitLoss(items []ItemRow) ProfitLoss {
	out := ProfitLoss{TotalCost: decimal.Zero, TotalSale: decimal.Zero, TotalTax: decimal.Zero}
	for _, item := range items {
		switch item.InvoiceType {
		case invoices.TypePurchase:
			out.TotalCost = out.TotalCost.Add(item.Price)
		case invoices.TypeSale:
			out.TotalSale = out.TotalSale.Add(item.Price)
			out.TotalTax = out.TotalTax.Add(item.Tax)
		}
	}
	return out
}

// AggregateByProduct groups items by exact name. Purchases fold into the
// cost side and sales into the income side, each as price times qty.
func AggregateByProduct(items []ItemRow) []ProductLine {
	byName := make(map[string]*ProductLine)
	for _, item := range items {
		line, ok := byName[item.Name]
		if !ok {
			line = &ProductLine{Name: item.Name, TotalCost: decimal.Zero, TotalIncome: decimal.Zero}
			byName[item.Name] = line
		}
		amount := item.Price.Mul(decimal.NewFromInt(int64(item.Qty)))
		switch item.InvoiceType {
		case invoices.TypePurchase:
			line.PurchasedQty += item.Qty
			line.TotalCost = line.TotalCost.Add(amount)
		case invoices.TypeSale:
			line.SoldQty += item.Qty
			line.TotalIncome = line.TotalIncome.Add(amount)
		}
	}
	out := make([]ProductLine, 0, len(byName))
	for _, line := range byName {
		out = append(out, *line)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
