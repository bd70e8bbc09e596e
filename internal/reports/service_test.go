package reports

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/accounting-app/accounting-app/internal/companies"
	"github.com/accounting-app/accounting-app/internal/invoices"
	"github.com/accounting-app/accounting-app/internal/shared"
)

type memoryItems struct {
	mu    sync.Mutex
	rows  map[int64][]ItemRow
	calls int
}

func (m *memoryItems) LineItemsByCompany(ctx context.Context, companyID int64) ([]ItemRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.rows[companyID], nil
}

type memoryInvoices struct {
	byTitle map[string][]invoices.Invoice
	limit   int
}

func (m *memoryInvoices) RecentByCompanyTitle(ctx context.Context, title string, limit int) ([]invoices.Invoice, error) {
	m.limit = limit
	list := m.byTitle[title]
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

type fixedResolver struct {
	company companies.Company
	err     error
}

func (f fixedResolver) CurrentCompany(ctx context.Context) (companies.Company, error) {
	return f.company, f.err
}

type lookupCounter struct {
	mu     sync.Mutex
	hits   int
	misses int
}

func (c *lookupCounter) ReportCacheLookup(report string, hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func widgetRows() []ItemRow {
	return []ItemRow{
		{ID: 1, InvoiceType: invoices.TypePurchase, Name: "Widget", Price: d("10"), Qty: 4, Tax: d("5")},
		{ID: 2, InvoiceType: invoices.TypeSale, Name: "Widget", Price: d("15"), Qty: 2, Tax: d("7")},
		{ID: 3, InvoiceType: invoices.TypeSale, Name: "Bolt", Price: d("2.50"), Qty: 10, Tax: d("3")},
	}
}

type testEnv struct {
	svc     *Service
	items   *memoryItems
	cache   *Cache
	metrics *lookupCounter
}

func newTestEnv(t *testing.T, resolver CompanyResolver, invoiceSource InvoiceSource) testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute)
	items := &memoryItems{rows: map[int64][]ItemRow{2: widgetRows()}}
	metrics := &lookupCounter{}
	if invoiceSource == nil {
		invoiceSource = &memoryInvoices{}
	}
	svc := NewService(items, invoiceSource, resolver, cache, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return testEnv{svc: svc, items: items, cache: cache, metrics: metrics}
}

var company2 = fixedResolver{company: companies.Company{ID: 2, Title: "Company2"}}

func TestAggregateByProductFoldsByName(t *testing.T) {
	lines := AggregateByProduct(widgetRows())
	require.Len(t, lines, 2)
	require.Equal(t, "Bolt", lines[0].Name)
	require.Equal(t, 10, lines[0].SoldQty)
	require.True(t, lines[0].TotalIncome.Equal(d("25")))

	widget := lines[1]
	require.Equal(t, "Widget", widget.Name)
	require.Equal(t, 4, widget.PurchasedQty)
	require.Equal(t, 2, widget.SoldQty)
	require.True(t, widget.TotalCost.Equal(d("40")))
	require.True(t, widget.TotalIncome.Equal(d("30")))
}

func TestAggregateProfitLossIgnoresQuantity(t *testing.T) {
	pl := AggregateProfitLoss(widgetRows())
	require.True(t, pl.TotalCost.Equal(d("10")))
	require.True(t, pl.TotalSale.Equal(d("17.50")))
	require.True(t, pl.TotalTax.Equal(d("10")))

	empty := AggregateProfitLoss(nil)
	require.True(t, empty.TotalCost.IsZero())
	require.True(t, empty.TotalSale.IsZero())
	require.True(t, empty.TotalTax.IsZero())
}

func TestProfitLossIsCachedUntilBumped(t *testing.T) {
	env := newTestEnv(t, company2, nil)
	ctx := context.Background()

	pl, err := env.svc.ProfitLoss(ctx)
	require.NoError(t, err)
	require.True(t, pl.TotalSale.Equal(d("17.50")))
	require.Equal(t, 1, env.items.calls)

	_, err = env.svc.ProfitLoss(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, env.items.calls)
	require.Equal(t, 1, env.metrics.hits)
	require.Equal(t, 1, env.metrics.misses)

	env.items.rows[2] = append(env.items.rows[2], ItemRow{ID: 4, InvoiceType: invoices.TypeSale, Name: "Nut", Price: d("1"), Qty: 1, Tax: d("0")})
	NewInvalidator(env.cache, nil, nil).InvoiceChanged(ctx, 2)

	pl, err = env.svc.ProfitLoss(ctx)
	require.NoError(t, err)
	require.True(t, pl.TotalSale.Equal(d("18.50")))
	require.Equal(t, 2, env.items.calls)
}

func TestBumpIsScopedToCompany(t *testing.T) {
	env := newTestEnv(t, company2, nil)
	ctx := context.Background()

	require.NoError(t, env.svc.Warm(ctx, 2))
	require.Equal(t, 2, env.items.calls)

	require.NoError(t, env.cache.Bump(ctx, 3))
	_, err := env.svc.ByProduct(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, env.items.calls)

	v2, err := env.cache.Version(ctx, 2)
	require.NoError(t, err)
	v3, err := env.cache.Version(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, int64(1), v2)
	require.Equal(t, int64(1), v3)
}

func TestUnresolvedCompanySurfaces(t *testing.T) {
	env := newTestEnv(t, fixedResolver{err: shared.ErrCompanyUnresolved}, nil)
	_, err := env.svc.ProfitLoss(context.Background())
	require.ErrorIs(t, err, shared.ErrCompanyUnresolved)
	_, err = env.svc.ByProduct(context.Background())
	require.ErrorIs(t, err, shared.ErrCompanyUnresolved)
	require.Zero(t, env.items.calls)
}

func TestRecentInvoicesUseFlatReportTax(t *testing.T) {
	purchase := invoices.Invoice{ID: 8, Number: "P-INV008", Type: invoices.TypePurchase, Status: invoices.StatusApproved, Enabled: true, Items: []invoices.LineItem{
		{ID: 1, Name: "Widget", Price: d("100"), Qty: 2, Tax: d("10"), Enabled: true},
	}}
	source := &memoryInvoices{byTitle: map[string][]invoices.Invoice{"Company2": {purchase, purchase, purchase, purchase}}}
	env := newTestEnv(t, company2, source)

	out, err := env.svc.RecentInvoices(context.Background())
	require.NoError(t, err)
	require.Equal(t, RecentInvoiceLimit, source.limit)
	require.Len(t, out, 3)
	require.True(t, out[0].Cost.Equal(d("200")))
	require.True(t, out[0].Tax.Equal(d("14")))
	require.True(t, out[0].Total.Equal(d("214")))
}

func TestCachedCollapsesConcurrentFills(t *testing.T) {
	env := newTestEnv(t, company2, nil)
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.ByProduct(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.LessOrEqual(t, env.items.calls, 8)
	require.GreaterOrEqual(t, env.items.calls, 1)
}

type gatedItems struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	mu      sync.Mutex
	calls   int
}

func (g *gatedItems) LineItemsByCompany(ctx context.Context, companyID int64) ([]ItemRow, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	g.once.Do(func() { close(g.started) })
	<-g.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return widgetRows(), nil
}

func TestCancelledCallerDoesNotFailSharedFill(t *testing.T) {
	env := newTestEnv(t, company2, nil)
	items := &gatedItems{started: make(chan struct{}), release: make(chan struct{})}
	env.svc.items = items

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := env.svc.ByProduct(firstCtx)
		firstErr <- err
	}()
	<-items.started
	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	type result struct {
		rows []ProductLine
		err  error
	}
	second := make(chan result, 1)
	go func() {
		rows, err := env.svc.ByProduct(context.Background())
		second <- result{rows, err}
	}()
	time.Sleep(50 * time.Millisecond)
	close(items.release)

	res := <-second
	require.NoError(t, res.err)
	require.Len(t, res.rows, 2)

	_, err := env.svc.ByProduct(context.Background())
	require.NoError(t, err)
	items.mu.Lock()
	defer items.mu.Unlock()
	require.LessOrEqual(t, items.calls, 2)
}

type recordingScheduler struct {
	companies []int64
}

func (r *recordingScheduler) EnqueueReportWarmup(ctx context.Context, companyID int64) error {
	r.companies = append(r.companies, companyID)
	return nil
}

func TestInvalidatorSchedulesWarmup(t *testing.T) {
	env := newTestEnv(t, company2, nil)
	scheduler := &recordingScheduler{}
	_, err := env.svc.ProfitLoss(context.Background())
	require.NoError(t, err)
	NewInvalidator(env.cache, scheduler, nil).InvoiceChanged(context.Background(), 2)
	require.Equal(t, []int64{2}, scheduler.companies)

	ver, err := env.cache.Version(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, int64(2), ver)

	_, err = env.svc.ProfitLoss(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, env.items.calls)
}

func TestWriteByProductCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteByProductCSV(&buf, AggregateByProduct(widgetRows())))
	require.Equal(t, "Product,Purchased Qty,Sold Qty,Total Cost,Total Income\n"+
		"Bolt,0,10,0.00,25.00\n"+
		"Widget,4,2,40.00,30.00\n", buf.String())
}

func TestHandlerRoutes(t *testing.T) {
	env := newTestEnv(t, company2, nil)
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), env.svc, 1)
	r := chi.NewRouter()
	r.Route("/reports", h.MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/profit-loss", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"total_cost":"10","total_sale":"17.5","total_tax":"10"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/by-product.csv", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/csv", rr.Header().Get("Content-Type"))

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/by-product.csv", nil))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/recent-invoices", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `[]`, rr.Body.String())
}

func TestHandlerMapsUnresolvedCompanyToNotFound(t *testing.T) {
	env := newTestEnv(t, fixedResolver{err: shared.ErrCompanyUnresolved}, nil)
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), env.svc, 0)
	r := chi.NewRouter()
	r.Route("/reports", h.MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/by-product", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
