package invoices

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/accounting-app/accounting-app/internal/platform/httpx"
	"github.com/accounting-app/accounting-app/internal/shared"
)

type stubIdempotency struct {
	seen    map[string]bool
	deleted []string
}

func (s *stubIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if s.seen[key] {
		return shared.ErrIdempotencyConflict
	}
	s.seen[key] = true
	return nil
}

func (s *stubIdempotency) Delete(ctx context.Context, key string) error {
	delete(s.seen, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, fixture, *stubIdempotency) {
	t.Helper()
	f := newFixture(t)
	idem := &stubIdempotency{seen: map[string]bool{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, f.svc, idem, nil)
	r := chi.NewRouter()
	r.Route("/invoices", h.MountRoutes)
	return r, f, idem
}

func TestCreateInvoiceEndpointHonoursIdempotencyKey(t *testing.T) {
	router, _, idem := newTestRouter(t)
	body := `{"type":"SALE","company_id":7,"items":[{"product_id":1,"name":"Widget","price":"15","qty":2}]}`

	req := httptest.NewRequest(http.MethodPost, "/invoices/", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "abc")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var summary Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	require.Equal(t, "S-INV001", summary.Number)
	require.Equal(t, StatusPending, summary.Status)

	req = httptest.NewRequest(http.MethodPost, "/invoices/", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "abc")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Empty(t, idem.deleted)
}

func TestCreateInvoiceEndpointReleasesKeyOnValidationFailure(t *testing.T) {
	router, _, idem := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/invoices/", strings.NewReader(`{"type":"REFUND","company_id":7}`))
	req.Header.Set("Idempotency-Key", "k1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	require.Equal(t, "oneof", problem.Fields["Type"])
	require.Equal(t, []string{"k1"}, idem.deleted)
}

func TestApprovePurchaseEndpoint(t *testing.T) {
	router, f, _ := newTestRouter(t)
	created := f.purchaseWithTwoLines(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/invoices/1/approve-purchase", nil))
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())
	require.Equal(t, 15, f.repo.products[1])

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/invoices/by-number/"+created.Number+"/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"invoice_status":"APPROVED"`)
}

func TestEndpointErrorMapping(t *testing.T) {
	router, f, _ := newTestRouter(t)
	_, err := f.svc.Create(context.Background(), Draft{Type: TypeSale, CompanyID: 7})
	require.NoError(t, err)

	cases := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"missing invoice", http.MethodGet, "/invoices/77/", http.StatusNotFound},
		{"bad id", http.MethodPost, "/invoices/abc/enable", http.StatusBadRequest},
		{"sale through purchase approval", http.MethodPost, "/invoices/1/approve-purchase", http.StatusConflict},
		{"unknown type", http.MethodGet, "/invoices/?type=refund", http.StatusBadRequest},
		{"unknown number", http.MethodPost, "/invoices/by-number/S-INV404/approve", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
			require.Equal(t, tc.status, rr.Code, rr.Body.String())
		})
	}
}

func TestNextNumberEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/invoices/next-number?type=purchase", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"invoice_number":"P-INV001","invoice_date":"05/7/2024"}`, rr.Body.String())
}
