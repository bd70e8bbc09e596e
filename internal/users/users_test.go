package users

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/accounting-app/accounting-app/internal/companies"
	"github.com/accounting-app/accounting-app/internal/platform/httpx"
	"github.com/accounting-app/accounting-app/internal/shared"
)

type memoryUsers struct {
	rows map[string]User
}

func (m *memoryUsers) FindByEmail(ctx context.Context, email string) (User, error) {
	u, ok := m.rows[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memoryUsers) Create(ctx context.Context, u User) (User, error) {
	if _, ok := m.rows[u.Email]; ok {
		return User{}, ErrDuplicate
	}
	u.ID = int64(len(m.rows) + 1)
	m.rows[u.Email] = u
	return u, nil
}

type stubCompanies map[int64]companies.Company

func (s stubCompanies) Get(ctx context.Context, id int64) (companies.Company, error) {
	c, ok := s[id]
	if !ok {
		return companies.Company{}, companies.ErrNotFound
	}
	return c, nil
}

func newTestService() (*Service, *memoryUsers) {
	repo := &memoryUsers{rows: map[string]User{}}
	return NewService(repo).WithCost(bcrypt.MinCost), repo
}

func TestRegisterHashesPassword(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	u, err := svc.Register(ctx, Registration{Email: " Admin@Company2.com", Password: "Abc12345", CompanyID: 2})
	require.NoError(t, err)
	require.Equal(t, "admin@company2.com", u.Email)
	require.True(t, u.Enabled)
	require.NotEqual(t, "Abc12345", repo.rows[u.Email].PasswordHash)

	_, err = svc.Register(ctx, Registration{Email: "admin@company2.com", Password: "Abc12345", CompanyID: 2})
	require.ErrorIs(t, err, ErrDuplicate)

	_, err = svc.Register(ctx, Registration{Email: "short@company2.com", Password: "abc", CompanyID: 2})
	require.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	_, err := svc.Register(ctx, Registration{Email: "admin@company2.com", Password: "Abc12345", CompanyID: 2})
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, "ADMIN@company2.com", "Abc12345")
	require.NoError(t, err)
	require.Equal(t, int64(2), u.CompanyID)

	_, err = svc.Authenticate(ctx, "admin@company2.com", "wrong-pass")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	disabled := repo.rows["admin@company2.com"]
	disabled.Enabled = false
	repo.rows["admin@company2.com"] = disabled
	_, err = svc.Authenticate(ctx, "admin@company2.com", "Abc12345")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCompanyResolver(t *testing.T) {
	users := &memoryUsers{rows: map[string]User{
		"admin@company2.com":  {ID: 1, Email: "admin@company2.com", CompanyID: 2},
		"orphan@company9.com": {ID: 2, Email: "orphan@company9.com", CompanyID: 9},
	}}
	comps := stubCompanies{2: {ID: 2, Title: "Company2"}}
	resolver := NewCompanyResolver(users, comps, "Admin@Company2.com")

	c, err := resolver.CurrentCompany(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Company2", c.Title)

	ctx := shared.ContextWithActorEmail(context.Background(), "orphan@company9.com")
	_, err = resolver.CurrentCompany(ctx)
	require.ErrorIs(t, err, shared.ErrCompanyUnresolved)

	ctx = shared.ContextWithActorEmail(context.Background(), "nobody@example.com")
	_, err = resolver.CurrentCompany(ctx)
	require.ErrorIs(t, err, shared.ErrCompanyUnresolved)

	_, err = NewCompanyResolver(users, comps, "").CurrentCompany(context.Background())
	require.ErrorIs(t, err, shared.ErrCompanyUnresolved)
}

type failingUsers struct{ err error }

func (f failingUsers) FindByEmail(ctx context.Context, email string) (User, error) {
	return User{}, f.err
}

type failingCompanies struct{ err error }

func (f failingCompanies) Get(ctx context.Context, id int64) (companies.Company, error) {
	return companies.Company{}, f.err
}

func TestCompanyResolverKeepsStorageErrors(t *testing.T) {
	errDown := errors.New("dial tcp 127.0.0.1:5432: connection refused")

	_, err := NewCompanyResolver(failingUsers{err: errDown}, stubCompanies{}, "admin@company2.com").
		CurrentCompany(context.Background())
	require.ErrorIs(t, err, errDown)
	require.NotErrorIs(t, err, shared.ErrCompanyUnresolved)
	require.NotErrorIs(t, err, httpx.ErrNotFound)

	users := &memoryUsers{rows: map[string]User{
		"admin@company2.com": {ID: 1, Email: "admin@company2.com", CompanyID: 2},
	}}
	_, err = NewCompanyResolver(users, failingCompanies{err: errDown}, "admin@company2.com").
		CurrentCompany(context.Background())
	require.ErrorIs(t, err, errDown)
	require.NotErrorIs(t, err, httpx.ErrNotFound)

	_, err = NewCompanyResolver(users, failingCompanies{err: companies.ErrNotFound}, "admin@company2.com").
		CurrentCompany(context.Background())
	require.ErrorIs(t, err, shared.ErrCompanyUnresolved)
}

func TestCurrentCompanyEndpointUsesActorHeader(t *testing.T) {
	svc, _ := newTestService()
	users := &memoryUsers{rows: map[string]User{
		"admin@company2.com": {ID: 1, Email: "admin@company2.com", CompanyID: 2},
		"cfo@company3.com":   {ID: 2, Email: "cfo@company3.com", CompanyID: 3},
	}}
	resolver := NewCompanyResolver(users, stubCompanies{2: {ID: 2, Title: "Company2"}, 3: {ID: 3, Title: "Company3"}}, "admin@company2.com")
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, resolver)
	r := chi.NewRouter()
	r.Use(ActorMiddleware)
	r.Route("/users", h.MountRoutes)

	req := httptest.NewRequest(http.MethodGet, "/users/me/company", nil)
	req.Header.Set(ActorHeader, "CFO@company3.com")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"title":"Company3"`)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users/me/company", nil))
	require.Contains(t, rr.Body.String(), `"title":"Company2"`)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/users/verify", strings.NewReader(`{"email":"x@y.com","password":"nope"}`)))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
