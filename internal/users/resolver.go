package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/accounting-app/accounting-app/internal/companies"
	"github.com/accounting-app/accounting-app/internal/shared"
)

// UserLookup finds users by email.
type UserLookup interface {
	FindByEmail(ctx context.Context, email string) (User, error)
}

// CompanyLookup loads companies by id.
type CompanyLookup interface {
	Get(ctx context.Context, id int64) (companies.Company, error)
}

// CompanyResolver derives the current company from the acting user.
// Without an actor in context the configured fallback email is used.
type CompanyResolver struct {
	users         UserLookup
	companies     CompanyLookup
	fallbackEmail string
}

// NewCompanyResolver builds a resolver.
func NewCompanyResolver(users UserLookup, companies CompanyLookup, fallbackEmail string) *CompanyResolver {
	return &CompanyResolver{users: users, companies: companies, fallbackEmail: strings.ToLower(strings.TrimSpace(fallbackEmail))}
}

// CurrentCompany returns the company of the acting user. A missing actor,
// user or company is reported as shared.ErrCompanyUnresolved; storage
// failures are returned wrapped as they are.
func (r *CompanyResolver) CurrentCompany(ctx context.Context) (companies.Company, error) {
	email := shared.ActorEmailFromContext(ctx)
	if email == "" {
		email = r.fallbackEmail
	}
	if email == "" {
		return companies.Company{}, fmt.Errorf("%w: no acting user", shared.ErrCompanyUnresolved)
	}
	user, err := r.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return companies.Company{}, fmt.Errorf("%w: user %s", shared.ErrCompanyUnresolved, email)
		}
		return companies.Company{}, fmt.Errorf("users: resolve company of %s: %w", email, err)
	}
	company, err := r.companies.Get(ctx, user.CompanyID)
	if err != nil {
		if errors.Is(err, companies.ErrNotFound) {
			return companies.Company{}, fmt.Errorf("%w: company %d", shared.ErrCompanyUnresolved, user.CompanyID)
		}
		return companies.Company{}, fmt.Errorf("users: load company %d: %w", user.CompanyID, err)
	}
	return company, nil
}
