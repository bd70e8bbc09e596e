package clientvendors

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accounting-app/accounting-app/internal/platform/db"
)

// Repository persists client/vendors.
type Repository interface {
	List(ctx context.Context, companyID int64) ([]ClientVendor, error)
	FindByName(ctx context.Context, companyName string) (ClientVendor, error)
	Create(ctx context.Context, cv ClientVendor) (ClientVendor, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const selectClientVendor = `SELECT id, company_id, company_name, phone, email, created_at FROM client_vendors`

func scanClientVendor(row pgx.CollectableRow) (ClientVendor, error) {
	var cv ClientVendor
	err := row.Scan(&cv.ID, &cv.CompanyID, &cv.CompanyName, &cv.Phone, &cv.Email, &cv.CreatedAt)
	return cv, err
}

func (r *repository) List(ctx context.Context, companyID int64) ([]ClientVendor, error) {
	query := selectClientVendor
	args := []any{}
	if companyID > 0 {
		query += ` WHERE company_id = $1`
		args = append(args, companyID)
	}
	rows, err := r.db.Query(ctx, query+` ORDER BY company_name`, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanClientVendor)
}

func (r *repository) FindByName(ctx context.Context, companyName string) (ClientVendor, error) {
	rows, err := r.db.Query(ctx, selectClientVendor+` WHERE company_name = $1`, companyName)
	if err != nil {
		return ClientVendor{}, err
	}
	cv, err := pgx.CollectExactlyOneRow(rows, scanClientVendor)
	if errors.Is(err, pgx.ErrNoRows) {
		return ClientVendor{}, ErrNotFound
	}
	return cv, err
}

func (r *repository) Create(ctx context.Context, cv ClientVendor) (ClientVendor, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO client_vendors (company_id, company_name, phone, email)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		cv.CompanyID, cv.CompanyName, cv.Phone, cv.Email).Scan(&cv.ID, &cv.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ClientVendor{}, ErrDuplicate
	}
	if err != nil {
		return ClientVendor{}, err
	}
	return cv, nil
}
