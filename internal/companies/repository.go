package companies

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accounting-app/accounting-app/internal/platform/db"
	"github.com/accounting-app/accounting-app/internal/shared"
)

// Repository persists companies. Every read skips soft-deleted rows.
type Repository interface {
	List(ctx context.Context, page shared.PageRequest) ([]Company, int, error)
	Get(ctx context.Context, id int64) (Company, error)
	FindByEmail(ctx context.Context, email string) (Company, error)
	Create(ctx context.Context, company Company) (Company, error)
	Update(ctx context.Context, company Company) error
	SetStatus(ctx context.Context, id int64, status Status, enabled bool) error
	EnabledIDs(ctx context.Context) ([]int64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const selectCompany = `SELECT id, title, address1, address2, zip, representative, email,
	establishment_date, enabled, company_status, phone FROM companies`

func scanCompany(row pgx.CollectableRow) (Company, error) {
	var (
		c           Company
		established pgtype.Date
		status      string
	)
	err := row.Scan(&c.ID, &c.Title, &c.Address1, &c.Address2, &c.Zip, &c.Representative, &c.Email,
		&established, &c.Enabled, &status, &c.Phone)
	if err != nil {
		return Company{}, err
	}
	if established.Valid {
		t := established.Time
		c.EstablishmentDate = &t
	}
	c.Status = Status(status)
	return c, nil
}

func dateParam(t *Company) pgtype.Date {
	if t.EstablishmentDate == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t.EstablishmentDate, Valid: true}
}

func (r *repository) List(ctx context.Context, page shared.PageRequest) ([]Company, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM companies WHERE is_deleted = FALSE`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, selectCompany+` WHERE is_deleted = FALSE ORDER BY title, id LIMIT $1 OFFSET $2`,
		page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	out, err := pgx.CollectRows(rows, scanCompany)
	return out, total, err
}

func (r *repository) one(ctx context.Context, where string, arg any) (Company, error) {
	rows, err := r.pool.Query(ctx, selectCompany+` WHERE is_deleted = FALSE AND `+where, arg)
	if err != nil {
		return Company{}, err
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCompany)
	if errors.Is(err, pgx.ErrNoRows) {
		return Company{}, ErrNotFound
	}
	return c, err
}

func (r *repository) Get(ctx context.Context, id int64) (Company, error) {
	return r.one(ctx, `id = $1`, id)
}

func (r *repository) FindByEmail(ctx context.Context, email string) (Company, error) {
	return r.one(ctx, `email = $1`, email)
}

func (r *repository) Create(ctx context.Context, c Company) (Company, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO companies
		(title, address1, address2, zip, representative, email, establishment_date, enabled, company_status, phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		c.Title, c.Address1, c.Address2, c.Zip, c.Representative, c.Email, dateParam(&c), c.Enabled, string(c.Status), c.Phone,
	).Scan(&c.ID)
	if db.IsUniqueViolation(err) {
		return Company{}, ErrDuplicate
	}
	if err != nil {
		return Company{}, err
	}
	return c, nil
}

func (r *repository) Update(ctx context.Context, c Company) error {
	tag, err := r.pool.Exec(ctx, `UPDATE companies SET title = $1, address1 = $2, address2 = $3, zip = $4,
		representative = $5, establishment_date = $6, phone = $7
		WHERE id = $8 AND is_deleted = FALSE`,
		c.Title, c.Address1, c.Address2, c.Zip, c.Representative, dateParam(&c), c.Phone, c.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) SetStatus(ctx context.Context, id int64, status Status, enabled bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE companies SET company_status = $1, enabled = $2 WHERE id = $3 AND is_deleted = FALSE`,
		string(status), enabled, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) EnabledIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM companies WHERE is_deleted = FALSE AND enabled ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}
