package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accounting-app/accounting-app/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindByEmail returns the user registered under email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `SELECT id, email, company_id, password_hash, enabled, created_at
		FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.CompanyID, &u.PasswordHash, &u.Enabled, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// Create inserts a user.
func (r *Repository) Create(ctx context.Context, u User) (User, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO users (email, company_id, password_hash, enabled)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		u.Email, u.CompanyID, u.PasswordHash, u.Enabled).Scan(&u.ID, &u.CreatedAt)
	if db.IsUniqueViolation(err) {
		return User{}, ErrDuplicate
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}
