package users

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	FindByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, u User) (User, error)
}

// Service handles user business logic.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
	cost     int
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, validate: validator.New(), cost: bcrypt.DefaultCost}
}

// WithCost overrides the bcrypt cost, mostly to keep tests fast.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

// Register stores a new enabled user with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, reg Registration) (User, error) {
	reg.Email = normaliseEmail(reg.Email)
	if err := s.validate.Struct(reg); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return User{}, err
	}
	return s.repo.Create(ctx, User{
		Email:        reg.Email,
		CompanyID:    reg.CompanyID,
		PasswordHash: string(hash),
		Enabled:      true,
	})
}

// FindByEmail returns the user with the given email.
func (s *Service) FindByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.FindByEmail(ctx, normaliseEmail(email))
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil || !user.Enabled {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
