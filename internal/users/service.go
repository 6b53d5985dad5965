package users

import (
	"context"
	"fmt"

	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	UpdateBillableRate(ctx context.Context, id int64, rate *float64) (*User, error)
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

// SetBillableRate updates a user's default rate. A nil rate marks the user as
// unbillable; negative rates are rejected.
func (s *Service) SetBillableRate(ctx context.Context, id int64, rate *float64) (*User, error) {
	if rate != nil && *rate < 0 {
		return nil, fmt.Errorf("%w: billable rate must not be negative", httpx.ErrValidation)
	}
	return s.repo.UpdateBillableRate(ctx, id, rate)
}
