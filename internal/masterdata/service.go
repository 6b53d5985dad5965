package masterdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

// RepositoryPort defines data access methods for clients and projects.
type RepositoryPort interface {
	CreateClient(ctx context.Context, input ClientInput) (*Client, error)
	UpdateClient(ctx context.Context, id int64, input ClientInput) (*Client, error)
	GetClient(ctx context.Context, id int64) (*Client, error)
	ListClients(ctx context.Context) ([]Client, error)
	CreateProject(ctx context.Context, input ProjectInput) (*Project, error)
	UpdateProject(ctx context.Context, id int64, input ProjectInput) (*Project, error)
	GetProject(ctx context.Context, id int64) (*Project, error)
	ListProjects(ctx context.Context, clientID int64) ([]Project, error)
}

// Service handles client and project business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func validateClient(input ClientInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: client name is required", httpx.ErrValidation)
	}
	return nil
}

func validateProject(input ProjectInput) error {
	if input.ClientID <= 0 {
		return fmt.Errorf("%w: client is required", httpx.ErrValidation)
	}
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: project name is required", httpx.ErrValidation)
	}
	if input.BillingRate != nil && *input.BillingRate < 0 {
		return fmt.Errorf("%w: billing rate must not be negative", httpx.ErrValidation)
	}
	return nil
}

// CreateClient validates and stores a client.
func (s *Service) CreateClient(ctx context.Context, input ClientInput) (*Client, error) {
	if err := validateClient(input); err != nil {
		return nil, err
	}
	return s.repo.CreateClient(ctx, input)
}

// UpdateClient validates and updates a client.
func (s *Service) UpdateClient(ctx context.Context, id int64, input ClientInput) (*Client, error) {
	if err := validateClient(input); err != nil {
		return nil, err
	}
	return s.repo.UpdateClient(ctx, id, input)
}

// GetClient returns one client.
func (s *Service) GetClient(ctx context.Context, id int64) (*Client, error) {
	return s.repo.GetClient(ctx, id)
}

// ListClients returns all clients.
func (s *Service) ListClients(ctx context.Context) ([]Client, error) {
	return s.repo.ListClients(ctx)
}

// CreateProject validates and stores a project.
func (s *Service) CreateProject(ctx context.Context, input ProjectInput) (*Project, error) {
	if err := validateProject(input); err != nil {
		return nil, err
	}
	return s.repo.CreateProject(ctx, input)
}

// UpdateProject validates and updates a project.
func (s *Service) UpdateProject(ctx context.Context, id int64, input ProjectInput) (*Project, error) {
	if err := validateProject(input); err != nil {
		return nil, err
	}
	return s.repo.UpdateProject(ctx, id, input)
}

// GetProject returns one project.
func (s *Service) GetProject(ctx context.Context, id int64) (*Project, error) {
	return s.repo.GetProject(ctx, id)
}

// ListProjects returns projects, optionally scoped to one client.
func (s *Service) ListProjects(ctx context.Context, clientID int64) ([]Project, error) {
	return s.repo.ListProjects(ctx, clientID)
}
