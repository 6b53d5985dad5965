package masterdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence for clients and projects.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const clientColumns = `id, name, is_active, created_at, updated_at`

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.Name, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: client", httpx.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateClient inserts a client.
func (r *Repository) CreateClient(ctx context.Context, input ClientInput) (*Client, error) {
	client, err := scanClient(r.pool.QueryRow(ctx, `
		INSERT INTO clients (name, is_active, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING `+clientColumns, input.Name, input.IsActive))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: client name already exists", httpx.ErrDuplicate)
	}
	return client, err
}

// UpdateClient replaces the writable fields of a client.
func (r *Repository) UpdateClient(ctx context.Context, id int64, input ClientInput) (*Client, error) {
	client, err := scanClient(r.pool.QueryRow(ctx, `
		UPDATE clients SET name = $2, is_active = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+clientColumns, id, input.Name, input.IsActive))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: client name already exists", httpx.ErrDuplicate)
	}
	return client, err
}

// GetClient retrieves one client.
func (r *Repository) GetClient(ctx context.Context, id int64) (*Client, error) {
	return scanClient(r.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
}

// ListClients returns all clients.
func (r *Repository) ListClients(ctx context.Context) ([]Client, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, *c)
	}
	return clients, rows.Err()
}

const projectColumns = `id, client_id, name, billing_rate, is_active, created_at, updated_at`

func scanProject(row pgx.Row) (*Project, error) {
	var p Project
	var rate pgtype.Float8
	err := row.Scan(&p.ID, &p.ClientID, &p.Name, &rate, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: project", httpx.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if rate.Valid {
		v := rate.Float64
		p.BillingRate = &v
	}
	return &p, nil
}

func rateOrNull(rate *float64) pgtype.Float8 {
	if rate == nil {
		return pgtype.Float8{}
	}
	return pgtype.Float8{Float64: *rate, Valid: true}
}

// CreateProject inserts a project.
func (r *Repository) CreateProject(ctx context.Context, input ProjectInput) (*Project, error) {
	project, err := scanProject(r.pool.QueryRow(ctx, `
		INSERT INTO projects (client_id, name, billing_rate, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING `+projectColumns,
		input.ClientID, input.Name, rateOrNull(input.BillingRate), input.IsActive))
	if isForeignKeyViolation(err) {
		return nil, fmt.Errorf("%w: client does not exist", httpx.ErrValidation)
	}
	return project, err
}

// UpdateProject replaces the writable fields of a project.
func (r *Repository) UpdateProject(ctx context.Context, id int64, input ProjectInput) (*Project, error) {
	project, err := scanProject(r.pool.QueryRow(ctx, `
		UPDATE projects SET client_id = $2, name = $3, billing_rate = $4, is_active = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+projectColumns,
		id, input.ClientID, input.Name, rateOrNull(input.BillingRate), input.IsActive))
	if isForeignKeyViolation(err) {
		return nil, fmt.Errorf("%w: client does not exist", httpx.ErrValidation)
	}
	return project, err
}

// GetProject retrieves one project.
func (r *Repository) GetProject(ctx context.Context, id int64) (*Project, error) {
	return scanProject(r.pool.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
}

// ListProjects returns projects, optionally scoped to one client.
func (r *Repository) ListProjects(ctx context.Context, clientID int64) ([]Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	args := []any{}
	if clientID > 0 {
		query += ` WHERE client_id = $1`
		args = append(args, clientID)
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
