package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, name, role, billable_rate, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var rate pgtype.Float8
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &rate, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: user", httpx.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if rate.Valid {
		v := rate.Float64
		u.BillableRate = &v
	}
	return &u, nil
}

// ListUsers returns all users.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// GetUser retrieves one user.
func (r *Repository) GetUser(ctx context.Context, id int64) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// UpdateBillableRate sets a user's current default rate.
func (r *Repository) UpdateBillableRate(ctx context.Context, id int64, rate *float64) (*User, error) {
	var value pgtype.Float8
	if rate != nil {
		value = pgtype.Float8{Float64: *rate, Valid: true}
	}
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE users SET billable_rate = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns, id, value))
}
