package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
	"github.com/vantage-ops/vantage-ops/internal/platform/secrets"
)

// Repository persists billing credentials and customer mappings. Credentials
// are sealed with the app-wide key before they touch the database.
type Repository struct {
	pool *pgxpool.Pool
	box  *secrets.Box
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, box *secrets.Box) *Repository {
	return &Repository{pool: pool, box: box}
}

// SaveCredentials seals and upserts the organization credentials. There is a
// single credentials row per deployment.
func (r *Repository) SaveCredentials(ctx context.Context, creds Credentials) error {
	payload, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("billing: encode credentials: %w", err)
	}
	sealed, err := r.box.Seal(string(payload))
	if err != nil {
		return fmt.Errorf("billing: seal credentials: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO billing_credentials (id, payload, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`,
		sealed)
	return err
}

// Credentials loads and opens the stored credentials. Decryption happens at
// call time only.
func (r *Repository) Credentials(ctx context.Context) (*Credentials, error) {
	var sealed string
	err := r.pool.QueryRow(ctx,
		`SELECT payload FROM billing_credentials WHERE id = 1`).Scan(&sealed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: billing credentials not configured", httpx.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	plaintext, err := r.box.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("billing: open credentials: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal([]byte(plaintext), &creds); err != nil {
		return nil, fmt.Errorf("billing: decode credentials: %w", err)
	}
	return &creds, nil
}

const mappingColumns = `id, client_id, external_customer_id, external_customer_name, created_at, updated_at`

func scanMapping(row pgx.Row) (*CustomerMapping, error) {
	var m CustomerMapping
	err := row.Scan(&m.ID, &m.ClientID, &m.ExternalCustomerID, &m.ExternalCustomerName,
		&m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: customer mapping", httpx.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMapping links a client to a provider customer.
func (r *Repository) CreateMapping(ctx context.Context, m CustomerMapping) (*CustomerMapping, error) {
	mapping, err := scanMapping(r.pool.QueryRow(ctx, `
		INSERT INTO customer_mappings (client_id, external_customer_id, external_customer_name, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING `+mappingColumns,
		m.ClientID, m.ExternalCustomerID, m.ExternalCustomerName))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: client already has a customer mapping", httpx.ErrDuplicate)
	}
	return mapping, err
}

// UpdateMapping replaces the external customer of a mapping.
func (r *Repository) UpdateMapping(ctx context.Context, id int64, m CustomerMapping) (*CustomerMapping, error) {
	return scanMapping(r.pool.QueryRow(ctx, `
		UPDATE customer_mappings
		SET external_customer_id = $2, external_customer_name = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+mappingColumns,
		id, m.ExternalCustomerID, m.ExternalCustomerName))
}

// DeleteMapping removes a mapping.
func (r *Repository) DeleteMapping(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM customer_mappings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: customer mapping", httpx.ErrNotFound)
	}
	return nil
}

// ListMappings returns all mappings.
func (r *Repository) ListMappings(ctx context.Context) ([]CustomerMapping, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+mappingColumns+` FROM customer_mappings ORDER BY client_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mappings []CustomerMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, *m)
	}
	return mappings, rows.Err()
}

// MappingByClientID resolves the mapping for one client.
func (r *Repository) MappingByClientID(ctx context.Context, clientID int64) (*CustomerMapping, error) {
	return scanMapping(r.pool.QueryRow(ctx,
		`SELECT `+mappingColumns+` FROM customer_mappings WHERE client_id = $1`, clientID))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
