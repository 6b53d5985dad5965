package timesheet

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-ops/vantage-ops/internal/platform/db"
	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence for time entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `id, user_id, client_id, project_id, entry_date, hours, description,
	status, reviewer_id, reviewed_at,
	consultant_rate, client_rate, consultant_amount, client_amount, margin,
	created_at, updated_at`

func scanEntry(row pgx.Row) (*TimeEntry, error) {
	var e TimeEntry
	var reviewerID pgtype.Int8
	var reviewedAt pgtype.Timestamptz
	var consultantRate, clientRate, consultantAmount, clientAmount, margin pgtype.Float8

	err := row.Scan(
		&e.ID, &e.UserID, &e.ClientID, &e.ProjectID, &e.EntryDate, &e.Hours, &e.Description,
		&e.Status, &reviewerID, &reviewedAt,
		&consultantRate, &clientRate, &consultantAmount, &clientAmount, &margin,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: time entry", httpx.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if reviewerID.Valid {
		e.ReviewerID = &reviewerID.Int64
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		e.ReviewedAt = &t
	}
	e.ConsultantRate = nullableFloat(consultantRate)
	e.ClientRate = nullableFloat(clientRate)
	e.ConsultantAmount = nullableFloat(consultantAmount)
	e.ClientAmount = nullableFloat(clientAmount)
	e.Margin = nullableFloat(margin)

	return &e, nil
}

// CreateEntry inserts a new DRAFT entry.
func (r *Repository) CreateEntry(ctx context.Context, userID int64, input EntryInput) (*TimeEntry, error) {
	query := `
		INSERT INTO time_entries (
			user_id, client_id, project_id, entry_date, hours, description,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, 'DRAFT', NOW(), NOW())
		RETURNING ` + entryColumns

	return scanEntry(r.pool.QueryRow(ctx, query,
		userID, input.ClientID, input.ProjectID, input.EntryDate, input.Hours, input.Description,
	))
}

// UpdateEntry replaces the writable fields of a draft entry.
func (r *Repository) UpdateEntry(ctx context.Context, id int64, input EntryInput) (*TimeEntry, error) {
	query := `
		UPDATE time_entries
		SET client_id = $2, project_id = $3, entry_date = $4, hours = $5,
			description = $6, updated_at = NOW()
		WHERE id = $1 AND status = 'DRAFT'
		RETURNING ` + entryColumns

	entry, err := scanEntry(r.pool.QueryRow(ctx, query,
		id, input.ClientID, input.ProjectID, input.EntryDate, input.Hours, input.Description,
	))
	if errors.Is(err, httpx.ErrNotFound) {
		return nil, fmt.Errorf("%w: draft time entry", httpx.ErrNotFound)
	}
	return entry, err
}

// DeleteEntry removes a draft entry.
func (r *Repository) DeleteEntry(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM time_entries WHERE id = $1 AND status = 'DRAFT'`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: draft time entry", httpx.ErrNotFound)
	}
	return nil
}

// GetEntry retrieves one entry.
func (r *Repository) GetEntry(ctx context.Context, id int64) (*TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries WHERE id = $1`
	return scanEntry(r.pool.QueryRow(ctx, query, id))
}

// ListEntries returns entries matching the filter, newest first.
func (r *Repository) ListEntries(ctx context.Context, filter EntryFilter) ([]TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries WHERE 1=1`
	args := []any{}
	argNum := 1

	if filter.UserID > 0 {
		query += fmt.Sprintf(" AND user_id = $%d", argNum)
		args = append(args, filter.UserID)
		argNum++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filter.Status))
		argNum++
	}
	if !filter.From.IsZero() {
		query += fmt.Sprintf(" AND entry_date >= $%d", argNum)
		args = append(args, filter.From)
		argNum++
	}
	if !filter.To.IsZero() {
		query += fmt.Sprintf(" AND entry_date <= $%d", argNum)
		args = append(args, filter.To)
		argNum++
	}

	query += " ORDER BY entry_date DESC, id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []TimeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// MarkSubmitted flips a draft entry to SUBMITTED.
func (r *Repository) MarkSubmitted(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE time_entries
		SET status = 'SUBMITTED', updated_at = NOW()
		WHERE id = $1 AND status = 'DRAFT'`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: entry not found or not in DRAFT status", httpx.ErrValidation)
	}
	return nil
}

// MarkRejected flips a submitted entry to REJECTED.
func (r *Repository) MarkRejected(ctx context.Context, id, reviewerID int64) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE time_entries
		SET status = 'REJECTED', reviewer_id = $2, reviewed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'SUBMITTED'`, id, reviewerID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: entry not found or not in SUBMITTED status", httpx.ErrValidation)
	}
	return nil
}

// BillingRates reads the user's billable rate and the project's billing rate.
func (r *Repository) BillingRates(ctx context.Context, userID, projectID int64) (*float64, *float64, error) {
	var billableRate pgtype.Float8
	if err := r.pool.QueryRow(ctx,
		`SELECT billable_rate FROM users WHERE id = $1`, userID).Scan(&billableRate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("%w: user", httpx.ErrNotFound)
		}
		return nil, nil, err
	}

	var billingRate pgtype.Float8
	if err := r.pool.QueryRow(ctx,
		`SELECT billing_rate FROM projects WHERE id = $1`, projectID).Scan(&billingRate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("%w: project", httpx.ErrNotFound)
		}
		return nil, nil, err
	}

	return nullableFloat(billableRate), nullableFloat(billingRate), nil
}

// ApproveEntry applies the status flip, the frozen snapshot and the earning
// inserts in one transaction. A concurrent approval loses the status guard
// and surfaces as a validation error rather than a doubled ledger.
func (r *Repository) ApproveEntry(ctx context.Context, record ApprovalRecord) (*TimeEntry, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE time_entries
			SET status = 'APPROVED', reviewer_id = $2, reviewed_at = NOW(),
				consultant_rate = $3, client_rate = $4,
				consultant_amount = $5, client_amount = $6, margin = $7,
				updated_at = NOW()
			WHERE id = $1 AND status = 'SUBMITTED'`,
			record.EntryID, record.ReviewerID,
			floatOrNull(record.Snapshot.ConsultantRate), floatOrNull(record.Snapshot.ClientRate),
			floatOrNull(record.Snapshot.ConsultantAmount), floatOrNull(record.Snapshot.ClientAmount),
			floatOrNull(record.Snapshot.Margin),
		)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("%w: entry not found or not in SUBMITTED status", httpx.ErrValidation)
		}

		for _, draft := range record.Earnings {
			if _, err := tx.Exec(ctx, `
				INSERT INTO incentive_earnings (
					time_entry_id, leader_id, fractional_incentive_id, incentive_amount, created_at
				) VALUES ($1, $2, $3, $4, NOW())`,
				record.EntryID, draft.LeaderID, draft.FractionalIncentiveID, draft.IncentiveAmount,
			); err != nil {
				return fmt.Errorf("timesheet: insert earning: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetEntry(ctx, record.EntryID)
}

func nullableFloat(f pgtype.Float8) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func floatOrNull(f *float64) pgtype.Float8 {
	if f == nil {
		return pgtype.Float8{}
	}
	return pgtype.Float8{Float64: *f, Valid: true}
}
