package incentive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence for incentives.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const assignmentColumns = `id, leader_id, consultant_id, project_id, incentive_rate,
	start_date, end_date, is_active, created_at, updated_at`

func scanAssignment(row pgx.Row) (*FractionalIncentive, error) {
	var a FractionalIncentive
	var projectID pgtype.Int8
	var endDate pgtype.Date

	err := row.Scan(
		&a.ID, &a.LeaderID, &a.ConsultantID, &projectID, &a.IncentiveRate,
		&a.StartDate, &endDate, &a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: incentive assignment", httpx.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if projectID.Valid {
		a.ProjectID = &projectID.Int64
	}
	if endDate.Valid {
		d := endDate.Time
		a.EndDate = &d
	}
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Create inserts a new assignment. The partial unique indexes on
// (leader, consultant, project) and (leader, consultant) WHERE project IS NULL
// enforce the triple uniqueness with NULL as its own key value.
func (r *Repository) Create(ctx context.Context, input AssignmentInput) (*FractionalIncentive, error) {
	query := `
		INSERT INTO fractional_incentives (
			leader_id, consultant_id, project_id, incentive_rate,
			start_date, end_date, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING ` + assignmentColumns

	row := r.pool.QueryRow(ctx, query,
		input.LeaderID, input.ConsultantID, nullableID(input.ProjectID), input.IncentiveRate,
		input.StartDate, nullableDate(input.EndDate), input.IsActive,
	)
	a, err := scanAssignment(row)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: assignment for this leader, consultant and project already exists", httpx.ErrDuplicate)
	}
	return a, err
}

// Update replaces the writable fields of an assignment.
func (r *Repository) Update(ctx context.Context, id int64, input AssignmentInput) (*FractionalIncentive, error) {
	query := `
		UPDATE fractional_incentives
		SET leader_id = $2, consultant_id = $3, project_id = $4, incentive_rate = $5,
			start_date = $6, end_date = $7, is_active = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + assignmentColumns

	row := r.pool.QueryRow(ctx, query,
		id, input.LeaderID, input.ConsultantID, nullableID(input.ProjectID), input.IncentiveRate,
		input.StartDate, nullableDate(input.EndDate), input.IsActive,
	)
	a, err := scanAssignment(row)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: assignment for this leader, consultant and project already exists", httpx.ErrDuplicate)
	}
	return a, err
}

// Get retrieves one assignment.
func (r *Repository) Get(ctx context.Context, id int64) (*FractionalIncentive, error) {
	query := `SELECT ` + assignmentColumns + ` FROM fractional_incentives WHERE id = $1`
	return scanAssignment(r.pool.QueryRow(ctx, query, id))
}

// List returns all assignments, newest first.
func (r *Repository) List(ctx context.Context) ([]FractionalIncentive, error) {
	query := `SELECT ` + assignmentColumns + ` FROM fractional_incentives ORDER BY created_at DESC`
	return r.queryAssignments(ctx, query)
}

// ListByLeader returns assignments where the user is the leader.
func (r *Repository) ListByLeader(ctx context.Context, leaderID int64) ([]FractionalIncentive, error) {
	query := `SELECT ` + assignmentColumns + ` FROM fractional_incentives WHERE leader_id = $1 ORDER BY created_at DESC`
	return r.queryAssignments(ctx, query, leaderID)
}

// ListByConsultant returns assignments where the user is the consultant.
func (r *Repository) ListByConsultant(ctx context.Context, consultantID int64) ([]FractionalIncentive, error) {
	query := `SELECT ` + assignmentColumns + ` FROM fractional_incentives WHERE consultant_id = $1 ORDER BY created_at DESC`
	return r.queryAssignments(ctx, query, consultantID)
}

// ListActiveForConsultant returns active assignments whose window covers the
// given date. Implements the engine's AssignmentSource.
func (r *Repository) ListActiveForConsultant(ctx context.Context, consultantID int64, onDate time.Time) ([]FractionalIncentive, error) {
	query := `SELECT ` + assignmentColumns + `
		FROM fractional_incentives
		WHERE consultant_id = $1
			AND is_active = TRUE
			AND start_date <= $2
			AND (end_date IS NULL OR end_date >= $2)`
	return r.queryAssignments(ctx, query, consultantID, onDate)
}

func (r *Repository) queryAssignments(ctx context.Context, query string, args ...any) ([]FractionalIncentive, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FractionalIncentive
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Deactivate flips is_active off, preserving history.
func (r *Repository) Deactivate(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE fractional_incentives SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: incentive assignment", httpx.ErrNotFound)
	}
	return nil
}

// Delete hard-deletes an assignment.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM fractional_incentives WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: incentive assignment", httpx.ErrNotFound)
	}
	return nil
}

// ListEarningsByLeader returns the earning ledger for a leader, newest first.
func (r *Repository) ListEarningsByLeader(ctx context.Context, leaderID int64) ([]IncentiveEarning, error) {
	query := `
		SELECT id, time_entry_id, leader_id, fractional_incentive_id, incentive_amount, created_at
		FROM incentive_earnings
		WHERE leader_id = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, leaderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IncentiveEarning
	for rows.Next() {
		var e IncentiveEarning
		if err := rows.Scan(&e.ID, &e.TimeEntryID, &e.LeaderID, &e.FractionalIncentiveID, &e.IncentiveAmount, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullableID(id *int64) pgtype.Int8 {
	if id == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *id, Valid: true}
}

func nullableDate(d *time.Time) pgtype.Date {
	if d == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *d, Valid: true}
}
