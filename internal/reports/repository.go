package reports

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

// Repository runs the aggregate queries over frozen entry amounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// DirectEarnings sums the frozen consultant amounts of a user's approved
// entries dated in the calendar year.
func (r *Repository) DirectEarnings(ctx context.Context, userID int64, year int) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(consultant_amount), 0)
		FROM time_entries
		WHERE user_id = $1 AND status = 'APPROVED'
			AND EXTRACT(YEAR FROM entry_date) = $2`,
		userID, year).Scan(&total)
	return total, err
}

// LeaderEarnings sums a user's incentive earnings for the year, counted by
// earning creation date and only where the underlying entry is approved.
func (r *Repository) LeaderEarnings(ctx context.Context, userID int64, year int) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(ie.incentive_amount), 0)
		FROM incentive_earnings ie
		JOIN time_entries te ON te.id = ie.time_entry_id
		WHERE ie.leader_id = $1 AND te.status = 'APPROVED'
			AND EXTRACT(YEAR FROM ie.created_at) = $2`,
		userID, year).Scan(&total)
	return total, err
}

func windowClause(window Window, args []any, column string) (string, []any) {
	clause := ""
	if !window.From.IsZero() {
		args = append(args, window.From)
		clause += fmt.Sprintf(" AND %s >= $%d", column, len(args))
	}
	if !window.To.IsZero() {
		args = append(args, window.To)
		clause += fmt.Sprintf(" AND %s <= $%d", column, len(args))
	}
	return clause, args
}

// ProjectTotals aggregates the approved entries of one project.
func (r *Repository) ProjectTotals(ctx context.Context, projectID int64, window Window) (*ProjectProfitability, error) {
	var name string
	err := r.pool.QueryRow(ctx, `SELECT name FROM projects WHERE id = $1`, projectID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: project", httpx.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	args := []any{projectID}
	clause, args := windowClause(window, args, "entry_date")

	report := &ProjectProfitability{ProjectID: projectID, ProjectName: name}
	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(hours), 0), COALESCE(SUM(client_amount), 0),
			COALESCE(SUM(consultant_amount), 0), COALESCE(SUM(margin), 0)
		FROM time_entries
		WHERE project_id = $1 AND status = 'APPROVED'`+clause,
		args...,
	).Scan(&report.Hours, &report.ClientAmount, &report.ConsultantAmount, &report.Margin)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ProjectByConsultant breaks a project's aggregates down per consultant.
func (r *Repository) ProjectByConsultant(ctx context.Context, projectID int64, window Window) ([]ConsultantBreakdown, error) {
	args := []any{projectID}
	clause, args := windowClause(window, args, "te.entry_date")

	rows, err := r.pool.Query(ctx, `
		SELECT te.user_id, u.name, COALESCE(SUM(te.hours), 0),
			COALESCE(SUM(te.client_amount), 0), COALESCE(SUM(te.consultant_amount), 0),
			COALESCE(SUM(te.margin), 0)
		FROM time_entries te
		JOIN users u ON u.id = te.user_id
		WHERE te.project_id = $1 AND te.status = 'APPROVED'`+clause+`
		GROUP BY te.user_id, u.name
		ORDER BY u.name`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConsultantBreakdown
	for rows.Next() {
		var b ConsultantBreakdown
		if err := rows.Scan(&b.UserID, &b.ConsultantName, &b.Hours,
			&b.ClientAmount, &b.ConsultantAmount, &b.Margin); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ProjectIncentives sums the incentive earnings attached to a project's
// approved entries.
func (r *Repository) ProjectIncentives(ctx context.Context, projectID int64, window Window) (float64, error) {
	args := []any{projectID}
	clause, args := windowClause(window, args, "te.entry_date")

	var total float64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(ie.incentive_amount), 0)
		FROM incentive_earnings ie
		JOIN time_entries te ON te.id = ie.time_entry_id
		WHERE te.project_id = $1 AND te.status = 'APPROVED'`+clause,
		args...,
	).Scan(&total)
	return total, err
}

const summaryQuery = `
	SELECT %[1]s.id, %[1]s.name, COALESCE(SUM(te.hours), 0),
		COALESCE(SUM(te.client_amount), 0), COALESCE(SUM(te.consultant_amount), 0),
		COALESCE(SUM(te.margin), 0), COALESCE(SUM(ie.amount), 0)
	FROM time_entries te
	JOIN %[2]s %[1]s ON %[1]s.id = te.%[3]s
	LEFT JOIN (
		SELECT time_entry_id, SUM(incentive_amount) AS amount
		FROM incentive_earnings GROUP BY time_entry_id
	) ie ON ie.time_entry_id = te.id
	WHERE te.status = 'APPROVED'%[4]s
	GROUP BY %[1]s.id, %[1]s.name
	ORDER BY %[1]s.id`

func (r *Repository) summaryRows(ctx context.Context, query string, args []any) ([]SummaryRow, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SummaryRow
	for rows.Next() {
		var row SummaryRow
		if err := rows.Scan(&row.ID, &row.Name, &row.Hours, &row.ClientAmount,
			&row.ConsultantAmount, &row.Margin, &row.IncentiveAmount); err != nil {
			return nil, err
		}
		row.MarginPercentage = marginPercent(row.Margin, row.ClientAmount)
		out = append(out, row)
	}
	return out, rows.Err()
}

// CompanyByProject aggregates approved entries in the window grouped by
// project.
func (r *Repository) CompanyByProject(ctx context.Context, window Window) ([]SummaryRow, error) {
	clause, args := windowClause(window, nil, "te.entry_date")
	return r.summaryRows(ctx, fmt.Sprintf(summaryQuery, "p", "projects", "project_id", clause), args)
}

// CompanyByClient aggregates approved entries in the window grouped by
// client.
func (r *Repository) CompanyByClient(ctx context.Context, window Window) ([]SummaryRow, error) {
	clause, args := windowClause(window, nil, "te.entry_date")
	return r.summaryRows(ctx, fmt.Sprintf(summaryQuery, "c", "clients", "client_id", clause), args)
}
