package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-ops/vantage-ops/internal/platform/db"
	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence for invoice batches.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const batchColumns = `id, reference, start_date, end_date, status, generated_by,
	notes, submitted_at, completed_at, created_at, updated_at`

const invoiceColumns = `id, batch_id, client_id, client_name, status, total_hours, total_amount,
	external_invoice_id, external_invoice_number, due_date, submitted_at, failure_reason, notes,
	created_at, updated_at`

const lineItemColumns = `id, invoice_id, time_entry_id, user_id, project_id,
	employee_name, project_name, description, hours, amount, rate, entry_date`

func scanBatch(row pgx.Row) (*InvoiceBatch, error) {
	var b InvoiceBatch
	var notes pgtype.Text
	var submittedAt, completedAt pgtype.Timestamptz

	err := row.Scan(
		&b.ID, &b.Reference, &b.StartDate, &b.EndDate, &b.Status, &b.GeneratedBy,
		&notes, &submittedAt, &completedAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: invoice batch", httpx.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	b.Notes = notes.String
	b.SubmittedAt = nullableTime(submittedAt)
	b.CompletedAt = nullableTime(completedAt)
	return &b, nil
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var externalID, externalNumber, failureReason, notes pgtype.Text
	var dueDate pgtype.Date
	var submittedAt pgtype.Timestamptz

	err := row.Scan(
		&inv.ID, &inv.BatchID, &inv.ClientID, &inv.ClientName, &inv.Status,
		&inv.TotalHours, &inv.TotalAmount,
		&externalID, &externalNumber, &dueDate, &submittedAt, &failureReason, &notes,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: invoice", httpx.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	inv.ExternalInvoiceID = externalID.String
	inv.ExternalInvoiceNumber = externalNumber.String
	if dueDate.Valid {
		t := dueDate.Time
		inv.DueDate = &t
	}
	inv.SubmittedAt = nullableTime(submittedAt)
	inv.FailureReason = failureReason.String
	inv.Notes = notes.String
	return &inv, nil
}

func scanLineItem(row pgx.Row) (*InvoiceLineItem, error) {
	var li InvoiceLineItem
	err := row.Scan(
		&li.ID, &li.InvoiceID, &li.TimeEntryID, &li.UserID, &li.ProjectID,
		&li.EmployeeName, &li.ProjectName, &li.Description,
		&li.Hours, &li.Amount, &li.Rate, &li.EntryDate,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: invoice line item", httpx.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &li, nil
}

// ListApprovedEntries selects the approved entries in the window joined with
// their display names. Frozen amounts are read from the entry row, never from
// the live rate columns.
func (r *Repository) ListApprovedEntries(ctx context.Context, input GenerateInput) ([]BillableEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT te.id, te.user_id, u.name, te.client_id, c.name, te.project_id, p.name,
			te.entry_date, te.hours, te.client_amount
		FROM time_entries te
		JOIN users u ON u.id = te.user_id
		JOIN clients c ON c.id = te.client_id
		JOIN projects p ON p.id = te.project_id
		WHERE te.status = 'APPROVED' AND te.entry_date >= $1 AND te.entry_date <= $2
		ORDER BY te.entry_date, te.id`,
		input.StartDate, input.EndDate,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []BillableEntry
	for rows.Next() {
		var e BillableEntry
		var clientAmount pgtype.Float8
		if err := rows.Scan(
			&e.EntryID, &e.UserID, &e.EmployeeName, &e.ClientID, &e.ClientName,
			&e.ProjectID, &e.ProjectName, &e.EntryDate, &e.Hours, &clientAmount,
		); err != nil {
			return nil, err
		}
		if clientAmount.Valid {
			v := clientAmount.Float64
			e.ClientAmount = &v
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CreateBatch persists the batch, its invoices and its line items in one
// transaction.
func (r *Repository) CreateBatch(ctx context.Context, batch *InvoiceBatch) (*InvoiceBatch, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO invoice_batches (
				reference, start_date, end_date, status, generated_by, notes,
				created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
			RETURNING id, created_at, updated_at`,
			batch.Reference, batch.StartDate, batch.EndDate, batch.Status,
			batch.GeneratedBy, batch.Notes,
		).Scan(&batch.ID, &batch.CreatedAt, &batch.UpdatedAt); err != nil {
			return fmt.Errorf("invoicing: insert batch: %w", err)
		}

		for i := range batch.Invoices {
			inv := &batch.Invoices[i]
			inv.BatchID = batch.ID
			if err := tx.QueryRow(ctx, `
				INSERT INTO invoices (
					batch_id, client_id, client_name, status, total_hours, total_amount,
					notes, created_at, updated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
				RETURNING id, created_at, updated_at`,
				inv.BatchID, inv.ClientID, inv.ClientName, inv.Status,
				inv.TotalHours, inv.TotalAmount, inv.Notes,
			).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
				return fmt.Errorf("invoicing: insert invoice: %w", err)
			}

			for j := range inv.LineItems {
				li := &inv.LineItems[j]
				li.InvoiceID = inv.ID
				if err := tx.QueryRow(ctx, `
					INSERT INTO invoice_line_items (
						invoice_id, time_entry_id, user_id, project_id,
						employee_name, project_name, description,
						hours, amount, rate, entry_date
					) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
					RETURNING id`,
					li.InvoiceID, li.TimeEntryID, li.UserID, li.ProjectID,
					li.EmployeeName, li.ProjectName, li.Description,
					li.Hours, li.Amount, li.Rate, li.EntryDate,
				).Scan(&li.ID); err != nil {
					return fmt.Errorf("invoicing: insert line item: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// GetBatch retrieves a batch with its invoices and line items.
func (r *Repository) GetBatch(ctx context.Context, id int64) (*InvoiceBatch, error) {
	batch, err := scanBatch(r.pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM invoice_batches WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE batch_id = $1 ORDER BY client_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		batch.Invoices = append(batch.Invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range batch.Invoices {
		lines, err := r.listLineItems(ctx, batch.Invoices[i].ID)
		if err != nil {
			return nil, err
		}
		batch.Invoices[i].LineItems = lines
	}
	return batch, nil
}

// ListBatches returns batch headers, newest first, optionally filtered by
// status.
func (r *Repository) ListBatches(ctx context.Context, status BatchStatus) ([]InvoiceBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM invoice_batches`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []InvoiceBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *b)
	}
	return batches, rows.Err()
}

// GetInvoice retrieves one invoice with its line items.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	inv.LineItems, err = r.listLineItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *Repository) listLineItems(ctx context.Context, invoiceID int64) ([]InvoiceLineItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+lineItemColumns+` FROM invoice_line_items WHERE invoice_id = $1 ORDER BY user_id, project_id`,
		invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []InvoiceLineItem
	for rows.Next() {
		li, err := scanLineItem(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, *li)
	}
	return lines, rows.Err()
}

// UpdateInvoiceStatus flips an invoice status with a guard on the expected
// current status.
func (r *Repository) UpdateInvoiceStatus(ctx context.Context, id int64, from, to InvoiceStatus) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE invoices SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: invoice not found or not in %s status", httpx.ErrValidation, from)
	}
	return nil
}

// UpdateInvoiceNotes replaces the notes of a draft invoice.
func (r *Repository) UpdateInvoiceNotes(ctx context.Context, id int64, notes string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE invoices SET notes = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'DRAFT'`, id, notes)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: invoice not found or not in DRAFT status", httpx.ErrValidation)
	}
	return nil
}

// DeleteLineItem removes a line item and recomputes the parent invoice totals
// from the surviving lines, in one transaction.
func (r *Repository) DeleteLineItem(ctx context.Context, invoiceID, lineItemID int64) (*Invoice, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx,
			`DELETE FROM invoice_line_items WHERE id = $1 AND invoice_id = $2`,
			lineItemID, invoiceID)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("%w: invoice line item", httpx.ErrNotFound)
		}

		_, err = tx.Exec(ctx, `
			UPDATE invoices SET
				total_hours = COALESCE((SELECT SUM(hours) FROM invoice_line_items WHERE invoice_id = $1), 0),
				total_amount = COALESCE((SELECT SUM(amount) FROM invoice_line_items WHERE invoice_id = $1), 0),
				updated_at = NOW()
			WHERE id = $1`, invoiceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetInvoice(ctx, invoiceID)
}

// ListApprovedInvoices returns the APPROVED invoices of a batch, with line
// items, for submission.
func (r *Repository) ListApprovedInvoices(ctx context.Context, batchID int64) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE batch_id = $1 AND status = 'APPROVED' ORDER BY client_id`,
		batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range invoices {
		invoices[i].LineItems, err = r.listLineItems(ctx, invoices[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return invoices, nil
}

// MarkInvoiceSubmitted records a successful external submission.
func (r *Repository) MarkInvoiceSubmitted(ctx context.Context, id int64, externalID, externalNumber string, dueDate time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE invoices
		SET status = 'SUBMITTED', external_invoice_id = $2, external_invoice_number = $3,
			due_date = $4, submitted_at = NOW(), failure_reason = '', updated_at = NOW()
		WHERE id = $1 AND status = 'APPROVED'`,
		id, externalID, externalNumber, dueDate)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: invoice not found or not in APPROVED status", httpx.ErrValidation)
	}
	return nil
}

// MarkInvoiceFailed records a failed external submission with its reason.
func (r *Repository) MarkInvoiceFailed(ctx context.Context, id int64, reason string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE invoices
		SET status = 'FAILED', failure_reason = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'APPROVED'`, id, reason)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: invoice not found or not in APPROVED status", httpx.ErrValidation)
	}
	return nil
}

// FinalizeBatch records the outcome of a submission run. submittedAt is always
// set; completedAt only when every invoice went through.
func (r *Repository) FinalizeBatch(ctx context.Context, id int64, status BatchStatus, completedAt *time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE invoice_batches
		SET status = $2, submitted_at = NOW(), completed_at = $3, updated_at = NOW()
		WHERE id = $1`,
		id, string(status), timeOrNull(completedAt))
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: invoice batch", httpx.ErrNotFound)
	}
	return nil
}

func nullableTime(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func timeOrNull(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}
