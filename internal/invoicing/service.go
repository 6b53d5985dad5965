package invoicing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vantage-ops/vantage-ops/internal/notify"
	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

// RepositoryPort defines data access methods for invoicing.
type RepositoryPort interface {
	ListApprovedEntries(ctx context.Context, input GenerateInput) ([]BillableEntry, error)
	// CreateBatch persists the batch with all invoices and line items in one
	// transaction and returns the stored tree.
	CreateBatch(ctx context.Context, batch *InvoiceBatch) (*InvoiceBatch, error)
	GetBatch(ctx context.Context, id int64) (*InvoiceBatch, error)
	ListBatches(ctx context.Context, status BatchStatus) ([]InvoiceBatch, error)
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, id int64, from, to InvoiceStatus) error
	UpdateInvoiceNotes(ctx context.Context, id int64, notes string) error
	// DeleteLineItem removes a line item and recomputes the parent invoice
	// totals from the remaining lines, in one transaction.
	DeleteLineItem(ctx context.Context, invoiceID, lineItemID int64) (*Invoice, error)
}

// Service handles invoice batch business logic.
type Service struct {
	repo     RepositoryPort
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, notifier notify.Notifier, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{repo: repo, notifier: notifier, logger: logger}
}

// GenerateBatch selects approved entries in the window, groups them into one
// invoice per client, and persists the whole tree atomically. An empty
// selection is an error; no empty batches exist.
//
// Re-generating over an already-invoiced range is deliberately allowed: the
// same source entries produce a fresh batch and the reviewer decides which
// one to approve.
func (s *Service) GenerateBatch(ctx context.Context, input GenerateInput) (*InvoiceBatch, error) {
	if input.StartDate.IsZero() || input.EndDate.IsZero() {
		return nil, fmt.Errorf("%w: start and end dates are required", httpx.ErrValidation)
	}
	if input.EndDate.Before(input.StartDate) {
		return nil, fmt.Errorf("%w: end date must not precede start date", httpx.ErrValidation)
	}

	entries, err := s.repo.ListApprovedEntries(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("invoicing: select entries: %w", err)
	}

	batch, err := BuildBatch(entries, input)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.CreateBatch(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("invoicing: persist batch: %w", err)
	}

	s.notifier.Send(ctx, input.GeneratedBy, "invoice_batch_ready",
		"Invoice batch ready for review",
		fmt.Sprintf("Batch %s with %d invoice(s) was generated for %s to %s.",
			stored.Reference, len(stored.Invoices),
			stored.StartDate.Format("2006-01-02"), stored.EndDate.Format("2006-01-02")),
	)

	return stored, nil
}

// GetBatch returns one batch with its invoice tree.
func (s *Service) GetBatch(ctx context.Context, id int64) (*InvoiceBatch, error) {
	return s.repo.GetBatch(ctx, id)
}

// ListBatches returns batches, optionally filtered by status.
func (s *Service) ListBatches(ctx context.Context, status BatchStatus) ([]InvoiceBatch, error) {
	return s.repo.ListBatches(ctx, status)
}

// UpdateInvoiceInput carries the PATCH surface of an invoice.
type UpdateInvoiceInput struct {
	Status *InvoiceStatus
	Notes  *string
}

// UpdateInvoice applies the review state machine. DRAFT invoices accept note
// edits and approval; FAILED invoices may be moved back to APPROVED for a
// retry. Everything else is immutable.
func (s *Service) UpdateInvoice(ctx context.Context, id int64, input UpdateInvoiceInput) (*Invoice, error) {
	invoice, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Notes != nil {
		if invoice.Status != InvoiceStatusDraft {
			return nil, fmt.Errorf("%w: only draft invoices are editable", httpx.ErrValidation)
		}
		if err := s.repo.UpdateInvoiceNotes(ctx, id, *input.Notes); err != nil {
			return nil, err
		}
	}

	if input.Status != nil {
		if err := s.transition(ctx, invoice, *input.Status); err != nil {
			return nil, err
		}
	}

	return s.repo.GetInvoice(ctx, id)
}

func (s *Service) transition(ctx context.Context, invoice *Invoice, target InvoiceStatus) error {
	switch {
	case invoice.Status == InvoiceStatusDraft && target == InvoiceStatusApproved:
	case invoice.Status == InvoiceStatusFailed && target == InvoiceStatusApproved:
	default:
		return fmt.Errorf("%w: cannot move invoice from %s to %s", httpx.ErrValidation, invoice.Status, target)
	}
	return s.repo.UpdateInvoiceStatus(ctx, invoice.ID, invoice.Status, target)
}

// DeleteLineItem removes a line item from a draft invoice and recomputes both
// totals from the remaining lines.
func (s *Service) DeleteLineItem(ctx context.Context, invoiceID, lineItemID int64) (*Invoice, error) {
	invoice, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status != InvoiceStatusDraft {
		return nil, fmt.Errorf("%w: only draft invoices are editable", httpx.ErrValidation)
	}
	return s.repo.DeleteLineItem(ctx, invoiceID, lineItemID)
}
