package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vantage-ops/vantage-ops/internal/invoicing"
	"github.com/vantage-ops/vantage-ops/internal/notify"
	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

// paymentTerm is added to the submission date to produce the invoice due
// date.
const paymentTerm = 30 * 24 * time.Hour

// BatchStore is the slice of invoice persistence the submitter needs.
type BatchStore interface {
	GetBatch(ctx context.Context, id int64) (*invoicing.InvoiceBatch, error)
	ListApprovedInvoices(ctx context.Context, batchID int64) ([]invoicing.Invoice, error)
	MarkInvoiceSubmitted(ctx context.Context, id int64, externalID, externalNumber string, dueDate time.Time) error
	MarkInvoiceFailed(ctx context.Context, id int64, reason string) error
	FinalizeBatch(ctx context.Context, id int64, status invoicing.BatchStatus, completedAt *time.Time) error
}

// MappingSource resolves the provider customer for an internal client.
type MappingSource interface {
	MappingByClientID(ctx context.Context, clientID int64) (*CustomerMapping, error)
}

// InvoiceGateway creates invoices at the provider.
type InvoiceGateway interface {
	CreateInvoice(ctx context.Context, req InvoiceRequest) (*RemoteInvoice, error)
}

// Submitter pushes the approved invoices of a batch to the provider with
// per-invoice failure isolation: one rejected invoice never blocks the rest.
type Submitter struct {
	store    BatchStore
	mappings MappingSource
	gateway  InvoiceGateway
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewSubmitter builds a Submitter.
func NewSubmitter(store BatchStore, mappings MappingSource, gateway InvoiceGateway, notifier notify.Notifier, logger *slog.Logger) *Submitter {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Submitter{
		store:    store,
		mappings: mappings,
		gateway:  gateway,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// SubmitBatch submits every APPROVED invoice of the batch. Each invoice
// succeeds or fails on its own; the batch ends COMPLETED only when all of
// them went through, otherwise FAILED with the stragglers marked per invoice.
func (s *Submitter) SubmitBatch(ctx context.Context, batchID int64) (*invoicing.SubmitResult, error) {
	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	invoices, err := s.store.ListApprovedInvoices(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, fmt.Errorf("%w: batch has no approved invoices to submit", httpx.ErrValidation)
	}

	result := &invoicing.SubmitResult{}
	for _, invoice := range invoices {
		if err := s.submitInvoice(ctx, batch, invoice); err != nil {
			result.FailureCount++
			reason := err.Error()
			s.logger.Warn("invoice submission failed",
				slog.Int64("invoiceId", invoice.ID),
				slog.Int64("clientId", invoice.ClientID),
				slog.String("reason", reason))
			if markErr := s.store.MarkInvoiceFailed(ctx, invoice.ID, reason); markErr != nil {
				s.logger.Error("mark invoice failed", slog.Any("error", markErr), slog.Int64("invoiceId", invoice.ID))
			}
			continue
		}
		result.SuccessCount++
	}

	status := invoicing.BatchStatusCompleted
	var completedAt *time.Time
	if result.FailureCount > 0 {
		status = invoicing.BatchStatusFailed
	} else {
		t := s.now()
		completedAt = &t
	}
	if err := s.store.FinalizeBatch(ctx, batchID, status, completedAt); err != nil {
		return nil, err
	}

	result.Message = fmt.Sprintf("%d invoice(s) submitted, %d failed", result.SuccessCount, result.FailureCount)
	if result.SuccessCount > 0 {
		s.notifier.Send(ctx, batch.GeneratedBy, "invoice_batch_submitted",
			"Invoice batch submitted",
			fmt.Sprintf("Batch %s: %s.", batch.Reference, result.Message))
	}
	if result.FailureCount > 0 {
		s.notifier.Send(ctx, batch.GeneratedBy, "invoice_submission_failed",
			"Invoice submission failures",
			fmt.Sprintf("Batch %s: %d invoice(s) failed to submit and need attention.", batch.Reference, result.FailureCount))
	}
	return result, nil
}

func (s *Submitter) submitInvoice(ctx context.Context, batch *invoicing.InvoiceBatch, invoice invoicing.Invoice) error {
	mapping, err := s.mappings.MappingByClientID(ctx, invoice.ClientID)
	if errors.Is(err, httpx.ErrNotFound) {
		return fmt.Errorf("no customer mapping for client %d (%s)", invoice.ClientID, invoice.ClientName)
	}
	if err != nil {
		return err
	}

	req := InvoiceRequest{
		CustomerID:    mapping.ExternalCustomerID,
		InvoiceNumber: fmt.Sprintf("%s-%d", batch.Reference, invoice.ID),
		InvoiceDate:   batch.EndDate,
		DueDate:       s.now().Add(paymentTerm),
	}
	for _, line := range invoice.LineItems {
		req.Lines = append(req.Lines, InvoiceLine{
			Description: line.Description,
			Quantity:    line.Hours,
			Price:       line.Rate,
		})
	}

	remote, err := s.gateway.CreateInvoice(ctx, req)
	if err != nil {
		return err
	}
	return s.store.MarkInvoiceSubmitted(ctx, invoice.ID, remote.ID, remote.InvoiceNumber, req.DueDate)
}
