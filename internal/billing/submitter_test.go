package billing

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vantage-ops/vantage-ops/internal/invoicing"
	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

type memoryBatchStore struct {
	batch    *invoicing.InvoiceBatch
	invoices map[int64]*invoicing.Invoice

	finalStatus invoicing.BatchStatus
	completedAt *time.Time
	finalized   bool
}

func newMemoryBatchStore(batch *invoicing.InvoiceBatch) *memoryBatchStore {
	store := &memoryBatchStore{batch: batch, invoices: map[int64]*invoicing.Invoice{}}
	for i := range batch.Invoices {
		store.invoices[batch.Invoices[i].ID] = &batch.Invoices[i]
	}
	return store
}

func (m *memoryBatchStore) GetBatch(_ context.Context, id int64) (*invoicing.InvoiceBatch, error) {
	if m.batch == nil || m.batch.ID != id {
		return nil, fmt.Errorf("%w: invoice batch", httpx.ErrNotFound)
	}
	return m.batch, nil
}

func (m *memoryBatchStore) ListApprovedInvoices(_ context.Context, batchID int64) ([]invoicing.Invoice, error) {
	var out []invoicing.Invoice
	for _, inv := range m.batch.Invoices {
		if inv.BatchID == batchID && inv.Status == invoicing.InvoiceStatusApproved {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *memoryBatchStore) MarkInvoiceSubmitted(_ context.Context, id int64, externalID, externalNumber string, dueDate time.Time) error {
	inv := m.invoices[id]
	inv.Status = invoicing.InvoiceStatusSubmitted
	inv.ExternalInvoiceID = externalID
	inv.ExternalInvoiceNumber = externalNumber
	inv.DueDate = &dueDate
	return nil
}

func (m *memoryBatchStore) MarkInvoiceFailed(_ context.Context, id int64, reason string) error {
	inv := m.invoices[id]
	inv.Status = invoicing.InvoiceStatusFailed
	inv.FailureReason = reason
	return nil
}

func (m *memoryBatchStore) FinalizeBatch(_ context.Context, _ int64, status invoicing.BatchStatus, completedAt *time.Time) error {
	m.finalized = true
	m.finalStatus = status
	m.completedAt = completedAt
	return nil
}

type memoryMappings struct {
	byClient map[int64]CustomerMapping
}

func (m memoryMappings) MappingByClientID(_ context.Context, clientID int64) (*CustomerMapping, error) {
	mapping, ok := m.byClient[clientID]
	if !ok {
		return nil, fmt.Errorf("%w: customer mapping", httpx.ErrNotFound)
	}
	return &mapping, nil
}

type fakeGateway struct {
	requests []InvoiceRequest
	failFor  map[string]error
	next     int
}

func (g *fakeGateway) CreateInvoice(_ context.Context, req InvoiceRequest) (*RemoteInvoice, error) {
	g.requests = append(g.requests, req)
	if err, ok := g.failFor[req.CustomerID]; ok {
		return nil, err
	}
	g.next++
	return &RemoteInvoice{
		ID:            fmt.Sprintf("ext-%d", g.next),
		InvoiceNumber: fmt.Sprintf("INV-%04d", g.next),
	}, nil
}

type captureNotifier struct {
	kinds []string
}

func (c *captureNotifier) Send(_ context.Context, _ int64, kind, _, _ string) {
	c.kinds = append(c.kinds, kind)
}

func testBatch(statuses ...invoicing.InvoiceStatus) *invoicing.InvoiceBatch {
	batch := &invoicing.InvoiceBatch{
		ID:          1,
		Reference:   "BATCH-test",
		GeneratedBy: 9,
		EndDate:     time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC),
		Status:      invoicing.BatchStatusDraft,
	}
	for i, status := range statuses {
		id := int64(i + 1)
		batch.Invoices = append(batch.Invoices, invoicing.Invoice{
			ID:         id,
			BatchID:    1,
			ClientID:   id * 10,
			ClientName: fmt.Sprintf("Client %d", id),
			Status:     status,
			LineItems: []invoicing.InvoiceLineItem{{
				ID: id * 100, InvoiceID: id,
				Description: "consulting", Hours: 10, Rate: 150, Amount: 1500,
			}},
		})
	}
	return batch
}

func allMappings(batch *invoicing.InvoiceBatch) memoryMappings {
	m := memoryMappings{byClient: map[int64]CustomerMapping{}}
	for _, inv := range batch.Invoices {
		m.byClient[inv.ClientID] = CustomerMapping{
			ClientID:           inv.ClientID,
			ExternalCustomerID: fmt.Sprintf("cust-%d", inv.ClientID),
		}
	}
	return m
}

func TestSubmitBatchAllSucceed(t *testing.T) {
	batch := testBatch(invoicing.InvoiceStatusApproved, invoicing.InvoiceStatusApproved)
	store := newMemoryBatchStore(batch)
	gateway := &fakeGateway{}
	notifier := &captureNotifier{}

	now := time.Date(2025, time.April, 1, 12, 0, 0, 0, time.UTC)
	submitter := NewSubmitter(store, allMappings(batch), gateway, notifier, slog.Default())
	submitter.now = func() time.Time { return now }

	result, err := submitter.SubmitBatch(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, result.SuccessCount)
	require.Zero(t, result.FailureCount)

	require.Equal(t, invoicing.BatchStatusCompleted, store.finalStatus)
	require.NotNil(t, store.completedAt)
	require.Equal(t, []string{"invoice_batch_submitted"}, notifier.kinds)

	for _, inv := range store.invoices {
		require.Equal(t, invoicing.InvoiceStatusSubmitted, inv.Status)
		require.NotEmpty(t, inv.ExternalInvoiceID)
		require.Equal(t, now.Add(paymentTerm), *inv.DueDate)
	}
	require.Len(t, gateway.requests, 2)
	require.Equal(t, 10.0, gateway.requests[0].Lines[0].Quantity)
	require.Equal(t, 150.0, gateway.requests[0].Lines[0].Price)
}

func TestSubmitBatchIsolatesFailures(t *testing.T) {
	batch := testBatch(
		invoicing.InvoiceStatusApproved,
		invoicing.InvoiceStatusApproved,
		invoicing.InvoiceStatusApproved,
	)
	store := newMemoryBatchStore(batch)

	// Client 20 has no mapping; clients 10 and 30 submit cleanly.
	mappings := allMappings(batch)
	delete(mappings.byClient, 20)

	gateway := &fakeGateway{}
	notifier := &captureNotifier{}
	submitter := NewSubmitter(store, mappings, gateway, notifier, slog.Default())

	result, err := submitter.SubmitBatch(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, result.SuccessCount)
	require.Equal(t, 1, result.FailureCount)

	require.Equal(t, invoicing.BatchStatusFailed, store.finalStatus)
	require.Nil(t, store.completedAt)

	require.Equal(t, invoicing.InvoiceStatusSubmitted, store.invoices[1].Status)
	require.Equal(t, invoicing.InvoiceStatusFailed, store.invoices[2].Status)
	require.Contains(t, store.invoices[2].FailureReason, "no customer mapping")
	require.Equal(t, invoicing.InvoiceStatusSubmitted, store.invoices[3].Status)

	require.Equal(t, []string{"invoice_batch_submitted", "invoice_submission_failed"}, notifier.kinds)
}

func TestSubmitBatchProviderRejection(t *testing.T) {
	batch := testBatch(invoicing.InvoiceStatusApproved)
	store := newMemoryBatchStore(batch)
	gateway := &fakeGateway{failFor: map[string]error{
		"cust-10": fmt.Errorf("%w: billing provider error: Invalid customer id", httpx.ErrExternal),
	}}
	notifier := &captureNotifier{}
	submitter := NewSubmitter(store, allMappings(batch), gateway, notifier, slog.Default())

	result, err := submitter.SubmitBatch(context.Background(), 1)
	require.NoError(t, err)
	require.Zero(t, result.SuccessCount)
	require.Equal(t, 1, result.FailureCount)
	require.Equal(t, invoicing.BatchStatusFailed, store.finalStatus)
	require.Contains(t, store.invoices[1].FailureReason, "Invalid customer id")
	require.Equal(t, []string{"invoice_submission_failed"}, notifier.kinds)
}

func TestSubmitBatchRequiresApprovedInvoices(t *testing.T) {
	batch := testBatch(invoicing.InvoiceStatusDraft, invoicing.InvoiceStatusSubmitted)
	store := newMemoryBatchStore(batch)
	submitter := NewSubmitter(store, allMappings(batch), &fakeGateway{}, nil, slog.Default())

	_, err := submitter.SubmitBatch(context.Background(), 1)
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.False(t, store.finalized)
}
