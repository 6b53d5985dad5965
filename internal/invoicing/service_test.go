package invoicing

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

type memoryBatchRepo struct {
	entries    []BillableEntry
	batches    map[int64]*InvoiceBatch
	nextBatch  int64
	nextInv    int64
	nextLine   int64
	selectErr  error
	createErr  error
}

func newMemoryBatchRepo(entries ...BillableEntry) *memoryBatchRepo {
	return &memoryBatchRepo{
		entries:   entries,
		batches:   map[int64]*InvoiceBatch{},
		nextBatch: 1,
		nextInv:   1,
		nextLine:  1,
	}
}

func (m *memoryBatchRepo) ListApprovedEntries(_ context.Context, input GenerateInput) ([]BillableEntry, error) {
	if m.selectErr != nil {
		return nil, m.selectErr
	}
	var out []BillableEntry
	for _, e := range m.entries {
		if windowContains(input.StartDate, input.EndDate, e.EntryDate) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryBatchRepo) CreateBatch(_ context.Context, batch *InvoiceBatch) (*InvoiceBatch, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	batch.ID = m.nextBatch
	m.nextBatch++
	for i := range batch.Invoices {
		batch.Invoices[i].ID = m.nextInv
		batch.Invoices[i].BatchID = batch.ID
		m.nextInv++
		for j := range batch.Invoices[i].LineItems {
			batch.Invoices[i].LineItems[j].ID = m.nextLine
			batch.Invoices[i].LineItems[j].InvoiceID = batch.Invoices[i].ID
			m.nextLine++
		}
	}
	m.batches[batch.ID] = batch
	return batch, nil
}

func (m *memoryBatchRepo) GetBatch(_ context.Context, id int64) (*InvoiceBatch, error) {
	b, ok := m.batches[id]
	if !ok {
		return nil, fmt.Errorf("%w: invoice batch", httpx.ErrNotFound)
	}
	return b, nil
}

func (m *memoryBatchRepo) ListBatches(_ context.Context, status BatchStatus) ([]InvoiceBatch, error) {
	var out []InvoiceBatch
	for _, b := range m.batches {
		if status == "" || b.Status == status {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memoryBatchRepo) findInvoice(id int64) *Invoice {
	for _, b := range m.batches {
		for i := range b.Invoices {
			if b.Invoices[i].ID == id {
				return &b.Invoices[i]
			}
		}
	}
	return nil
}

func (m *memoryBatchRepo) GetInvoice(_ context.Context, id int64) (*Invoice, error) {
	inv := m.findInvoice(id)
	if inv == nil {
		return nil, fmt.Errorf("%w: invoice", httpx.ErrNotFound)
	}
	copied := *inv
	return &copied, nil
}

func (m *memoryBatchRepo) UpdateInvoiceStatus(_ context.Context, id int64, from, to InvoiceStatus) error {
	inv := m.findInvoice(id)
	if inv == nil || inv.Status != from {
		return fmt.Errorf("%w: invoice not found or not in %s status", httpx.ErrValidation, from)
	}
	inv.Status = to
	return nil
}

func (m *memoryBatchRepo) UpdateInvoiceNotes(_ context.Context, id int64, notes string) error {
	inv := m.findInvoice(id)
	if inv == nil || inv.Status != InvoiceStatusDraft {
		return fmt.Errorf("%w: invoice not found or not in DRAFT status", httpx.ErrValidation)
	}
	inv.Notes = notes
	return nil
}

func (m *memoryBatchRepo) DeleteLineItem(_ context.Context, invoiceID, lineItemID int64) (*Invoice, error) {
	inv := m.findInvoice(invoiceID)
	if inv == nil {
		return nil, fmt.Errorf("%w: invoice", httpx.ErrNotFound)
	}
	kept := inv.LineItems[:0]
	found := false
	for _, li := range inv.LineItems {
		if li.ID == lineItemID {
			found = true
			continue
		}
		kept = append(kept, li)
	}
	if !found {
		return nil, fmt.Errorf("%w: invoice line item", httpx.ErrNotFound)
	}
	inv.LineItems = kept
	inv.TotalHours = 0
	inv.TotalAmount = 0
	for _, li := range inv.LineItems {
		inv.TotalHours += li.Hours
		inv.TotalAmount += li.Amount
	}
	copied := *inv
	return &copied, nil
}

type recordingNotifier struct {
	kinds []string
}

func (r *recordingNotifier) Send(_ context.Context, _ int64, kind, _, _ string) {
	r.kinds = append(r.kinds, kind)
}

func newBatchService(repo *memoryBatchRepo) (*Service, *recordingNotifier) {
	notifier := &recordingNotifier{}
	return NewService(repo, notifier, slog.Default()), notifier
}

func TestGenerateBatchPersistsAndNotifies(t *testing.T) {
	repo := newMemoryBatchRepo(
		billable(1, 1, 10, 100, day(2025, time.March, 3), 8, amount(1200)),
		billable(2, 2, 20, 200, day(2025, time.March, 4), 6, amount(900)),
		billable(3, 1, 10, 100, day(2025, time.April, 1), 4, amount(600)),
	)
	svc, notifier := newBatchService(repo)

	batch, err := svc.GenerateBatch(context.Background(), GenerateInput{
		StartDate:   day(2025, time.March, 1),
		EndDate:     day(2025, time.March, 31),
		GeneratedBy: 9,
	})
	require.NoError(t, err)
	require.NotZero(t, batch.ID)
	require.Len(t, batch.Invoices, 2)
	require.Equal(t, []string{"invoice_batch_ready"}, notifier.kinds)

	// The April entry falls outside the window.
	for _, inv := range batch.Invoices {
		for _, li := range inv.LineItems {
			require.NotEqual(t, int64(3), li.TimeEntryID)
		}
	}
}

func TestGenerateBatchEmptyRange(t *testing.T) {
	repo := newMemoryBatchRepo()
	svc, notifier := newBatchService(repo)

	_, err := svc.GenerateBatch(context.Background(), GenerateInput{
		StartDate: day(2025, time.March, 1),
		EndDate:   day(2025, time.March, 31),
	})
	require.ErrorIs(t, err, httpx.ErrNotFound)
	require.Empty(t, notifier.kinds)
	require.Empty(t, repo.batches)
}

func TestGenerateBatchMissingDates(t *testing.T) {
	svc, _ := newBatchService(newMemoryBatchRepo())

	_, err := svc.GenerateBatch(context.Background(), GenerateInput{})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func seedBatch(t *testing.T, repo *memoryBatchRepo) *InvoiceBatch {
	t.Helper()
	svc, _ := newBatchService(repo)
	batch, err := svc.GenerateBatch(context.Background(), GenerateInput{
		StartDate: day(2025, time.March, 1),
		EndDate:   day(2025, time.March, 31),
	})
	require.NoError(t, err)
	return batch
}

func TestUpdateInvoiceStateMachine(t *testing.T) {
	repo := newMemoryBatchRepo(
		billable(1, 1, 10, 100, day(2025, time.March, 3), 8, amount(1200)),
	)
	batch := seedBatch(t, repo)
	svc, _ := newBatchService(repo)
	invoiceID := batch.Invoices[0].ID
	approved := InvoiceStatusApproved

	inv, err := svc.UpdateInvoice(context.Background(), invoiceID, UpdateInvoiceInput{Status: &approved})
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusApproved, inv.Status)

	// Already approved; approving again fails the guard.
	_, err = svc.UpdateInvoice(context.Background(), invoiceID, UpdateInvoiceInput{Status: &approved})
	require.ErrorIs(t, err, httpx.ErrValidation)

	// A failed submission can be re-approved for retry.
	repo.findInvoice(invoiceID).Status = InvoiceStatusFailed
	inv, err = svc.UpdateInvoice(context.Background(), invoiceID, UpdateInvoiceInput{Status: &approved})
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusApproved, inv.Status)

	// Submitted invoices are immutable.
	repo.findInvoice(invoiceID).Status = InvoiceStatusSubmitted
	_, err = svc.UpdateInvoice(context.Background(), invoiceID, UpdateInvoiceInput{Status: &approved})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestUpdateInvoiceNotesDraftOnly(t *testing.T) {
	repo := newMemoryBatchRepo(
		billable(1, 1, 10, 100, day(2025, time.March, 3), 8, amount(1200)),
	)
	batch := seedBatch(t, repo)
	svc, _ := newBatchService(repo)
	invoiceID := batch.Invoices[0].ID
	notes := "reviewed by finance"

	inv, err := svc.UpdateInvoice(context.Background(), invoiceID, UpdateInvoiceInput{Notes: &notes})
	require.NoError(t, err)
	require.Equal(t, notes, inv.Notes)

	repo.findInvoice(invoiceID).Status = InvoiceStatusApproved
	_, err = svc.UpdateInvoice(context.Background(), invoiceID, UpdateInvoiceInput{Notes: &notes})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestDeleteLineItemRecomputesTotals(t *testing.T) {
	repo := newMemoryBatchRepo(
		billable(1, 1, 10, 100, day(2025, time.March, 3), 8, amount(1200)),
		billable(2, 2, 10, 200, day(2025, time.March, 4), 6, amount(900)),
	)
	batch := seedBatch(t, repo)
	svc, _ := newBatchService(repo)
	invoice := batch.Invoices[0]
	require.Len(t, invoice.LineItems, 2)
	require.InDelta(t, 14.0, invoice.TotalHours, 1e-9)
	require.InDelta(t, 2100.0, invoice.TotalAmount, 1e-9)

	updated, err := svc.DeleteLineItem(context.Background(), invoice.ID, invoice.LineItems[0].ID)
	require.NoError(t, err)
	require.Len(t, updated.LineItems, 1)
	require.InDelta(t, 6.0, updated.TotalHours, 1e-9)
	require.InDelta(t, 900.0, updated.TotalAmount, 1e-9)
}

func TestDeleteLineItemRequiresDraft(t *testing.T) {
	repo := newMemoryBatchRepo(
		billable(1, 1, 10, 100, day(2025, time.March, 3), 8, amount(1200)),
	)
	batch := seedBatch(t, repo)
	svc, _ := newBatchService(repo)
	invoice := batch.Invoices[0]

	repo.findInvoice(invoice.ID).Status = InvoiceStatusSubmitted
	_, err := svc.DeleteLineItem(context.Background(), invoice.ID, invoice.LineItems[0].ID)
	require.ErrorIs(t, err, httpx.ErrValidation)
}
