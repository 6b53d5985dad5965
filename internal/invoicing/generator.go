package invoicing

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

var descPrinter = message.NewPrinter(language.AmericanEnglish)

type lineKey struct {
	userID    int64
	projectID int64
}

// BuildBatch materializes a batch tree from the approved entries in the
// window. Grouping is by stable entity ids; display names are carried
// attributes so two projects sharing a name never collide.
func BuildBatch(entries []BillableEntry, input GenerateInput) (*InvoiceBatch, error) {
	if input.StartDate.IsZero() || input.EndDate.IsZero() {
		return nil, fmt.Errorf("%w: start and end dates are required", httpx.ErrValidation)
	}
	if input.EndDate.Before(input.StartDate) {
		return nil, fmt.Errorf("%w: end date must not precede start date", httpx.ErrValidation)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no approved time entries in the selected range", httpx.ErrNotFound)
	}

	byClient := make(map[int64][]BillableEntry)
	for _, e := range entries {
		byClient[e.ClientID] = append(byClient[e.ClientID], e)
	}

	clientIDs := make([]int64, 0, len(byClient))
	for id := range byClient {
		clientIDs = append(clientIDs, id)
	}
	sort.Slice(clientIDs, func(i, j int) bool { return clientIDs[i] < clientIDs[j] })

	batch := &InvoiceBatch{
		Reference:   "BATCH-" + uuid.NewString(),
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		Status:      BatchStatusDraft,
		GeneratedBy: input.GeneratedBy,
		Notes:       input.Notes,
	}

	for _, clientID := range clientIDs {
		group := byClient[clientID]
		invoice := Invoice{
			ClientID:   clientID,
			ClientName: group[0].ClientName,
			Status:     InvoiceStatusDraft,
		}

		byPair := make(map[lineKey][]BillableEntry)
		for _, e := range group {
			key := lineKey{userID: e.UserID, projectID: e.ProjectID}
			byPair[key] = append(byPair[key], e)
			invoice.TotalHours += e.Hours
			if e.ClientAmount != nil {
				invoice.TotalAmount += *e.ClientAmount
			}
		}

		keys := make([]lineKey, 0, len(byPair))
		for key := range byPair {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].userID != keys[j].userID {
				return keys[i].userID < keys[j].userID
			}
			return keys[i].projectID < keys[j].projectID
		})

		for _, key := range keys {
			invoice.LineItems = append(invoice.LineItems, buildLineItem(byPair[key]))
		}

		batch.Invoices = append(batch.Invoices, invoice)
	}

	return batch, nil
}

// buildLineItem aggregates one (employee, project) sub-group into a single
// line. Granularity is the pair, not the individual day; the first entry is
// kept as the representative reference.
func buildLineItem(entries []BillableEntry) InvoiceLineItem {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].EntryDate.Equal(entries[j].EntryDate) {
			return entries[i].EntryDate.Before(entries[j].EntryDate)
		}
		return entries[i].EntryID < entries[j].EntryID
	})

	first := entries[0]
	line := InvoiceLineItem{
		TimeEntryID:  first.EntryID,
		UserID:       first.UserID,
		ProjectID:    first.ProjectID,
		EmployeeName: first.EmployeeName,
		ProjectName:  first.ProjectName,
		EntryDate:    first.EntryDate,
	}
	for _, e := range entries {
		line.Hours += e.Hours
		if e.ClientAmount != nil {
			line.Amount += *e.ClientAmount
		}
	}
	if line.Hours > 0 {
		line.Rate = line.Amount / line.Hours
	}
	line.Description = lineDescription(line.EmployeeName, line.ProjectName, line.Hours, line.Rate)
	return line
}

func lineDescription(employee, project string, hours, rate float64) string {
	return descPrinter.Sprintf("%s - %s - %.2f hours @ $%.2f/hr", employee, project, hours, rate)
}

// windowContains reports whether a date falls inside the batch window,
// boundaries included.
func windowContains(start, end, date time.Time) bool {
	return !date.Before(start) && !date.After(end)
}
