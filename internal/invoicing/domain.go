// Package invoicing implements invoice batch generation from approved time
// entries and the invoice review state machine.
package invoicing

import "time"

// BatchStatus enumerates invoice batch statuses.
type BatchStatus string

const (
	BatchStatusDraft     BatchStatus = "DRAFT"
	BatchStatusCompleted BatchStatus = "COMPLETED"
	BatchStatusFailed    BatchStatus = "FAILED"
)

// InvoiceStatus enumerates invoice statuses. Invoices have no REJECTED state;
// a failed submission is recorded as FAILED with a reason.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusApproved  InvoiceStatus = "APPROVED"
	InvoiceStatusSubmitted InvoiceStatus = "SUBMITTED"
	InvoiceStatusFailed    InvoiceStatus = "FAILED"
)

// InvoiceBatch is one generation run over a date range.
type InvoiceBatch struct {
	ID          int64       `json:"id"`
	Reference   string      `json:"reference"`
	StartDate   time.Time   `json:"startDate"`
	EndDate     time.Time   `json:"endDate"`
	Status      BatchStatus `json:"status"`
	GeneratedBy int64       `json:"generatedBy"`
	Notes       string      `json:"notes,omitempty"`
	SubmittedAt *time.Time  `json:"submittedAt,omitempty"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`

	Invoices []Invoice `json:"invoices,omitempty"`
}

// Invoice is one client's bill within a batch.
type Invoice struct {
	ID          int64         `json:"id"`
	BatchID     int64         `json:"batchId"`
	ClientID    int64         `json:"clientId"`
	ClientName  string        `json:"clientName"`
	Status      InvoiceStatus `json:"status"`
	TotalHours  float64       `json:"totalHours"`
	TotalAmount float64       `json:"totalAmount"`

	ExternalInvoiceID     string     `json:"externalInvoiceId,omitempty"`
	ExternalInvoiceNumber string     `json:"externalInvoiceNumber,omitempty"`
	DueDate               *time.Time `json:"dueDate,omitempty"`
	SubmittedAt           *time.Time `json:"submittedAt,omitempty"`
	FailureReason         string     `json:"failureReason,omitempty"`
	Notes                 string     `json:"notes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	LineItems []InvoiceLineItem `json:"lineItems,omitempty"`
}

// InvoiceLineItem aggregates one (employee, project) pair for the window.
// Line items are derived data; after creation only deletion is allowed, which
// recomputes the parent invoice totals.
type InvoiceLineItem struct {
	ID           int64     `json:"id"`
	InvoiceID    int64     `json:"invoiceId"`
	TimeEntryID  int64     `json:"timeEntryId"`
	UserID       int64     `json:"userId"`
	ProjectID    int64     `json:"projectId"`
	EmployeeName string    `json:"employeeName"`
	ProjectName  string    `json:"projectName"`
	Description  string    `json:"description"`
	Hours        float64   `json:"hours"`
	Amount       float64   `json:"amount"`
	Rate         float64   `json:"rate"`
	EntryDate    time.Time `json:"date"`
}

// BillableEntry is the read model the generator consumes: an approved time
// entry joined with its display names.
type BillableEntry struct {
	EntryID      int64
	UserID       int64
	EmployeeName string
	ClientID     int64
	ClientName   string
	ProjectID    int64
	ProjectName  string
	EntryDate    time.Time
	Hours        float64
	ClientAmount *float64
}

// GenerateInput carries the generation request.
type GenerateInput struct {
	StartDate   time.Time
	EndDate     time.Time
	Notes       string
	GeneratedBy int64
}

// SubmitResult summarises a batch submission run.
type SubmitResult struct {
	SuccessCount int    `json:"successCount"`
	FailureCount int    `json:"failureCount"`
	Message      string `json:"message"`
}
