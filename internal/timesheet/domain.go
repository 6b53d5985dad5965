// Package timesheet implements time entry lifecycle and the approval-time
// monetary freeze feeding invoicing and incentives.
package timesheet

import (
	"time"

	"github.com/vantage-ops/vantage-ops/internal/incentive"
)

// EntryStatus enumerates time entry statuses.
type EntryStatus string

const (
	EntryStatusDraft     EntryStatus = "DRAFT"
	EntryStatusSubmitted EntryStatus = "SUBMITTED"
	EntryStatusApproved  EntryStatus = "APPROVED"
	EntryStatusRejected  EntryStatus = "REJECTED"
)

// TimeEntry is one unit of billable work. The monetary fields are null until
// approval and immutable afterwards, so later rate edits never rewrite
// history.
type TimeEntry struct {
	ID          int64       `json:"id"`
	UserID      int64       `json:"userId"`
	ClientID    int64       `json:"clientId"`
	ProjectID   int64       `json:"projectId"`
	EntryDate   time.Time   `json:"date"`
	Hours       float64     `json:"hours"`
	Description string      `json:"description"`
	Status      EntryStatus `json:"status"`
	ReviewerID  *int64      `json:"reviewerId,omitempty"`
	ReviewedAt  *time.Time  `json:"reviewedAt,omitempty"`

	ConsultantRate   *float64 `json:"consultantRate,omitempty"`
	ClientRate       *float64 `json:"clientRate,omitempty"`
	ConsultantAmount *float64 `json:"consultantAmount,omitempty"`
	ClientAmount     *float64 `json:"clientAmount,omitempty"`
	Margin           *float64 `json:"margin,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AmountSnapshot is the frozen monetary state computed once at approval.
type AmountSnapshot struct {
	ConsultantRate   *float64
	ClientRate       *float64
	ConsultantAmount *float64
	ClientAmount     *float64
	Margin           *float64
}

// EntryInput carries the writable entry fields.
type EntryInput struct {
	ClientID    int64
	ProjectID   int64
	EntryDate   time.Time
	Hours       float64
	Description string
}

// EntryFilter narrows entry listings.
type EntryFilter struct {
	UserID int64
	Status EntryStatus
	From   time.Time
	To     time.Time
}

// ApprovalRecord bundles everything the repository must persist atomically
// when an entry is approved: the status flip, the frozen snapshot, and the
// planned incentive earnings.
type ApprovalRecord struct {
	EntryID    int64
	ReviewerID int64
	Snapshot   AmountSnapshot
	Earnings   []incentive.EarningDraft
}
