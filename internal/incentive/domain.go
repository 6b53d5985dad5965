// Package incentive implements the fractional incentive program: standing
// assignments that pay a leader a per-hour override on a consultant's billed
// time, and the immutable earning ledger derived from approved entries.
package incentive

import "time"

// FractionalIncentive is a standing assignment: the leader earns
// IncentiveRate dollars per hour the consultant bills. A nil ProjectID means
// the assignment applies to every project.
type FractionalIncentive struct {
	ID            int64      `json:"id"`
	LeaderID      int64      `json:"leaderId"`
	ConsultantID  int64      `json:"consultantId"`
	ProjectID     *int64     `json:"projectId,omitempty"`
	IncentiveRate float64    `json:"incentiveRate"`
	StartDate     time.Time  `json:"startDate"`
	EndDate       *time.Time `json:"endDate,omitempty"`
	IsActive      bool       `json:"isActive"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// AppliesOn reports whether the assignment is in effect on the given date.
func (f FractionalIncentive) AppliesOn(date time.Time) bool {
	if !f.IsActive {
		return false
	}
	if f.StartDate.After(date) {
		return false
	}
	if f.EndDate != nil && f.EndDate.Before(date) {
		return false
	}
	return true
}

// MatchesProject reports whether the assignment covers the given project.
// Global assignments (nil ProjectID) cover everything.
func (f FractionalIncentive) MatchesProject(projectID int64) bool {
	return f.ProjectID == nil || *f.ProjectID == projectID
}

// IncentiveEarning is one immutable ledger row: a single time entry matched a
// single assignment. The amount captures the assignment rate at creation time
// and is never recomputed.
type IncentiveEarning struct {
	ID                    int64     `json:"id"`
	TimeEntryID           int64     `json:"timeEntryId"`
	LeaderID              int64     `json:"leaderId"`
	FractionalIncentiveID int64     `json:"fractionalIncentiveId"`
	IncentiveAmount       float64   `json:"incentiveAmount"`
	CreatedAt             time.Time `json:"createdAt"`
}

// EarningDraft is an earning planned by the engine but not yet persisted. The
// approval transaction turns drafts into ledger rows atomically with the
// entry status flip.
type EarningDraft struct {
	LeaderID              int64
	FractionalIncentiveID int64
	IncentiveAmount       float64
}

// AssignmentInput carries the writable assignment fields.
type AssignmentInput struct {
	LeaderID      int64
	ConsultantID  int64
	ProjectID     *int64
	IncentiveRate float64
	StartDate     time.Time
	EndDate       *time.Time
	IsActive      bool
}
