package timesheet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vantage-ops/vantage-ops/internal/incentive"
	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

// RepositoryPort defines data access methods for time entries.
type RepositoryPort interface {
	CreateEntry(ctx context.Context, userID int64, input EntryInput) (*TimeEntry, error)
	UpdateEntry(ctx context.Context, id int64, input EntryInput) (*TimeEntry, error)
	DeleteEntry(ctx context.Context, id int64) error
	GetEntry(ctx context.Context, id int64) (*TimeEntry, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]TimeEntry, error)
	MarkSubmitted(ctx context.Context, id int64) error
	MarkRejected(ctx context.Context, id, reviewerID int64) error
	// BillingRates resolves the consultant's current billable rate and the
	// project's current billing rate; either may be nil (unbilled).
	BillingRates(ctx context.Context, userID, projectID int64) (consultantRate, clientRate *float64, err error)
	// ApproveEntry persists the status flip, the frozen snapshot and the
	// earning rows in one transaction.
	ApproveEntry(ctx context.Context, record ApprovalRecord) (*TimeEntry, error)
}

// EarningPlanner plans incentive earnings for an entry being approved.
type EarningPlanner interface {
	PlanEarnings(ctx context.Context, consultantID, projectID int64, entryDate time.Time, hours float64) ([]incentive.EarningDraft, error)
}

// ReportInvalidator drops cached report payloads after approval changes the
// data reports are built from. A nil invalidator is a no-op.
type ReportInvalidator interface {
	Invalidate(ctx context.Context)
}

// Service handles time entry business logic.
type Service struct {
	repo    RepositoryPort
	planner EarningPlanner
	reports ReportInvalidator
	logger  *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, planner EarningPlanner, reports ReportInvalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, planner: planner, reports: reports, logger: logger}
}

func validateEntry(input EntryInput) error {
	if input.ClientID == 0 || input.ProjectID == 0 {
		return fmt.Errorf("%w: client and project are required", httpx.ErrValidation)
	}
	if input.EntryDate.IsZero() {
		return fmt.Errorf("%w: date is required", httpx.ErrValidation)
	}
	if input.Hours <= 0 || input.Hours > 24 {
		return fmt.Errorf("%w: hours must be greater than 0 and at most 24", httpx.ErrValidation)
	}
	return nil
}

// CreateEntry creates a new DRAFT entry owned by the caller.
func (s *Service) CreateEntry(ctx context.Context, ownerID int64, input EntryInput) (*TimeEntry, error) {
	if err := validateEntry(input); err != nil {
		return nil, err
	}
	return s.repo.CreateEntry(ctx, ownerID, input)
}

// UpdateEntry edits a DRAFT entry. Only the owner may edit, and only drafts
// are editable.
func (s *Service) UpdateEntry(ctx context.Context, ownerID, entryID int64, input EntryInput) (*TimeEntry, error) {
	if err := validateEntry(input); err != nil {
		return nil, err
	}
	entry, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != ownerID {
		return nil, fmt.Errorf("%w: not the entry owner", httpx.ErrForbidden)
	}
	if entry.Status != EntryStatusDraft {
		return nil, fmt.Errorf("%w: only draft entries are editable", httpx.ErrValidation)
	}
	return s.repo.UpdateEntry(ctx, entryID, input)
}

// DeleteEntry removes a DRAFT entry owned by the caller.
func (s *Service) DeleteEntry(ctx context.Context, ownerID, entryID int64) error {
	entry, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.UserID != ownerID {
		return fmt.Errorf("%w: not the entry owner", httpx.ErrForbidden)
	}
	if entry.Status != EntryStatusDraft {
		return fmt.Errorf("%w: only draft entries can be deleted", httpx.ErrValidation)
	}
	return s.repo.DeleteEntry(ctx, entryID)
}

// SubmitEntry moves a DRAFT entry to SUBMITTED.
func (s *Service) SubmitEntry(ctx context.Context, ownerID, entryID int64) (*TimeEntry, error) {
	entry, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != ownerID {
		return nil, fmt.Errorf("%w: not the entry owner", httpx.ErrForbidden)
	}
	if entry.Status != EntryStatusDraft {
		return nil, fmt.Errorf("%w: only draft entries can be submitted", httpx.ErrValidation)
	}
	if err := s.repo.MarkSubmitted(ctx, entryID); err != nil {
		return nil, err
	}
	return s.repo.GetEntry(ctx, entryID)
}

// ApproveEntry approves a SUBMITTED entry: it resolves rates exactly once,
// freezes the amounts, plans incentive earnings, and persists all of it in a
// single transaction.
func (s *Service) ApproveEntry(ctx context.Context, reviewerID, entryID int64) (*TimeEntry, error) {
	entry, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != EntryStatusSubmitted {
		return nil, fmt.Errorf("%w: only submitted entries can be approved", httpx.ErrValidation)
	}

	consultantRate, clientRate, err := s.repo.BillingRates(ctx, entry.UserID, entry.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("timesheet: resolve rates: %w", err)
	}
	snapshot := ResolveAmounts(entry.Hours, consultantRate, clientRate)

	drafts, err := s.planner.PlanEarnings(ctx, entry.UserID, entry.ProjectID, entry.EntryDate, entry.Hours)
	if err != nil {
		return nil, fmt.Errorf("timesheet: plan earnings: %w", err)
	}

	approved, err := s.repo.ApproveEntry(ctx, ApprovalRecord{
		EntryID:    entryID,
		ReviewerID: reviewerID,
		Snapshot:   snapshot,
		Earnings:   drafts,
	})
	if err != nil {
		return nil, err
	}

	if s.reports != nil {
		s.reports.Invalidate(ctx)
	}
	if s.logger != nil {
		s.logger.Info("time entry approved",
			slog.Int64("entry_id", entryID),
			slog.Int64("reviewer_id", reviewerID),
			slog.Int("earnings", len(drafts)),
		)
	}
	return approved, nil
}

// RejectEntry moves a SUBMITTED entry to REJECTED.
func (s *Service) RejectEntry(ctx context.Context, reviewerID, entryID int64) (*TimeEntry, error) {
	entry, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != EntryStatusSubmitted {
		return nil, fmt.Errorf("%w: only submitted entries can be rejected", httpx.ErrValidation)
	}
	if err := s.repo.MarkRejected(ctx, entryID, reviewerID); err != nil {
		return nil, err
	}
	return s.repo.GetEntry(ctx, entryID)
}

// GetEntry returns one entry.
func (s *Service) GetEntry(ctx context.Context, id int64) (*TimeEntry, error) {
	return s.repo.GetEntry(ctx, id)
}

// ListEntries returns entries matching the filter.
func (s *Service) ListEntries(ctx context.Context, filter EntryFilter) ([]TimeEntry, error) {
	return s.repo.ListEntries(ctx, filter)
}
