package incentive

import (
	"context"
	"fmt"
	"time"

	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

// RepositoryPort defines data access methods for incentive assignments and
// the earning ledger.
type RepositoryPort interface {
	Create(ctx context.Context, input AssignmentInput) (*FractionalIncentive, error)
	Update(ctx context.Context, id int64, input AssignmentInput) (*FractionalIncentive, error)
	Get(ctx context.Context, id int64) (*FractionalIncentive, error)
	List(ctx context.Context) ([]FractionalIncentive, error)
	Deactivate(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	ListByLeader(ctx context.Context, leaderID int64) ([]FractionalIncentive, error)
	ListByConsultant(ctx context.Context, consultantID int64) ([]FractionalIncentive, error)
	ListEarningsByLeader(ctx context.Context, leaderID int64) ([]IncentiveEarning, error)
}

// MyIncentivesView aggregates everything a user sees about their own
// participation in the program.
type MyIncentivesView struct {
	AsLeader      []FractionalIncentive `json:"asLeader"`
	AsConsultant  []FractionalIncentive `json:"asConsultant"`
	Earnings      []IncentiveEarning    `json:"earnings"`
	TotalEarnings float64               `json:"totalEarnings"`
}

// Service handles assignment management and the my-incentives view.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func validateAssignment(input AssignmentInput) error {
	if input.LeaderID == 0 || input.ConsultantID == 0 {
		return fmt.Errorf("%w: leader and consultant are required", httpx.ErrValidation)
	}
	if input.LeaderID == input.ConsultantID {
		return fmt.Errorf("%w: leader and consultant must differ", httpx.ErrValidation)
	}
	if input.IncentiveRate < 0 {
		return fmt.Errorf("%w: incentive rate must not be negative", httpx.ErrValidation)
	}
	if input.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", httpx.ErrValidation)
	}
	if input.EndDate != nil && input.EndDate.Before(input.StartDate) {
		return fmt.Errorf("%w: end date must not precede start date", httpx.ErrValidation)
	}
	return nil
}

// CreateAssignment registers a new assignment. The (leader, consultant,
// project) triple is unique; the repository surfaces a duplicate as
// httpx.ErrDuplicate.
func (s *Service) CreateAssignment(ctx context.Context, input AssignmentInput) (*FractionalIncentive, error) {
	if err := validateAssignment(input); err != nil {
		return nil, err
	}
	input.IsActive = true
	return s.repo.Create(ctx, input)
}

// UpdateAssignment replaces the writable fields of an assignment.
func (s *Service) UpdateAssignment(ctx context.Context, id int64, input AssignmentInput) (*FractionalIncentive, error) {
	if err := validateAssignment(input); err != nil {
		return nil, err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, id, input)
}

// DeactivateAssignment stops an assignment from earning without deleting its
// history.
func (s *Service) DeactivateAssignment(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Deactivate(ctx, id)
}

// DeleteAssignment removes an assignment. Existing earnings keep their
// ledger rows.
func (s *Service) DeleteAssignment(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// GetAssignment returns one assignment.
func (s *Service) GetAssignment(ctx context.Context, id int64) (*FractionalIncentive, error) {
	return s.repo.Get(ctx, id)
}

// ListAssignments returns all assignments.
func (s *Service) ListAssignments(ctx context.Context) ([]FractionalIncentive, error) {
	return s.repo.List(ctx)
}

// MyIncentives returns the caller's assignments on both sides plus their
// earning ledger and total.
func (s *Service) MyIncentives(ctx context.Context, userID int64) (*MyIncentivesView, error) {
	asLeader, err := s.repo.ListByLeader(ctx, userID)
	if err != nil {
		return nil, err
	}
	asConsultant, err := s.repo.ListByConsultant(ctx, userID)
	if err != nil {
		return nil, err
	}
	earnings, err := s.repo.ListEarningsByLeader(ctx, userID)
	if err != nil {
		return nil, err
	}

	var total float64
	for _, e := range earnings {
		total += e.IncentiveAmount
	}

	view := &MyIncentivesView{
		AsLeader:      asLeader,
		AsConsultant:  asConsultant,
		Earnings:      earnings,
		TotalEarnings: total,
	}
	if view.AsLeader == nil {
		view.AsLeader = []FractionalIncentive{}
	}
	if view.AsConsultant == nil {
		view.AsConsultant = []FractionalIncentive{}
	}
	if view.Earnings == nil {
		view.Earnings = []IncentiveEarning{}
	}
	return view, nil
}

// EffectiveOn is a convenience filter used by tests and callers inspecting
// assignment windows.
func EffectiveOn(assignments []FractionalIncentive, date time.Time) []FractionalIncentive {
	var out []FractionalIncentive
	for _, a := range assignments {
		if a.AppliesOn(date) {
			out = append(out, a)
		}
	}
	return out
}
