package incentive

import (
	"context"
	"fmt"
	"time"
)

// AssignmentSource lists assignments eligible to match an entry.
type AssignmentSource interface {
	ListActiveForConsultant(ctx context.Context, consultantID int64, onDate time.Time) ([]FractionalIncentive, error)
}

type match struct {
	assignment FractionalIncentive
	draft      EarningDraft
}

// Engine plans incentive earnings for approved time entries.
type Engine struct {
	assignments AssignmentSource
	precedence  Precedence
}

// NewEngine constructs an Engine with the given precedence policy.
func NewEngine(assignments AssignmentSource, precedence Precedence) *Engine {
	if precedence == "" {
		precedence = PrecedenceAllMatches
	}
	return &Engine{assignments: assignments, precedence: precedence}
}

// PlanEarnings returns one draft per assignment matching the entry. The
// caller persists the drafts inside the approval transaction so an approved
// entry can never be silently un-incentivized.
func (e *Engine) PlanEarnings(ctx context.Context, consultantID, projectID int64, entryDate time.Time, hours float64) ([]EarningDraft, error) {
	assignments, err := e.assignments.ListActiveForConsultant(ctx, consultantID, entryDate)
	if err != nil {
		return nil, fmt.Errorf("incentive: list assignments: %w", err)
	}

	var matches []match
	for _, a := range assignments {
		if a.ConsultantID != consultantID {
			continue
		}
		if !a.AppliesOn(entryDate) || !a.MatchesProject(projectID) {
			continue
		}
		matches = append(matches, match{
			assignment: a,
			draft: EarningDraft{
				LeaderID:              a.LeaderID,
				FractionalIncentiveID: a.ID,
				IncentiveAmount:       hours * a.IncentiveRate,
			},
		})
	}

	matches = e.precedence.apply(matches)

	drafts := make([]EarningDraft, 0, len(matches))
	for _, m := range matches {
		drafts = append(drafts, m.draft)
	}
	return drafts, nil
}
