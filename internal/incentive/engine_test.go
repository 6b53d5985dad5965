package incentive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryAssignments struct {
	rows []FractionalIncentive
}

func (m *memoryAssignments) ListActiveForConsultant(ctx context.Context, consultantID int64, onDate time.Time) ([]FractionalIncentive, error) {
	var out []FractionalIncentive
	for _, a := range m.rows {
		if a.ConsultantID == consultantID && a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr[T any](v T) *T { return &v }

func TestPlanEarningsGlobalAssignment(t *testing.T) {
	src := &memoryAssignments{rows: []FractionalIncentive{
		{ID: 1, LeaderID: 10, ConsultantID: 20, IncentiveRate: 5, StartDate: day("2025-01-01"), IsActive: true},
	}}
	engine := NewEngine(src, PrecedenceAllMatches)

	drafts, err := engine.PlanEarnings(context.Background(), 20, 99, day("2025-06-15"), 10)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.Equal(t, int64(10), drafts[0].LeaderID)
	require.Equal(t, int64(1), drafts[0].FractionalIncentiveID)
	require.InDelta(t, 50.0, drafts[0].IncentiveAmount, 1e-9)
}

func TestPlanEarningsProjectScope(t *testing.T) {
	src := &memoryAssignments{rows: []FractionalIncentive{
		{ID: 1, LeaderID: 10, ConsultantID: 20, ProjectID: ptr(int64(7)), IncentiveRate: 3, StartDate: day("2025-01-01"), IsActive: true},
	}}
	engine := NewEngine(src, PrecedenceAllMatches)

	drafts, err := engine.PlanEarnings(context.Background(), 20, 7, day("2025-06-15"), 8)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.InDelta(t, 24.0, drafts[0].IncentiveAmount, 1e-9)

	drafts, err = engine.PlanEarnings(context.Background(), 20, 8, day("2025-06-15"), 8)
	require.NoError(t, err)
	require.Empty(t, drafts)
}

func TestPlanEarningsAllMatchesFire(t *testing.T) {
	// Global and project-specific assignments for different leaders both pay.
	src := &memoryAssignments{rows: []FractionalIncentive{
		{ID: 1, LeaderID: 10, ConsultantID: 20, IncentiveRate: 5, StartDate: day("2025-01-01"), IsActive: true},
		{ID: 2, LeaderID: 11, ConsultantID: 20, ProjectID: ptr(int64(7)), IncentiveRate: 2, StartDate: day("2025-01-01"), IsActive: true},
	}}
	engine := NewEngine(src, PrecedenceAllMatches)

	drafts, err := engine.PlanEarnings(context.Background(), 20, 7, day("2025-06-15"), 10)
	require.NoError(t, err)
	require.Len(t, drafts, 2)
}

func TestPlanEarningsMostSpecificPolicy(t *testing.T) {
	src := &memoryAssignments{rows: []FractionalIncentive{
		{ID: 1, LeaderID: 10, ConsultantID: 20, IncentiveRate: 5, StartDate: day("2025-01-01"), IsActive: true},
		{ID: 2, LeaderID: 10, ConsultantID: 20, ProjectID: ptr(int64(7)), IncentiveRate: 2, StartDate: day("2025-01-01"), IsActive: true},
	}}
	engine := NewEngine(src, PrecedenceMostSpecific)

	drafts, err := engine.PlanEarnings(context.Background(), 20, 7, day("2025-06-15"), 10)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.Equal(t, int64(2), drafts[0].FractionalIncentiveID)

	// Off-project the global one still fires.
	drafts, err = engine.PlanEarnings(context.Background(), 20, 8, day("2025-06-15"), 10)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.Equal(t, int64(1), drafts[0].FractionalIncentiveID)
}

func TestPlanEarningsDateWindow(t *testing.T) {
	src := &memoryAssignments{rows: []FractionalIncentive{
		{ID: 1, LeaderID: 10, ConsultantID: 20, IncentiveRate: 5, StartDate: day("2025-03-01"), EndDate: ptr(day("2025-03-31")), IsActive: true},
	}}
	engine := NewEngine(src, PrecedenceAllMatches)

	cases := []struct {
		date    string
		matches int
	}{
		{"2025-02-28", 0},
		{"2025-03-01", 1},
		{"2025-03-31", 1},
		{"2025-04-01", 0},
	}
	for _, tc := range cases {
		drafts, err := engine.PlanEarnings(context.Background(), 20, 7, day(tc.date), 4)
		require.NoError(t, err)
		require.Len(t, drafts, tc.matches, "date %s", tc.date)
	}
}

func TestPlanEarningsInactiveAssignment(t *testing.T) {
	src := &memoryAssignments{rows: []FractionalIncentive{
		{ID: 1, LeaderID: 10, ConsultantID: 20, IncentiveRate: 5, StartDate: day("2025-01-01"), IsActive: false},
	}}
	engine := NewEngine(src, PrecedenceAllMatches)

	drafts, err := engine.PlanEarnings(context.Background(), 20, 7, day("2025-06-15"), 4)
	require.NoError(t, err)
	require.Empty(t, drafts)
}
