package reports

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

type memoryReportRepo struct {
	direct    map[int64]float64
	leader    map[int64]float64
	project   *ProjectProfitability
	breakdown []ConsultantBreakdown
	incentive float64
	byProject []SummaryRow
	byClient  []SummaryRow

	companyCalls int
}

func (m *memoryReportRepo) DirectEarnings(_ context.Context, userID int64, _ int) (float64, error) {
	return m.direct[userID], nil
}

func (m *memoryReportRepo) LeaderEarnings(_ context.Context, userID int64, _ int) (float64, error) {
	return m.leader[userID], nil
}

func (m *memoryReportRepo) ProjectTotals(_ context.Context, projectID int64, _ Window) (*ProjectProfitability, error) {
	if m.project == nil || m.project.ProjectID != projectID {
		return nil, httpx.ErrNotFound
	}
	copied := *m.project
	return &copied, nil
}

func (m *memoryReportRepo) ProjectByConsultant(context.Context, int64, Window) ([]ConsultantBreakdown, error) {
	return m.breakdown, nil
}

func (m *memoryReportRepo) ProjectIncentives(context.Context, int64, Window) (float64, error) {
	return m.incentive, nil
}

func (m *memoryReportRepo) CompanyByProject(context.Context, Window) ([]SummaryRow, error) {
	m.companyCalls++
	return m.byProject, nil
}

func (m *memoryReportRepo) CompanyByClient(context.Context, Window) ([]SummaryRow, error) {
	return m.byClient, nil
}

func newReportService(t *testing.T, repo *memoryReportRepo) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewService(repo, NewCache(client, time.Minute), slog.Default())
}

func TestYear1099CombinesDirectAndIncentive(t *testing.T) {
	repo := &memoryReportRepo{
		direct: map[int64]float64{5: 84000},
		leader: map[int64]float64{5: 3600},
	}
	svc := newReportService(t, repo)

	report, err := svc.Year1099(context.Background(), 5, 2025)
	require.NoError(t, err)
	require.InDelta(t, 84000.0, report.DirectEarnings, 1e-9)
	require.InDelta(t, 3600.0, report.IncentiveEarnings, 1e-9)
	require.InDelta(t, 87600.0, report.TotalEarnings, 1e-9)
}

func TestYear1099RejectsBogusYear(t *testing.T) {
	svc := newReportService(t, &memoryReportRepo{})

	_, err := svc.Year1099(context.Background(), 5, 1234)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestProjectProfitabilityMarginPercentage(t *testing.T) {
	repo := &memoryReportRepo{
		project: &ProjectProfitability{
			ProjectID:        7,
			ProjectName:      "Platform Rebuild",
			Hours:            100,
			ClientAmount:     15000,
			ConsultantAmount: 9000,
			Margin:           6000,
		},
		breakdown: []ConsultantBreakdown{
			{UserID: 1, ConsultantName: "Alice Gray", Hours: 60, ClientAmount: 9000, ConsultantAmount: 5400, Margin: 3600},
			{UserID: 2, ConsultantName: "Bob Stone", Hours: 40, ClientAmount: 6000, ConsultantAmount: 3600, Margin: 2400},
		},
		incentive: 450,
	}
	svc := newReportService(t, repo)

	report, err := svc.ProjectProfitability(context.Background(), 7, Window{})
	require.NoError(t, err)
	require.InDelta(t, 40.0, report.MarginPercentage, 1e-9)
	require.InDelta(t, 450.0, report.IncentiveAmount, 1e-9)
	require.Len(t, report.ByConsultant, 2)
}

func TestProjectProfitabilityZeroBilling(t *testing.T) {
	repo := &memoryReportRepo{
		project: &ProjectProfitability{ProjectID: 7, ProjectName: "Internal", Hours: 40},
	}
	svc := newReportService(t, repo)

	report, err := svc.ProjectProfitability(context.Background(), 7, Window{})
	require.NoError(t, err)
	require.Zero(t, report.MarginPercentage)
	require.NotNil(t, report.ByConsultant)
}

func companyRows() ([]SummaryRow, []SummaryRow) {
	byProject := []SummaryRow{
		{ID: 1, Name: "Platform Rebuild", Hours: 100, ClientAmount: 15000, ConsultantAmount: 9000, Margin: 6000, IncentiveAmount: 450},
		{ID: 2, Name: "Data Migration", Hours: 50, ClientAmount: 6000, ConsultantAmount: 4000, Margin: 2000, IncentiveAmount: 120},
	}
	byClient := []SummaryRow{
		{ID: 10, Name: "Acme Corp", Hours: 120, ClientAmount: 18000, ConsultantAmount: 11000, Margin: 7000, IncentiveAmount: 500},
		{ID: 20, Name: "Globex", Hours: 30, ClientAmount: 3000, ConsultantAmount: 2000, Margin: 1000, IncentiveAmount: 70},
	}
	return byProject, byClient
}

func TestCompanySummaryAdditivity(t *testing.T) {
	repo := &memoryReportRepo{}
	repo.byProject, repo.byClient = companyRows()
	svc := newReportService(t, repo)

	summary, err := svc.CompanySummary(context.Background(), Window{})
	require.NoError(t, err)

	// Top-level totals equal the sum of both groupings.
	var clientTotal float64
	for _, row := range summary.ByClient {
		clientTotal += row.ClientAmount
	}
	require.InDelta(t, summary.ClientAmount, clientTotal, 1e-9)
	require.InDelta(t, 150.0, summary.Hours, 1e-9)
	require.InDelta(t, 21000.0, summary.ClientAmount, 1e-9)
	require.InDelta(t, 8000.0, summary.Margin, 1e-9)
	require.InDelta(t, 570.0, summary.IncentiveAmount, 1e-9)
}

func TestCompanySummaryCachedUntilInvalidated(t *testing.T) {
	repo := &memoryReportRepo{}
	repo.byProject, repo.byClient = companyRows()
	svc := newReportService(t, repo)

	_, err := svc.CompanySummary(context.Background(), Window{})
	require.NoError(t, err)
	_, err = svc.CompanySummary(context.Background(), Window{})
	require.NoError(t, err)
	require.Equal(t, 1, repo.companyCalls)

	svc.Invalidate(context.Background())
	_, err = svc.CompanySummary(context.Background(), Window{})
	require.NoError(t, err)
	require.Equal(t, 2, repo.companyCalls)
}

func TestCompanySummaryWindowedCachesSeparately(t *testing.T) {
	repo := &memoryReportRepo{}
	repo.byProject, repo.byClient = companyRows()
	svc := newReportService(t, repo)

	_, err := svc.CompanySummary(context.Background(), Window{})
	require.NoError(t, err)

	august := Window{
		From: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
	}
	_, err = svc.CompanySummary(context.Background(), august)
	require.NoError(t, err)
	require.Equal(t, 2, repo.companyCalls)

	_, err = svc.CompanySummary(context.Background(), august)
	require.NoError(t, err)
	require.Equal(t, 2, repo.companyCalls)
}
