package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

// RepositoryPort defines the aggregate queries reports are built from.
type RepositoryPort interface {
	DirectEarnings(ctx context.Context, userID int64, year int) (float64, error)
	LeaderEarnings(ctx context.Context, userID int64, year int) (float64, error)
	ProjectTotals(ctx context.Context, projectID int64, window Window) (*ProjectProfitability, error)
	ProjectByConsultant(ctx context.Context, projectID int64, window Window) ([]ConsultantBreakdown, error)
	ProjectIncentives(ctx context.Context, projectID int64, window Window) (float64, error)
	CompanyByProject(ctx context.Context, window Window) ([]SummaryRow, error)
	CompanyByClient(ctx context.Context, window Window) ([]SummaryRow, error)
}

// Service assembles financial reports. Independent aggregates of one report
// are fanned out concurrently.
type Service struct {
	repo   RepositoryPort
	cache  *Cache
	logger *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, cache *Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Year1099 totals a consultant's direct and incentive earnings for a year.
func (s *Service) Year1099(ctx context.Context, userID int64, year int) (*Year1099Report, error) {
	if year < 2000 || year > time.Now().Year()+1 {
		return nil, fmt.Errorf("%w: invalid year", httpx.ErrValidation)
	}

	report := &Year1099Report{UserID: userID, Year: year}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		report.DirectEarnings, err = s.repo.DirectEarnings(ctx, userID, year)
		return err
	})
	g.Go(func() error {
		var err error
		report.IncentiveEarnings, err = s.repo.LeaderEarnings(ctx, userID, year)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reports: 1099: %w", err)
	}

	report.TotalEarnings = report.DirectEarnings + report.IncentiveEarnings
	return report, nil
}

// ProjectProfitability aggregates one project, with a per-consultant
// breakdown, over an optional window.
func (s *Service) ProjectProfitability(ctx context.Context, projectID int64, window Window) (*ProjectProfitability, error) {
	var (
		report       *ProjectProfitability
		byConsultant []ConsultantBreakdown
		incentives   float64
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		report, err = s.repo.ProjectTotals(ctx, projectID, window)
		return err
	})
	g.Go(func() error {
		var err error
		byConsultant, err = s.repo.ProjectByConsultant(ctx, projectID, window)
		return err
	})
	g.Go(func() error {
		var err error
		incentives, err = s.repo.ProjectIncentives(ctx, projectID, window)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.MarginPercentage = marginPercent(report.Margin, report.ClientAmount)
	report.IncentiveAmount = incentives
	report.ByConsultant = byConsultant
	if report.ByConsultant == nil {
		report.ByConsultant = []ConsultantBreakdown{}
	}
	return report, nil
}

// CompanySummary aggregates the whole company grouped by project and by
// client over an optional window. The result is cached until the reports
// version is bumped.
func (s *Service) CompanySummary(ctx context.Context, window Window) (*CompanySummary, error) {
	key, err := s.cache.BuildKey(ctx, "reports", "company-summary", window.cacheKey())
	if err != nil {
		return nil, err
	}

	var summary CompanySummary
	err = s.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (any, error) {
		return s.buildCompanySummary(ctx, window)
	})
	if err != nil {
		return nil, fmt.Errorf("reports: company summary: %w", err)
	}
	return &summary, nil
}

func (s *Service) buildCompanySummary(ctx context.Context, window Window) (*CompanySummary, error) {
	var byProject, byClient []SummaryRow

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		byProject, err = s.repo.CompanyByProject(ctx, window)
		return err
	})
	g.Go(func() error {
		var err error
		byClient, err = s.repo.CompanyByClient(ctx, window)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &CompanySummary{ByProject: byProject, ByClient: byClient}
	if summary.ByProject == nil {
		summary.ByProject = []SummaryRow{}
	}
	if summary.ByClient == nil {
		summary.ByClient = []SummaryRow{}
	}
	for _, row := range summary.ByProject {
		summary.Hours += row.Hours
		summary.ClientAmount += row.ClientAmount
		summary.ConsultantAmount += row.ConsultantAmount
		summary.Margin += row.Margin
		summary.IncentiveAmount += row.IncentiveAmount
	}
	return summary, nil
}

// Invalidate bumps the cache version after writes that change report inputs.
func (s *Service) Invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump reports cache", slog.Any("error", err))
	}
}
