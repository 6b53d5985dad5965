// Package reports computes financial aggregates over frozen time entry
// amounts and incentive earnings. Everything here is read-only; no rate is
// ever re-resolved at report time.
package reports

import "time"

// Year1099Report totals one consultant's earnings for a calendar year.
type Year1099Report struct {
	UserID            int64   `json:"userId"`
	Year              int     `json:"year"`
	DirectEarnings    float64 `json:"directEarnings"`
	IncentiveEarnings float64 `json:"incentiveEarnings"`
	TotalEarnings     float64 `json:"totalEarnings"`
}

// ConsultantBreakdown is one consultant's share of a project.
type ConsultantBreakdown struct {
	UserID           int64   `json:"userId"`
	ConsultantName   string  `json:"consultantName"`
	Hours            float64 `json:"hours"`
	ClientAmount     float64 `json:"clientAmount"`
	ConsultantAmount float64 `json:"consultantAmount"`
	Margin           float64 `json:"margin"`
}

// ProjectProfitability aggregates one project over an optional date window.
type ProjectProfitability struct {
	ProjectID        int64                 `json:"projectId"`
	ProjectName      string                `json:"projectName"`
	Hours            float64               `json:"hours"`
	ClientAmount     float64               `json:"clientAmount"`
	ConsultantAmount float64               `json:"consultantAmount"`
	Margin           float64               `json:"margin"`
	MarginPercentage float64               `json:"marginPercentage"`
	IncentiveAmount  float64               `json:"incentiveAmount"`
	ByConsultant     []ConsultantBreakdown `json:"byConsultant"`
}

// SummaryRow is one project's or client's slice of the company summary.
type SummaryRow struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Hours            float64 `json:"hours"`
	ClientAmount     float64 `json:"clientAmount"`
	ConsultantAmount float64 `json:"consultantAmount"`
	Margin           float64 `json:"margin"`
	MarginPercentage float64 `json:"marginPercentage"`
	IncentiveAmount  float64 `json:"incentiveAmount"`
}

// CompanySummary is the company-wide rollup grouped two ways.
type CompanySummary struct {
	Hours            float64      `json:"hours"`
	ClientAmount     float64      `json:"clientAmount"`
	ConsultantAmount float64      `json:"consultantAmount"`
	Margin           float64      `json:"margin"`
	IncentiveAmount  float64      `json:"incentiveAmount"`
	ByProject        []SummaryRow `json:"byProject"`
	ByClient         []SummaryRow `json:"byClient"`
}

// Window bounds a profitability query; zero values mean unbounded.
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) cacheKey() string {
	if w.From.IsZero() && w.To.IsZero() {
		return "all"
	}
	return w.From.Format("20060102") + "-" + w.To.Format("20060102")
}

// marginPercent reports margin as a percentage of the client amount, 0 when
// nothing was billed.
func marginPercent(margin, clientAmount float64) float64 {
	if clientAmount == 0 {
		return 0
	}
	return margin / clientAmount * 100
}
