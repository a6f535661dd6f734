package types

import "time"

// CauseTotals is the per-cause slice of a KPI window.
type CauseTotals struct {
	Events  int     `json:"events"`
	MWH     float64 `json:"mwh"`
	CostCAD float64 `json:"costCAD"`
}

// KPISnapshot is the rolled-up view of events, recommendations, and dispatch
// logs over a time window. It is computed on demand and never persisted.
// Monthly* figures are the window totals normalized to a 30-day month so
// windows of different lengths stay comparable.
type KPISnapshot struct {
	Area        string    `json:"area"`
	WindowStart time.Time `json:"windowStart"`
	WindowEnd   time.Time `json:"windowEnd"`
	WindowDays  float64   `json:"windowDays"`

	TotalEvents             int     `json:"totalEvents"`
	TotalCurtailedMWH       float64 `json:"totalCurtailedMWH"`
	TotalOpportunityCostCAD float64 `json:"totalOpportunityCostCAD"`

	// Totals across implemented recommendations, actuals preferred over
	// estimates.
	TotalMWHSaved   float64 `json:"totalMWHSaved"`
	TotalCostCAD    float64 `json:"totalCostCAD"`
	TotalRevenueCAD float64 `json:"totalRevenueCAD"`

	CurtailmentReductionPercent float64 `json:"curtailmentReductionPercent"`
	NetBenefitCAD               float64 `json:"netBenefitCAD"`
	ROIBenefitCost              float64 `json:"roiBenefitCost"`
	AvgEffectivenessRating      float64 `json:"avgEffectivenessRating"`

	MonthlyCurtailmentAvoidedMWH   float64 `json:"monthlyCurtailmentAvoidedMWH"`
	MonthlyOpportunityCostSavedCAD float64 `json:"monthlyOpportunityCostSavedCAD"`

	RenewableAlignmentPercent float64 `json:"renewableAlignmentPercent"`

	Provenance Provenance            `json:"provenance"`
	ByCause    map[Cause]CauseTotals `json:"byCause"`
}
