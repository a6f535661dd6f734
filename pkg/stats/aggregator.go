// Package stats rolls up stored curtailment events, recommendations, and
// dispatch logs into monthly-normalized KPIs.
package stats

import (
	"time"

	"github.com/gridslack/gridslack/pkg/types"
)

// normalMonthDays is the month length all windows are normalized to so KPI
// figures from windows of different lengths stay comparable.
const normalMonthDays = 30

// Aggregate computes a KPISnapshot for one area over [start, end). Only
// implemented recommendations count toward savings, with actuals preferred
// over estimates. The snapshot is labeled historical as soon as a single
// non-synthetic event contributes; a purely synthetic window stays mock.
func Aggregate(area string, events []types.CurtailmentEvent, recs []types.Recommendation, logs []types.DispatchLogEntry, start, end time.Time) types.KPISnapshot {
	days := end.Sub(start).Hours() / 24
	if days < 1 {
		days = 1
	}
	monthly := normalMonthDays / days

	snap := types.KPISnapshot{
		Area:        area,
		WindowStart: start,
		WindowEnd:   end,
		WindowDays:  days,
		Provenance:  types.ProvenanceMock,
		ByCause:     make(map[types.Cause]types.CauseTotals),
	}

	for _, ev := range events {
		snap.TotalEvents++
		snap.TotalCurtailedMWH += ev.TotalEnergyCurtailedMWH
		snap.TotalOpportunityCostCAD += ev.OpportunityCostCAD
		if ev.Provenance == types.ProvenanceHistorical {
			snap.Provenance = types.ProvenanceHistorical
		}
		ct := snap.ByCause[ev.Cause]
		ct.Events++
		ct.MWH += ev.TotalEnergyCurtailedMWH
		ct.CostCAD += ev.OpportunityCostCAD
		snap.ByCause[ev.Cause] = ct
	}

	var ratingSum, ratingCount float64
	for _, rec := range recs {
		if !rec.Implemented {
			continue
		}
		snap.TotalMWHSaved += orElse(rec.ActualMWHSaved, rec.ExpectedMWHSaved)
		snap.TotalCostCAD += orElse(rec.ActualCostCAD, rec.EstimatedCostCAD)
		snap.TotalRevenueCAD += orElse(rec.ActualRevenueCAD, rec.EstimatedRevenueCAD)
		if rec.EffectivenessRating != nil {
			ratingSum += float64(*rec.EffectivenessRating)
			ratingCount++
		}
	}

	snap.CurtailmentReductionPercent = types.SafeDivide(snap.TotalMWHSaved, snap.TotalCurtailedMWH, 0) * 100
	snap.NetBenefitCAD = snap.TotalRevenueCAD - snap.TotalCostCAD
	snap.ROIBenefitCost = types.SafeDivide(snap.NetBenefitCAD, snap.TotalCostCAD, 0)
	snap.AvgEffectivenessRating = types.SafeDivide(ratingSum, ratingCount, 0)

	snap.MonthlyCurtailmentAvoidedMWH = snap.TotalMWHSaved * monthly
	snap.MonthlyOpportunityCostSavedCAD = snap.NetBenefitCAD * monthly

	var absorbing float64
	for _, entry := range logs {
		if entry.RenewableAbsorption {
			absorbing++
		}
	}
	snap.RenewableAlignmentPercent = types.SafeDivide(absorbing, float64(len(logs)), 0) * 100

	return snap
}

func orElse(actual *float64, estimated float64) float64 {
	if actual != nil {
		return *actual
	}
	return estimated
}
