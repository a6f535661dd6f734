package stats

import (
	"testing"
	"time"

	"github.com/gridslack/gridslack/pkg/types"
	"github.com/stretchr/testify/assert"
)

func f64(v float64) *float64 { return &v }

func window(days int) (time.Time, time.Time) {
	end := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	return end.AddDate(0, 0, -days), end
}

func TestAggregate(t *testing.T) {
	t.Run("empty window", func(t *testing.T) {
		start, end := window(7)
		snap := Aggregate("ON", nil, nil, nil, start, end)
		assert.Zero(t, snap.TotalEvents)
		assert.Zero(t, snap.CurtailmentReductionPercent)
		assert.Zero(t, snap.ROIBenefitCost)
		assert.Zero(t, snap.RenewableAlignmentPercent)
		assert.Equal(t, types.ProvenanceMock, snap.Provenance)
	})

	t.Run("monthly normalization over seven days", func(t *testing.T) {
		start, end := window(7)
		recs := []types.Recommendation{{
			Implemented:      true,
			ExpectedMWHSaved: 100,
		}}
		snap := Aggregate("ON", nil, recs, nil, start, end)
		assert.InDelta(t, 100*30.0/7, snap.MonthlyCurtailmentAvoidedMWH, 0.1)
		assert.InDelta(t, 428.6, snap.MonthlyCurtailmentAvoidedMWH, 0.1)
	})

	t.Run("sub-day window floors at one day", func(t *testing.T) {
		end := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		start := end.Add(-6 * time.Hour)
		recs := []types.Recommendation{{Implemented: true, ExpectedMWHSaved: 10}}
		snap := Aggregate("ON", nil, recs, nil, start, end)
		assert.Equal(t, float64(1), snap.WindowDays)
		assert.InDelta(t, 300, snap.MonthlyCurtailmentAvoidedMWH, 0.001)
	})

	t.Run("only implemented recommendations count", func(t *testing.T) {
		start, end := window(30)
		recs := []types.Recommendation{
			{Implemented: true, ExpectedMWHSaved: 40, EstimatedCostCAD: 100, EstimatedRevenueCAD: 500},
			{Implemented: false, ExpectedMWHSaved: 999, EstimatedRevenueCAD: 9999},
		}
		snap := Aggregate("ON", nil, recs, nil, start, end)
		assert.InDelta(t, 40, snap.TotalMWHSaved, 0.001)
		assert.InDelta(t, 400, snap.NetBenefitCAD, 0.001)
		assert.InDelta(t, 4, snap.ROIBenefitCost, 0.001)
	})

	t.Run("actuals preferred over estimates", func(t *testing.T) {
		start, end := window(30)
		recs := []types.Recommendation{{
			Implemented:         true,
			ExpectedMWHSaved:    40,
			EstimatedCostCAD:    100,
			EstimatedRevenueCAD: 500,
			ActualMWHSaved:      f64(35),
			ActualCostCAD:       f64(120),
			ActualRevenueCAD:    f64(450),
			EffectivenessRating: func() *int { r := 4; return &r }(),
		}}
		snap := Aggregate("ON", nil, recs, nil, start, end)
		assert.InDelta(t, 35, snap.TotalMWHSaved, 0.001)
		assert.InDelta(t, 330, snap.NetBenefitCAD, 0.001)
		assert.InDelta(t, 4, snap.AvgEffectivenessRating, 0.001)
	})

	t.Run("reduction percent against curtailed energy", func(t *testing.T) {
		start, end := window(30)
		events := []types.CurtailmentEvent{
			{TotalEnergyCurtailedMWH: 200, Cause: types.CauseOversupply, OpportunityCostCAD: 8000},
		}
		recs := []types.Recommendation{{Implemented: true, ExpectedMWHSaved: 50}}
		snap := Aggregate("ON", events, recs, nil, start, end)
		assert.InDelta(t, 25, snap.CurtailmentReductionPercent, 0.001)
	})

	t.Run("by-cause breakdown", func(t *testing.T) {
		start, end := window(30)
		events := []types.CurtailmentEvent{
			{TotalEnergyCurtailedMWH: 100, OpportunityCostCAD: 5000, Cause: types.CauseOversupply},
			{TotalEnergyCurtailedMWH: 60, OpportunityCostCAD: 3000, Cause: types.CauseOversupply},
			{TotalEnergyCurtailedMWH: 40, OpportunityCostCAD: 2000, Cause: types.CauseNegativePricing},
		}
		snap := Aggregate("ON", events, nil, nil, start, end)
		assert.Equal(t, 2, snap.ByCause[types.CauseOversupply].Events)
		assert.InDelta(t, 160, snap.ByCause[types.CauseOversupply].MWH, 0.001)
		assert.InDelta(t, 2000, snap.ByCause[types.CauseNegativePricing].CostCAD, 0.001)
	})

	t.Run("provenance flips on one historical event", func(t *testing.T) {
		start, end := window(30)
		mock := types.CurtailmentEvent{Provenance: types.ProvenanceMock}
		snap := Aggregate("ON", []types.CurtailmentEvent{mock, mock}, nil, nil, start, end)
		assert.Equal(t, types.ProvenanceMock, snap.Provenance)

		hist := types.CurtailmentEvent{Provenance: types.ProvenanceHistorical}
		snap = Aggregate("ON", []types.CurtailmentEvent{mock, hist, mock}, nil, nil, start, end)
		assert.Equal(t, types.ProvenanceHistorical, snap.Provenance)
	})

	t.Run("renewable alignment from dispatch logs", func(t *testing.T) {
		start, end := window(30)
		logs := []types.DispatchLogEntry{
			{Action: types.DispatchCharge, RenewableAbsorption: true},
			{Action: types.DispatchCharge, RenewableAbsorption: false},
			{Action: types.DispatchHold},
			{Action: types.DispatchDischarge},
		}
		snap := Aggregate("ON", nil, nil, logs, start, end)
		assert.InDelta(t, 25, snap.RenewableAlignmentPercent, 0.001)
	})
}
