package classifier

import (
	"context"
	"math"
	"testing"

	"github.com/gridslack/gridslack/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	c := New(DefaultConfig())
	ctx := context.Background()

	base := types.Reading{
		Area:                 "AB",
		SourceType:           types.SourceWind,
		CurrentGenerationMW:  500,
		ForecastGenerationMW: 400,
		GridDemandMW:         9000,
		MarketPriceCADPerMWH: 30,
	}

	t.Run("below significance threshold", func(t *testing.T) {
		r := base
		r.CurrentGenerationMW = 404 // 4 MW curtailed
		assert.Nil(t, c.Classify(ctx, r))
	})

	t.Run("exactly at threshold boundary", func(t *testing.T) {
		r := base
		r.CurrentGenerationMW = 404.9
		assert.Nil(t, c.Classify(ctx, r), "4.9 MW is insignificant")
		r.CurrentGenerationMW = 405
		assert.NotNil(t, c.Classify(ctx, r), "5 MW is significant")
	})

	t.Run("event invariants", func(t *testing.T) {
		event := c.Classify(ctx, base)
		require.NotNil(t, event)
		assert.LessOrEqual(t, event.CurtailedMW, event.AvailableCapacityMW)
		assert.GreaterOrEqual(t, event.CurtailmentPercent, 0.0)
		assert.LessOrEqual(t, event.CurtailmentPercent, 100.0)
		assert.Equal(t, event.CurtailedMW*event.DurationHours, event.TotalEnergyCurtailedMWH)
		assert.Equal(t, types.ProvenanceHistorical, event.Provenance)
		assert.Nil(t, event.EndedAt)
	})

	t.Run("curtailed power and percent", func(t *testing.T) {
		event := c.Classify(ctx, base)
		require.NotNil(t, event)
		assert.InDelta(t, 100.0, event.CurtailedMW, 1e-9)
		assert.InDelta(t, 25.0, event.CurtailmentPercent, 1e-9)
	})

	t.Run("opportunity cost uses market price", func(t *testing.T) {
		event := c.Classify(ctx, base)
		require.NotNil(t, event)
		assert.InDelta(t, 100*30.0, event.OpportunityCostCAD, 1e-9)
		require.NotNil(t, event.MarketPriceCADPerMWH)
		assert.Equal(t, 30.0, *event.MarketPriceCADPerMWH)
	})

	t.Run("opportunity cost falls back to floor price", func(t *testing.T) {
		r := base
		r.MarketPriceCADPerMWH = 0
		event := c.Classify(ctx, r)
		require.NotNil(t, event)
		assert.InDelta(t, 100*50.0, event.OpportunityCostCAD, 1e-9)
		assert.Nil(t, event.MarketPriceCADPerMWH, "unknown price stays unset on the event")
	})

	t.Run("curtailed power capped at available capacity", func(t *testing.T) {
		r := base
		r.CurrentGenerationMW = 1000 // more than double the forecast
		event := c.Classify(ctx, r)
		require.NotNil(t, event)
		assert.InDelta(t, 400.0, event.CurtailedMW, 1e-9)
		assert.InDelta(t, 100.0, event.CurtailmentPercent, 1e-9)
	})

	t.Run("invalid inputs return nil", func(t *testing.T) {
		r := base
		r.GridDemandMW = -1
		assert.Nil(t, c.Classify(ctx, r), "negative demand")

		r = base
		r.CurrentGenerationMW = math.NaN()
		assert.Nil(t, c.Classify(ctx, r), "NaN generation")

		r = base
		r.MarketPriceCADPerMWH = math.Inf(1)
		assert.Nil(t, c.Classify(ctx, r), "infinite price")
	})
}

func TestClassifyCausePriority(t *testing.T) {
	c := New(DefaultConfig())
	ctx := context.Background()

	base := types.Reading{
		Area:                 "ON",
		SourceType:           types.SourceSolar,
		CurrentGenerationMW:  1000,
		ForecastGenerationMW: 800,
		GridDemandMW:         5000,
		MarketPriceCADPerMWH: 40,
	}

	t.Run("transmission congestion wins over oversupply", func(t *testing.T) {
		r := base
		r.TransmissionCapacityMW = 900 // congested
		r.GridDemandMW = 500           // also oversupplied
		event := c.Classify(ctx, r)
		require.NotNil(t, event)
		assert.Equal(t, types.CauseTransmissionCongestion, event.Cause)
	})

	t.Run("oversupply", func(t *testing.T) {
		r := base
		r.GridDemandMW = 800 // 1000 > 800*1.15
		event := c.Classify(ctx, r)
		require.NotNil(t, event)
		assert.Equal(t, types.CauseOversupply, event.Cause)
	})

	t.Run("negative pricing", func(t *testing.T) {
		r := base
		r.MarketPriceCADPerMWH = -5
		event := c.Classify(ctx, r)
		require.NotNil(t, event)
		assert.Equal(t, types.CauseNegativePricing, event.Cause)
		// priced at the floor, not the negative price
		assert.InDelta(t, 200*50.0, event.OpportunityCostCAD, 1e-9)
	})

	t.Run("frequency regulation above percent threshold", func(t *testing.T) {
		r := base // 200/800 = 25% > 20%
		event := c.Classify(ctx, r)
		require.NotNil(t, event)
		assert.Equal(t, types.CauseFrequencyRegulation, event.Cause)
	})

	t.Run("other", func(t *testing.T) {
		r := base
		r.ForecastGenerationMW = 950 // 50/950 = 5.3%
		event := c.Classify(ctx, r)
		require.NotNil(t, event)
		assert.Equal(t, types.CauseOther, event.Cause)
	})
}
