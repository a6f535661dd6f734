package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/gridslack/gridslack/pkg/log"
	"github.com/gridslack/gridslack/pkg/types"
)

// Config holds the detection thresholds. Tests inject alternatives; the
// defaults match operational tuning.
type Config struct {
	// MinSignificantMW is the curtailed power below which no event is created.
	MinSignificantMW float64
	// FloorPriceCADPerMWH values curtailed energy when the market price is
	// unknown or non-positive.
	FloorPriceCADPerMWH float64
	// OversupplyDemandMultiple is the generation/demand ratio above which a
	// reading classifies as oversupply.
	OversupplyDemandMultiple float64
	// FrequencyRegulationPercent is the curtailment percent above which an
	// otherwise unexplained reading classifies as frequency regulation.
	FrequencyRegulationPercent float64
}

// DefaultConfig returns the operational thresholds.
func DefaultConfig() Config {
	return Config{
		MinSignificantMW:           5,
		FloorPriceCADPerMWH:        50,
		OversupplyDemandMultiple:   1.15,
		FrequencyRegulationPercent: 20,
	}
}

// Classifier decides whether a telemetry reading constitutes a curtailment
// event and what most likely caused it. It is stateless per call.
type Classifier struct {
	cfg Config
	now func() time.Time
}

// New creates a Classifier with the given thresholds.
func New(cfg Config) *Classifier {
	return &Classifier{cfg: cfg, now: time.Now}
}

// OpportunityCost converts curtailed power into a CAD figure, valuing it at
// the market price when positive and at floorPrice otherwise.
func OpportunityCost(curtailedMW, marketPrice, floorPrice float64) float64 {
	price := marketPrice
	if price <= 0 {
		price = floorPrice
	}
	return curtailedMW * price
}

// Classify returns a new CurtailmentEvent for the reading, or nil when the
// reading shows no significant curtailment. It never persists anything and
// never fails on malformed telemetry: invalid numbers (NaN, infinities,
// negative demand) simply yield nil since this runs on a best-effort stream.
func (c *Classifier) Classify(ctx context.Context, r types.Reading) *types.CurtailmentEvent {
	if !validReading(r) {
		log.Ctx(ctx).DebugContext(ctx, "ignoring invalid reading",
			slog.String("area", r.Area),
			slog.Float64("currentGenerationMW", r.CurrentGenerationMW),
			slog.Float64("gridDemandMW", r.GridDemandMW),
		)
		return nil
	}

	curtailedMW := math.Max(0, r.CurrentGenerationMW-r.ForecastGenerationMW)
	if curtailedMW < c.cfg.MinSignificantMW {
		log.Ctx(ctx).DebugContext(ctx, "curtailment below significance threshold",
			slog.String("area", r.Area),
			slog.Float64("curtailedMW", curtailedMW),
			slog.Float64("thresholdMW", c.cfg.MinSignificantMW),
		)
		return nil
	}

	availableMW := r.ForecastGenerationMW
	if availableMW <= 0 {
		availableMW = r.CurrentGenerationMW
	}
	// curtailed power can never exceed the capacity it is measured against
	curtailedMW = math.Min(curtailedMW, availableMW)
	curtailmentPercent := curtailedMW / availableMW * 100

	cause, detail := c.classifyCause(r, curtailmentPercent)

	// point-in-time readings assume a 1-hour episode; EndedAt stays unset
	// until the caller closes it
	const durationHours = 1.0

	event := &types.CurtailmentEvent{
		Area:                    r.Area,
		SourceType:              r.SourceType,
		CurtailedMW:             curtailedMW,
		AvailableCapacityMW:     availableMW,
		CurtailmentPercent:      curtailmentPercent,
		DurationHours:           durationHours,
		TotalEnergyCurtailedMWH: curtailedMW * durationHours,
		Cause:                   cause,
		CauseDetail:             detail,
		OpportunityCostCAD:      OpportunityCost(curtailedMW, r.MarketPriceCADPerMWH, c.cfg.FloorPriceCADPerMWH),
		OccurredAt:              c.now(),
		Provenance:              types.ProvenanceHistorical,
	}
	if r.MarketPriceCADPerMWH != 0 {
		price := r.MarketPriceCADPerMWH
		event.MarketPriceCADPerMWH = &price
	}
	if r.GridDemandMW != 0 {
		demand := r.GridDemandMW
		event.GridDemandMW = &demand
	}

	log.Ctx(ctx).DebugContext(ctx, "curtailment event detected",
		slog.String("area", r.Area),
		slog.Float64("curtailedMW", curtailedMW),
		slog.String("cause", string(cause)),
	)
	return event
}

// classifyCause applies the fixed priority order: transmission congestion,
// oversupply, negative pricing, frequency regulation, other. First match
// wins.
func (c *Classifier) classifyCause(r types.Reading, curtailmentPercent float64) (types.Cause, string) {
	if r.TransmissionCapacityMW > 0 && r.CurrentGenerationMW > r.TransmissionCapacityMW {
		return types.CauseTransmissionCongestion,
			fmt.Sprintf("Generation %.1f MW exceeds transmission capacity %.1f MW", r.CurrentGenerationMW, r.TransmissionCapacityMW)
	}
	if r.GridDemandMW > 0 && r.CurrentGenerationMW > r.GridDemandMW*c.cfg.OversupplyDemandMultiple {
		return types.CauseOversupply,
			fmt.Sprintf("Generation %.1f MW exceeds demand %.1f MW by >%.0f%%", r.CurrentGenerationMW, r.GridDemandMW, (c.cfg.OversupplyDemandMultiple-1)*100)
	}
	if r.MarketPriceCADPerMWH < 0 {
		return types.CauseNegativePricing,
			fmt.Sprintf("Market price %.2f CAD/MWh is negative", r.MarketPriceCADPerMWH)
	}
	if curtailmentPercent > c.cfg.FrequencyRegulationPercent {
		return types.CauseFrequencyRegulation,
			fmt.Sprintf("High curtailment rate %.1f%% suggests frequency control", curtailmentPercent)
	}
	return types.CauseOther, "No dominant grid condition identified"
}

func validReading(r types.Reading) bool {
	if r.GridDemandMW < 0 {
		return false
	}
	for _, v := range []float64{
		r.CurrentGenerationMW,
		r.ForecastGenerationMW,
		r.GridDemandMW,
		r.MarketPriceCADPerMWH,
		r.TransmissionCapacityMW,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
