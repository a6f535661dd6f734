package recommender

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gridslack/gridslack/pkg/log"
	"github.com/gridslack/gridslack/pkg/types"
)

// costBenefitEpsilon floors the denominator of cost/benefit ratios so
// zero-cost actions (storage charging) stay finite.
const costBenefitEpsilon = 0.01

// Config holds the per-resource economics. Tests inject alternatives.
type Config struct {
	// FloorPriceCADPerMWH values energy when the event has no market price.
	FloorPriceCADPerMWH float64
	// StorageHighPriorityMW is the storage target above which a charge
	// recommendation is high priority.
	StorageHighPriorityMW float64
	// DRAbsorptionFraction caps demand response at this fraction of the
	// curtailed power.
	DRAbsorptionFraction float64
	// DRIncentiveCADPerMWH is the participant incentive paid per MWh shifted.
	DRIncentiveCADPerMWH float64
	// DRHighPriorityMW is the DR target above which the recommendation is
	// high priority.
	DRHighPriorityMW float64
	// ExportFraction caps inter-tie export at this fraction of the curtailed
	// power.
	ExportFraction float64
	// ExportPriceDiscount discounts the market price for wheeling.
	ExportPriceDiscount float64
	// ExportMinPriceCADPerMWH is the discounted price below which exporting
	// is not worth scheduling.
	ExportMinPriceCADPerMWH float64
	// ExportWheelingCADPerMWH is the transmission fee per MWh exported.
	ExportWheelingCADPerMWH float64

	StorageConfidence float64
	DRConfidence      float64
	ExportConfidence  float64
}

// DefaultConfig returns the operational economics.
func DefaultConfig() Config {
	return Config{
		FloorPriceCADPerMWH:     50,
		StorageHighPriorityMW:   50,
		DRAbsorptionFraction:    0.6,
		DRIncentiveCADPerMWH:    20,
		DRHighPriorityMW:        80,
		ExportFraction:          0.8,
		ExportPriceDiscount:     0.85,
		ExportMinPriceCADPerMWH: 10,
		ExportWheelingCADPerMWH: 2,
		StorageConfidence:       0.92,
		DRConfidence:            0.85,
		ExportConfidence:        0.78,
	}
}

// Recommender turns a curtailment event plus available flexible resources
// into zero or more costed mitigation recommendations. It is stateless per
// call; persistence is the caller's concern.
type Recommender struct {
	cfg Config
	now func() time.Time
}

// New creates a Recommender with the given economics.
func New(cfg Config) *Recommender {
	return &Recommender{cfg: cfg, now: time.Now}
}

// Recommend evaluates each resource rule independently; every rule whose
// activation condition holds appends one recommendation. No cross-resource
// ranking is applied.
func (r *Recommender) Recommend(ctx context.Context, event types.CurtailmentEvent, res types.Resources) []types.Recommendation {
	price := r.cfg.FloorPriceCADPerMWH
	if event.MarketPriceCADPerMWH != nil && *event.MarketPriceCADPerMWH > 0 {
		price = *event.MarketPriceCADPerMWH
	}

	var recs []types.Recommendation
	if rec, ok := r.storageCharge(event, res, price); ok {
		recs = append(recs, rec)
	}
	if rec, ok := r.demandResponse(event, res, price); ok {
		recs = append(recs, rec)
	}
	if rec, ok := r.exportIntertie(event, res, price); ok {
		recs = append(recs, rec)
	}

	log.Ctx(ctx).DebugContext(ctx, "recommendations generated",
		slog.String("eventID", event.ID),
		slog.String("area", event.Area),
		slog.Int("count", len(recs)),
	)
	return recs
}

// storageCharge absorbs curtailed energy into battery storage. Charging is
// modeled as free, so the cost/benefit ratio rides on the epsilon floor.
func (r *Recommender) storageCharge(event types.CurtailmentEvent, res types.Resources, price float64) (types.Recommendation, bool) {
	if res.StorageHeadroomMW <= 0 {
		return types.Recommendation{}, false
	}
	targetMW := min(event.CurtailedMW, res.StorageHeadroomMW)
	revenue := price * targetMW

	priority := types.PriorityMedium
	if targetMW > r.cfg.StorageHighPriorityMW {
		priority = types.PriorityHigh
	}

	return r.build(event, types.ActionStorageCharge, targetMW, 0, revenue, r.cfg.StorageConfidence, priority, "5 minutes",
		fmt.Sprintf("During %s event, charge battery storage with %.1f MW of curtailed %s energy. This avoids curtailment and stores energy for later use during peak demand or high prices.",
			event.Cause, targetMW, event.SourceType)), true
}

// demandResponse shifts flexible load into the curtailment window. Only
// emitted when the net benefit after the participant incentive is positive.
func (r *Recommender) demandResponse(event types.CurtailmentEvent, res types.Resources, price float64) (types.Recommendation, bool) {
	if res.DemandResponseMW <= 0 {
		return types.Recommendation{}, false
	}
	targetMW := min(event.CurtailedMW*r.cfg.DRAbsorptionFraction, res.DemandResponseMW)
	cost := targetMW * r.cfg.DRIncentiveCADPerMWH
	revenue := price * targetMW
	if revenue-cost <= 0 {
		return types.Recommendation{}, false
	}

	priority := types.PriorityMedium
	if targetMW > r.cfg.DRHighPriorityMW {
		priority = types.PriorityHigh
	}

	return r.build(event, types.ActionDemandResponse, targetMW, cost, revenue, r.cfg.DRConfidence, priority, "15 minutes",
		fmt.Sprintf("Activate demand response to absorb %.1f MW of surplus %s generation. Offer flexible industrial loads a discounted rate of %.2f CAD/MWh to shift into this period.",
			targetMW, event.SourceType, price-r.cfg.DRIncentiveCADPerMWH)), true
}

// exportIntertie wheels curtailed power to a neighboring jurisdiction. Only
// emitted when the discounted export price clears the minimum.
func (r *Recommender) exportIntertie(event types.CurtailmentEvent, res types.Resources, price float64) (types.Recommendation, bool) {
	if res.ExportCapacityMW <= 0 {
		return types.Recommendation{}, false
	}
	exportPrice := price * r.cfg.ExportPriceDiscount
	if exportPrice <= r.cfg.ExportMinPriceCADPerMWH {
		return types.Recommendation{}, false
	}
	targetMW := min(event.CurtailedMW*r.cfg.ExportFraction, res.ExportCapacityMW)
	cost := targetMW * r.cfg.ExportWheelingCADPerMWH
	revenue := targetMW * exportPrice

	return r.build(event, types.ActionExportIntertie, targetMW, cost, revenue, r.cfg.ExportConfidence, types.PriorityMedium, "30 minutes",
		fmt.Sprintf("Export %.1f MW to a neighboring jurisdiction via inter-tie at %.2f CAD/MWh, avoiding curtailment while generating export revenue.",
			targetMW, exportPrice)), true
}

func (r *Recommender) build(event types.CurtailmentEvent, action types.ActionType, targetMW, cost, revenue, confidence float64, priority types.Priority, timeline, reasoning string) types.Recommendation {
	return types.Recommendation{
		EventID:                event.ID,
		Area:                   event.Area,
		ActionType:             action,
		TargetMW:               targetMW,
		ExpectedMWHSaved:       targetMW * event.DurationHours,
		EstimatedCostCAD:       cost,
		EstimatedRevenueCAD:    revenue,
		CostBenefitRatio:       types.SafeDivide(revenue, cost, costBenefitEpsilon),
		Confidence:             confidence,
		Priority:               priority,
		ImplementationTimeline: timeline,
		Reasoning:              reasoning,
		GeneratedAt:            r.now(),
	}
}
