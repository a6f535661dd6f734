// Command seed writes synthetic mock-provenance data into the Firestore
// emulator so the statistics and dispatch endpoints have something to serve
// during local development. Everything it writes is tagged mock so it can
// never be mistaken for operational evidence.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/gridslack/gridslack/pkg/log"
	"github.com/gridslack/gridslack/pkg/storage"
	"github.com/gridslack/gridslack/pkg/types"
	"github.com/levenlabs/go-lflag"
)

var areas = []string{"ON", "AB", "BC", "QC"}

var causes = []types.Cause{
	types.CauseOversupply,
	types.CauseTransmissionCongestion,
	types.CauseNegativePricing,
	types.CauseFrequencyRegulation,
}

func main() {
	os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	s := storage.Configured()
	lflag.Configure()

	ctx := context.Background()
	log.Ctx(ctx).InfoContext(ctx, "seeding mock data")

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	now := time.Now()

	for _, area := range areas {
		for i := 0; i < 20; i++ {
			event := mockEvent(rng, area, now)
			id, err := s.InsertCurtailmentEvent(ctx, event)
			if err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to insert event", "area", area, "error", err)
				os.Exit(1)
			}
			event.ID = id

			if rng.Float64() < 0.7 {
				recs := mockRecommendations(rng, event)
				if err := s.InsertRecommendations(ctx, area, recs); err != nil {
					log.Ctx(ctx).ErrorContext(ctx, "failed to insert recommendations", "area", area, "error", err)
					os.Exit(1)
				}
			}
		}

		for i := 0; i < 48; i++ {
			entry := mockDispatchLog(rng, area, now.Add(-time.Duration(i)*time.Hour))
			if err := s.InsertDispatchLog(ctx, entry); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to insert dispatch log", "area", area, "error", err)
				os.Exit(1)
			}
		}

		log.Ctx(ctx).InfoContext(ctx, "seeded area", "area", area)
	}

	if err := s.Close(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "seeding complete")
}

func mockEvent(rng *rand.Rand, area string, now time.Time) types.CurtailmentEvent {
	// 50-250 MW curtailed at 10-50% of available capacity, market price
	// between -10 and 90 CAD/MWh, episodes lasting 0.5-3.5 hours
	curtailedMW := rng.Float64()*200 + 50
	availableMW := curtailedMW / (0.1 + rng.Float64()*0.4)
	marketPrice := rng.Float64()*100 - 10
	durationHours := rng.Float64()*3 + 0.5
	demandMW := rng.Float64()*15000 + 10000

	sourceType := types.SourceSolar
	if rng.Intn(2) == 0 {
		sourceType = types.SourceWind
	}
	cause := causes[rng.Intn(len(causes))]

	assumedPrice := marketPrice
	if assumedPrice < 30 {
		assumedPrice = 30
	}

	return types.CurtailmentEvent{
		Area:                    area,
		SourceType:              sourceType,
		CurtailedMW:             curtailedMW,
		AvailableCapacityMW:     availableMW,
		CurtailmentPercent:      curtailedMW / availableMW * 100,
		DurationHours:           durationHours,
		TotalEnergyCurtailedMWH: curtailedMW * durationHours,
		Cause:                   cause,
		CauseDetail:             fmt.Sprintf("Mock %s event", cause),
		MarketPriceCADPerMWH:    &marketPrice,
		OpportunityCostCAD:      curtailedMW * assumedPrice,
		GridDemandMW:            &demandMW,
		OccurredAt:              now.Add(-time.Duration(rng.Float64() * float64(7*24*time.Hour))),
		Provenance:              types.ProvenanceMock,
	}
}

func mockRecommendations(rng *rand.Rand, event types.CurtailmentEvent) []types.Recommendation {
	targetMW := event.CurtailedMW * (0.5 + rng.Float64()*0.5)
	cost := targetMW * rng.Float64() * 10
	revenue := targetMW * (20 + rng.Float64()*60)

	rec := types.Recommendation{
		EventID:             event.ID,
		Area:                event.Area,
		ActionType:          types.ActionStorageCharge,
		TargetMW:            targetMW,
		ExpectedMWHSaved:    targetMW * event.DurationHours,
		EstimatedCostCAD:    cost,
		EstimatedRevenueCAD: revenue,
		CostBenefitRatio:    types.SafeDivide(revenue, cost, 0.01),
		Confidence:          0.92,
		Priority:            types.PriorityMedium,
		Reasoning:           "Mock recommendation for testing",
		GeneratedAt:         event.OccurredAt,
	}
	if rng.Float64() < 0.5 {
		rec.Implemented = true
		saved := rec.ExpectedMWHSaved * (0.8 + rng.Float64()*0.4)
		rec.ActualMWHSaved = &saved
		rating := rng.Intn(5) + 1
		rec.EffectivenessRating = &rating
	}
	return []types.Recommendation{rec}
}

func mockDispatchLog(rng *rand.Rand, area string, at time.Time) types.DispatchLogEntry {
	actions := []types.DispatchAction{types.DispatchCharge, types.DispatchDischarge, types.DispatchHold}
	action := actions[rng.Intn(len(actions))]

	entry := types.DispatchLogEntry{
		Area:          area,
		Action:        action,
		DurationHours: 1,
		DispatchedAt:  at,
	}
	socBefore := 20 + rng.Float64()*60
	entry.SOCBeforePercent = socBefore
	entry.SOCAfterPercent = socBefore

	switch action {
	case types.DispatchCharge:
		entry.PowerMW = 20 + rng.Float64()*80
		entry.SOCAfterPercent = socBefore + 5
		entry.Reason = types.ReasonOpportunisticCharge
		entry.ExpectedRevenueCAD = entry.PowerMW * (rng.Float64() * 70)
		if rng.Float64() < 0.5 {
			entry.Reason = types.ReasonCurtailmentAbsorption
			entry.RenewableAbsorption = true
			entry.CurtailmentMitigation = true
		}
	case types.DispatchDischarge:
		entry.PowerMW = 20 + rng.Float64()*80
		entry.SOCAfterPercent = socBefore - 5
		entry.Reason = types.ReasonPriceArbitrage
		entry.ExpectedRevenueCAD = entry.PowerMW * (90 + rng.Float64()*40)
	default:
		entry.Reason = types.ReasonHold
	}
	return entry
}
