package types

import "time"

// SourceType identifies the renewable generation source behind a reading.
type SourceType string

const (
	SourceSolar SourceType = "solar"
	SourceWind  SourceType = "wind"
	SourceHydro SourceType = "hydro"
	SourceMixed SourceType = "mixed"
)

// Cause classifies why renewable generation was curtailed.
type Cause string

const (
	CauseTransmissionCongestion Cause = "transmission_congestion"
	CauseOversupply             Cause = "oversupply"
	CauseNegativePricing        Cause = "negative_pricing"
	CauseFrequencyRegulation    Cause = "frequency_regulation"
	CauseOther                  Cause = "other"
)

// Provenance distinguishes synthetic data from operationally observed data.
// Anything derived from at least one observed record is "historical"; data
// made up entirely of seeded/test records is "mock" and must never be
// reported as operational evidence.
type Provenance string

const (
	ProvenanceMock       Provenance = "mock"
	ProvenanceHistorical Provenance = "historical"
)

// CurtailmentEvent represents one detected curtailment episode. Events are
// immutable once created except for EndedAt, which is set when the episode
// closes.
type CurtailmentEvent struct {
	ID                      string     `json:"id"`
	Area                    string     `json:"area"`
	SourceType              SourceType `json:"sourceType"`
	CurtailedMW             float64    `json:"curtailedMW"`
	AvailableCapacityMW     float64    `json:"availableCapacityMW"`
	CurtailmentPercent      float64    `json:"curtailmentPercent"`
	DurationHours           float64    `json:"durationHours"`
	TotalEnergyCurtailedMWH float64    `json:"totalEnergyCurtailedMWH"`
	Cause                   Cause      `json:"cause"`
	CauseDetail             string     `json:"causeDetail"`
	MarketPriceCADPerMWH    *float64   `json:"marketPriceCADPerMWH,omitempty"`
	OpportunityCostCAD      float64    `json:"opportunityCostCAD"`
	GridDemandMW            *float64   `json:"gridDemandMW,omitempty"`
	OccurredAt              time.Time  `json:"occurredAt"`
	EndedAt                 *time.Time `json:"endedAt,omitempty"`
	Provenance              Provenance `json:"provenance"`
}

// Reading is a single best-effort telemetry sample for one area.
// TransmissionCapacityMW <= 0 means no known transmission limit. A zero
// MarketPriceCADPerMWH is treated as "price unknown".
type Reading struct {
	Area                   string     `json:"area"`
	SourceType             SourceType `json:"sourceType"`
	CurrentGenerationMW    float64    `json:"currentGenerationMW"`
	ForecastGenerationMW   float64    `json:"forecastGenerationMW"`
	GridDemandMW           float64    `json:"gridDemandMW"`
	MarketPriceCADPerMWH   float64    `json:"marketPriceCADPerMWH"`
	TransmissionCapacityMW float64    `json:"transmissionCapacityMW"`
}
