package types

import "time"

// DispatchAction is the action a dispatch decision takes.
type DispatchAction string

const (
	DispatchCharge    DispatchAction = "charge"
	DispatchDischarge DispatchAction = "discharge"
	DispatchHold      DispatchAction = "hold"
)

// DispatchReason classifies why a dispatch decision was made. The narrative
// detail lives alongside it on the log entry.
type DispatchReason string

const (
	ReasonCurtailmentAbsorption DispatchReason = "curtailmentAbsorption"
	ReasonOpportunisticCharge   DispatchReason = "opportunisticCharge"
	ReasonPriceArbitrage        DispatchReason = "priceArbitrage"
	ReasonHold                  DispatchReason = "hold"
)

// BatteryState is the current storage status for one grid area.
// SOCMWH is always SOCPercent/100 * CapacityMWH.
type BatteryState struct {
	Area          string    `json:"area"`
	SOCPercent    float64   `json:"socPercent"`
	SOCMWH        float64   `json:"socMWH"`
	CapacityMWH   float64   `json:"capacityMWH"`
	PowerRatingMW float64   `json:"powerRatingMW"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// DispatchLogEntry is the immutable audit record of one dispatch decision.
type DispatchLogEntry struct {
	Area                  string         `json:"area"`
	Action                DispatchAction `json:"action"`
	PowerMW               float64        `json:"powerMW"`
	DurationHours         float64        `json:"durationHours"`
	SOCBeforePercent      float64        `json:"socBeforePercent"`
	SOCAfterPercent       float64        `json:"socAfterPercent"`
	SOCBeforeMWH          float64        `json:"socBeforeMWH"`
	SOCAfterMWH           float64        `json:"socAfterMWH"`
	Reason                DispatchReason `json:"reason"`
	Detail                string         `json:"detail"`
	ExpectedRevenueCAD    float64        `json:"expectedRevenueCAD"`
	ActualRevenueCAD      *float64       `json:"actualRevenueCAD,omitempty"`
	RenewableAbsorption   bool           `json:"renewableAbsorption"`
	CurtailmentMitigation bool           `json:"curtailmentMitigation"`
	DispatchedAt          time.Time      `json:"dispatchedAt"`
}

// Revenue returns the actual revenue when recorded, otherwise the expected
// revenue from dispatch time.
func (e DispatchLogEntry) Revenue() float64 {
	if e.ActualRevenueCAD != nil {
		return *e.ActualRevenueCAD
	}
	return e.ExpectedRevenueCAD
}
