package dispatch

// AreaProfile is the battery sizing for one grid area.
type AreaProfile struct {
	CapacityMWH   float64 `json:"capacityMWH"`
	PowerRatingMW float64 `json:"powerRatingMW"`
}

// Config holds the dispatch policy. It is passed into the controller
// constructor rather than living as module constants so tests can inject
// alternative area profiles and thresholds.
type Config struct {
	// ChargePriceThresholdCADPerMWH triggers opportunistic charging below it.
	ChargePriceThresholdCADPerMWH float64 `json:"chargePriceThresholdCADPerMWH"`
	// DischargePriceThresholdCADPerMWH triggers arbitrage discharge above it.
	DischargePriceThresholdCADPerMWH float64 `json:"dischargePriceThresholdCADPerMWH"`

	// Soft SoC bounds used by the decision rules.
	MinSOCPercent float64 `json:"minSOCPercent"`
	MaxSOCPercent float64 `json:"maxSOCPercent"`

	// Hard clamp bounds applied at execution time to preserve emergency
	// headroom.
	HardMinSOCPercent float64 `json:"hardMinSOCPercent"`
	HardMaxSOCPercent float64 `json:"hardMaxSOCPercent"`

	// RoundTripEfficiency is applied on the charge side only; discharge
	// removes energy undiminished.
	RoundTripEfficiency float64 `json:"roundTripEfficiency"`

	// InitialSOCPercent seeds a battery created on first dispatch.
	InitialSOCPercent float64 `json:"initialSOCPercent"`

	// DurationHours is the time slice one dispatch decision covers.
	DurationHours float64 `json:"durationHours"`

	// AreaProfiles sizes the battery per area; DefaultProfile covers unknown
	// areas.
	AreaProfiles   map[string]AreaProfile `json:"areaProfiles"`
	DefaultProfile AreaProfile            `json:"defaultProfile"`
}

// DefaultConfig returns the operational dispatch policy.
func DefaultConfig() Config {
	return Config{
		ChargePriceThresholdCADPerMWH:    25,
		DischargePriceThresholdCADPerMWH: 90,
		MinSOCPercent:                    10,
		MaxSOCPercent:                    90,
		HardMinSOCPercent:                5,
		HardMaxSOCPercent:                95,
		RoundTripEfficiency:              0.88,
		InitialSOCPercent:                50,
		DurationHours:                    1,
		AreaProfiles: map[string]AreaProfile{
			"ON": {CapacityMWH: 250, PowerRatingMW: 100},
			"AB": {CapacityMWH: 120, PowerRatingMW: 60},
			"BC": {CapacityMWH: 80, PowerRatingMW: 40},
			"QC": {CapacityMWH: 60, PowerRatingMW: 30},
		},
		DefaultProfile: AreaProfile{CapacityMWH: 100, PowerRatingMW: 50},
	}
}

// profile returns the battery sizing for an area, falling back to the
// default profile for unknown areas.
func (c Config) profile(area string) AreaProfile {
	if p, ok := c.AreaProfiles[area]; ok {
		return p
	}
	return c.DefaultProfile
}
