package types

import "time"

// ActionType is the kind of mitigation action a recommendation proposes.
type ActionType string

const (
	ActionStorageCharge  ActionType = "storage_charge"
	ActionDemandResponse ActionType = "demand_response"
	ActionExportIntertie ActionType = "export_intertie"
)

// Priority ranks a recommendation for operator triage.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Resources describes the flexible capacity available to mitigate a
// curtailment event. Zero values mean the resource is unavailable.
type Resources struct {
	StorageHeadroomMW float64 `json:"storageHeadroomMW"`
	DemandResponseMW  float64 `json:"demandResponseMW"`
	ExportCapacityMW  float64 `json:"exportCapacityMW"`
}

// Recommendation is one proposed mitigation action tied to a single
// CurtailmentEvent. The recommender fills the estimated fields; Implemented
// and the Actual* fields are mutated later by an external operational
// process.
type Recommendation struct {
	ID                     string     `json:"id"`
	EventID                string     `json:"eventID"`
	Area                   string     `json:"area"`
	ActionType             ActionType `json:"actionType"`
	TargetMW               float64    `json:"targetMW"`
	ExpectedMWHSaved       float64    `json:"expectedMWHSaved"`
	EstimatedCostCAD       float64    `json:"estimatedCostCAD"`
	EstimatedRevenueCAD    float64    `json:"estimatedRevenueCAD"`
	CostBenefitRatio       float64    `json:"costBenefitRatio"`
	Confidence             float64    `json:"confidence"` // 0-1
	Priority               Priority   `json:"priority"`
	ImplementationTimeline string     `json:"implementationTimeline"`
	Reasoning              string     `json:"reasoning"`
	Implemented            bool       `json:"implemented"`
	ActualMWHSaved         *float64   `json:"actualMWHSaved,omitempty"`
	ActualCostCAD          *float64   `json:"actualCostCAD,omitempty"`
	ActualRevenueCAD       *float64   `json:"actualRevenueCAD,omitempty"`
	EffectivenessRating    *int       `json:"effectivenessRating,omitempty"` // 1-5
	GeneratedAt            time.Time  `json:"generatedAt"`
}

// RecommendationOutcome is the post-hoc result reported by the operational
// process that executed (or skipped) a recommendation.
type RecommendationOutcome struct {
	Implemented         bool     `json:"implemented"`
	ActualMWHSaved      *float64 `json:"actualMWHSaved,omitempty"`
	ActualCostCAD       *float64 `json:"actualCostCAD,omitempty"`
	ActualRevenueCAD    *float64 `json:"actualRevenueCAD,omitempty"`
	EffectivenessRating *int     `json:"effectivenessRating,omitempty"`
	Notes               string   `json:"notes,omitempty"`
}
