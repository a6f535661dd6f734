// Package evidence cross-checks independently computed KPI values before
// they are published as operational evidence.
package evidence

import (
	"math"
	"sort"
)

// DefaultTolerance is the maximum relative difference allowed between the
// live and export value of one KPI field.
const DefaultTolerance = 0.01

// DefaultFields are the KPI fields compared when none are configured.
var DefaultFields = []string{
	"monthly_curtailment_avoided_mwh",
	"monthly_opportunity_cost_saved_cad",
	"solar_forecast_mae_percent",
	"wind_forecast_mae_percent",
}

// Result is the outcome of one validation. OK is true only when every
// compared field agrees within tolerance; Mismatches names the fields that
// diverged so the caller can block publication.
type Result struct {
	OK         bool     `json:"ok"`
	Mismatches []string `json:"mismatches"`
}

// Validator compares two parallel computations of the same KPI set.
type Validator struct {
	tolerance float64
	fields    []string
}

// NewValidator returns a Validator with the default tolerance and field set.
func NewValidator() *Validator {
	return &Validator{tolerance: DefaultTolerance, fields: DefaultFields}
}

// WithFields replaces the compared field set.
func (v *Validator) WithFields(fields []string) *Validator {
	v.fields = fields
	return v
}

// WithTolerance replaces the relative tolerance.
func (v *Validator) WithTolerance(tol float64) *Validator {
	v.tolerance = tol
	return v
}

// Validate compares the live and export value of each configured field. A
// field missing from either map compares as 0, so a one-sided value surfaces
// as a mismatch rather than passing silently.
func (v *Validator) Validate(live, export map[string]float64) Result {
	res := Result{OK: true}
	for _, field := range v.fields {
		lv := live[field]
		ev := export[field]
		diff := math.Abs(lv - ev)
		if diff > v.tolerance*math.Max(1, math.Abs(lv)) {
			res.Mismatches = append(res.Mismatches, field)
		}
	}
	if len(res.Mismatches) > 0 {
		res.OK = false
		sort.Strings(res.Mismatches)
	}
	return res
}
