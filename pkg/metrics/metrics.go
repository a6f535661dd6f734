package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomePass labels evidence validations where every field agreed.
	OutcomePass = "pass"
	// OutcomeFail labels evidence validations with at least one mismatch.
	OutcomeFail = "fail"
)

var (
	curtailmentEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridslack",
			Name:      "curtailment_events_total",
			Help:      "Curtailment events detected, partitioned by area and cause.",
		},
		[]string{"area", "cause"},
	)

	curtailedEnergyMWH = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridslack",
			Name:      "curtailed_energy_mwh_total",
			Help:      "Total curtailed energy detected in MWh, partitioned by area.",
		},
		[]string{"area"},
	)

	recommendationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridslack",
			Name:      "recommendations_total",
			Help:      "Mitigation recommendations generated, partitioned by area and action.",
		},
		[]string{"area", "action"},
	)

	dispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridslack",
			Name:      "dispatches_total",
			Help:      "Battery dispatch decisions, partitioned by area and action.",
		},
		[]string{"area", "action"},
	)

	batterySOCPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gridslack",
			Name:      "battery_soc_percent",
			Help:      "Battery state of charge after the last dispatch, per area.",
		},
		[]string{"area"},
	)

	evidenceValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridslack",
			Name:      "evidence_validations_total",
			Help:      "Evidence validations performed, partitioned by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register attaches gridslack collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		curtailmentEventsTotal,
		curtailedEnergyMWH,
		recommendationsTotal,
		dispatchesTotal,
		batterySOCPercent,
		evidenceValidationsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveCurtailmentEvent records one detected event and its energy.
func ObserveCurtailmentEvent(area, cause string, energyMWH float64) {
	curtailmentEventsTotal.WithLabelValues(area, cause).Inc()
	if energyMWH > 0 {
		curtailedEnergyMWH.WithLabelValues(area).Add(energyMWH)
	}
}

// ObserveRecommendation records one generated recommendation.
func ObserveRecommendation(area, action string) {
	recommendationsTotal.WithLabelValues(area, action).Inc()
}

// ObserveDispatch records one dispatch decision and the resulting SoC.
func ObserveDispatch(area, action string, socPercent float64) {
	dispatchesTotal.WithLabelValues(area, action).Inc()
	batterySOCPercent.WithLabelValues(area).Set(socPercent)
}

// ObserveEvidenceValidation records one validation outcome.
func ObserveEvidenceValidation(ok bool) {
	outcome := OutcomeFail
	if ok {
		outcome = OutcomePass
	}
	evidenceValidationsTotal.WithLabelValues(outcome).Inc()
}
