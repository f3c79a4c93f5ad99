package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ontolink/ontolink/dsl"
)

var (
	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ontolink_dsl_validations_total",
		Help: "DSL validations by outcome.",
	}, []string{"result"})

	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ontolink_dsl_evaluations_total",
		Help: "Section evaluations by traffic light.",
	}, []string{"light"})

	counterfactualsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ontolink_dsl_counterfactual_scans_total",
		Help: "Completed counterfactual corpus scans.",
	})
)

func observeValidation(r dsl.ValidationResult) {
	if r.Valid() {
		validationsTotal.WithLabelValues("ok").Inc()
		return
	}
	validationsTotal.WithLabelValues("error").Inc()
}
