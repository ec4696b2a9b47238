// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "meamovie_circuit_breaker_state",
		Help: "Store circuit breaker state (1 for the active state)",
	}, []string{"component", "state"})

	breakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meamovie_circuit_breaker_trips_total",
		Help: "Transitions of a store circuit breaker into the open state",
	}, []string{"component"})
)

var breakerStates = [...]string{"closed", "half-open", "open"}

// ObserveBreaker publishes a breaker's current state. A transition into
// "open" from any other state counts as a trip.
func ObserveBreaker(component, from, to string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == to {
			v = 1
		}
		breakerState.WithLabelValues(component, s).Set(v)
	}
	if to == "open" && from != "open" {
		breakerTrips.WithLabelValues(component).Inc()
	}
}
