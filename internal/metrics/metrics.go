package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refund_transitions_total",
		Help: "Committed refund workflow transitions.",
	}, []string{"from", "to"})

	GuardRefusals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refund_guard_refusals_total",
		Help: "Operations refused locally by a business rule.",
	}, []string{"operation", "kind"})

	RemoteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refund_remote_failures_total",
		Help: "Ledger service calls that failed or were rejected.",
	}, []string{"operation", "unknown_outcome"})
)
