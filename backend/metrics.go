package backend

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeRecorded     = "recorded"
	outcomeDuplicate    = "duplicate"
	outcomeRejected     = "payment_rejected"
	outcomeAgentFailure = "agent_failure"
)

var (
	manualPingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webtether_manual_pings_total",
			Help: "Number of manual ping submissions by outcome",
		},
		[]string{"outcome"},
	)

	agentCallDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webtether_agent_call_duration_seconds",
			Help:    "Duration of check agent calls",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(manualPingsTotal, agentCallDuration)
}
