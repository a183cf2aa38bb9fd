// Package metrics holds the Prometheus instruments for conversation turns.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowagent_turns_total",
			Help: "Total number of conversation turns",
		},
		[]string{"outcome"}, // response kind, or error kind on failure
	)

	turnDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowagent_turn_duration_seconds",
			Help:    "Conversation turn duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)
)

var (
	oracleCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowagent_oracle_calls_total",
			Help: "Total number of extraction calls",
		},
		[]string{"task", "status"}, // task: intent, slots, confirm
	)

	oracleDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowagent_oracle_duration_seconds",
			Help:    "Extraction call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"task"},
	)
)

var (
	validationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowagent_validation_failures_total",
			Help: "Fields rejected by the validation engine",
		},
		[]string{"flow", "field"},
	)

	executionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowagent_executions_total",
			Help: "Flow executions triggered by confirmed conversations",
		},
		[]string{"flow", "status"},
	)
)

func RecordTurn(outcome string, d time.Duration) {
	turnsTotal.WithLabelValues(outcome).Inc()
	turnDurationSeconds.WithLabelValues(outcome).Observe(d.Seconds())
}

func RecordOracleCall(task, status string, d time.Duration) {
	oracleCallsTotal.WithLabelValues(task, status).Inc()
	oracleDurationSeconds.WithLabelValues(task).Observe(d.Seconds())
}

func RecordValidationFailures(flow string, fields map[string]string) {
	for field := range fields {
		validationFailuresTotal.WithLabelValues(flow, field).Inc()
	}
}

func RecordExecution(flow, status string) {
	executionsTotal.WithLabelValues(flow, status).Inc()
}

// Status maps an error to the "success"/"error" label.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
