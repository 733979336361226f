// Package metrics provides Prometheus metrics for the scheduler and the HTTP
// layer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentsched_executions_total",
			Help: "Total number of task executions by outcome",
		},
		[]string{"status", "tool"},
	)
	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentsched_execution_duration_seconds",
			Help:    "Task execution duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300, 600},
		},
		[]string{"tool"},
	)
	RegisteredTriggers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentsched_registered_triggers",
			Help: "Number of triggers currently registered in the scheduler",
		},
	)
	OnCompleteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentsched_on_complete_failures_total",
			Help: "Total number of failed on_complete dispatches",
		},
		[]string{"action"},
	)
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentsched_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentsched_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)
)

func RecordExecution(tool, status string, duration time.Duration) {
	ExecutionsTotal.WithLabelValues(status, tool).Inc()
	ExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, endpoint, status).Inc()
	HTTPDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
