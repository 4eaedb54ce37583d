package web

import "github.com/prometheus/client_golang/prometheus"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cytosight",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path and status.",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cytosight",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and path.",
		},
		[]string{"method", "path"},
	)
	inferenceObservationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cytosight",
			Subsystem: "inference",
			Name:      "observations_total",
			Help:      "Total number of observations scored.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, inferenceObservationsTotal)
}
