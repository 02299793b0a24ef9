package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the service metrics on a private prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	SessionsActive    prometheus.Gauge
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	EdgesRemovedTotal prometheus.Counter
	GraphEdges        *prometheus.HistogramVec
}

func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}

	r.HTTPRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "connectome_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	r.HTTPRequestDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "connectome_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	r.SessionsActive = promauto.With(r.registry).NewGauge(prometheus.GaugeOpts{
		Name: "connectome_sessions_active",
		Help: "Number of sessions held in memory",
	})
	r.OperationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "connectome_operations_total",
			Help: "Analysis operations by kind and outcome",
		},
		[]string{"operation", "status"},
	)
	r.OperationDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "connectome_operation_duration_seconds",
			Help:    "Analysis operation duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
		},
		[]string{"operation"},
	)
	r.EdgesRemovedTotal = promauto.With(r.registry).NewCounter(prometheus.CounterOpts{
		Name: "connectome_degeneration_edges_removed_total",
		Help: "Edges removed by degeneration runs",
	})
	r.GraphEdges = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "connectome_graph_edges",
			Help:    "Edge count after an operation",
			Buckets: []float64{10, 100, 1000, 10000, 100000},
		},
		[]string{"operation"},
	)
	return r
}

// Handler serves the registry in the prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordOperation records one analysis call and the resulting edge count.
func (r *Registry) RecordOperation(operation string, err error, duration time.Duration, edges int) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.OperationsTotal.WithLabelValues(operation, status).Inc()
	r.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err == nil {
		r.GraphEdges.WithLabelValues(operation).Observe(float64(edges))
	}
}
