package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds every collector the service exports. Each instance owns its registry so that
// tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	TaskOperations  *prometheus.CounterVec
	EventsPublished *prometheus.CounterVec
	EventsDropped   prometheus.Counter
	WSConnections   prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		TaskOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskhub_task_operations_total",
				Help: "Task operations by name and outcome",
			},
			[]string{"operation", "result"},
		),
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskhub_events_published_total",
				Help: "Task lifecycle events handed to the notification sink",
			},
			[]string{"event"},
		),
		EventsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "taskhub_events_dropped_total",
				Help: "Task lifecycle events dropped because the dispatch buffer was full",
			},
		),
		WSConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "taskhub_websocket_connections",
				Help: "Currently open WebSocket connections",
			},
		),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.TaskOperations,
		m.EventsPublished,
		m.EventsDropped,
		m.WSConnections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveTaskOperation counts one task operation outcome.
func (m *Metrics) ObserveTaskOperation(operation string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.TaskOperations.WithLabelValues(operation, result).Inc()
}
