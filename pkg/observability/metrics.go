package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. Each
// collector owns its registry so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Board metrics
	BoardEvents  *prometheus.CounterVec
	OpenSessions prometheus.Gauge
	Autosaves    *prometheus.CounterVec
	AutosaveTime prometheus.Histogram

	// Store metrics
	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec

	// Bus metrics
	Handled *prometheus.CounterVec
}

// NewCollector creates a new metrics collector with the given namespace
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		BoardEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "board_events_total",
				Help:      "Board mutations by event type",
			},
			[]string{"type"},
		),
		OpenSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "open_sessions",
				Help:      "Number of open board editing sessions",
			},
		),
		Autosaves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "autosaves_total",
				Help:      "Debounced board saves by result",
			},
			[]string{"result"},
		),
		AutosaveTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "autosave_duration_seconds",
				Help:      "Time spent writing a board document",
				Buckets:   prometheus.DefBuckets,
			},
		),
		StoreOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Total number of board store operations",
			},
			[]string{"operation", "status"},
		),
		StoreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Board store operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		Handled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bus_messages_total",
				Help:      "Commands and queries handled by the buses",
			},
			[]string{"kind", "name", "status"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.BoardEvents,
		c.OpenSessions,
		c.Autosaves,
		c.AutosaveTime,
		c.StoreOperations,
		c.StoreDuration,
		c.Handled,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the collector's registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one served request
func (c *Collector) ObserveHTTP(method, route string, status int, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveStoreOperation records one board store call
func (c *Collector) ObserveStoreOperation(operation string, err error, duration time.Duration) {
	c.StoreOperations.WithLabelValues(operation, status(err)).Inc()
	c.StoreDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveAutosave records one debounced save
func (c *Collector) ObserveAutosave(result string, duration time.Duration) {
	c.Autosaves.WithLabelValues(result).Inc()
	c.AutosaveTime.Observe(duration.Seconds())
}

// SetOpenSessions updates the open session gauge
func (c *Collector) SetOpenSessions(n int) {
	c.OpenSessions.Set(float64(n))
}

// IncBoardEvent counts one board event of the given type
func (c *Collector) IncBoardEvent(eventType string) {
	c.BoardEvents.WithLabelValues(eventType).Inc()
}

// ObserveCommand records a handled command
func (c *Collector) ObserveCommand(name string, err error, _ time.Duration) {
	c.Handled.WithLabelValues("command", name, status(err)).Inc()
}

// ObserveQuery records a handled query
func (c *Collector) ObserveQuery(name string, err error, _ time.Duration) {
	c.Handled.WithLabelValues("query", name, status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
