// Package metrics exposes Prometheus instrumentation for the HTTP layer and
// the journey store.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ashureev/cosmic-journey/internal/domain"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the application metrics on a private registry.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	StoreOps      *prometheus.CounterVec
	StoreDuration *prometheus.HistogramVec
	Transitions   *prometheus.CounterVec
	FeedClients   prometheus.Gauge
}

// New creates a collector whose metric names are prefixed with namespace.
func New(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		StoreOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Journey store operations by result",
		}, []string{"op", "result"}),
		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Journey store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journey_transitions_total",
			Help:      "Persisted journey writes by resulting screen",
		}, []string{"screen"}),
		FeedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_clients",
			Help:      "Connected admin feed clients",
		}),
	}
	c.registry.MustRegister(
		c.HTTPRequests, c.HTTPDuration,
		c.StoreOps, c.StoreDuration,
		c.Transitions, c.FeedClients,
		prometheus.NewGoCollector(),
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Middleware records request counts and latency keyed by chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// ObserveStore records one store operation.
func (c *Collector) ObserveStore(op string, start time.Time, err error) {
	if c == nil {
		return
	}
	c.StoreOps.WithLabelValues(op, resultLabel(err)).Inc()
	c.StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Transition counts a persisted write that left a journey on screen.
func (c *Collector) Transition(screen domain.Screen) {
	if c == nil {
		return
	}
	c.Transitions.WithLabelValues(string(screen)).Inc()
}

// FeedClientDelta adjusts the connected feed client gauge.
func (c *Collector) FeedClientDelta(delta float64) {
	if c == nil {
		return
	}
	c.FeedClients.Add(delta)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrStaleUpdate):
		return "stale"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
