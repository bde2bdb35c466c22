// Package metrics exposes Prometheus instruments for batch evaluations and the
// REST surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry rather than the global default.
type Collector struct {
	registry      *prometheus.Registry
	rowsTotal     *prometheus.CounterVec
	batchDuration prometheus.Histogram
	requestTotal  *prometheus.CounterVec
}

// NewCollector registers all instruments on a fresh registry.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	rowsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ivsurface",
		Subsystem: "batch",
		Name:      "rows_total",
		Help:      "Option quotes processed, by outcome.",
	}, []string{"outcome"})

	batchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ivsurface",
		Subsystem: "batch",
		Name:      "duration_seconds",
		Help:      "Wall time of one batch evaluation.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ivsurface",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "route", "status"})

	for _, c := range []prometheus.Collector{rowsTotal, batchDuration, requestTotal} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:      registry,
		rowsTotal:     rowsTotal,
		batchDuration: batchDuration,
		requestTotal:  requestTotal,
	}, nil
}

// ObserveRows adds n quotes with the given outcome label.
func (c *Collector) ObserveRows(outcome string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.rowsTotal.WithLabelValues(outcome).Add(float64(n))
}

// ObserveBatch records the duration of one evaluation.
func (c *Collector) ObserveBatch(d time.Duration) {
	if c == nil {
		return
	}
	c.batchDuration.Observe(d.Seconds())
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// unmatchedRoute labels requests no ServeMux pattern matched, so arbitrary
// paths cannot grow the series count.
const unmatchedRoute = "unmatched"

// InstrumentHandler wraps the provided handler to count requests. next is
// expected to be a *http.ServeMux: the route label is the matched pattern it
// records on the request.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := r.Pattern
		if route == "" {
			route = unmatchedRoute
		}
		c.requestTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}
