package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Query bus metrics
	Queries       *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec

	// Analysis metrics
	AnalysisRuns     *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	GapsEmitted      prometheus.Counter
	Degradations     *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry
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
		Queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Queries dispatched through the query bus by outcome",
			},
			[]string{"query", "outcome"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Query handling duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"query"},
		),
		AnalysisRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gap_analysis_runs_total",
				Help:      "Completed gap analyses by report status",
			},
			[]string{"status"},
		),
		AnalysisDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gap_analysis_duration_seconds",
				Help:      "Gap analysis duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		GapsEmitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gaps_emitted_total",
				Help:      "Total number of structural gaps reported",
			},
		),
		Degradations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gap_analysis_degradations_total",
				Help:      "Analyses that completed with a degradation warning",
			},
			[]string{"warning"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Queries,
		c.QueryDuration,
		c.AnalysisRuns,
		c.AnalysisDuration,
		c.GapsEmitted,
		c.Degradations,
	)

	return c
}

// RecordHTTPRequest records one served request
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordQuery records one dispatched query
func (c *Collector) RecordQuery(query, outcome string) {
	c.Queries.WithLabelValues(query, outcome).Inc()
}

// ObserveQueryDuration records how long a query took
func (c *Collector) ObserveQueryDuration(query string, duration time.Duration) {
	c.QueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// RecordAnalysis records the outcome of one gap analysis
func (c *Collector) RecordAnalysis(status string, duration time.Duration, gaps int, warnings []string) {
	c.AnalysisRuns.WithLabelValues(status).Inc()
	c.AnalysisDuration.Observe(duration.Seconds())
	c.GapsEmitted.Add(float64(gaps))
	for _, w := range warnings {
		c.Degradations.WithLabelValues(w).Inc()
	}
}

// Handler exposes the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}
