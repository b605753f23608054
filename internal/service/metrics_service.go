package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-coverage-api/internal/coverage"
	"github.com/noah-isme/sma-coverage-api/internal/models"
)

const metricsNamespace = "sma_coverage"

// MetricsService owns a private Prometheus registry for HTTP, cache, database,
// queue and coverage engine instrumentation, plus running totals for /health.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	httpDuration *prometheus.HistogramVec
	cacheOps     *prometheus.HistogramVec
	dbQueries    *prometheus.HistogramVec

	runs        *prometheus.CounterVec
	periods     *prometheus.CounterVec
	evaluations prometheus.Histogram
	runDuration prometheus.Histogram
	poolSize    prometheus.Gauge
	rate        prometheus.Gauge

	requests         atomic.Uint64
	requestNanos     atomic.Uint64
	cacheHits        atomic.Uint64
	cacheMisses      atomic.Uint64
	dbCount          atomic.Uint64
	dbNanos          atomic.Uint64
	coverageRuns     atomic.Uint64
	periodsCovered   atomic.Uint64
	periodsUncovered atomic.Uint64
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	m := &MetricsService{
		registry: prometheus.NewRegistry(),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route template and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		cacheOps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "operation_duration_seconds",
			Help:      "Plan cache latency by operation and result.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"op", "result"}),
		dbQueries: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Snapshot query latency by query label.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "engine",
			Name:      "runs_total",
			Help:      "Coverage runs by mode and result.",
		}, []string{"mode", "result"}),
		periods: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "engine",
			Name:      "periods_total",
			Help:      "Absence periods processed by outcome.",
		}, []string{"mode", "outcome"}),
		evaluations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "engine",
			Name:      "candidates_evaluated",
			Help:      "Candidate checks per run.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "engine",
			Name:      "run_duration_seconds",
			Help:      "Engine processing time per run.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}),
		poolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "engine",
			Name:      "pool_size",
			Help:      "Candidates in the pool of the most recent run.",
		}),
		rate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "engine",
			Name:      "coverage_rate",
			Help:      "Share of needed periods covered by the most recent run.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpDuration, m.cacheOps, m.dbQueries,
		m.runs, m.periods, m.evaluations, m.runDuration, m.poolSize, m.rate,
	)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// RegisterQueue exposes a background queue's backlog and drop count.
func (m *MetricsService) RegisterQueue(name string, pending func() int, dropped func() uint64) error {
	if m == nil {
		return nil
	}
	labels := prometheus.Labels{"queue": name}
	backlog := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "queue",
		Name:        "pending_jobs",
		Help:        "Jobs waiting in the queue buffer.",
		ConstLabels: labels,
	}, func() float64 { return float64(pending()) })
	drops := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "queue",
		Name:        "dropped_jobs_total",
		Help:        "Jobs abandoned after failing permanently or exhausting retries.",
		ConstLabels: labels,
	}, func() float64 { return float64(dropped()) })
	if err := m.registry.Register(backlog); err != nil {
		return err
	}
	return m.registry.Register(drops)
}

// ObserveHTTPRequest records one request.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
	m.requests.Add(1)
	m.requestNanos.Add(uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a plan cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
		m.cacheHits.Add(1)
	} else {
		m.cacheMisses.Add(1)
	}
	m.cacheOps.WithLabelValues("get", result).Observe(duration.Seconds())
}

// ObserveCacheWrite records a plan cache write.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheOps.WithLabelValues("set", "ok").Observe(duration.Seconds())
}

// ObserveDBQuery records snapshot query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueries.WithLabelValues(label).Observe(duration.Seconds())
	m.dbCount.Add(1)
	m.dbNanos.Add(uint64(duration.Nanoseconds()))
}

// ObserveCoverageRun records a finished engine run. mode is "preview" or "commit".
func (m *MetricsService) ObserveCoverageRun(mode string, metrics coverage.RunMetrics) {
	if m == nil {
		return
	}
	uncovered := metrics.TotalPeriodsNeeded - metrics.TotalPeriodsCovered
	m.runs.WithLabelValues(mode, "ok").Inc()
	m.periods.WithLabelValues(mode, "covered").Add(float64(metrics.TotalPeriodsCovered))
	m.periods.WithLabelValues(mode, "uncovered").Add(float64(uncovered))
	m.evaluations.Observe(float64(metrics.TotalCandidatesEvaluated))
	m.runDuration.Observe((time.Duration(metrics.ProcessingTimeMs) * time.Millisecond).Seconds())
	m.poolSize.Set(float64(metrics.PoolSize))
	m.rate.Set(metrics.CoverageRate)

	m.coverageRuns.Add(1)
	m.periodsCovered.Add(uint64(metrics.TotalPeriodsCovered))
	m.periodsUncovered.Add(uint64(uncovered))
}

// ObserveCoverageFailure counts a run that ended in an error.
func (m *MetricsService) ObserveCoverageFailure(mode string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(mode, "error").Inc()
}

// Snapshot returns running totals for the health endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits, misses := m.cacheHits.Load(), m.cacheMisses.Load()
	requests, dbCount := m.requests.Load(), m.dbCount.Load()

	return models.SystemMetrics{
		CacheHitRatio:            ratio(float64(hits), float64(hits+misses)),
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: ratio(float64(m.requestNanos.Load()), float64(requests)) / float64(time.Millisecond),
		DBQueryCount:             dbCount,
		AverageDBQueryDurationMs: ratio(float64(m.dbNanos.Load()), float64(dbCount)) / float64(time.Millisecond),
		CoverageRuns:             m.coverageRuns.Load(),
		PeriodsCovered:           m.periodsCovered.Load(),
		PeriodsUncovered:         m.periodsUncovered.Load(),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}

func ratio(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole
}
