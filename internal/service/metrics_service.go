package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry for HTTP traffic, curriculum governance and caching.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	gateOperations  *prometheus.CounterVec
	commitDuration  *prometheus.HistogramVec
	importRows      *prometheus.CounterVec
	extractionJobs  *prometheus.CounterVec
	curriculumSize  prometheus.Gauge
	pendingReports  prometheus.Gauge
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		gateOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "curriculum_gate_operations_total",
			Help: "Curriculum mutations by operation and outcome",
		}, []string{"operation", "outcome"}),
		commitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "curriculum_commit_duration_seconds",
			Help:    "Time spent applying and persisting a curriculum mutation",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "curriculum_import_rows_total",
			Help: "Import candidate rows by classification",
		}, []string{"stage", "result"}),
		extractionJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "curriculum_extraction_jobs_total",
			Help: "Image extraction jobs by final status",
		}, []string{"status"}),
		curriculumSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "curriculum_items",
			Help: "Number of records in the curriculum collection",
		}),
		pendingReports: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "curriculum_reports_pending",
			Help: "Number of reports awaiting resolution",
		}),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_hit_ratio",
			Help: "Ratio of cache hits to total cache lookups",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses",
		}),
	}

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})
	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache writes",
		Buckets: prometheus.DefBuckets,
	})
	m.cacheLatency = cacheLatency
	m.cacheWrite = cacheWrite

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.gateOperations, m.commitDuration, m.importRows, m.extractionJobs,
		m.curriculumSize, m.pendingReports,
		cacheLatency, cacheWrite, m.cacheHitRatio, m.cacheHits, m.cacheMisses,
		goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
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

// Registry exposes the underlying registry for tests and extra collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveGateOperation counts a gate call and, for committed ones, how long it took.
func (m *MetricsService) ObserveGateOperation(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.gateOperations.WithLabelValues(operation, outcome).Inc()
	if outcome == outcomeOK {
		m.commitDuration.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// RecordImportRows counts classified rows for a planning or commit stage.
func (m *MetricsService) RecordImportRows(stage string, added, updated, rejected int) {
	if m == nil {
		return
	}
	m.importRows.WithLabelValues(stage, "added").Add(float64(added))
	m.importRows.WithLabelValues(stage, "updated").Add(float64(updated))
	m.importRows.WithLabelValues(stage, "rejected").Add(float64(rejected))
}

// RecordExtractionJob counts an extraction job reaching a final status.
func (m *MetricsService) RecordExtractionJob(status string) {
	if m == nil {
		return
	}
	m.extractionJobs.WithLabelValues(status).Inc()
}

// SetCollectionSizes updates the collection gauges.
func (m *MetricsService) SetCollectionSizes(items, pendingReports int) {
	if m == nil {
		return
	}
	m.curriculumSize.Set(float64(items))
	m.pendingReports.Set(float64(pendingReports))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}
