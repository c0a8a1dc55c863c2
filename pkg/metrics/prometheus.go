// Package metrics provides Prometheus metrics for the monitoring cell service.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Entry recording
	entriesRecorded  prometheus.Counter
	entriesRejected  *prometheus.CounterVec
	entriesDuplicate prometheus.Counter

	// Persisted store
	storeRecords       prometheus.Gauge
	storeLoadLatency   prometheus.Histogram
	storeAppendLatency prometheus.Histogram
	storeSkippedRows   prometheus.Counter
	storeResets        prometheus.Counter

	// Filtering and trend analysis
	filterRows         prometheus.Gauge
	trendPartitions    *prometheus.CounterVec
	forecastLatency    prometheus.Histogram
	trendRuns          prometheus.Counter
	dedupeTrackedCount prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// current holds the singleton manager and its private registry. The registry
// keeps the default Go collectors out of /healthz.
var current atomic.Pointer[installed] //nolint:gochecknoglobals // singleton metrics manager

type installed struct {
	manager  *Manager
	registry *prometheus.Registry
}

func init() { //nolint:gochecknoinits // global metrics setup
	Init()
}

// Init replaces the global manager with one built from opts on a fresh
// registry. Call it at startup, before the registry is exposed.
func Init(opts ...Option) {
	registry := prometheus.NewRegistry()
	opts = append(opts, WithPrometheusRegistry(registry))
	current.Store(&installed{manager: NewManager(opts...), registry: registry})
}

func global() *Manager { return current.Load().manager }

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "moncell",
		subsystem:        "dashboard",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.entriesRecorded = m.counter("entries_recorded_total", "Metric records appended to the store")
	m.entriesRejected = m.counterVec("entries_rejected_total", "Metric submissions rejected by validation", "field")
	m.entriesDuplicate = m.counter("entries_duplicate_total", "Replayed submissions acknowledged without a write")

	m.storeRecords = m.gauge("store_records", "Records held by the persisted store at last load")
	m.storeLoadLatency = m.histogram("store_load_latency_milliseconds", "Full store read latency in milliseconds")
	m.storeAppendLatency = m.histogram("store_append_latency_milliseconds", "Single record append latency in milliseconds")
	m.storeSkippedRows = m.counter("store_skipped_rows_total", "Stored rows skipped on load because they could not be parsed")
	m.storeResets = m.counter("store_resets_total", "Full store resets")

	m.filterRows = m.gauge("filter_rows", "Rows matched by the last filter pass")
	m.trendPartitions = m.counterVec("trend_partitions_total", "Analyzed (school, metric) partitions by outcome", "status")
	m.forecastLatency = m.histogram("forecast_latency_milliseconds", "Per-partition forecast latency in milliseconds")
	m.trendRuns = m.counter("trend_runs_total", "Trend analysis runs")
	m.dedupeTrackedCount = m.gauge("dedupe_tracked_ids", "Submission ids tracked for idempotency")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "http_request_duration_milliseconds",
		Help: "HTTP request duration in milliseconds", ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause in milliseconds")
}

// RecordEntryRecorded increments the appended records counter.
func RecordEntryRecorded() { global().entriesRecorded.Inc() }

// RecordEntryRejected counts a submission rejected on field.
func RecordEntryRejected(field string) { global().entriesRejected.WithLabelValues(field).Inc() }

// RecordEntryDuplicate counts a replayed submission.
func RecordEntryDuplicate() { global().entriesDuplicate.Inc() }

// UpdateStoreRecords sets the number of records seen at the last load.
func UpdateStoreRecords(count int) { global().storeRecords.Set(float64(count)) }

// RecordStoreLoadLatency records a full store read.
func RecordStoreLoadLatency(latencyMs float64) { global().storeLoadLatency.Observe(latencyMs) }

// RecordStoreAppendLatency records a single append.
func RecordStoreAppendLatency(latencyMs float64) { global().storeAppendLatency.Observe(latencyMs) }

// RecordStoreSkippedRow counts a stored row dropped on load.
func RecordStoreSkippedRow() { global().storeSkippedRows.Inc() }

// RecordStoreReset counts a full reset.
func RecordStoreReset() { global().storeResets.Inc() }

// UpdateFilterRows sets the size of the last filtered subset.
func UpdateFilterRows(count int) { global().filterRows.Set(float64(count)) }

// RecordTrendPartition counts an analyzed partition by status.
func RecordTrendPartition(status string) { global().trendPartitions.WithLabelValues(status).Inc() }

// RecordForecastLatency records the time spent forecasting one partition.
func RecordForecastLatency(latencyMs float64) { global().forecastLatency.Observe(latencyMs) }

// RecordTrendRun counts a trend analysis run.
func RecordTrendRun() { global().trendRuns.Inc() }

// UpdateDedupeTracked sets the number of tracked submission ids.
func UpdateDedupeTracked(count int64) { global().dedupeTrackedCount.Set(float64(count)) }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	global().httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	global().httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	global().errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	global().errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	global().errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { global().systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { global().systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { global().systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return current.Load().registry
}
