// Package metrics provides Prometheus metrics for the zonetrust service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Intel ingestion
	intelReceived  *prometheus.CounterVec
	intelDuplicate prometheus.Counter
	intelRejected  *prometheus.CounterVec
	intelProcessed *prometheus.CounterVec

	// Confidence engine
	confidenceUpdates  *prometheus.CounterVec
	confidenceScore    prometheus.Histogram
	updateLatency      prometheus.Histogram
	hazardActivations  prometheus.Counter
	hazardClears       prometheus.Counter
	conflictPenalties  prometheus.Counter
	anomalyPenalties   prometheus.Counter
	trackedZones       prometheus.Gauge
	sweepDuration      prometheus.Histogram
	sweepZonesAffected prometheus.Gauge

	// Ranking
	recommendations prometheus.Counter
	rankingLatency  prometheus.Histogram
	zonesExcluded   *prometheus.CounterVec
	weatherEntries  prometheus.Gauge

	// Queue and workers
	queueSize      *prometheus.GaugeVec
	queueCapacity  prometheus.Gauge
	queueEnqueued  prometheus.Counter
	queueRejected  *prometheus.CounterVec
	workerCount    prometheus.Gauge
	workerErrors   prometheus.Counter
	workerDuration prometheus.Histogram

	// Kafka
	kafkaConsumed  prometheus.Counter
	kafkaPublished prometheus.Counter
	kafkaErrors    *prometheus.CounterVec

	// Repository
	repositoryLatency *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// Process
	memoryUsage    prometheus.Gauge
	goroutineCount prometheus.Gauge
	gcPause        prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "zonetrust",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
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

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	latencyMs := []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250}

	m.intelReceived = m.counterVec("intel_received_total", "Intel submissions accepted for processing", "type")
	m.intelDuplicate = m.counter("intel_duplicate_total", "Intel submissions dropped as redeliveries")
	m.intelRejected = m.counterVec("intel_rejected_total", "Intel submissions rejected before processing", "reason")
	m.intelProcessed = m.counterVec("intel_processed_total", "Intel submissions folded into zone state", "type")

	m.confidenceUpdates = m.counterVec("confidence_updates_total", "Confidence state updates by trigger", "trigger")
	m.confidenceScore = m.histogram("confidence_score", "Distribution of confidence scores after an update",
		[]float64{20, 30, 40, 50, 60, 70, 80, 90, 100})
	m.updateLatency = m.histogram("update_latency_milliseconds", "Time to load, apply and store one zone update", latencyMs)
	m.hazardActivations = m.counter("hazard_activations_total", "Zones taken offline by corroborated hazard reports")
	m.hazardClears = m.counter("hazard_clears_total", "Expired hazards lifted")
	m.conflictPenalties = m.counter("conflict_penalties_total", "Updates that applied the conflict penalty")
	m.anomalyPenalties = m.counter("anomaly_penalties_total", "Updates that applied the price anomaly penalty")
	m.trackedZones = m.gauge("tracked_zones", "Zones with a stored confidence state")
	m.sweepDuration = m.histogram("sweep_duration_seconds", "Duration of a full decay sweep", prometheus.DefBuckets)
	m.sweepZonesAffected = m.gauge("sweep_zones", "Zones ticked by the last decay sweep")

	m.recommendations = m.counter("recommendations_total", "Ranking requests served")
	m.rankingLatency = m.histogram("ranking_latency_milliseconds", "Time to rank the catalog for one request", latencyMs)
	m.zonesExcluded = m.counterVec("zones_excluded_total", "Zones left out of rankings by reason", "reason")
	m.weatherEntries = m.gauge("weather_cache_entries", "Readings held by the weather cache")

	m.queueSize = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "queue_size",
		Help: "Pending intel events per partition", ConstLabels: m.constLabels,
	}, []string{"partition"})
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of each queue partition")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Intel events enqueued")
	m.queueRejected = m.counterVec("queue_rejected_total", "Intel events refused by the queue", "reason")
	m.workerCount = m.gauge("worker_count", "Running partition workers")
	m.workerErrors = m.counter("worker_errors_total", "Events a worker failed to process")
	m.workerDuration = m.histogram("worker_processing_milliseconds", "Time a worker spent on one event", latencyMs)

	m.kafkaConsumed = m.counter("kafka_consumed_total", "Intel messages read from Kafka")
	m.kafkaPublished = m.counter("kafka_published_total", "Confidence updates written to Kafka")
	m.kafkaErrors = m.counterVec("kafka_errors_total", "Kafka failures by operation", "op")

	m.repositoryLatency = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "repository_latency_milliseconds",
		Help: "Repository operation latency", ConstLabels: m.constLabels, Buckets: latencyMs,
	}, []string{"op"})

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "http_request_duration_seconds",
		Help: "HTTP request duration", ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and kind", "component", "kind")

	m.memoryUsage = m.gauge("memory_alloc_bytes", "Bytes of allocated heap objects")
	m.goroutineCount = m.gauge("goroutines", "Number of goroutines")
	m.gcPause = m.histogram("gc_pause_milliseconds", "Average GC pause", latencyMs)
}

// RecordIntelReceived counts an accepted submission.
func RecordIntelReceived(intelType string) {
	globalManager.intelReceived.WithLabelValues(intelType).Inc()
}

// RecordIntelDuplicate counts a redelivered submission.
func RecordIntelDuplicate() {
	globalManager.intelDuplicate.Inc()
}

// RecordIntelRejected counts a submission refused at the boundary.
func RecordIntelRejected(reason string) {
	globalManager.intelRejected.WithLabelValues(reason).Inc()
}

// RecordIntelProcessed counts a submission folded into zone state.
func RecordIntelProcessed(intelType string) {
	globalManager.intelProcessed.WithLabelValues(intelType).Inc()
}

// RecordConfidenceUpdate records one state update and its resulting score.
func RecordConfidenceUpdate(trigger string, score, latencyMs float64) {
	globalManager.confidenceUpdates.WithLabelValues(trigger).Inc()
	globalManager.confidenceScore.Observe(score)
	globalManager.updateLatency.Observe(latencyMs)
}

// RecordHazardActivation counts a zone going dark.
func RecordHazardActivation() {
	globalManager.hazardActivations.Inc()
}

// RecordHazardCleared counts an expired hazard being lifted.
func RecordHazardCleared() {
	globalManager.hazardClears.Inc()
}

// RecordConflictPenalty counts an update that applied the conflict penalty.
func RecordConflictPenalty() {
	globalManager.conflictPenalties.Inc()
}

// RecordAnomalyPenalty counts an update that applied the anomaly penalty.
func RecordAnomalyPenalty() {
	globalManager.anomalyPenalties.Inc()
}

// UpdateTrackedZones sets the number of zones with stored state.
func UpdateTrackedZones(count int) {
	globalManager.trackedZones.Set(float64(count))
}

// RecordSweep records a completed decay sweep.
func RecordSweep(zones int, seconds float64) {
	globalManager.sweepZonesAffected.Set(float64(zones))
	globalManager.sweepDuration.Observe(seconds)
}

// RecordRecommendation records one ranking request.
func RecordRecommendation(latencyMs float64) {
	globalManager.recommendations.Inc()
	globalManager.rankingLatency.Observe(latencyMs)
}

// RecordZonesExcluded adds n exclusions for reason.
func RecordZonesExcluded(reason string, n int) {
	globalManager.zonesExcluded.WithLabelValues(reason).Add(float64(n))
}

// UpdateWeatherCacheEntries sets the weather cache size.
func UpdateWeatherCacheEntries(count int) {
	globalManager.weatherEntries.Set(float64(count))
}

// UpdateQueueSize sets the pending count of one partition.
func UpdateQueueSize(partition string, size int) {
	globalManager.queueSize.WithLabelValues(partition).Set(float64(size))
}

// UpdateQueueCapacity sets the per-partition capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an enqueued event.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueRejected counts an event the queue refused.
func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerError counts a failed event.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordWorkerProcessingLatency records time spent on one event.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerDuration.Observe(latencyMs)
}

// RecordKafkaConsumed counts a message read from the intel topic.
func RecordKafkaConsumed() {
	globalManager.kafkaConsumed.Inc()
}

// RecordKafkaPublished counts messages written to the updates topic.
func RecordKafkaPublished(n int) {
	globalManager.kafkaPublished.Add(float64(n))
}

// RecordKafkaError counts a Kafka failure for op (fetch, commit, decode, write).
func RecordKafkaError(op string) {
	globalManager.kafkaErrors.WithLabelValues(op).Inc()
}

// RecordRepositoryLatency records the latency of a repository operation.
func RecordRepositoryLatency(op string, latencyMs float64) {
	globalManager.repositoryLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in seconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and kind labels.
func RecordErrorByComponent(component, kind string) {
	globalManager.errorsByComponent.WithLabelValues(component, kind).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.memoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(n int) {
	globalManager.goroutineCount.Set(float64(n))
}

// RecordSystemGCPauseTime observes the average GC pause.
func RecordSystemGCPauseTime(ms float64) {
	globalManager.gcPause.Observe(ms)
}
