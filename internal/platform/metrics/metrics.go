package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters, gauges, and histograms for the
// HLS stream health monitor.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal prometheus.Counter
	errorsTotal   prometheus.Counter

	sweepDuration       prometheus.Histogram
	activeStreams       prometheus.Gauge
	errorsAppendedTotal prometheus.Counter
	pipelineQueueDepth  prometheus.Gauge
	pipelineInFlight    prometheus.Gauge
	streamHealthScore   *prometheus.GaugeVec
}

// New creates and registers Prometheus metrics for the monitor.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "monitor_requests_total",
		Help: "Total number of HTTP requests received by the operational surface",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "monitor_http_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "monitor_sweep_duration_seconds",
		Help:    "Duration of a full scheduler sweep across all streams",
		Buckets: prometheus.DefBuckets,
	})
	activeStreams := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "monitor_active_streams",
		Help: "Number of streams currently tracked by the monitor",
	})
	errorsAppendedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "monitor_errors_appended_total",
		Help: "Total number of ledger entries appended across all streams",
	})
	pipelineQueueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "monitor_pipeline_queue_depth",
		Help: "Number of analysis jobs currently queued (not yet running)",
	})
	pipelineInFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "monitor_pipeline_inflight_jobs",
		Help: "Number of analysis jobs currently executing",
	})
	streamHealthScore := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "monitor_stream_health_score",
		Help: "Most recently computed health score per stream",
	}, []string{"stream_id"})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		sweepDuration,
		activeStreams,
		errorsAppendedTotal,
		pipelineQueueDepth,
		pipelineInFlight,
		streamHealthScore,
	)

	return &Metrics{
		registry:            registry,
		requestsTotal:       requestsTotal,
		errorsTotal:         errorsTotal,
		sweepDuration:       sweepDuration,
		activeStreams:       activeStreams,
		errorsAppendedTotal: errorsAppendedTotal,
		pipelineQueueDepth:  pipelineQueueDepth,
		pipelineInFlight:    pipelineInFlight,
		streamHealthScore:   streamHealthScore,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the HTTP error counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// ObserveSweepDuration records one scheduler sweep's wall-clock duration
// in seconds.
func (m *Metrics) ObserveSweepDuration(seconds float64) {
	m.sweepDuration.Observe(seconds)
}

// SetActiveStreams sets the active-streams gauge.
func (m *Metrics) SetActiveStreams(n int) {
	m.activeStreams.Set(float64(n))
}

// IncErrorsAppended increments the errors-appended counter.
func (m *Metrics) IncErrorsAppended() {
	m.errorsAppendedTotal.Inc()
}

// SetPipelineQueueDepth sets the analysis pipeline queue-depth gauge.
func (m *Metrics) SetPipelineQueueDepth(n int64) {
	m.pipelineQueueDepth.Set(float64(n))
}

// SetPipelineInFlight sets the analysis pipeline in-flight-jobs gauge.
func (m *Metrics) SetPipelineInFlight(n int64) {
	m.pipelineInFlight.Set(float64(n))
}

// SetStreamHealthScore records the most recent health score for streamID.
func (m *Metrics) SetStreamHealthScore(streamID string, score int) {
	m.streamHealthScore.WithLabelValues(streamID).Set(float64(score))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active streams).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
