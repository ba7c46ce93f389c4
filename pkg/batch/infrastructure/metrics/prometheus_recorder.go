package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/matchday/pkg/batch/core/metrics"
	logger "github.com/tigerroll/matchday/pkg/batch/support/util/logger"
)

const namespace = "matchday"

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Session metrics
	sessionsTotal          *prometheus.CounterVec
	sessionDurationSeconds *prometheus.HistogramVec
	sessionsInProgress     prometheus.Gauge

	// Request and item metrics
	requestsTotal       *prometheus.CounterVec
	itemsTotal          *prometheus.CounterVec
	backoffDelaySeconds *prometheus.HistogramVec

	// Batch metrics
	batchDurationSeconds *prometheus.HistogramVec
	batchItems           *prometheus.CounterVec

	operationDurationSeconds *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Collection sessions by kind and final status.",
		}, []string{"kind", "status"}),
		sessionDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Wall-clock duration of finalized sessions.",
			Buckets:   []float64{60, 300, 900, 1800, 3600, 7200, 14400},
		}, []string{"kind", "status"}),
		sessionsInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_in_progress",
			Help:      "Sessions started by this process and not yet finalized.",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Outbound requests by kind and classification.",
		}, []string{"kind", "classification"}),
		itemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Work items reaching a terminal ledger status.",
		}, []string{"kind", "outcome"}),
		backoffDelaySeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backoff_delay_seconds",
			Help:      "Retry delays chosen by the backoff policy.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}, []string{"classification"}),
		batchDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of one batch, excluding the inter-batch pause.",
			Buckets:   prometheus.ExponentialBuckets(5, 2, 8),
		}, []string{"kind"}),
		batchItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_items_total",
			Help:      "Items dispatched in batches.",
		}, []string{"kind"}),
		operationDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of named operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"name", "status"}),
	}

	registry.MustRegister(
		r.sessionsTotal,
		r.sessionDurationSeconds,
		r.sessionsInProgress,
		r.requestsTotal,
		r.itemsTotal,
		r.backoffDelaySeconds,
		r.batchDurationSeconds,
		r.batchItems,
		r.operationDurationSeconds,
	)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordSessionStart records that a session was opened or resumed.
func (r *PrometheusRecorder) RecordSessionStart(ctx context.Context, session *model.SessionRecord) {
	r.sessionsInProgress.Inc()
	logger.Debugf("Metrics: session '%s' (%s) started.", session.ID, session.Scope)
}

// RecordSessionEnd records a finalized session.
func (r *PrometheusRecorder) RecordSessionEnd(ctx context.Context, session *model.SessionRecord) {
	r.sessionsInProgress.Dec()
	kind, status := string(session.Kind), string(session.Status)
	r.sessionsTotal.WithLabelValues(kind, status).Inc()
	if session.CompletionTime == nil {
		return
	}
	duration := session.CompletionTime.Sub(session.StartTime).Seconds()
	r.sessionDurationSeconds.WithLabelValues(kind, status).Observe(duration)
	logger.Debugf("Metrics: session '%s' ended as %s. Duration: %.3fs", session.ID, status, duration)
}

// RecordRequest records the classification of one outbound call.
func (r *PrometheusRecorder) RecordRequest(ctx context.Context, kind model.ItemKind, classification model.Classification) {
	r.requestsTotal.WithLabelValues(string(kind), string(classification)).Inc()
}

// RecordItemOutcome records an item reaching a terminal ledger status.
func (r *PrometheusRecorder) RecordItemOutcome(ctx context.Context, kind model.ItemKind, status model.EntryStatus) {
	r.itemsTotal.WithLabelValues(string(kind), string(status)).Inc()
}

// RecordBackoff records a retry delay.
func (r *PrometheusRecorder) RecordBackoff(ctx context.Context, classification model.Classification, delay time.Duration) {
	r.backoffDelaySeconds.WithLabelValues(string(classification)).Observe(delay.Seconds())
}

// RecordBatch records one completed batch.
func (r *PrometheusRecorder) RecordBatch(ctx context.Context, kind model.ItemKind, size int, duration time.Duration) {
	r.batchDurationSeconds.WithLabelValues(string(kind)).Observe(duration.Seconds())
	r.batchItems.WithLabelValues(string(kind)).Add(float64(size))
}

// RecordDuration records the execution time of a named operation.
// Only the "status" tag becomes a label; other tags would explode cardinality.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	status := tags["status"]
	if status == "" {
		status = "unknown"
	}
	r.operationDurationSeconds.WithLabelValues(name, status).Observe(duration.Seconds())
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
