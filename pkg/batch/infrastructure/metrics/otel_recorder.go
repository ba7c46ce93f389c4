package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/matchday/pkg/batch/core/metrics"
)

// OtelRecorder records the collector metrics as OpenTelemetry instruments for OTLP export.
type OtelRecorder struct {
	sessions  otelmetric.Int64Counter
	requests  otelmetric.Int64Counter
	items     otelmetric.Int64Counter
	backoff   otelmetric.Float64Histogram
	batches   otelmetric.Float64Histogram
	durations otelmetric.Float64Histogram
}

// NewOtelRecorder creates the instruments on a meter obtained from provider.
func NewOtelRecorder(provider otelmetric.MeterProvider) (*OtelRecorder, error) {
	meter := provider.Meter(instrumentationName)
	r := &OtelRecorder{}
	var err error
	if r.sessions, err = meter.Int64Counter("matchday.sessions",
		otelmetric.WithDescription("Finalized collection sessions.")); err != nil {
		return nil, err
	}
	if r.requests, err = meter.Int64Counter("matchday.requests",
		otelmetric.WithDescription("Outbound requests by classification.")); err != nil {
		return nil, err
	}
	if r.items, err = meter.Int64Counter("matchday.items",
		otelmetric.WithDescription("Work items reaching a terminal ledger status.")); err != nil {
		return nil, err
	}
	if r.backoff, err = meter.Float64Histogram("matchday.backoff.delay",
		otelmetric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.batches, err = meter.Float64Histogram("matchday.batch.duration",
		otelmetric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.durations, err = meter.Float64Histogram("matchday.operation.duration",
		otelmetric.WithUnit("s")); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *OtelRecorder) RecordSessionStart(context.Context, *model.SessionRecord) {}

func (r *OtelRecorder) RecordSessionEnd(ctx context.Context, session *model.SessionRecord) {
	r.sessions.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("kind", string(session.Kind)),
		attribute.String("status", string(session.Status)),
	))
}

func (r *OtelRecorder) RecordRequest(ctx context.Context, kind model.ItemKind, classification model.Classification) {
	r.requests.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("classification", string(classification)),
	))
}

func (r *OtelRecorder) RecordItemOutcome(ctx context.Context, kind model.ItemKind, status model.EntryStatus) {
	r.items.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("outcome", string(status)),
	))
}

func (r *OtelRecorder) RecordBackoff(ctx context.Context, classification model.Classification, delay time.Duration) {
	r.backoff.Record(ctx, delay.Seconds(), otelmetric.WithAttributes(
		attribute.String("classification", string(classification)),
	))
}

func (r *OtelRecorder) RecordBatch(ctx context.Context, kind model.ItemKind, size int, duration time.Duration) {
	r.batches.Record(ctx, duration.Seconds(), otelmetric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.Int("size", size),
	))
}

func (r *OtelRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	attrs := make([]attribute.KeyValue, 0, len(tags)+1)
	attrs = append(attrs, attribute.String("name", name))
	for k, v := range tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	r.durations.Record(ctx, duration.Seconds(), otelmetric.WithAttributes(attrs...))
}

// CompositeRecorder fans every call out to each wrapped recorder.
type CompositeRecorder []metrics.MetricRecorder

func (c CompositeRecorder) RecordSessionStart(ctx context.Context, s *model.SessionRecord) {
	for _, r := range c {
		r.RecordSessionStart(ctx, s)
	}
}

func (c CompositeRecorder) RecordSessionEnd(ctx context.Context, s *model.SessionRecord) {
	for _, r := range c {
		r.RecordSessionEnd(ctx, s)
	}
}

func (c CompositeRecorder) RecordRequest(ctx context.Context, kind model.ItemKind, cl model.Classification) {
	for _, r := range c {
		r.RecordRequest(ctx, kind, cl)
	}
}

func (c CompositeRecorder) RecordItemOutcome(ctx context.Context, kind model.ItemKind, st model.EntryStatus) {
	for _, r := range c {
		r.RecordItemOutcome(ctx, kind, st)
	}
}

func (c CompositeRecorder) RecordBackoff(ctx context.Context, cl model.Classification, d time.Duration) {
	for _, r := range c {
		r.RecordBackoff(ctx, cl, d)
	}
}

func (c CompositeRecorder) RecordBatch(ctx context.Context, kind model.ItemKind, size int, d time.Duration) {
	for _, r := range c {
		r.RecordBatch(ctx, kind, size, d)
	}
}

func (c CompositeRecorder) RecordDuration(ctx context.Context, name string, d time.Duration, tags map[string]string) {
	for _, r := range c {
		r.RecordDuration(ctx, name, d, tags)
	}
}

var (
	_ metrics.MetricRecorder = (*OtelRecorder)(nil)
	_ metrics.MetricRecorder = CompositeRecorder(nil)
)
