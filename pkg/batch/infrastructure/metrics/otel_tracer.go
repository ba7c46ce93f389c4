package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/matchday/pkg/batch/core/metrics"
)

const instrumentationName = "github.com/tigerroll/matchday"

// OpenTelemetryTracer is an implementation of metrics.Tracer using OpenTelemetry.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a tracer backed by provider.
func NewOpenTelemetryTracer(provider trace.TracerProvider) *OpenTelemetryTracer {
	return &OpenTelemetryTracer{tracer: provider.Tracer(instrumentationName)}
}

// StartSessionSpan starts the root span of a collection session.
func (t *OpenTelemetryTracer) StartSessionSpan(ctx context.Context, session *model.SessionRecord) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "session "+string(session.Kind),
		trace.WithAttributes(
			attribute.String("session.id", session.ID),
			attribute.String("session.scope", session.Scope),
			attribute.Int("session.total_items", session.TotalItems),
		))
	return ctx, func() { span.End() }
}

// StartBatchSpan starts a span for one batch.
func (t *OpenTelemetryTracer) StartBatchSpan(ctx context.Context, kind model.ItemKind, index, size int) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, fmt.Sprintf("batch %d", index),
		trace.WithAttributes(
			attribute.String("item.kind", string(kind)),
			attribute.Int("batch.index", index),
			attribute.Int("batch.size", size),
		))
	return ctx, func() { span.End() }
}

// StartItemSpan starts a span covering every attempt for one item.
func (t *OpenTelemetryTracer) StartItemSpan(ctx context.Context, item model.WorkItem) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "item "+item.ID,
		trace.WithAttributes(
			attribute.String("item.id", item.ID),
			attribute.String("item.kind", string(item.Kind)),
		))
	return ctx, func() { span.End() }
}

// RecordError records an error in the current span.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() || err == nil {
		return
	}
	span.RecordError(err, trace.WithAttributes(attribute.String("module", module)))
	span.SetStatus(codes.Error, err.Error())
}

// RecordEvent records an event in the current span.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(toAttributes(attributes)...))
}

func toAttributes(m map[string]interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprint(val)))
		}
	}
	return attrs
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)
