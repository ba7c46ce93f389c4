package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
)

// NoOpMetricRecorder is a MetricRecorder that does nothing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

func (r *NoOpMetricRecorder) RecordSessionStart(context.Context, *model.SessionRecord) {}
func (r *NoOpMetricRecorder) RecordSessionEnd(context.Context, *model.SessionRecord)   {}
func (r *NoOpMetricRecorder) RecordRequest(context.Context, model.ItemKind, model.Classification) {
}
func (r *NoOpMetricRecorder) RecordItemOutcome(context.Context, model.ItemKind, model.EntryStatus) {
}
func (r *NoOpMetricRecorder) RecordBackoff(context.Context, model.Classification, time.Duration) {}
func (r *NoOpMetricRecorder) RecordBatch(context.Context, model.ItemKind, int, time.Duration)    {}
func (r *NoOpMetricRecorder) RecordDuration(context.Context, string, time.Duration, map[string]string) {
}

// NoOpTracer is a Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

func (t *NoOpTracer) StartSessionSpan(ctx context.Context, _ *model.SessionRecord) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) StartBatchSpan(ctx context.Context, _ model.ItemKind, _, _ int) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) StartItemSpan(ctx context.Context, _ model.WorkItem) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) RecordError(context.Context, string, error) {}

func (t *NoOpTracer) RecordEvent(context.Context, string, map[string]interface{}) {}

var (
	_ MetricRecorder = (*NoOpMetricRecorder)(nil)
	_ Tracer         = (*NoOpTracer)(nil)
)
