package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
)

// Span represents a single operation or unit of work in distributed tracing.
type Span interface {
	End()
}

// MetricRecorder abstracts the metrics backend (Prometheus, OTLP) from the collector.
// Implementations must not block: they are called between paced requests.
type MetricRecorder interface {
	// RecordSessionStart records that a session was opened or resumed.
	RecordSessionStart(ctx context.Context, session *model.SessionRecord)

	// RecordSessionEnd records a finalized session with its terminal status.
	RecordSessionEnd(ctx context.Context, session *model.SessionRecord)

	// RecordRequest records the classification of one outbound call.
	RecordRequest(ctx context.Context, kind model.ItemKind, classification model.Classification)

	// RecordItemOutcome records an item reaching a terminal ledger status.
	RecordItemOutcome(ctx context.Context, kind model.ItemKind, status model.EntryStatus)

	// RecordBackoff records a retry delay chosen by the backoff policy.
	RecordBackoff(ctx context.Context, classification model.Classification, delay time.Duration)

	// RecordBatch records one completed batch.
	RecordBatch(ctx context.Context, kind model.ItemKind, size int, duration time.Duration)

	// RecordDuration records the execution time of an arbitrary operation.
	// tags example: {"endpoint": "statistics", "status": "success"}
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
