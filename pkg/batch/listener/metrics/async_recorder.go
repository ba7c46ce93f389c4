package metrics

import (
	"context"
	"sync"
	"time"

	config "github.com/tigerroll/matchday/pkg/batch/core/config"
	"github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	"github.com/tigerroll/matchday/pkg/batch/core/metrics"
	"github.com/tigerroll/matchday/pkg/batch/support/util/logger"

	"go.uber.org/fx"
)

var log = logger.For("AsyncMetricRecorder")

// MetricEvent represents a metric event to be recorded asynchronously.
type MetricEvent struct {
	Type           string
	Session        *model.SessionRecord // copied at send time
	Kind           model.ItemKind
	Classification model.Classification
	Status         model.EntryStatus
	Name           string
	Size           int
	Duration       time.Duration
	Tags           map[string]string
}

// Metric event type constants
const (
	MetricEventTypeSessionStart   = "session_start"
	MetricEventTypeSessionEnd     = "session_end"
	MetricEventTypeRequest        = "request"
	MetricEventTypeItemOutcome    = "item_outcome"
	MetricEventTypeBackoff        = "backoff"
	MetricEventTypeBatch          = "batch"
	MetricEventTypeRecordDuration = "record_duration"
)

const defaultBufferSize = 100

// AsyncMetricRecorder asynchronously records metrics by pushing events to a channel
// and processing them in a separate goroutine.
type AsyncMetricRecorder struct {
	eventQueue   chan MetricEvent
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	syncRecorder metrics.MetricRecorder
}

// NewAsyncMetricRecorder creates a new asynchronous metric recorder.
// A bufferSize of 0 or less uses the default.
func NewAsyncMetricRecorder(bufferSize int, syncRec metrics.MetricRecorder) *AsyncMetricRecorder {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	r := &AsyncMetricRecorder{
		eventQueue:   make(chan MetricEvent, bufferSize),
		stopCh:       make(chan struct{}),
		syncRecorder: syncRec,
	}
	r.wg.Add(1)
	go r.run()
	log.Debugf("worker goroutine started (buffer size: %d).", bufferSize)
	return r
}

func (r *AsyncMetricRecorder) run() {
	defer r.wg.Done()
	for {
		select {
		case event := <-r.eventQueue:
			r.processEvent(event)
		case <-r.stopCh:
			// Drain what was queued before the stop signal.
			remaining := len(r.eventQueue)
			for i := 0; i < remaining; i++ {
				r.processEvent(<-r.eventQueue)
			}
			log.Debugf("worker goroutine stopped. Processed %d remaining events.", remaining)
			return
		}
	}
}

func (r *AsyncMetricRecorder) processEvent(event MetricEvent) {
	ctx := context.Background()
	switch event.Type {
	case MetricEventTypeSessionStart:
		r.syncRecorder.RecordSessionStart(ctx, event.Session)
	case MetricEventTypeSessionEnd:
		r.syncRecorder.RecordSessionEnd(ctx, event.Session)
	case MetricEventTypeRequest:
		r.syncRecorder.RecordRequest(ctx, event.Kind, event.Classification)
	case MetricEventTypeItemOutcome:
		r.syncRecorder.RecordItemOutcome(ctx, event.Kind, event.Status)
	case MetricEventTypeBackoff:
		r.syncRecorder.RecordBackoff(ctx, event.Classification, event.Duration)
	case MetricEventTypeBatch:
		r.syncRecorder.RecordBatch(ctx, event.Kind, event.Size, event.Duration)
	case MetricEventTypeRecordDuration:
		r.syncRecorder.RecordDuration(ctx, event.Name, event.Duration, event.Tags)
	default:
		log.Warnf("unknown metric event type: %s", event.Type)
	}
}

// Close stops the worker after it has processed every queued event. It is safe to call twice.
func (r *AsyncMetricRecorder) Close() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	r.wg.Wait()
}

// sendEvent never blocks; events are dropped when the queue is full.
func (r *AsyncMetricRecorder) sendEvent(event MetricEvent) {
	select {
	case r.eventQueue <- event:
	default:
		log.Warnf("event queue is full (type: %s). Event discarded.", event.Type)
	}
}

func (r *AsyncMetricRecorder) RecordSessionStart(_ context.Context, session *model.SessionRecord) {
	s := *session
	r.sendEvent(MetricEvent{Type: MetricEventTypeSessionStart, Session: &s})
}

func (r *AsyncMetricRecorder) RecordSessionEnd(_ context.Context, session *model.SessionRecord) {
	s := *session
	r.sendEvent(MetricEvent{Type: MetricEventTypeSessionEnd, Session: &s})
}

func (r *AsyncMetricRecorder) RecordRequest(_ context.Context, kind model.ItemKind, classification model.Classification) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeRequest, Kind: kind, Classification: classification})
}

func (r *AsyncMetricRecorder) RecordItemOutcome(_ context.Context, kind model.ItemKind, status model.EntryStatus) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeItemOutcome, Kind: kind, Status: status})
}

func (r *AsyncMetricRecorder) RecordBackoff(_ context.Context, classification model.Classification, delay time.Duration) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeBackoff, Classification: classification, Duration: delay})
}

func (r *AsyncMetricRecorder) RecordBatch(_ context.Context, kind model.ItemKind, size int, duration time.Duration) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeBatch, Kind: kind, Size: size, Duration: duration})
}

func (r *AsyncMetricRecorder) RecordDuration(_ context.Context, name string, duration time.Duration, tags map[string]string) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeRecordDuration, Name: name, Duration: duration, Tags: tags})
}

var _ metrics.MetricRecorder = (*AsyncMetricRecorder)(nil)

// NewAsyncMetricRecorderWrapper is a helper function for use with fx.Decorate.
// The wrapped recorder is drained on shutdown.
func NewAsyncMetricRecorderWrapper(lc fx.Lifecycle, cfg *config.Config, syncRecorder metrics.MetricRecorder) metrics.MetricRecorder {
	asyncRecorder := NewAsyncMetricRecorder(cfg.Matchday.Metrics.AsyncBufferSize, syncRecorder)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			asyncRecorder.Close()
			return nil
		},
	})
	log.Debugf("MetricRecorder decorated with asynchronous wrapper.")
	return asyncRecorder
}
