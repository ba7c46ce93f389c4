// Package item runs ordered work items through the source in fixed-size batches,
// strictly one request at a time.
package item

import (
	"context"
	"time"

	port "github.com/tigerroll/matchday/pkg/batch/core/application/port"
	config "github.com/tigerroll/matchday/pkg/batch/core/config"
	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/matchday/pkg/batch/core/metrics"
	"github.com/tigerroll/matchday/pkg/batch/core/support/clock"
	"github.com/tigerroll/matchday/pkg/batch/engine/step/pacing"
	"github.com/tigerroll/matchday/pkg/batch/engine/step/retry"
	"github.com/tigerroll/matchday/pkg/batch/support/util/logger"
)

var log = logger.For("BatchScheduler")

// ItemOutcome is the terminal result of one WorkItem.
type ItemOutcome struct {
	Item    model.WorkItem
	Status  model.EntryStatus // EntryCompleted or EntryFailed
	Retry   retry.RetryState
	Records port.RecordSet
	// Err is the last fetch error of a failed item.
	Err error
}

// BatchResult summarizes one finished batch.
type BatchResult struct {
	Index     int // 0-based
	Size      int
	Completed int
	Failed    int
	Duration  time.Duration
}

// Handler receives terminal outcomes in order. An error from either method aborts the run
// and leaves the current item pending.
type Handler interface {
	// HandleItem persists a terminal outcome. For completed items the store write must be
	// acknowledged before the ledger is marked.
	HandleItem(ctx context.Context, outcome ItemOutcome) error
	// AfterBatch is called once every item of the batch is terminal. stop ends the run.
	AfterBatch(ctx context.Context, result BatchResult) (stop bool, err error)
}

// RunResult describes how far a run got.
type RunResult struct {
	BatchesRun int
	Completed  int
	Failed     int
	// Stopped is set when the handler ended the run early.
	Stopped bool
}

// BatchScheduler drives items through pacing, the source fetcher and the backoff policy.
type BatchScheduler struct {
	fetcher        port.SourceFetcher
	pacer          *pacing.Controller
	backoff        *retry.BackoffPolicy
	batchSize      int
	pause          time.Duration
	requestTimeout time.Duration

	clock    clock.Clock
	recorder metrics.MetricRecorder
	tracer   metrics.Tracer
}

// Option configures a BatchScheduler.
type Option func(*BatchScheduler)

// WithClock replaces the wall clock, e.g. with clock.Fake in tests.
func WithClock(c clock.Clock) Option {
	return func(s *BatchScheduler) { s.clock = c }
}

// WithMetrics sets the metric recorder and tracer.
func WithMetrics(recorder metrics.MetricRecorder, tracer metrics.Tracer) Option {
	return func(s *BatchScheduler) {
		if recorder != nil {
			s.recorder = recorder
		}
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// NewBatchScheduler creates a scheduler. A batch size below 1 is treated as 1.
func NewBatchScheduler(fetcher port.SourceFetcher, pacer *pacing.Controller, backoff *retry.BackoffPolicy, cfg config.BatchConfig, opts ...Option) *BatchScheduler {
	s := &BatchScheduler{
		fetcher:        fetcher,
		pacer:          pacer,
		backoff:        backoff,
		batchSize:      cfg.Size,
		pause:          cfg.InterBatchPause(),
		requestTimeout: cfg.RequestTimeout(),
		clock:          clock.Real(),
		recorder:       metrics.NewNoOpMetricRecorder(),
		tracer:         metrics.NewNoOpTracer(),
	}
	if s.batchSize < 1 {
		s.batchSize = 1
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Partition splits items into consecutive groups of size, preserving order.
func Partition(items []model.WorkItem, size int) [][]model.WorkItem {
	if size < 1 {
		size = 1
	}
	batches := make([][]model.WorkItem, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

// Run processes items in order. Batches never overlap, and the inter-batch pause runs only
// between batches. Cancellation of ctx returns ctx.Err() with the in-flight item unreported.
func (s *BatchScheduler) Run(ctx context.Context, items []model.WorkItem, h Handler) (RunResult, error) {
	var res RunResult
	if len(items) == 0 {
		log.Infof("No pending items; nothing to schedule.")
		return res, nil
	}

	batches := Partition(items, s.batchSize)
	log.Infof("Scheduling %d items in %d batches of up to %d.", len(items), len(batches), s.batchSize)

	for i, batch := range batches {
		if i > 0 && s.pause > 0 {
			log.Infof("Batch %d/%d done. Pausing %s before the next batch.", i, len(batches), s.pause)
			if err := s.clock.Sleep(ctx, s.pause); err != nil {
				return res, err
			}
		}

		br, err := s.runBatch(ctx, i, batch, h, &res)
		if err != nil {
			return res, err
		}
		res.BatchesRun++
		log.Infof("Batch %d/%d finished: %d completed, %d failed in %s.", i+1, len(batches), br.Completed, br.Failed, br.Duration.Round(time.Millisecond))

		stop, err := h.AfterBatch(ctx, br)
		if err != nil {
			return res, err
		}
		if stop {
			res.Stopped = true
			return res, nil
		}
	}
	return res, nil
}

func (s *BatchScheduler) runBatch(ctx context.Context, index int, batch []model.WorkItem, h Handler, res *RunResult) (BatchResult, error) {
	kind := batch[0].Kind
	ctx, end := s.tracer.StartBatchSpan(ctx, kind, index, len(batch))
	defer end()

	started := s.clock.Now()
	br := BatchResult{Index: index, Size: len(batch)}
	for _, item := range batch {
		outcome, err := s.processItem(ctx, item)
		if err != nil {
			return br, err
		}
		if err := h.HandleItem(ctx, outcome); err != nil {
			s.tracer.RecordError(ctx, "BatchScheduler", err)
			return br, err
		}
		s.recorder.RecordItemOutcome(ctx, item.Kind, outcome.Status)
		if outcome.Status == model.EntryCompleted {
			br.Completed++
			res.Completed++
		} else {
			br.Failed++
			res.Failed++
		}
	}
	br.Duration = s.clock.Now().Sub(started)
	s.recorder.RecordBatch(ctx, kind, len(batch), br.Duration)
	return br, nil
}

// processItem runs the pacing, fetch and backoff loop for one item until it succeeds or
// exhausts its retry budget.
func (s *BatchScheduler) processItem(ctx context.Context, item model.WorkItem) (ItemOutcome, error) {
	ctx, end := s.tracer.StartItemSpan(ctx, item)
	defer end()

	var state retry.RetryState
	for {
		pace := s.pacer.BeforeRequest()
		if err := s.clock.Sleep(ctx, pace.Delay); err != nil {
			return ItemOutcome{}, err
		}

		records, fetchErr := s.fetch(ctx, item, pace.Identity)
		if err := ctx.Err(); err != nil {
			return ItemOutcome{}, err
		}

		class := retry.Classify(fetchErr)
		s.recorder.RecordRequest(ctx, item.Kind, class)
		decision := s.backoff.NextAction(&state, class, s.clock.Now())

		switch decision.Action {
		case retry.ActionSucceed:
			return ItemOutcome{Item: item, Status: model.EntryCompleted, Retry: state, Records: records}, nil
		case retry.ActionFail:
			log.Warnf("Item %s failed after %d retries (%s): %v", item.ID, state.Attempts, class, fetchErr)
			s.tracer.RecordError(ctx, "BatchScheduler", fetchErr)
			return ItemOutcome{Item: item, Status: model.EntryFailed, Retry: state, Err: fetchErr}, nil
		default:
			log.Warnf("Item %s: %s on attempt %d; retrying in %s.", item.ID, class, state.Attempts, decision.Delay.Round(time.Millisecond))
			s.recorder.RecordBackoff(ctx, class, decision.Delay)
			if err := s.clock.Sleep(ctx, decision.Delay); err != nil {
				return ItemOutcome{}, err
			}
		}
	}
}

// fetch issues one request bounded by the per-request timeout.
func (s *BatchScheduler) fetch(ctx context.Context, item model.WorkItem, identity string) (port.RecordSet, error) {
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}
	started := s.clock.Now()
	records, err := s.fetcher.Fetch(ctx, item, identity)
	s.recorder.RecordDuration(ctx, "fetch", s.clock.Now().Sub(started), map[string]string{
		"kind":           string(item.Kind),
		"classification": string(retry.Classify(err)),
	})
	return records, err
}
