package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/hashicorp/go-multierror"

	port "github.com/tigerroll/matchday/pkg/batch/core/application/port"
	config "github.com/tigerroll/matchday/pkg/batch/core/config"
	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/matchday/pkg/batch/core/metrics"
	"github.com/tigerroll/matchday/pkg/batch/core/ports"
	"github.com/tigerroll/matchday/pkg/batch/core/support/clock"
	"github.com/tigerroll/matchday/pkg/batch/engine/ledger"
	"github.com/tigerroll/matchday/pkg/batch/engine/step/item"
	"github.com/tigerroll/matchday/pkg/batch/engine/step/pacing"
	"github.com/tigerroll/matchday/pkg/batch/engine/step/retry"
	"github.com/tigerroll/matchday/pkg/batch/engine/step/skip"
	"github.com/tigerroll/matchday/pkg/batch/support/util/exception"
	"github.com/tigerroll/matchday/pkg/batch/support/util/logger"
)

var log = logger.For("SessionSupervisor")

// activeRun is a session being driven by this process.
type activeRun struct {
	sessionID   string
	cancel      context.CancelFunc
	abortReason string
}

// SessionSupervisor is the top-level control loop of a collection session.
// Sessions of disjoint scopes may run concurrently; they share only the ledger store.
type SessionSupervisor struct {
	ledger    *ledger.ProgressLedger
	fetcher   port.SourceFetcher
	store     port.DataStore
	cfg       config.CollectorConfig
	notifiers []ports.Notifier

	clock    clock.Clock
	recorder metrics.MetricRecorder
	tracer   metrics.Tracer
	seed     *int64

	mu      sync.Mutex
	running map[string]*activeRun // by scope
}

// SupervisorOption configures a SessionSupervisor.
type SupervisorOption func(*SessionSupervisor)

// WithClock replaces the wall clock for pacing, backoff and pauses.
func WithClock(c clock.Clock) SupervisorOption {
	return func(s *SessionSupervisor) { s.clock = c }
}

// WithMetrics sets the metric recorder and tracer.
func WithMetrics(recorder metrics.MetricRecorder, tracer metrics.Tracer) SupervisorOption {
	return func(s *SessionSupervisor) {
		if recorder != nil {
			s.recorder = recorder
		}
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithNotifiers adds notifiers told about every finalized session.
func WithNotifiers(notifiers ...ports.Notifier) SupervisorOption {
	return func(s *SessionSupervisor) { s.notifiers = append(s.notifiers, notifiers...) }
}

// WithSeed makes pacing delays and jitter reproducible.
func WithSeed(seed int64) SupervisorOption {
	return func(s *SessionSupervisor) { s.seed = &seed }
}

// NewSessionSupervisor creates a supervisor. cfg is copied; every session gets its own
// pacing counters and retry accounting.
func NewSessionSupervisor(l *ledger.ProgressLedger, fetcher port.SourceFetcher, store port.DataStore, cfg config.CollectorConfig, opts ...SupervisorOption) *SessionSupervisor {
	s := &SessionSupervisor{
		ledger:   l,
		fetcher:  fetcher,
		store:    store,
		cfg:      cfg,
		clock:    clock.Real(),
		recorder: metrics.NewNoOpMetricRecorder(),
		tracer:   metrics.NewNoOpTracer(),
		running:  make(map[string]*activeRun),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ SessionRunner   = (*SessionSupervisor)(nil)
	_ SessionOperator = (*SessionSupervisor)(nil)
)

func (s *SessionSupervisor) register(scope string, cancel context.CancelFunc) (*activeRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.running[scope]; busy {
		return nil, exception.NewBatchErrorf("SessionSupervisor", "scope %s is already running", scope, ErrScopeBusy)
	}
	run := &activeRun{cancel: cancel}
	s.running[scope] = run
	return run, nil
}

func (s *SessionSupervisor) unregister(scope string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, scope)
}

func (s *SessionSupervisor) abortReasonOf(run *activeRun) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return run.abortReason
}

// Run opens the scope through the ledger and drives every resumable item through the
// batch scheduler.
func (s *SessionSupervisor) Run(ctx context.Context, req Request) (model.SessionSummary, error) {
	const op = "SessionSupervisor.Run"
	if req.Scope == "" || !req.Kind.IsValid() {
		return model.SessionSummary{}, exception.NewBatchErrorf(op, "invalid request: kind %q scope %q", req.Kind, req.Scope)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	run, err := s.register(req.Scope, cancel)
	if err != nil {
		return model.SessionSummary{}, err
	}
	defer s.unregister(req.Scope)

	opened, err := s.ledger.Open(ctx, req.Kind, req.Scope, req.Items)
	if err != nil {
		return model.SessionSummary{}, err
	}
	session := opened.Session
	s.mu.Lock()
	run.sessionID = session.ID
	s.mu.Unlock()

	s.recorder.RecordSessionStart(ctx, session)
	runCtx, endSpan := s.tracer.StartSessionSpan(runCtx, session)
	defer endSpan()

	stats := model.NewRequestStats()
	scheduler := s.newScheduler(stats)
	handler := &sessionHandler{
		supervisor: s,
		session:    session,
		failures:   skip.NewFailureRatePolicy(s.cfg.Session.AbortFailureRate, s.cfg.Session.AbortConsecutiveBatches),
	}

	res, runErr := scheduler.Run(runCtx, opened.Resumable, handler)

	summaryCtx := context.WithoutCancel(ctx)
	switch {
	case runErr != nil && s.abortReasonOf(run) != "" && errors.Is(runErr, context.Canceled) && ctx.Err() == nil:
		return s.finish(summaryCtx, session, model.SessionFailed, res, stats, "aborted by operator: "+s.abortReasonOf(run))

	case runErr != nil && ctx.Err() != nil:
		log.Warnf("Session %s interrupted; in-flight items stay pending for resume.", session.ID)
		summary, snapErr := s.summary(summaryCtx, session.ID, res, stats, "")
		if snapErr != nil {
			log.Warnf("Failed to snapshot interrupted session %s: %v", session.ID, snapErr)
		}
		return summary, ctx.Err()

	case runErr != nil:
		s.tracer.RecordError(runCtx, "SessionSupervisor", runErr)
		log.Errorf("Session %s stopped on an infrastructure error; it stays in_progress: %v", session.ID, runErr)
		summary, _ := s.summary(summaryCtx, session.ID, res, stats, "")
		return summary, exception.NewBatchError(op, fmt.Sprintf("session %s stopped", session.ID), runErr, false, true)

	case handler.externallyEnded:
		log.Warnf("Session %s was finalized by another process; stopping.", session.ID)
		summary, _ := s.summary(summaryCtx, session.ID, res, stats, "finalized externally")
		return summary, exception.NewBatchErrorf(op, "session %s ended externally", session.ID, ErrSessionAborted)

	case res.Stopped:
		return s.finish(summaryCtx, session, model.SessionFailed, res, stats, handler.failures.Reason())
	}

	counts, err := s.ledger.Counts(summaryCtx, session.ID)
	if err != nil {
		return model.SessionSummary{}, err
	}
	status := model.SessionCompleted
	if total := session.TotalItems; total > 0 && float64(counts[model.EntryFailed])/float64(total) > s.cfg.Session.AcceptableFailureRate {
		status = model.SessionFailed
	}
	return s.finish(summaryCtx, session, status, res, stats, "")
}

func (s *SessionSupervisor) newScheduler(stats *model.RequestStats) *item.BatchScheduler {
	pacingOpts := []pacing.Option{pacing.WithClock(s.clock)}
	var retryOpts []retry.Option
	if s.seed != nil {
		pacingOpts = append(pacingOpts, pacing.WithRand(rand.New(rand.NewSource(*s.seed))))
		retryOpts = append(retryOpts, retry.WithRand(rand.New(rand.NewSource(*s.seed+1))))
	}
	return item.NewBatchScheduler(
		s.fetcher,
		pacing.NewController(s.cfg.Pacing, pacingOpts...),
		retry.NewBackoffPolicy(s.cfg.Backoff, stats, retryOpts...),
		s.cfg.Batch,
		item.WithClock(s.clock),
		item.WithMetrics(s.recorder, s.tracer),
	)
}

// finish finalizes the session and tells the notifiers. Aborts are returned as
// ErrSessionAborted.
func (s *SessionSupervisor) finish(ctx context.Context, session *model.SessionRecord, status model.SessionStatus, res item.RunResult, stats *model.RequestStats, abortReason string) (model.SessionSummary, error) {
	const op = "SessionSupervisor.finish"

	notes := stats.String()
	if abortReason != "" {
		notes += "; " + abortReason
	}

	if err := s.ledger.Finalize(ctx, session, status, notes); err != nil {
		if !exception.IsOptimisticLockingFailure(err) {
			return model.SessionSummary{}, err
		}
		log.Warnf("Session %s changed underneath; keeping the stored terminal state.", session.ID)
		summary, _ := s.summary(ctx, session.ID, res, stats, abortReason)
		return summary, exception.NewBatchErrorf(op, "session %s ended externally", session.ID, ErrSessionAborted)
	}
	s.recorder.RecordSessionEnd(ctx, session)

	summary, err := s.summary(ctx, session.ID, res, stats, abortReason)
	if err != nil {
		return summary, err
	}
	log.Infof("Session %s %s: %d/%d completed, %d failed, %d batches. %s",
		session.ID, session.Status, summary.Completed, summary.Total, summary.Failed, res.BatchesRun, notes)

	var result *multierror.Error
	if err := s.notify(ctx, summary); err != nil {
		result = multierror.Append(result, err)
	}
	if abortReason != "" {
		result = multierror.Append(result, exception.NewBatchErrorf(op, "session %s: %s", session.ID, abortReason, ErrSessionAborted))
	}
	return summary, result.ErrorOrNil()
}

func (s *SessionSupervisor) summary(ctx context.Context, sessionID string, res item.RunResult, stats *model.RequestStats, abortReason string) (model.SessionSummary, error) {
	snap, err := s.ledger.Snapshot(ctx, sessionID)
	return model.SessionSummary{Snapshot: snap, BatchesRun: res.BatchesRun, Stats: stats, AbortReason: abortReason}, err
}

func (s *SessionSupervisor) notify(ctx context.Context, summary model.SessionSummary) error {
	var result *multierror.Error
	for _, n := range s.notifiers {
		if err := n.NotifySessionEnd(ctx, summary); err != nil {
			log.Warnf("Notifier %T failed for session %s: %v", n, summary.SessionID, err)
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Abort cancels a session running in this process, or finalizes a session left
// in_progress by another process.
func (s *SessionSupervisor) Abort(ctx context.Context, sessionID, reason string) error {
	const op = "SessionSupervisor.Abort"
	if reason == "" {
		reason = "no reason given"
	}

	s.mu.Lock()
	for _, run := range s.running {
		if run.sessionID == sessionID {
			run.abortReason = reason
			s.mu.Unlock()
			log.Infof("Aborting running session %s: %s", sessionID, reason)
			run.cancel()
			return nil
		}
	}
	s.mu.Unlock()

	session, err := s.ledger.Session(ctx, sessionID)
	if err != nil {
		return exception.NewBatchErrorf(op, "failed to load session %s", sessionID, err)
	}
	if session.Status.IsTerminal() {
		return exception.NewBatchErrorf(op, "session %s is %s", sessionID, session.Status, ErrSessionTerminal)
	}
	abortReason := "aborted by operator: " + reason
	notes := abortReason
	if session.Notes != "" {
		notes = session.Notes + "; " + abortReason
	}
	if err := s.ledger.Finalize(ctx, session, model.SessionFailed, notes); err != nil {
		return err
	}
	s.recorder.RecordSessionEnd(ctx, session)
	log.Infof("Session %s aborted: %s", sessionID, reason)

	snap, err := s.ledger.Snapshot(ctx, sessionID)
	if err != nil {
		return err
	}
	return s.notify(ctx, model.SessionSummary{Snapshot: snap, Stats: model.NewRequestStats(), AbortReason: abortReason})
}

// sessionHandler persists outcomes of one session in order: store write, then ledger mark.
type sessionHandler struct {
	supervisor      *SessionSupervisor
	session         *model.SessionRecord
	failures        *skip.FailureRatePolicy
	externallyEnded bool
}

func (h *sessionHandler) HandleItem(ctx context.Context, outcome item.ItemOutcome) error {
	const op = "SessionSupervisor.HandleItem"
	s := h.supervisor
	// A fetched item is persisted even while the run is being cancelled.
	ctx = context.WithoutCancel(ctx)

	if outcome.Status == model.EntryCompleted {
		if err := s.store.Upsert(ctx, outcome.Item, outcome.Records); err != nil {
			return exception.NewBatchErrorf(op, "store write for %s failed", outcome.Item.ID, err)
		}
		changed, err := s.ledger.MarkCompleted(ctx, h.session.ID, outcome.Item.ID)
		if err != nil {
			return exception.NewBatchErrorf(op, "failed to mark %s completed", outcome.Item.ID, err)
		}
		if !changed {
			log.Debugf("Item %s was already completed; ledger unchanged.", outcome.Item.ID)
		}
		return nil
	}

	reason := fmt.Sprintf("%s after %d retries: %s", outcome.Retry.LastClassification, outcome.Retry.Attempts, exception.FailureReason(outcome.Err))
	if _, err := s.ledger.MarkFailed(ctx, h.session.ID, outcome.Item.ID, reason); err != nil {
		return exception.NewBatchErrorf(op, "failed to mark %s failed", outcome.Item.ID, err)
	}
	return nil
}

func (h *sessionHandler) AfterBatch(ctx context.Context, result item.BatchResult) (bool, error) {
	s := h.supervisor

	current, err := s.ledger.Session(ctx, h.session.ID)
	if err != nil {
		return false, err
	}
	if current.Status.IsTerminal() {
		h.externallyEnded = true
		return true, nil
	}
	h.session.Version = current.Version
	h.session.CompletedItems = current.CompletedItems
	h.session.TotalItems = current.TotalItems

	if h.failures.ObserveBatch(result.Failed, result.Size) {
		log.Errorf("Session %s: %s; aborting.", h.session.ID, h.failures.Reason())
		return true, nil
	}
	if h.failures.Streak() > 0 {
		log.Warnf("Session %s: batch %d failure rate %d/%d above threshold (%d in a row).", h.session.ID, result.Index+1, result.Failed, result.Size, h.failures.Streak())
	}
	return false, nil
}
