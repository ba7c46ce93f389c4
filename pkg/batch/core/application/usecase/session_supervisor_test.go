package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	port "github.com/tigerroll/matchday/pkg/batch/core/application/port"
	"github.com/tigerroll/matchday/pkg/batch/core/application/usecase"
	config "github.com/tigerroll/matchday/pkg/batch/core/config"
	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	"github.com/tigerroll/matchday/pkg/batch/core/support/clock"
	"github.com/tigerroll/matchday/pkg/batch/engine/ledger"
	"github.com/tigerroll/matchday/pkg/batch/engine/step/retry"
	"github.com/tigerroll/matchday/pkg/batch/infrastructure/repository/inmemory"
)

type fakeFetcher struct {
	mu      sync.Mutex
	script  map[string][]error
	always  map[string]error
	calls   []string
	onFetch func(ctx context.Context, item model.WorkItem) error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{script: map[string][]error{}, always: map[string]error{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, item model.WorkItem, identity string) (port.RecordSet, error) {
	f.mu.Lock()
	f.calls = append(f.calls, item.ID)
	err := f.always[item.ID]
	if q := f.script[item.ID]; err == nil && len(q) > 0 {
		err = q[0]
		f.script[item.ID] = q[1:]
	}
	hook := f.onFetch
	f.mu.Unlock()

	if hook != nil {
		if hookErr := hook(ctx, item); hookErr != nil {
			return nil, hookErr
		}
	}
	if err != nil {
		return nil, err
	}
	return port.RecordSet{fmt.Sprintf("record of %s", item.ID)}, nil
}

func (f *fakeFetcher) fetches(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == id {
			n++
		}
	}
	return n
}

// fakeStore keeps one row set per item, so a replayed write replaces identical rows.
type fakeStore struct {
	mu      sync.Mutex
	writes  map[string]int
	rows    map[string]port.RecordSet
	fail    map[string]error
	order   []string
	onWrite func(item model.WorkItem)
}

func newFakeStore() *fakeStore {
	return &fakeStore{writes: map[string]int{}, rows: map[string]port.RecordSet{}, fail: map[string]error{}}
}

func (s *fakeStore) Upsert(ctx context.Context, item model.WorkItem, records port.RecordSet) error {
	s.mu.Lock()
	s.writes[item.ID]++
	if err, ok := s.fail[item.ID]; ok {
		delete(s.fail, item.ID)
		s.mu.Unlock()
		return err
	}
	s.rows[item.ID] = records
	s.order = append(s.order, item.ID)
	hook := s.onWrite
	s.mu.Unlock()
	if hook != nil {
		hook(item)
	}
	return nil
}

// flakyLedgerRepository fails the next MarkEntryCompleted of failItem.
type flakyLedgerRepository struct {
	*inmemory.InMemoryRepository
	failItem string
}

func (r *flakyLedgerRepository) MarkEntryCompleted(ctx context.Context, sessionID, itemID string, at time.Time) (bool, error) {
	if itemID == r.failItem {
		r.failItem = ""
		return false, errors.New("ledger write timed out")
	}
	return r.InMemoryRepository.MarkEntryCompleted(ctx, sessionID, itemID, at)
}

type recordingNotifier struct {
	summaries []model.SessionSummary
}

func (n *recordingNotifier) NotifySessionEnd(_ context.Context, summary model.SessionSummary) error {
	n.summaries = append(n.summaries, summary)
	return nil
}

type fixture struct {
	repo     *inmemory.InMemoryRepository
	clock    *clock.Fake
	ledger   *ledger.ProgressLedger
	fetcher  *fakeFetcher
	store    *fakeStore
	notifier *recordingNotifier
	cfg      config.CollectorConfig
}

func newFixture() *fixture {
	cfg := config.NewCollectorConfig()
	cfg.Batch.InterBatchPauseMs = 0
	repo := inmemory.NewInMemoryRepository()
	clk := clock.NewFake(time.Date(2024, 11, 2, 9, 0, 0, 0, time.UTC))
	return &fixture{
		repo:     repo,
		clock:    clk,
		ledger:   ledger.NewProgressLedger(repo, cfg.Session.FailedItemRetryCap, ledger.WithClock(clk)),
		fetcher:  newFakeFetcher(),
		store:    newFakeStore(),
		notifier: &recordingNotifier{},
		cfg:      cfg,
	}
}

func (f *fixture) supervisor() *usecase.SessionSupervisor {
	return usecase.NewSessionSupervisor(f.ledger, f.fetcher, f.store, f.cfg,
		usecase.WithClock(f.clock),
		usecase.WithNotifiers(f.notifier),
		usecase.WithSeed(7),
	)
}

func matches(n int) []model.WorkItem {
	items := make([]model.WorkItem, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, model.NewWorkItem(model.KindMatchStats, "match", i, model.Params{"event_id": i}))
	}
	return items
}

func request(n int) usecase.Request {
	return usecase.Request{Kind: model.KindMatchStats, Scope: "match_stats:2024-11-01", Items: matches(n)}
}

func TestRun_TwentyFiveItemsInThreeBatches(t *testing.T) {
	f := newFixture()
	summary, err := f.supervisor().Run(context.Background(), request(25))
	require.NoError(t, err)

	assert.Equal(t, model.SessionCompleted, summary.Status)
	assert.Equal(t, 3, summary.BatchesRun)
	assert.Equal(t, 25, summary.Completed)
	assert.Equal(t, 0, summary.Pending)

	counts, err := f.repo.CountEntries(context.Background(), summary.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 25, counts[model.EntryCompleted])

	session, err := f.repo.FindSessionByID(context.Background(), summary.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 25, session.CompletedItems)
	assert.Contains(t, session.Notes, "requests=25 success=25")

	require.Len(t, f.notifier.summaries, 1)
	assert.Equal(t, summary.SessionID, f.notifier.summaries[0].SessionID)
}

func TestRun_SoftLimitedTwiceThenSuccess(t *testing.T) {
	f := newFixture()
	f.fetcher.script["match:7"] = []error{retry.ErrSoftLimited, retry.ErrSoftLimited}

	summary, err := f.supervisor().Run(context.Background(), request(10))
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, summary.Status)
	assert.Equal(t, 3, f.fetcher.fetches("match:7"))
	assert.Equal(t, 2, summary.Stats.Counts[model.ClassSoftLimited])
	assert.Equal(t, 10, summary.Stats.Counts[model.ClassSuccess])
}

func TestRun_SustainedFailureRateAbortsSession(t *testing.T) {
	f := newFixture()
	for _, i := range []int{1, 2, 3, 4, 5, 6, 11, 12, 13, 14, 15, 16} {
		f.fetcher.always[fmt.Sprintf("match:%d", i)] = fmt.Errorf("status 500: %w", retry.ErrHardError)
	}

	summary, err := f.supervisor().Run(context.Background(), request(30))
	require.Error(t, err)
	assert.ErrorIs(t, err, usecase.ErrSessionAborted)

	assert.Equal(t, model.SessionFailed, summary.Status)
	assert.Equal(t, 2, summary.BatchesRun)
	assert.Equal(t, 12, summary.Failed)
	assert.Equal(t, 8, summary.Completed)
	assert.Equal(t, 10, summary.Pending, "the third batch is never started")
	assert.Contains(t, summary.AbortReason, "failure rate above 50%")
	assert.Equal(t, 3, f.fetcher.fetches("match:1"), "hard errors get 1 + 2 attempts")
	assert.Zero(t, f.fetcher.fetches("match:21"))
}

func TestRun_ResumeAfterKillMidBatch(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	f.fetcher.onFetch = func(ctx context.Context, item model.WorkItem) error {
		if item.ID == "match:5" {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	summary, err := f.supervisor().Run(ctx, request(25))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.SessionInProgress, summary.Status)
	assert.Equal(t, 4, summary.Completed)
	assert.Equal(t, 21, summary.Pending)

	f.fetcher.onFetch = nil
	f.fetcher.calls = nil
	resumed, err := f.supervisor().Run(context.Background(), request(25))
	require.NoError(t, err)

	assert.Equal(t, summary.SessionID, resumed.SessionID)
	assert.Equal(t, model.SessionCompleted, resumed.Status)
	assert.Equal(t, 25, resumed.Completed)
	require.NotEmpty(t, f.fetcher.calls)
	assert.Equal(t, "match:5", f.fetcher.calls[0])
	assert.Len(t, f.fetcher.calls, 21)
	for id, n := range f.store.writes {
		assert.Equal(t, 1, n, "item %s written once", id)
	}
	assert.Len(t, f.store.writes, 25)
}

func TestRun_NothingPendingCompletesImmediately(t *testing.T) {
	f := newFixture()
	_, err := f.supervisor().Run(context.Background(), request(5))
	require.NoError(t, err)
	f.fetcher.calls = nil

	summary, err := f.supervisor().Run(context.Background(), request(5))
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, summary.Status)
	assert.Equal(t, 0, summary.BatchesRun)
	assert.Equal(t, 5, summary.Completed)
	assert.Empty(t, f.fetcher.calls)
}

func TestRun_InterBatchPauseUsesClock(t *testing.T) {
	f := newFixture()
	f.cfg.Batch.InterBatchPauseMs = 120000
	f.cfg.Pacing.MinDelayMs = 0
	f.cfg.Pacing.MaxDelayMs = 0

	_, err := f.supervisor().Run(context.Background(), request(25))
	require.NoError(t, err)

	pauses := 0
	for _, d := range f.clock.Sleeps() {
		if d == 2*time.Minute {
			pauses++
		}
	}
	assert.Equal(t, 2, pauses)
}

func TestRun_PerMinuteWindowPacesOnSessionClock(t *testing.T) {
	f := newFixture()
	f.cfg.Pacing.MinDelayMs = 0
	f.cfg.Pacing.MaxDelayMs = 0
	f.cfg.Pacing.RequestsPerMinute = 6
	start := f.clock.Now()

	summary, err := f.supervisor().Run(context.Background(), request(4))
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Completed)

	spaced := 0
	for _, d := range f.clock.Sleeps() {
		if d == 10*time.Second {
			spaced++
		}
	}
	assert.Equal(t, 3, spaced)
	assert.GreaterOrEqual(t, f.clock.Now().Sub(start), 30*time.Second)
}

func TestAbort_RunningSessionIsFinalizedAsFailed(t *testing.T) {
	f := newFixture()
	sup := f.supervisor()
	f.store.onWrite = func(item model.WorkItem) {
		if item.ID == "match:3" {
			active, err := f.repo.FindActiveSession(context.Background(), "match_stats:2024-11-01")
			require.NoError(t, err)
			require.NoError(t, sup.Abort(context.Background(), active.ID, "maintenance"))
		}
	}

	summary, err := sup.Run(context.Background(), request(10))
	require.ErrorIs(t, err, usecase.ErrSessionAborted)
	assert.Equal(t, model.SessionFailed, summary.Status)
	assert.Equal(t, 3, summary.Completed)
	assert.Equal(t, 7, summary.Pending)
	assert.Equal(t, "aborted by operator: maintenance", summary.AbortReason)
}

func TestAbort_SessionOfAnotherProcess(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	f.fetcher.onFetch = func(ctx context.Context, item model.WorkItem) error {
		if item.ID == "match:2" {
			cancel()
			return ctx.Err()
		}
		return nil
	}
	interrupted, err := f.supervisor().Run(ctx, request(5))
	require.ErrorIs(t, err, context.Canceled)

	operator := f.supervisor()
	require.NoError(t, operator.Abort(context.Background(), interrupted.SessionID, "bad data"))

	session, err := f.repo.FindSessionByID(context.Background(), interrupted.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionFailed, session.Status)
	assert.Contains(t, session.Notes, "aborted by operator: bad data")

	err = operator.Abort(context.Background(), interrupted.SessionID, "again")
	assert.ErrorIs(t, err, usecase.ErrSessionTerminal)
}

func TestRun_StopsWhenSessionFinalizedExternally(t *testing.T) {
	f := newFixture()
	f.store.onWrite = func(item model.WorkItem) {
		if item.ID == "match:12" {
			active, err := f.repo.FindActiveSession(context.Background(), "match_stats:2024-11-01")
			require.NoError(t, err)
			session, err := f.ledger.Session(context.Background(), active.ID)
			require.NoError(t, err)
			require.NoError(t, f.ledger.Finalize(context.Background(), session, model.SessionFailed, "aborted elsewhere"))
		}
	}

	summary, err := f.supervisor().Run(context.Background(), request(30))
	require.ErrorIs(t, err, usecase.ErrSessionAborted)
	assert.Equal(t, 2, summary.BatchesRun)
	assert.Zero(t, f.fetcher.fetches("match:21"))
}

func TestRun_TooManyFailedItemsEndsFailed(t *testing.T) {
	f := newFixture()
	f.cfg.Session.AbortFailureRate = 1.0
	for i := 1; i <= 3; i++ {
		f.fetcher.always[fmt.Sprintf("match:%d", i)] = retry.ErrHardError
	}

	summary, err := f.supervisor().Run(context.Background(), request(10))
	require.NoError(t, err)
	assert.Equal(t, model.SessionFailed, summary.Status, "3 of 10 failed is above the acceptable rate")
	assert.Equal(t, 3, summary.Failed)
	assert.Empty(t, summary.AbortReason)
}

func TestRun_RejectsConcurrentRunOfSameScope(t *testing.T) {
	f := newFixture()
	sup := f.supervisor()
	var nestedErr error
	f.store.onWrite = func(item model.WorkItem) {
		if item.ID == "match:1" {
			_, nestedErr = sup.Run(context.Background(), request(3))
		}
	}

	_, err := sup.Run(context.Background(), request(3))
	require.NoError(t, err)
	assert.True(t, errors.Is(nestedErr, usecase.ErrScopeBusy))
}

func TestRun_RejectsInvalidRequest(t *testing.T) {
	f := newFixture()
	_, err := f.supervisor().Run(context.Background(), usecase.Request{Kind: "predictions", Scope: "x"})
	assert.Error(t, err)
}

func entryStatus(t *testing.T, f *fixture, sessionID, itemID string) model.EntryStatus {
	t.Helper()
	entries, err := f.repo.FindEntries(context.Background(), sessionID)
	require.NoError(t, err)
	for _, e := range entries {
		if e.ItemID == itemID {
			return e.Status
		}
	}
	t.Fatalf("item %s not in the ledger of %s", itemID, sessionID)
	return ""
}

func TestRun_StoreFailureLeavesItemPending(t *testing.T) {
	f := newFixture()
	f.store.fail["match:4"] = errors.New("database is locked")

	summary, err := f.supervisor().Run(context.Background(), request(10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.Equal(t, model.SessionInProgress, summary.Status)
	assert.Equal(t, 3, summary.Completed)
	assert.Equal(t, model.EntryPending, entryStatus(t, f, summary.SessionID, "match:4"))

	session, err := f.repo.FindSessionByID(context.Background(), summary.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionInProgress, session.Status)
	assert.Equal(t, 3, session.CompletedItems)

	f.fetcher.calls = nil
	resumed, err := f.supervisor().Run(context.Background(), request(10))
	require.NoError(t, err)
	assert.Equal(t, summary.SessionID, resumed.SessionID)
	assert.Equal(t, model.SessionCompleted, resumed.Status)
	assert.Equal(t, "match:4", f.fetcher.calls[0])
	assert.Equal(t, 2, f.store.writes["match:4"])
	assert.Equal(t, 1, f.store.writes["match:3"])
	assert.Equal(t, port.RecordSet{"record of match:4"}, f.store.rows["match:4"])
}

func TestRun_LedgerFailureAfterStoreWriteReplaysHarmlessly(t *testing.T) {
	f := newFixture()
	repo := &flakyLedgerRepository{InMemoryRepository: f.repo, failItem: "match:4"}
	f.ledger = ledger.NewProgressLedger(repo, f.cfg.Session.FailedItemRetryCap, ledger.WithClock(f.clock))

	summary, err := f.supervisor().Run(context.Background(), request(10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger write timed out")
	assert.Equal(t, model.SessionInProgress, summary.Status)
	assert.Equal(t, 1, f.store.writes["match:4"])
	assert.Equal(t, model.EntryPending, entryStatus(t, f, summary.SessionID, "match:4"))

	resumed, err := f.supervisor().Run(context.Background(), request(10))
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, resumed.Status)
	assert.Equal(t, 10, resumed.Completed)
	assert.Equal(t, 2, f.store.writes["match:4"])
	assert.Len(t, f.store.rows, 10)
	assert.Equal(t, port.RecordSet{"record of match:4"}, f.store.rows["match:4"])

	session, err := f.repo.FindSessionByID(context.Background(), resumed.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 10, session.CompletedItems)
}
