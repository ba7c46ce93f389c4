package ledger_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/matchday/pkg/batch/core/domain/repository"
	"github.com/tigerroll/matchday/pkg/batch/engine/ledger"
	"github.com/tigerroll/matchday/pkg/batch/infrastructure/repository/inmemory"
)

var errEnqueue = errors.New("connection reset by peer")

// failingEnqueueRepository fails the next enqueueFailures EnqueueEntries calls.
type failingEnqueueRepository struct {
	repository.Repository
	enqueueFailures int
}

func (r *failingEnqueueRepository) EnqueueEntries(ctx context.Context, entries []*model.LedgerEntry) error {
	if r.enqueueFailures > 0 {
		r.enqueueFailures--
		return errEnqueue
	}
	return r.Repository.EnqueueEntries(ctx, entries)
}

// gatedRepository holds the first two active-session lookups until both have been made.
type gatedRepository struct {
	repository.Repository
	gate  sync.WaitGroup
	calls atomic.Int32
}

func newGatedRepository(repo repository.Repository) *gatedRepository {
	r := &gatedRepository{Repository: repo}
	r.gate.Add(2)
	return r
}

func (r *gatedRepository) FindActiveSession(ctx context.Context, scope string) (*model.SessionRecord, error) {
	session, err := r.Repository.FindActiveSession(ctx, scope)
	if r.calls.Add(1) <= 2 {
		r.gate.Done()
		r.gate.Wait()
	}
	return session, err
}

// completeAndFail runs a session over items, completes the first n and finalizes it failed.
func completeAndFail(t *testing.T, l *ledger.ProgressLedger, scope string, items []model.WorkItem, n int) {
	t.Helper()
	ctx := context.Background()
	opened, err := l.Open(ctx, model.KindTeamHistory, scope, items)
	require.NoError(t, err)
	for _, it := range items[:n] {
		_, err := l.MarkCompleted(ctx, opened.Session.ID, it.ID)
		require.NoError(t, err)
	}
	session, err := l.Session(ctx, opened.Session.ID)
	require.NoError(t, err)
	require.NoError(t, l.Finalize(ctx, session, model.SessionFailed, "failure rate"))
}

func TestOpen_ResumeRepairsCounterAfterInterruptedOpen(t *testing.T) {
	ctx := context.Background()
	repo := &failingEnqueueRepository{Repository: inmemory.NewInMemoryRepository()}
	l := ledger.NewProgressLedger(repo, 2)
	items := teams(4)
	completeAndFail(t, l, "scope", items, 3)

	repo.enqueueFailures = 1
	_, err := l.Open(ctx, model.KindTeamHistory, "scope", items)
	require.ErrorIs(t, err, errEnqueue)

	opened, err := l.Open(ctx, model.KindTeamHistory, "scope", items)
	require.NoError(t, err)
	assert.True(t, opened.Resumed)
	assert.Equal(t, []string{"team:4"}, ids(opened.Resumable))

	counts, err := l.Counts(ctx, opened.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[model.EntryCompleted])
	assert.Equal(t, 1, counts[model.EntryPending])

	stored, err := l.Session(ctx, opened.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, counts[model.EntryCompleted], stored.CompletedItems)
	assert.Equal(t, 4, stored.TotalItems)
}

func TestOpen_ConcurrentOpensShareOneSession(t *testing.T) {
	ctx := context.Background()
	base := inmemory.NewInMemoryRepository()
	repo := newGatedRepository(base)
	items := teams(3)

	results := make([]*ledger.Opened, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l := ledger.NewProgressLedger(repo, 2)
			results[i], errs[i] = l.Open(ctx, model.KindTeamHistory, "scope", items)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, results[0].Session.ID, results[1].Session.ID)
	assert.NotEqual(t, results[0].Resumed, results[1].Resumed)

	sessions, err := base.FindSessionsByScope(ctx, "scope")
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	counts, err := base.CountEntries(ctx, results[0].Session.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[model.EntryPending])
}
