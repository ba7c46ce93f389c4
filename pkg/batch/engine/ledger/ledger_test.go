package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	"github.com/tigerroll/matchday/pkg/batch/core/support/clock"
	"github.com/tigerroll/matchday/pkg/batch/engine/ledger"
	"github.com/tigerroll/matchday/pkg/batch/infrastructure/repository/inmemory"
)

func teams(n int) []model.WorkItem {
	items := make([]model.WorkItem, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, model.NewWorkItem(model.KindTeamHistory, "team", i, model.Params{"team_id": i}))
	}
	return items
}

func ids(items []model.WorkItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func newLedger() (*ledger.ProgressLedger, *inmemory.InMemoryRepository, *clock.Fake) {
	repo := inmemory.NewInMemoryRepository()
	clk := clock.NewFake(time.Date(2024, 11, 2, 9, 0, 0, 0, time.UTC))
	return ledger.NewProgressLedger(repo, 2, ledger.WithClock(clk)), repo, clk
}

func TestOpen_NewSessionEnqueuesEverything(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger()

	opened, err := l.Open(ctx, model.KindTeamHistory, "team_history:2024-11-01", teams(5))
	require.NoError(t, err)
	assert.False(t, opened.Resumed)
	assert.Equal(t, model.SessionInProgress, opened.Session.Status)
	assert.Equal(t, 5, opened.Session.TotalItems)
	assert.Equal(t, ids(teams(5)), ids(opened.Resumable))

	snap, err := l.Snapshot(ctx, opened.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, snap.Pending)
	assert.Equal(t, 0, snap.Completed)
}

func TestOpen_ResumeSkipsCompletedInOrder(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger()
	items := teams(10)

	first, err := l.Open(ctx, model.KindTeamHistory, "scope", items)
	require.NoError(t, err)
	for _, it := range items[:4] {
		changed, err := l.MarkCompleted(ctx, first.Session.ID, it.ID)
		require.NoError(t, err)
		assert.True(t, changed)
	}

	again, err := l.Open(ctx, model.KindTeamHistory, "scope", items)
	require.NoError(t, err)
	assert.True(t, again.Resumed)
	assert.Equal(t, first.Session.ID, again.Session.ID)
	assert.Equal(t, ids(items[4:]), ids(again.Resumable))
	assert.Equal(t, 4, again.Session.CompletedItems)
}

func TestOpen_FailedItemsComeBackUntilCap(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger()
	items := teams(3)

	opened, err := l.Open(ctx, model.KindTeamHistory, "scope", items)
	require.NoError(t, err)
	_, err = l.MarkFailed(ctx, opened.Session.ID, "team:2", "hard_error")
	require.NoError(t, err)

	resumed, err := l.Open(ctx, model.KindTeamHistory, "scope", items)
	require.NoError(t, err)
	assert.Equal(t, []string{"team:1", "team:2", "team:3"}, ids(resumed.Resumable))

	_, err = l.MarkFailed(ctx, opened.Session.ID, "team:2", "hard_error")
	require.NoError(t, err)
	resumed, err = l.Open(ctx, model.KindTeamHistory, "scope", items)
	require.NoError(t, err)
	assert.Equal(t, []string{"team:1", "team:3"}, ids(resumed.Resumable))
}

func TestOpen_ResumeAppendsNewScopeItems(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger()

	opened, err := l.Open(ctx, model.KindTeamHistory, "scope", teams(2))
	require.NoError(t, err)
	_, err = l.MarkCompleted(ctx, opened.Session.ID, "team:1")
	require.NoError(t, err)

	resumed, err := l.Open(ctx, model.KindTeamHistory, "scope", teams(3))
	require.NoError(t, err)
	assert.Equal(t, []string{"team:2", "team:3"}, ids(resumed.Resumable))
	assert.Equal(t, 3, resumed.Session.TotalItems)
}

func TestOpen_AfterFailedSessionCarriesCompletedItems(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger()
	items := teams(4)

	first, err := l.Open(ctx, model.KindTeamHistory, "scope", items)
	require.NoError(t, err)
	_, err = l.MarkCompleted(ctx, first.Session.ID, "team:1")
	require.NoError(t, err)
	require.NoError(t, l.Finalize(ctx, first.Session, model.SessionFailed, "aborted"))

	second, err := l.Open(ctx, model.KindTeamHistory, "scope", items)
	require.NoError(t, err)
	assert.False(t, second.Resumed)
	assert.NotEqual(t, first.Session.ID, second.Session.ID)
	assert.Equal(t, []string{"team:2", "team:3", "team:4"}, ids(second.Resumable))

	snap, err := l.Snapshot(ctx, second.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Completed)
	assert.Equal(t, 1, second.Session.CompletedItems)
}

func TestFinalize_UsesLedgerCounts(t *testing.T) {
	ctx := context.Background()
	l, _, clk := newLedger()
	items := teams(2)

	opened, err := l.Open(ctx, model.KindTeamHistory, "scope", items)
	require.NoError(t, err)
	for _, it := range items {
		_, err := l.MarkCompleted(ctx, opened.Session.ID, it.ID)
		require.NoError(t, err)
	}
	clk.Advance(time.Minute)
	require.NoError(t, l.Finalize(ctx, opened.Session, model.SessionCompleted, "requests=2"))

	stored, err := l.Session(ctx, opened.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, stored.Status)
	assert.Equal(t, 2, stored.CompletedItems)
	require.NotNil(t, stored.CompletionTime)

	snap, err := l.Snapshot(ctx, opened.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, snap.Elapsed)
	assert.Equal(t, time.Duration(0), snap.EstimatedRemaining)

	assert.Error(t, l.Finalize(ctx, opened.Session, model.SessionFailed, "again"))
}
