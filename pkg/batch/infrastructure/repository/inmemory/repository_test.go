package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	"github.com/tigerroll/matchday/pkg/batch/core/domain/repository"
	"github.com/tigerroll/matchday/pkg/batch/support/util/exception"
)

func TestInMemoryRepository_LedgerFlow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 11, 2, 9, 0, 0, 0, time.UTC)
	repo := NewInMemoryRepository()

	session := model.NewSessionRecord(model.KindTeamHistory, "team_history:2697", 3, now)
	require.NoError(t, repo.SaveSession(ctx, session))
	assert.Error(t, repo.SaveSession(ctx, session))

	var entries []*model.LedgerEntry
	for i := 2; i >= 0; i-- {
		entries = append(entries, model.NewLedgerEntry(session.ID, i, model.NewWorkItem(model.KindTeamHistory, "team", i, nil)))
	}
	require.NoError(t, repo.EnqueueEntries(ctx, entries))
	require.NoError(t, repo.EnqueueEntries(ctx, entries[:1]))

	found, err := repo.FindEntries(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, "team:0", found[0].ItemID)

	changed, err := repo.MarkEntryCompleted(ctx, session.ID, "team:1", now)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = repo.MarkEntryCompleted(ctx, session.ID, "team:1", now)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = repo.MarkEntryFailed(ctx, session.ID, "team:1", "late", now)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = repo.MarkEntryFailed(ctx, session.ID, "team:2", "hard_error", now)
	require.NoError(t, err)

	counts, err := repo.CountEntries(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, map[model.EntryStatus]int{model.EntryPending: 1, model.EntryCompleted: 1, model.EntryFailed: 1}, counts)

	stored, err := repo.FindSessionByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CompletedItems)

	_, err = repo.MarkEntryCompleted(ctx, session.ID, "team:9", now)
	assert.ErrorIs(t, err, repository.ErrLedgerEntryNotFound)

	completed, err := repo.FindCompletedItemIDs(ctx, "team_history:2697")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"team:1": true}, completed)
}

func TestInMemoryRepository_SessionQueries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 11, 2, 9, 0, 0, 0, time.UTC)
	repo := NewInMemoryRepository()

	older := model.NewSessionRecord(model.KindMatchStats, "scope", 1, now)
	newer := model.NewSessionRecord(model.KindMatchStats, "scope", 1, now.Add(time.Hour))
	require.NoError(t, repo.SaveSession(ctx, older))
	assert.ErrorIs(t, repo.SaveSession(ctx, newer), repository.ErrActiveSessionExists)

	require.NoError(t, older.Finalize(model.SessionFailed, 0, "aborted", now))
	require.NoError(t, repo.UpdateSession(ctx, older))
	require.NoError(t, repo.SaveSession(ctx, newer))

	stale := *older
	stale.Version = 0
	assert.True(t, exception.IsOptimisticLockingFailure(repo.UpdateSession(ctx, &stale)))

	active, err := repo.FindActiveSession(ctx, "scope")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, active.ID)

	byScope, err := repo.FindSessionsByScope(ctx, "scope")
	require.NoError(t, err)
	require.Len(t, byScope, 2)
	assert.Equal(t, newer.ID, byScope[0].ID)

	limited, err := repo.ListSessions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = repo.FindActiveSession(ctx, "other")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}
