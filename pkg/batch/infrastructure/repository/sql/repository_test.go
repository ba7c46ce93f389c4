package sql_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/matchday/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/matchday/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/matchday/pkg/batch/core/config"
	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/matchday/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/matchday/pkg/batch/core/tx"
	sqlrepo "github.com/tigerroll/matchday/pkg/batch/infrastructure/repository/sql"
	"github.com/tigerroll/matchday/pkg/batch/support/util/exception"
	"github.com/tigerroll/matchday/pkg/batch/test"
)

var t0 = time.Date(2024, 11, 2, 9, 0, 0, 0, time.UTC)

func newSQLiteRepository(t *testing.T) *sqlrepo.SQLRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormadapter.NewGormLogger(config.LogLevelSilent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&sqlrepo.CollectionSessionEntity{}, &sqlrepo.LedgerEntryEntity{}))

	conn, err := gormadapter.NewGormDBAdapter(db, dbconfig.DatabaseConfig{Type: "sqlite", Database: ":memory:"}, "ledger")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	resolver := test.NewTestSingleConnectionResolver(conn)
	txManager := gormadapter.NewGormTransactionManagerFactory(resolver).NewTransactionManager(conn)
	return sqlrepo.NewSQLRepository(resolver, txManager, "ledger")
}

func seedSession(t *testing.T, repo *sqlrepo.SQLRepository, scope string, items int) *model.SessionRecord {
	t.Helper()
	ctx := context.Background()
	session := model.NewSessionRecord(model.KindMatchStats, scope, items, t0)
	require.NoError(t, repo.SaveSession(ctx, session))

	entries := make([]*model.LedgerEntry, 0, items)
	for i := 0; i < items; i++ {
		item := model.NewWorkItem(model.KindMatchStats, "match", 1000+i, model.Params{"event_id": 1000 + i})
		entries = append(entries, model.NewLedgerEntry(session.ID, i, item))
	}
	require.NoError(t, repo.EnqueueEntries(ctx, entries))
	return session
}

func TestSQLRepository_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepository(t)
	session := seedSession(t, repo, "match_stats:2024-11-01", 3)

	active, err := repo.FindActiveSession(ctx, "match_stats:2024-11-01")
	require.NoError(t, err)
	assert.Equal(t, session.ID, active.ID)
	assert.Equal(t, model.SessionInProgress, active.Status)

	require.NoError(t, session.Finalize(model.SessionCompleted, 3, "requests=3", t0.Add(time.Minute)))
	require.NoError(t, repo.UpdateSession(ctx, session))
	assert.Equal(t, 1, session.Version)

	_, err = repo.FindActiveSession(ctx, "match_stats:2024-11-01")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)

	found, err := repo.FindSessionByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, found.Status)
	assert.Equal(t, "requests=3", found.Notes)
	require.NotNil(t, found.CompletionTime)

	stale := *found
	stale.Version = 0
	err = repo.UpdateSession(ctx, &stale)
	assert.True(t, exception.IsOptimisticLockingFailure(err))

	_, err = repo.FindSessionByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}

func TestSQLRepository_EnqueueIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepository(t)
	session := seedSession(t, repo, "scope", 4)

	again := []*model.LedgerEntry{model.NewLedgerEntry(session.ID, 0, model.NewWorkItem(model.KindMatchStats, "match", 1000, nil))}
	require.NoError(t, repo.EnqueueEntries(ctx, again))

	entries, err := repo.FindEntries(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for i, e := range entries {
		assert.Equal(t, i, e.Sequence)
		assert.Equal(t, model.EntryPending, e.Status)
	}
	id, ok := entries[2].Params.GetInt64("event_id")
	assert.True(t, ok)
	assert.Equal(t, int64(1002), id)
}

func TestSQLRepository_MarkEntryCompletedUpdatesCounter(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepository(t)
	session := seedSession(t, repo, "scope", 3)

	changed, err := repo.MarkEntryCompleted(ctx, session.ID, "match:1000", t0)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkEntryCompleted(ctx, session.ID, "match:1000", t0.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, changed, "second completion is a no-op")

	changed, err = repo.MarkEntryCompleted(ctx, session.ID, "match:1001", t0)
	require.NoError(t, err)
	assert.True(t, changed)

	found, err := repo.FindSessionByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, found.CompletedItems)

	counts, err := repo.CountEntries(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[model.EntryCompleted])
	assert.Equal(t, 1, counts[model.EntryPending])
	assert.Equal(t, 0, counts[model.EntryFailed])

	_, err = repo.MarkEntryCompleted(ctx, session.ID, "match:9999", t0)
	assert.ErrorIs(t, err, repository.ErrLedgerEntryNotFound)
}

func TestSQLRepository_MarkEntryFailedThenCompleted(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepository(t)
	session := seedSession(t, repo, "scope", 1)

	changed, err := repo.MarkEntryFailed(ctx, session.ID, "match:1000", "hard_error: status 404", t0)
	require.NoError(t, err)
	assert.True(t, changed)
	_, err = repo.MarkEntryFailed(ctx, session.ID, "match:1000", "hard_error: status 404", t0)
	require.NoError(t, err)

	entries, err := repo.FindEntries(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EntryFailed, entries[0].Status)
	assert.Equal(t, 2, entries[0].FailureCount)
	assert.Equal(t, "hard_error: status 404", entries[0].FailureReason)

	changed, err = repo.MarkEntryCompleted(ctx, session.ID, "match:1000", t0)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkEntryFailed(ctx, session.ID, "match:1000", "late failure", t0)
	require.NoError(t, err)
	assert.False(t, changed, "completed entries never regress")
}

func TestSQLRepository_FindCompletedItemIDsAcrossSessions(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepository(t)
	first := seedSession(t, repo, "scope", 2)
	_, err := repo.MarkEntryCompleted(ctx, first.ID, "match:1000", t0)
	require.NoError(t, err)

	seedSession(t, repo, "other", 2)

	completed, err := repo.FindCompletedItemIDs(ctx, "scope")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"match:1000": true}, completed)

	sessions, err := repo.FindSessionsByScope(ctx, "scope")
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	all, err := repo.ListSessions(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLRepository_MarkEntryCompletedUsesContextTx(t *testing.T) {
	mockTx := new(test.MockTx)
	ctx := tx.WithTx(context.Background(), mockTx)

	mockTx.On("ExecuteQueryAdvanced", ctx, mock.Anything, map[string]interface{}{"session_id": "s1", "item_id": "match:1"}, "", 1).
		Run(func(args mock.Arguments) {
			target := args.Get(1).(*[]sqlrepo.LedgerEntryEntity)
			*target = []sqlrepo.LedgerEntryEntity{{SessionID: "s1", ItemID: "match:1", Status: "completed", Version: 3}}
		}).Return(nil)

	repo := sqlrepo.NewSQLRepository(nil, nil, "ledger")
	changed, err := repo.MarkEntryCompleted(ctx, "s1", "match:1", t0)
	require.NoError(t, err)
	assert.False(t, changed)
	mockTx.AssertNotCalled(t, "ExecuteUpdateColumns", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockTx.AssertExpectations(t)
}

func TestSQLRepository_MarkEntryFailedVersionConflict(t *testing.T) {
	mockTx := new(test.MockTx)
	ctx := tx.WithTx(context.Background(), mockTx)

	mockTx.On("ExecuteQueryAdvanced", ctx, mock.Anything, mock.Anything, "", 1).
		Run(func(args mock.Arguments) {
			target := args.Get(1).(*[]sqlrepo.LedgerEntryEntity)
			*target = []sqlrepo.LedgerEntryEntity{{SessionID: "s1", ItemID: "match:1", Status: "pending", Version: 0}}
		}).Return(nil)
	mockTx.On("ExecuteUpdateColumns", ctx, "ledger_entry",
		map[string]interface{}{"session_id": "s1", "item_id": "match:1", "version": 0}, mock.Anything).
		Return(int64(0), nil)

	repo := sqlrepo.NewSQLRepository(nil, nil, "ledger")
	_, err := repo.MarkEntryFailed(ctx, "s1", "match:1", "boom", t0)
	require.Error(t, err)
	assert.True(t, exception.IsOptimisticLockingFailure(err))
	mockTx.AssertExpectations(t)
}

func TestSQLRepository_BeginFailureIsReturned(t *testing.T) {
	txManager := new(test.MockTxManager)
	beginErr := errors.New("connection refused")
	txManager.On("Begin", mock.Anything, mock.Anything).Return(nil, beginErr)

	repo := sqlrepo.NewSQLRepository(nil, txManager, "ledger")
	_, err := repo.MarkEntryCompleted(context.Background(), "s1", "match:1", t0)
	assert.ErrorIs(t, err, beginErr)
}

func TestSQLRepository_OneActiveSessionPerScope(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepository(t)
	first := seedSession(t, repo, "fixtures_by_date:2024-11-02", 1)

	second := model.NewSessionRecord(model.KindFixturesByDate, "fixtures_by_date:2024-11-02", 1, t0.Add(time.Minute))
	err := repo.SaveSession(ctx, second)
	require.ErrorIs(t, err, repository.ErrActiveSessionExists)

	other := model.NewSessionRecord(model.KindFixturesByDate, "fixtures_by_date:2024-11-03", 1, t0)
	require.NoError(t, repo.SaveSession(ctx, other))

	require.NoError(t, first.Finalize(model.SessionFailed, 0, "aborted", t0.Add(time.Minute)))
	require.NoError(t, repo.UpdateSession(ctx, first))
	require.NoError(t, repo.SaveSession(ctx, second))

	sessions, err := repo.FindSessionsByScope(ctx, "fixtures_by_date:2024-11-02")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}
