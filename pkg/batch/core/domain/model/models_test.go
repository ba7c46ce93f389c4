package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/matchday/pkg/batch/core/domain/model"
)

func TestParseItemKind(t *testing.T) {
	k, err := model.ParseItemKind("match-stats")
	require.NoError(t, err)
	assert.Equal(t, model.KindMatchStats, k)

	_, err = model.ParseItemKind("predictions")
	assert.Error(t, err)
	assert.Len(t, model.AllKinds(), 4)
}

func TestParamsValueScan(t *testing.T) {
	p := model.Params{"team_id": 2697, "limit": 10}
	v, err := p.Value()
	require.NoError(t, err)

	var back model.Params
	require.NoError(t, back.Scan(v))
	id, ok := back.GetInt64("team_id")
	assert.True(t, ok)
	assert.Equal(t, int64(2697), id)

	require.NoError(t, back.Scan([]byte(`{"date":"2024-05-18"}`)))
	date, ok := back.GetString("date")
	assert.True(t, ok)
	assert.Equal(t, "2024-05-18", date)

	require.NoError(t, back.Scan(nil))
	assert.Empty(t, back)
	assert.Error(t, back.Scan(42))
}

func TestSessionRecordFinalize(t *testing.T) {
	start := time.Date(2024, 5, 18, 10, 0, 0, 0, time.UTC)
	s := model.NewSessionRecord(model.KindTeamHistory, "team_history:2024-05-18", 25, start)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, model.SessionInProgress, s.Status)

	end := start.Add(time.Hour)
	require.NoError(t, s.Finalize(model.SessionCompleted, 25, "ok", end))
	assert.Equal(t, model.SessionCompleted, s.Status)
	assert.Equal(t, end, *s.CompletionTime)

	err := s.Finalize(model.SessionFailed, 25, "again", end)
	assert.True(t, errors.Is(err, model.ErrInvalidTransition))

	other := model.NewSessionRecord(model.KindTeamHistory, "x", 1, start)
	assert.True(t, errors.Is(other.Finalize(model.SessionInProgress, 0, "", end), model.ErrInvalidTransition))
}

func TestLedgerEntryIsResumable(t *testing.T) {
	e := model.NewLedgerEntry("s1", 0, model.NewWorkItem(model.KindMatchStats, "match", 1, nil))
	assert.Equal(t, "match:1", e.ItemID)
	assert.True(t, e.IsResumable(2))

	e.Status = model.EntryFailed
	e.FailureCount = 1
	assert.True(t, e.IsResumable(2))
	e.FailureCount = 2
	assert.False(t, e.IsResumable(2))

	e.Status = model.EntryCompleted
	assert.False(t, e.IsResumable(99))
}

func TestRequestStats(t *testing.T) {
	s := model.NewRequestStats()
	assert.Zero(t, s.SuccessRate())

	s.Record(model.ClassSoftLimited)
	s.Record(model.ClassSoftLimited)
	s.Record(model.ClassSuccess)
	s.Record(model.ClassSuccess)

	assert.Equal(t, 4, s.Total())
	assert.InDelta(t, 50.0, s.SuccessRate(), 1e-9)
	assert.Equal(t, "requests=4 success=2 soft_limited=2 hard_error=0 network_error=0 success_rate=50.0%", s.String())
}

func TestNewSnapshotEstimatesRemaining(t *testing.T) {
	start := time.Date(2024, 5, 18, 10, 0, 0, 0, time.UTC)
	s := model.NewSessionRecord(model.KindTeamHistory, "scope", 30, start)

	snap := model.NewSnapshot(s, map[model.EntryStatus]int{
		model.EntryCompleted: 8,
		model.EntryFailed:    2,
		model.EntryPending:   20,
	}, start.Add(10*time.Minute))

	assert.Equal(t, 10*time.Minute, snap.Elapsed)
	assert.Equal(t, 20*time.Minute, snap.EstimatedRemaining)
	assert.InDelta(t, 8.0/30.0, snap.Progress(), 1e-9)

	end := start.Add(15 * time.Minute)
	require.NoError(t, s.Finalize(model.SessionFailed, 8, "", end))
	done := model.NewSnapshot(s, map[model.EntryStatus]int{model.EntryCompleted: 8}, start.Add(time.Hour))
	assert.Equal(t, 15*time.Minute, done.Elapsed)
	assert.Zero(t, done.EstimatedRemaining)
}
