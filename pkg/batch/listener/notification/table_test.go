package notification

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
)

var t0 = time.Date(2024, 11, 2, 9, 0, 0, 0, time.UTC)

func init() {
	text.DisableColors()
}

func snapshotFixture() model.Snapshot {
	session := model.NewSessionRecord(model.KindMatchStats, "match_stats:2024-11-01", 25, t0)
	session.ID = "0f3c2a9e-1111-2222-3333-444455556666"
	counts := map[model.EntryStatus]int{model.EntryCompleted: 10, model.EntryFailed: 2, model.EntryPending: 13}
	return model.NewSnapshot(session, counts, t0.Add(12*time.Minute))
}

func TestRenderSnapshots(t *testing.T) {
	var buf bytes.Buffer
	RenderSnapshots(&buf, []model.Snapshot{snapshotFixture()})

	out := buf.String()
	assert.Contains(t, out, "0f3c2a9e")
	assert.NotContains(t, out, "0f3c2a9e-1111")
	assert.Contains(t, out, "match_stats:2024-11-01")
	assert.Contains(t, out, "in_progress")
	assert.Contains(t, out, "10/25")
	assert.Contains(t, out, "40.0%")
	assert.Contains(t, out, "12m0s")
	assert.Contains(t, out, "13m0s", "13 pending at one minute per terminal item")
}

func TestSummaryNotifier_RendersStatsAndReason(t *testing.T) {
	stats := model.NewRequestStats()
	stats.Record(model.ClassSuccess)
	stats.Record(model.ClassSuccess)
	stats.Record(model.ClassSuccess)
	stats.Record(model.ClassSoftLimited)

	summary := model.SessionSummary{
		Snapshot:    snapshotFixture(),
		BatchesRun:  2,
		Stats:       stats,
		AbortReason: "failure rate 60.0% over 2 consecutive batches",
	}
	summary.Status = model.SessionFailed

	var buf bytes.Buffer
	n := NewSummaryNotifier(&buf)
	require.NoError(t, n.NotifySessionEnd(context.Background(), summary))

	out := buf.String()
	assert.Contains(t, out, "Session 0f3c2a9e-1111-2222-3333-444455556666")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "Requests soft_limited")
	assert.Contains(t, out, "75.0%")
	assert.Contains(t, out, "failure rate 60.0% over 2 consecutive batches")
}

func TestRenderSummary_NoStats(t *testing.T) {
	var buf bytes.Buffer
	RenderSummary(&buf, model.SessionSummary{Snapshot: snapshotFixture()})
	assert.NotContains(t, buf.String(), "Success rate")
	assert.NotContains(t, buf.String(), "Reason")
}
