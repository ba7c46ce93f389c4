package notification

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
)

// NewTable returns a rounded table writer that renders into w.
func NewTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

// RenderSnapshots writes one row per session.
func RenderSnapshots(w io.Writer, snaps []model.Snapshot) {
	t := NewTable(w)
	t.AppendHeader(table.Row{"Session", "Kind", "Scope", "Status", "Done", "Failed", "Pending", "Progress", "Elapsed", "ETA"})
	for _, s := range snaps {
		t.AppendRow(table.Row{
			shortID(s.SessionID),
			s.Kind,
			s.Scope,
			colorStatus(s.Status),
			fmt.Sprintf("%d/%d", s.Completed, s.Total),
			s.Failed,
			s.Pending,
			fmt.Sprintf("%.1f%%", s.Progress()*100),
			formatDuration(s.Elapsed),
			formatDuration(s.EstimatedRemaining),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	t.Render()
}

// RenderSummary writes a key/value table describing one finalized session.
func RenderSummary(w io.Writer, s model.SessionSummary) {
	t := NewTable(w)
	t.SetTitle("Session %s", s.SessionID)
	t.AppendRows([]table.Row{
		{"Kind", s.Kind},
		{"Scope", s.Scope},
		{"Status", colorStatus(s.Status)},
		{"Completed", fmt.Sprintf("%d/%d (%.1f%%)", s.Completed, s.Total, s.Progress()*100)},
		{"Failed", s.Failed},
		{"Pending", s.Pending},
		{"Batches", s.BatchesRun},
		{"Elapsed", formatDuration(s.Elapsed)},
	})
	if s.Stats != nil && s.Stats.Total() > 0 {
		t.AppendSeparator()
		for _, c := range model.Classifications() {
			t.AppendRow(table.Row{"Requests " + string(c), s.Stats.Counts[c]})
		}
		t.AppendRow(table.Row{"Success rate", fmt.Sprintf("%.1f%%", s.Stats.SuccessRate())})
	}
	if s.AbortReason != "" {
		t.AppendSeparator()
		t.AppendRow(table.Row{"Reason", s.AbortReason})
	}
	t.Render()
}

func colorStatus(s model.SessionStatus) string {
	switch s {
	case model.SessionCompleted:
		return text.FgGreen.Sprint(s)
	case model.SessionFailed:
		return text.FgRed.Sprint(s)
	default:
		return text.FgYellow.Sprint(s)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}
