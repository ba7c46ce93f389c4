package collector

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/tigerroll/matchday/pkg/batch/core/application/usecase"
	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	"github.com/tigerroll/matchday/pkg/batch/listener/notification"
	"github.com/tigerroll/matchday/pkg/batch/support/util/exception"
	"github.com/tigerroll/matchday/pkg/batch/support/util/logger"
)

var log = logger.For("Collector")

// Options selects what Collect does.
type Options struct {
	Dates []string
	// Stages restricts the run to these kinds; empty means all, in stage order.
	Stages []model.ItemKind
	// DryRun plans and renders the work lists without fetching.
	DryRun bool
}

// Collector runs the stages of every date in order, one session per stage and date.
type Collector struct {
	runner  usecase.SessionRunner
	planner *Planner
	out     io.Writer
}

// NewCollector creates a Collector. Dry-run plans are rendered to out.
func NewCollector(runner usecase.SessionRunner, planner *Planner, out io.Writer) *Collector {
	if out == nil {
		out = io.Discard
	}
	return &Collector{runner: runner, planner: planner, out: out}
}

// stages keeps the stage order whatever order the caller listed them in.
func stages(selected []model.ItemKind) []model.ItemKind {
	if len(selected) == 0 {
		return model.AllKinds()
	}
	want := make(map[model.ItemKind]bool, len(selected))
	for _, k := range selected {
		want[k] = true
	}
	var out []model.ItemKind
	for _, k := range model.AllKinds() {
		if want[k] {
			out = append(out, k)
		}
	}
	return out
}

// Collect plans and runs each selected stage of each date. A session that ends failed
// does not stop the run; an error (cancellation, abort, infrastructure) does.
func (c *Collector) Collect(ctx context.Context, opts Options) ([]model.SessionSummary, error) {
	if len(opts.Dates) == 0 {
		return nil, exception.NewBatchErrorf("Collector", "no dates to collect")
	}
	var (
		summaries []model.SessionSummary
		planned   []usecase.Request
	)
	for _, date := range opts.Dates {
		for _, kind := range stages(opts.Stages) {
			req, err := c.planner.Plan(ctx, kind, date)
			if err != nil {
				return summaries, err
			}
			if opts.DryRun {
				planned = append(planned, req)
				continue
			}
			if len(req.Items) == 0 {
				log.Infof("%s: nothing to collect.", req.Scope)
				continue
			}

			log.Infof("%s: collecting %d items.", req.Scope, len(req.Items))
			summary, err := c.runner.Run(ctx, req)
			if summary.SessionID != "" {
				summaries = append(summaries, summary)
			}
			if err != nil {
				return summaries, err
			}
			if summary.Status == model.SessionFailed {
				log.Warnf("%s: session %s ended failed; continuing with the next stage.", req.Scope, summary.SessionID)
			}
		}
	}
	if opts.DryRun {
		RenderPlan(c.out, planned)
	}
	return summaries, nil
}

// RenderPlan writes one row per planned session.
func RenderPlan(w io.Writer, plan []usecase.Request) {
	t := notification.NewTable(w)
	t.SetTitle("Collection plan")
	t.AppendHeader(table.Row{"Scope", "Kind", "Items", "First", "Last"})
	total := 0
	for _, req := range plan {
		first, last := "-", "-"
		if n := len(req.Items); n > 0 {
			first, last = req.Items[0].ID, req.Items[n-1].ID
		}
		total += len(req.Items)
		t.AppendRow(table.Row{req.Scope, req.Kind, len(req.Items), first, last})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprint(total), "", ""})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 3, Align: text.AlignRight, AlignFooter: text.AlignRight}})
	t.Render()
}
