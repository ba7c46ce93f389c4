package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/tigerroll/matchday/internal/collector"
	"github.com/tigerroll/matchday/pkg/batch/core/config"
	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	infraMetrics "github.com/tigerroll/matchday/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/matchday/pkg/batch/listener/notification"
	"github.com/tigerroll/matchday/pkg/batch/support/util/logger"
)

var log = logger.For("CLI")

func newCollectCommand(root *rootOptions) *cobra.Command {
	var (
		from, to string
		stages   []string
		dryRun   bool
	)
	cmd := &cobra.Command{
		Use:   "collect [DATE...]",
		Short: "Collect the selected stages for dates or a date range",
		Example: `  matchday collect 2024-11-02
  matchday collect --from 2024-08-16 --to 2024-08-19 --stage match_stats --stage player_stats
  matchday collect --from 2024-08-16 --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := parseStages(stages)
			if err != nil {
				return err
			}
			var (
				c   *collector.Collector
				cfg *config.Config
			)
			extra := fx.Options(fx.Populate(&c, &cfg))
			if !dryRun {
				extra = fx.Options(extra, infraMetrics.ServerModule)
			}
			return root.run(cmd, extra, func(ctx context.Context) error {
				dates, err := resolveDates(args, from, to, today(cfg.Matchday.System.Timezone))
				if err != nil {
					return err
				}
				summaries, err := c.Collect(ctx, collector.Options{Dates: dates, Stages: kinds, DryRun: dryRun})
				if len(summaries) > 0 {
					snaps := make([]model.Snapshot, len(summaries))
					for i, s := range summaries {
						snaps[i] = s.Snapshot
					}
					notification.RenderSnapshots(cmd.OutOrStdout(), snaps)
				}
				if errors.Is(err, context.Canceled) {
					log.Warnf("Interrupted. Repeat the command to resume.")
				}
				if err != nil {
					return err
				}
				return failedSessions(summaries)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first date of the range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last date of the range, default today")
	cmd.Flags().StringSliceVar(&stages, "stage", nil, "stages to run: fixtures_by_date, team_history, match_stats, player_stats (default all)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan and print the work lists without fetching")
	return cmd
}

func parseStages(names []string) ([]model.ItemKind, error) {
	kinds := make([]model.ItemKind, 0, len(names))
	for _, name := range names {
		k, err := model.ParseItemKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// resolveDates returns the dates named by args, or the range from..to (to defaults to
// today), sorted and without duplicates.
func resolveDates(args []string, from, to, today string) ([]string, error) {
	switch {
	case len(args) > 0 && from != "":
		return nil, errors.New("give either dates or --from, not both")
	case from != "":
		if to == "" {
			to = today
		}
		return collector.DatesBetween(from, to)
	case to != "":
		return nil, errors.New("--to needs --from")
	case len(args) == 0:
		return nil, errors.New("give at least one date or --from")
	}

	seen := make(map[string]bool, len(args))
	dates := make([]string, 0, len(args))
	for _, d := range args {
		if _, err := time.Parse(collector.DateLayout, d); err != nil {
			return nil, fmt.Errorf("invalid date %q: want YYYY-MM-DD", d)
		}
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)
	return dates, nil
}

func today(timezone string) string {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return time.Now().In(loc).Format(collector.DateLayout)
}

func failedSessions(summaries []model.SessionSummary) error {
	failed := 0
	for _, s := range summaries {
		if s.Status == model.SessionFailed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sessions ended failed", failed, len(summaries))
	}
	return nil
}
