package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/tigerroll/matchday/internal/store"
	"github.com/tigerroll/matchday/pkg/batch/core/application/usecase"
	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	"github.com/tigerroll/matchday/pkg/batch/listener/notification"
)

type statusOptions struct {
	sessionID string
	scope     string
	limit     int
	watch     time.Duration
	records   bool
}

func newStatusCommand(root *rootOptions) *cobra.Command {
	opts := &statusOptions{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show progress of recent sessions, one session or the active session of a scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				explorer usecase.StatusExplorer
				st       *store.Store
			)
			return root.run(cmd, fx.Populate(&explorer, &st), func(ctx context.Context) error {
				if opts.records {
					counts, err := st.TableCounts(ctx)
					if err != nil {
						return err
					}
					renderRecordCounts(cmd.OutOrStdout(), counts)
				}
				return watchStatus(ctx, cmd.OutOrStdout(), explorer, opts)
			})
		},
	}
	cmd.Flags().StringVar(&opts.sessionID, "session", "", "session id")
	cmd.Flags().StringVar(&opts.scope, "scope", "", "scope of an in_progress session, e.g. match_stats:2024-11-02")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "number of recent sessions listed")
	cmd.Flags().DurationVar(&opts.watch, "watch", 0, "refresh interval; 0 prints once")
	cmd.Flags().BoolVar(&opts.records, "records", false, "also print the number of stored rows per table")
	return cmd
}

func (o *statusOptions) snapshots(ctx context.Context, explorer usecase.StatusExplorer) ([]model.Snapshot, error) {
	switch {
	case o.sessionID != "":
		snap, err := explorer.Snapshot(ctx, o.sessionID)
		return []model.Snapshot{snap}, err
	case o.scope != "":
		snap, err := explorer.ActiveSnapshot(ctx, o.scope)
		return []model.Snapshot{snap}, err
	default:
		return explorer.ListSnapshots(ctx, o.limit)
	}
}

// watchStatus renders once, or every interval until ctx ends or the watched session
// becomes terminal.
func watchStatus(ctx context.Context, out io.Writer, explorer usecase.StatusExplorer, o *statusOptions) error {
	for {
		snaps, err := o.snapshots(ctx, explorer)
		if err != nil {
			return err
		}
		if o.watch > 0 {
			fmt.Fprintf(out, "%s\n", time.Now().Format(time.DateTime))
		}
		if len(snaps) == 0 {
			fmt.Fprintln(out, "No sessions.")
		} else {
			notification.RenderSnapshots(out, snaps)
		}

		single := o.sessionID != "" || o.scope != ""
		if o.watch <= 0 || (single && snaps[0].Status.IsTerminal()) {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-time.After(o.watch):
		}
	}
}

func renderRecordCounts(out io.Writer, counts map[string]int64) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	t := notification.NewTable(out)
	t.SetTitle("Stored records")
	t.AppendHeader(table.Row{"Table", "Rows"})
	for _, name := range names {
		t.AppendRow(table.Row{name, counts[name]})
	}
	t.Render()
}
