package cli

import (
	"context"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/tigerroll/matchday/internal/export"
	"github.com/tigerroll/matchday/pkg/batch/listener/notification"
)

func newExportCommand(root *rootOptions) *cobra.Command {
	var (
		format string
		tables []string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write collected tables to the configured storage as CSV or parquet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			var exporter *export.Exporter
			return root.run(cmd, fx.Populate(&exporter), func(ctx context.Context) error {
				results, err := exporter.Export(ctx, f, tables...)
				t := notification.NewTable(cmd.OutOrStdout())
				t.AppendHeader(table.Row{"Table", "Rows", "Bytes", "Object"})
				for _, r := range results {
					t.AppendRow(table.Row{r.Table, r.Rows, r.Bytes, r.Object})
				}
				t.Render()
				return err
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", string(export.FormatCSV), "csv or parquet")
	cmd.Flags().StringSliceVar(&tables, "table", nil, "tables to export (default all): fixtures, team_matches, match_statistics, player_statistics")
	return cmd
}
