package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/tigerroll/matchday/pkg/batch/component/tasklet/migration"
)

func newMigrateCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the embedded schema migrations on every configured database",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{migration.CommandUp, migration.CommandDown},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := migration.CommandUp
			if len(args) == 1 {
				command = args[0]
			}
			var runner *migration.MigrationRunner
			return root.run(cmd, fx.Populate(&runner), func(ctx context.Context) error {
				if err := runner.Run(ctx, command); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Migrations %s done.\n", command)
				return nil
			})
		},
	}
}
