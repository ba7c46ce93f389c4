// Package cli implements the matchday command line.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/tigerroll/matchday/internal/app"
)

type rootOptions struct {
	bootstrap app.Bootstrap
}

// run starts the application graph with extra options (usually fx.Populate targets) and
// calls fn while it is up.
func (o *rootOptions) run(cmd *cobra.Command, extra fx.Option, fn func(ctx context.Context) error) error {
	b := o.bootstrap
	b.Stdout = cmd.OutOrStdout()
	return app.Run(cmd.Context(), fx.Options(app.Options(b), extra), fn)
}

// NewRootCommand builds the matchday command tree.
func NewRootCommand(b app.Bootstrap) *cobra.Command {
	opts := &rootOptions{bootstrap: b}

	cmd := &cobra.Command{
		Use:   "matchday",
		Short: "Rate-limited, resumable collection of football match data",
		Long: `matchday collects fixtures, team histories, match statistics and player statistics
in small paced batches. Progress is kept in a ledger, so an interrupted run resumes
where it stopped when the same command is repeated.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.bootstrap.EnvFilePath, "env-file", b.EnvFilePath, "dotenv file loaded before the configuration")

	cmd.AddCommand(
		newCollectCommand(opts),
		newStatusCommand(opts),
		newSessionsCommand(opts),
		newExportCommand(opts),
		newMigrateCommand(opts),
	)
	return cmd
}

// Execute runs the command line against ctx; cancelling ctx interrupts the running command.
func Execute(ctx context.Context, b app.Bootstrap, args []string, out io.Writer) error {
	cmd := NewRootCommand(b)
	if out == nil {
		out = os.Stdout
	}
	cmd.SetOut(out)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}
