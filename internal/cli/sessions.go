package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/tigerroll/matchday/pkg/batch/core/application/usecase"
)

func newSessionsCommand(root *rootOptions) *cobra.Command {
	status := &statusOptions{}
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions, or abort one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var explorer usecase.StatusExplorer
			return root.run(cmd, fx.Populate(&explorer), func(ctx context.Context) error {
				return watchStatus(ctx, cmd.OutOrStdout(), explorer, status)
			})
		},
	}
	cmd.Flags().IntVar(&status.limit, "limit", 50, "number of sessions listed")

	var reason string
	abort := &cobra.Command{
		Use:   "abort SESSION_ID",
		Short: "Move an in_progress session to failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var operator usecase.SessionOperator
			return root.run(cmd, fx.Populate(&operator), func(ctx context.Context) error {
				if err := operator.Abort(ctx, args[0], reason); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s aborted.\n", args[0])
				return nil
			})
		},
	}
	abort.Flags().StringVar(&reason, "reason", "", "reason recorded in the session notes")
	cmd.AddCommand(abort)
	return cmd
}
