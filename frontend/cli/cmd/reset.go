package cmd

import (
	"fmt"

	"github.com/furisto/seyal/frontend/cli/pkg/terminal"
	"github.com/spf13/cobra"
)

type resetOptions struct {
	Force bool
}

func NewResetCmd() *cobra.Command {
	options := resetOptions{}
	cmd := &cobra.Command{
		Use:     "reset",
		Short:   "Forget the session's roadmap, tasks, logs and summary",
		GroupID: "session",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session := getGlobalOptions(ctx).Session

			if !options.Force && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Are you sure you want to reset session %s?", session)) {
				return nil
			}

			runtime, closeRuntime, err := openRuntime(ctx, runtimeSetup{Store: cliStore})
			if err != nil {
				return err
			}
			defer closeRuntime()

			if err := runtime.Reset(ctx, session); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Session %s reset\n", terminal.SuccessSymbol, session)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&options.Force, "force", "f", false, "skip the confirmation prompt")
	return cmd
}
