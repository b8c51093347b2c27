package cmd

import (
	"fmt"

	"github.com/furisto/seyal/frontend/cli/pkg/fail"
	"github.com/furisto/seyal/frontend/cli/pkg/terminal"
	"github.com/spf13/cobra"
)

func NewReflectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reflect",
		Short: "Analyze your progress and get a SEYAL report",
		Long: `The reflector agent reads the roadmap, the long-term summary and the recent
logs and writes a report on your consistency, mood patterns and next
adjustment.`,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session := getGlobalOptions(ctx).Session

			runtime, closeRuntime, err := openRuntime(ctx, runtimeSetup{Store: cliStore})
			if err != nil {
				return err
			}
			defer closeRuntime()

			report, err := terminal.SpinnerFunc(cmd.ErrOrStderr(), "Reflector Agent is analyzing memory and generating report...",
				func() (string, error) {
					return runtime.Reflect(ctx, session)
				},
				terminal.WithSuccessMsg("Report ready"),
				terminal.WithErrorMsg("Error during reflection"),
			)
			if err != nil {
				return fail.EnhanceError(err, providerContext(getConfig(ctx)))
			}

			fmt.Fprintln(cmd.OutOrStdout(), terminal.FormatMarkdown(report, terminal.DefaultWidth))
			return nil
		},
	}

	return cmd
}
