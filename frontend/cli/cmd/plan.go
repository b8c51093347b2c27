package cmd

import (
	"fmt"
	"strings"

	"github.com/furisto/seyal/backend/agent"
	"github.com/furisto/seyal/frontend/cli/pkg/fail"
	"github.com/furisto/seyal/frontend/cli/pkg/terminal"
	"github.com/spf13/cobra"
)

func NewPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <goal>",
		Short: "Turn a goal into a roadmap of milestones",
		Long: `Ask the planner agent to break an ambitious goal into 3-5 milestones and
save them as the session's roadmap. Planning again replaces the roadmap.

Examples:
  seyal plan "Learn Python and deploy a data science project in 4 weeks"
  seyal plan --session work "Ship the billing service"`,
		GroupID: "core",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := getConfig(ctx)
			session := getGlobalOptions(ctx).Session

			runtime, closeRuntime, err := openRuntime(ctx, runtimeSetup{Store: cliStore})
			if err != nil {
				return err
			}
			defer closeRuntime()

			goal := strings.Join(args, " ")
			result, err := terminal.SpinnerFunc(cmd.ErrOrStderr(), "Planner Agent is strategizing and saving milestones...",
				func() (*agent.RoadmapResult, error) {
					return runtime.GenerateRoadmap(ctx, session, goal)
				},
				terminal.WithSuccessMsg("Roadmap created!"),
				terminal.WithErrorMsg("Error during planning"),
			)
			if err != nil {
				return fail.EnhanceError(err, providerContext(cfg))
			}

			out := cmd.OutOrStdout()
			if reply := terminal.FormatMarkdown(result.Reply, terminal.DefaultWidth); reply != "" {
				fmt.Fprintln(out, reply)
				fmt.Fprintln(out)
			}
			fmt.Fprint(out, terminal.RenderMilestones(result.State.Roadmap))
			return nil
		},
	}

	return cmd
}
