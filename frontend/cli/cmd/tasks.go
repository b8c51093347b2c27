package cmd

import (
	"fmt"
	"strconv"

	"github.com/furisto/seyal/backend/memory"
	"github.com/furisto/seyal/frontend/cli/pkg/fail"
	"github.com/furisto/seyal/frontend/cli/pkg/terminal"
	"github.com/spf13/cobra"
)

func NewTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Get today's tasks for the next milestone",
		Long: `Ask the task agent for 3 executable tasks based on the roadmap and the
long-term summary. Use the subcommands to look at the list again or to tick
tasks off.

Examples:
  seyal tasks
  seyal tasks show
  seyal tasks done 2`,
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

			state, err := terminal.SpinnerFunc(cmd.ErrOrStderr(), "Task Agent is breaking down the plan...",
				func() (*memory.State, error) {
					return runtime.GenerateTasks(ctx, session)
				},
				terminal.WithSuccessMsg("Today's tasks are ready"),
				terminal.WithErrorMsg("Error during task generation"),
			)
			if err != nil {
				return fail.EnhanceError(err, providerContext(getConfig(ctx)))
			}

			fmt.Fprintln(cmd.OutOrStdout(), terminal.RenderTasks(state, terminal.DefaultWidth))
			return nil
		},
	}

	cmd.AddCommand(newTasksShowCmd())
	cmd.AddCommand(newTasksToggleCmd("done", "Mark a task as completed", true))
	cmd.AddCommand(newTasksToggleCmd("undo", "Mark a task as open again", false))

	return cmd
}

func newTasksShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current task list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			runtime, closeRuntime, err := openRuntime(ctx, runtimeSetup{Store: cliStore})
			if err != nil {
				return err
			}
			defer closeRuntime()

			state, err := runtime.State(ctx, getGlobalOptions(ctx).Session)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), terminal.RenderTasks(state, terminal.DefaultWidth))
			return nil
		},
	}
}

func newTasksToggleCmd(use, short string, done bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <number>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.Atoi(args[0])
			if err != nil || number < 1 {
				return fmt.Errorf("task number must be a positive integer, got %q", args[0])
			}

			ctx := cmd.Context()
			runtime, closeRuntime, err := openRuntime(ctx, runtimeSetup{Store: cliStore})
			if err != nil {
				return err
			}
			defer closeRuntime()

			state, err := runtime.ToggleTask(ctx, getGlobalOptions(ctx).Session, number-1, done)
			if err != nil {
				return fail.EnhanceError(err, nil)
			}

			fmt.Fprintln(cmd.OutOrStdout(), terminal.RenderTasks(state, terminal.DefaultWidth))
			return nil
		},
	}
}
