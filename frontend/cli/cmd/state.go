package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/furisto/seyal/backend/api"
	"github.com/furisto/seyal/backend/memory"
	"github.com/furisto/seyal/frontend/cli/pkg/terminal"
	"github.com/spf13/cobra"
)

type stateOptions struct {
	Format OutputFormat
}

// InternalsDisplay mirrors the internals panel of the web page.
type InternalsDisplay struct {
	Roadmap         []string          `json:"Roadmap" yaml:"Roadmap"`
	RecentLogs      []memory.LogEntry `json:"Recent Detailed Logs (Last 3-5 days)" yaml:"Recent Detailed Logs (Last 3-5 days)"`
	LongTermSummary string            `json:"Long Term Memory Summary (Compacted History)" yaml:"Long Term Memory Summary (Compacted History)"`
}

func NewStateCmd() *cobra.Command {
	options := stateOptions{}
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the session's memory state",
		Long: `Show the roadmap, the recent detailed logs and the long-term summary of the
session. With --output json or yaml the internals are printed for scripts.`,
		Aliases: []string{"internals"},
		GroupID: "session",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session := getGlobalOptions(ctx).Session

			runtime, closeRuntime, err := openRuntime(ctx, runtimeSetup{Store: cliStore})
			if err != nil {
				return err
			}
			defer closeRuntime()

			state, err := runtime.State(ctx, session)
			if err != nil {
				return err
			}

			if options.Format == OutputFormatJSON || options.Format == OutputFormatYAML {
				return renderer(cmd.OutOrStdout(), getRenderer(ctx)).Display(&InternalsDisplay{
					Roadmap:         nonNil(state.Roadmap),
					RecentLogs:      nonNil(state.Logs),
					LongTermSummary: state.LongTermSummary,
				}, options.Format)
			}

			printState(cmd.OutOrStdout(), runtime, state, getClock(ctx)())
			return nil
		},
	}

	cmd.Flags().VarP(&options.Format, "output", "o", "output format (text, json, yaml)")
	return cmd
}

func printState(w io.Writer, runtime api.Runtime, state *memory.State, now time.Time) {
	fmt.Fprintf(w, "%s %s\n", terminal.Bold("Session:"), state.ID)
	if state.Goal != "" {
		fmt.Fprintf(w, "%s %s\n", terminal.Bold("Goal:"), state.Goal)
	}
	fmt.Fprintln(w)

	if milestones := terminal.RenderMilestones(state.Roadmap); milestones != "" {
		fmt.Fprintln(w, milestones)
	}

	fmt.Fprintln(w, terminal.Heading("📝 Recent Detailed Logs"))
	if len(state.Logs) == 0 {
		fmt.Fprintln(w, "  none yet")
	}
	for _, entry := range state.Logs {
		fmt.Fprintf(w, "  %s (%s, %s): %s\n", entry.FormattedDate(), FormatRelativeTime(entry.Timestamp, now), entry.Mood, entry.Update)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, terminal.Heading("🧠 Long Term Memory Summary"))
	fmt.Fprintf(w, "  %s\n", state.LongTermSummary)
	if state.Compactions > 0 {
		fmt.Fprintf(w, "  (%d compactions)\n", state.Compactions)
	}

	if usage := terminal.RenderUsage(state.Usage, runtime.Cost(state).StringFixed(6)); usage != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, terminal.Heading("Usage"))
		fmt.Fprintln(w, usage)
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
