package cmd

import (
	"fmt"
	"strings"

	"github.com/furisto/seyal/backend/memory"
	"github.com/furisto/seyal/frontend/cli/pkg/fail"
	"github.com/furisto/seyal/frontend/cli/pkg/terminal"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
)

type logOptions struct {
	Mood string
}

func NewLogCmd() *cobra.Command {
	options := logOptions{}
	cmd := &cobra.Command{
		Use:   "log <update>",
		Short: "Log what you completed and the challenges you faced",
		Long: `Record today's progress. Tasks ticked off with "seyal tasks done" are
attached to the entry. Once more than a handful of entries piled up, the
oldest ones are summarized into long-term memory.

Moods: Drained, Bored, Neutral, Good, Energetic (prefixes like "ener" work).

Examples:
  seyal log "Finished the pandas tutorial, got stuck on groupby" --mood Good`,
		GroupID: "core",
		RunE: func(cmd *cobra.Command, args []string) error {
			mood, err := matchMood(options.Mood)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			cfg := getConfig(ctx)
			session := getGlobalOptions(ctx).Session

			runtime, closeRuntime, err := openRuntime(ctx, runtimeSetup{Store: cliStore})
			if err != nil {
				return err
			}
			defer closeRuntime()

			message := "Saving your update..."
			if state, err := runtime.State(ctx, session); err == nil && len(state.Logs)+1 > cfg.Compaction.Threshold {
				message = "💾 Compacting Memory to save context..."
			}

			result, err := terminal.SpinnerFunc(cmd.ErrOrStderr(), message,
				func() (*memory.LogResult, error) {
					return runtime.LogProgress(ctx, session, strings.Join(args, " "), mood)
				},
			)
			if err != nil {
				return fail.EnhanceError(err, providerContext(cfg))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", terminal.SuccessSymbol, result.Message)
			if len(result.Entry.CompletedTasks) > 0 {
				fmt.Fprintf(out, "Completed tasks: %s\n", strings.Join(result.Entry.CompletedTasks, "; "))
			}
			if result.Compacted > 0 {
				fmt.Fprintf(out, "%s %s\n", terminal.MemorySymbol, terminal.Toast(memory.CompactionToast))
			}
			if result.SummaryErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s Summary generation failed: %s\n", terminal.WarningSymbol, result.SummaryErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&options.Mood, "mood", string(memory.MoodNeutral), "how you felt today")
	_ = cmd.RegisterFlagCompletionFunc("mood", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return moodNames(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func moodNames() []string {
	names := make([]string, len(memory.Moods))
	for i, mood := range memory.Moods {
		names[i] = string(mood)
	}
	return names
}

// matchMood accepts exact mood names in any case and otherwise the single
// best fuzzy match.
func matchMood(input string) (memory.Mood, error) {
	if mood, err := memory.ParseMood(input); err == nil {
		return mood, nil
	}

	matches := fuzzy.Find(strings.TrimSpace(input), moodNames())
	if len(matches) == 1 || (len(matches) > 1 && matches[0].Score > matches[1].Score) {
		return memory.Mood(matches[0].Str), nil
	}

	return "", fmt.Errorf("%w: %q, expected one of %s", memory.ErrInvalidMood, input, strings.Join(moodNames(), ", "))
}
