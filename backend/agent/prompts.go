package agent

import (
	"fmt"
	"strings"
)

const PlannerInstruction = `You are the SEYAL Planner. Goal: Break a user's objective into 4 clear, sequential milestones.
Action: You MUST use the ` + "`update_roadmap`" + ` tool to save them.
Response: A brief, encouraging confirmation.`

const TaskManagerInstruction = `You are the SEYAL Task Manager. Goal: Take the current plan and generate ONE day's worth of micro-tasks (3-4 items)
for the next milestone. Format: Use Markdown Checkboxes (e.g., - [ ] Task).`

const ReflectorInstruction = `You are the SEYAL Insight Agent. Goal: Analyze user progress.
Action: Call ` + "`retrieve_history_tool`" + ` to see past context.
Output: A Weekly Report with 1. 🏆 Wins, 2. ⚠️ Patterns Detected, 3. 🚀 Next Focus.`

const SummarizerInstruction = `You are the SEYAL Summarizer. Goal: Condense past daily logs into the user's long-term memory.
Output: Plain prose only, no lists or headings.`

const ReflectPrompt = "Generate my SEYAL Report now."

func PlannerPrompt(goal string) string {
	return fmt.Sprintf("My goal is: %s", goal)
}

func TasksPrompt(roadmap []string, summary string) string {
	context := fmt.Sprintf("Current Plan: %s. Long-Term Summary: %s", listLiteral(roadmap), summary)
	return fmt.Sprintf("%s. Generate detailed, executable tasks for today based on the next milestone in the plan.", context)
}

func SummarizerPrompt(encodedLogs string) string {
	return fmt.Sprintf(`Analyze these past daily logs. Summarize the user's progress, wins, and mood patterns
into a single, narrative paragraph (max 3 sentences). Keep critical details.
Logs to Summarize: %s`, encodedLogs)
}

// listLiteral renders items as ['a', 'b'], switching to double quotes for
// items that contain an apostrophe.
func listLiteral(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		switch {
		case !strings.Contains(item, "'"):
			quoted[i] = "'" + item + "'"
		case !strings.Contains(item, `"`):
			quoted[i] = `"` + item + `"`
		default:
			quoted[i] = "'" + strings.ReplaceAll(item, "'", `\'`) + "'"
		}
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
