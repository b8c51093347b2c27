package terminal

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/furisto/seyal/backend/memory"
)

var (
	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	milestoneStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("33")).
			PaddingLeft(1)

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242")).
			Strikethrough(true)

	toastStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("213")).
			Bold(true)

	boldStyle = lipgloss.NewStyle().Bold(true)
)

func Bold(s string) string {
	return boldStyle.Render(s)
}

func Heading(s string) string {
	return headingStyle.Render(s)
}

func Toast(s string) string {
	return toastStyle.Render(s)
}

// RenderMilestones lists a roadmap the way the plan tab does.
func RenderMilestones(roadmap []string) string {
	if len(roadmap) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(Heading("📍 Current Milestones"))
	b.WriteString("\n")
	for i, milestone := range roadmap {
		b.WriteString(milestoneStyle.Render(fmt.Sprintf("%s %s", Bold(fmt.Sprintf("Milestone %d:", i+1)), milestone)))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderTasks shows parsed tasks as a numbered checklist. When the task
// manager answered with something that is not a list the markdown is rendered
// as is.
func RenderTasks(state *memory.State, width int) string {
	if len(state.Tasks) == 0 {
		return FormatMarkdown(state.TasksMarkdown, width)
	}

	var b strings.Builder
	b.WriteString(Heading("📋 Daily Tasks"))
	b.WriteString("\n")
	for i, task := range state.Tasks {
		box, text := "[ ]", task.Text
		if task.Done {
			box, text = "[x]", doneStyle.Render(task.Text)
		}
		b.WriteString(fmt.Sprintf("%3d. %s %s\n", i+1, box, text))
	}
	return b.String()
}

// RenderUsage summarizes token usage per model with an estimated cost.
func RenderUsage(usage map[string]memory.TokenUsage, cost string) string {
	if len(usage) == 0 {
		return ""
	}

	var lines []string
	for _, name := range slices.Sorted(maps.Keys(usage)) {
		u := usage[name]
		lines = append(lines, fmt.Sprintf("%s: %d calls, %d in / %d out tokens", name, u.Calls, u.InputTokens, u.OutputTokens))
	}
	lines = append(lines, fmt.Sprintf("Estimated cost: $%s", cost))
	return addIndentationToLines(strings.Join(lines, "\n"), "  ")
}
