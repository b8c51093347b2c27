package memory

import (
	"regexp"
	"strings"
)

var (
	checkboxPattern = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s*\[( |x|X)\]\s*(.+?)\s*$`)
	bulletPattern   = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+(.+?)\s*$`)
)

// ParseTasks extracts Markdown checkbox items. When the model ignored the
// checkbox format, bullet or numbered items are used, and without those every
// non-empty line becomes a task.
func ParseTasks(markdown string) []Task {
	lines := strings.Split(markdown, "\n")

	var tasks []Task
	for _, line := range lines {
		if m := checkboxPattern.FindStringSubmatch(line); m != nil {
			tasks = append(tasks, Task{Text: m[2], Done: strings.EqualFold(m[1], "x")})
		}
	}
	if len(tasks) > 0 {
		return tasks
	}

	for _, line := range lines {
		if m := bulletPattern.FindStringSubmatch(line); m != nil {
			tasks = append(tasks, Task{Text: m[1]})
		}
	}
	if len(tasks) > 0 {
		return tasks
	}

	tasks = []Task{}
	for _, line := range lines {
		if text := strings.TrimSpace(line); text != "" {
			tasks = append(tasks, Task{Text: text})
		}
	}
	return tasks
}

// RenderTasks turns tasks back into checkbox Markdown with the current flags.
func RenderTasks(tasks []Task) string {
	var b strings.Builder
	for _, task := range tasks {
		if task.Done {
			b.WriteString("- [x] ")
		} else {
			b.WriteString("- [ ] ")
		}
		b.WriteString(task.Text)
		b.WriteString("\n")
	}
	return b.String()
}
