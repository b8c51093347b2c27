package terminal

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/glamour"
)

const DefaultWidth = 100

var (
	leadingWhitespace  = regexp.MustCompile(`^(?:\x1b\[[0-9;]*m|\s)*`)
	trailingWhitespace = regexp.MustCompile(`(?:\x1b\[[0-9;]*m|\s)*$`)
)

// FormatMarkdown renders agent output for the terminal. Rendering errors fall
// back to the raw markdown.
func FormatMarkdown(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	if width <= 0 {
		width = DefaultWidth
	}

	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"), // avoid OSC background queries
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}

	out, err := md.Render(content)
	if err != nil {
		return content
	}
	return trimTrailingWhitespaceWithANSI(trimLeadingWhitespaceWithANSI(out))
}

func trimLeadingWhitespaceWithANSI(s string) string {
	return leadingWhitespace.ReplaceAllString(s, "")
}

func trimTrailingWhitespaceWithANSI(s string) string {
	return trailingWhitespace.ReplaceAllString(s, "")
}

func addIndentationToLines(content, indentation string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = indentation + line
		}
	}
	return strings.Join(lines, "\n")
}
