package terminal

import "github.com/charmbracelet/lipgloss"

func symbol(glyph string, color lipgloss.Color, bold bool) string {
	style := lipgloss.NewStyle().Bold(bold)
	if color != "" {
		style = style.Foreground(color)
	}
	return style.Render(glyph)
}

// Prefixes for CLI output lines.
var (
	InfoSymbol    = symbol("ⓘ", "33", true)
	WarningSymbol = symbol("⚠️", "", false)
	ErrorSymbol   = symbol("❌", "", false)
	SuccessSymbol = symbol("✔", "10", true)
	ActionSymbol  = symbol("▶", "39", false)
	LinkSymbol    = symbol("→", "75", false)
	MemorySymbol  = symbol("🧠", "", false)
)
