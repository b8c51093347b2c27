package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

//go:embed templates/*.html
var templateFS embed.FS

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// renderMarkdown converts model output to HTML. Raw HTML in the input is
// escaped by goldmark.
func renderMarkdown(source string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		slog.Warn("failed to render markdown", "error", err)
		return template.HTML(template.HTMLEscapeString(source))
	}
	return template.HTML(buf.String())
}

func prettyJSON(v any) string {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(content)
}

func formatCost(cost decimal.Decimal) string {
	return "$" + cost.StringFixed(4)
}

var templateFuncs = template.FuncMap{
	"markdown": renderMarkdown,
	"since":    func(t time.Time) string { return humanize.Time(t) },
	"comma":    func(n int64) string { return humanize.Comma(n) },
	"inc":      func(i int) int { return i + 1 },
	"json":     prettyJSON,
	"cost":     formatCost,
}

func loadTemplates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
}
