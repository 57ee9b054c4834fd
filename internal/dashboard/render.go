package dashboard

import (
	"bytes"
	"embed"
	"html/template"
	"strconv"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"example.com/octofit/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// Raw HTML in descriptions is escaped because WithUnsafe is not set.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// dateLayout mirrors the en-US short date the original views printed.
const dateLayout = "1/2/2006"

type rankBadge struct {
	Label string
	Class string
}

func badgeFor(rank int) rankBadge {
	class := "bg-light text-dark"
	switch rank {
	case 1:
		class = "bg-warning text-dark"
	case 2:
		class = "bg-secondary"
	case 3:
		class = "bg-danger"
	}
	return rankBadge{Label: domain.RankLabel(rank), Class: class}
}

func formatDate(ts domain.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format(dateLayout)
}

func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

var funcs = template.FuncMap{
	"markdown":  renderMarkdown,
	"date":      formatDate,
	"rankBadge": badgeFor,
	"podium":    func(rank int) bool { return rank > 0 && rank <= 3 },
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"countOrDash": func(n *int) string {
		if n == nil || *n == 0 {
			return "-"
		}
		return strconv.Itoa(*n)
	},
}

func parseTemplates() (*template.Template, error) {
	return template.New("dashboard").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}
