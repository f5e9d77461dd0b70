package web

import (
	"embed"
	"html/template"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-contrib/multitemplate"

	"github.com/steemit/postboard/internal/client"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = []string{"index.html", "detail.html", "form.html"}

var funcMap = template.FuncMap{
	"markdown":   RenderMarkdown,
	"formatTime": formatTime,
	"excerpt":    excerpt,
	"edited": func(p *client.Post) bool {
		return p.UpdatedAt.After(p.CreatedAt)
	},
}

// NewRenderer parses every page together with the shared layout
func NewRenderer() (multitemplate.Renderer, error) {
	r := multitemplate.NewRenderer()
	for _, page := range pages {
		tmpl, err := template.New("layout.html").
			Funcs(funcMap).
			ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, err
		}
		r.Add(page, tmpl)
	}
	return r, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("Jan 2, 2006 15:04 UTC")
}

// excerpt shortens s to at most n characters on one line
func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}
