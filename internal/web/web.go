// Package web holds the embedded HTML templates and static assets.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/moviehub/backend/internal/tmdb"
)

//go:embed templates/*.html templates/pages/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// fragments render without the page layout.
var fragments = map[string]bool{"reviews": true}

// Renderer executes the embedded templates. Each page is parsed together with
// the shared layout into its own set so block definitions do not collide.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses every embedded template.
func NewRenderer() (*Renderer, error) {
	entries, err := fs.Glob(templateFS, "templates/pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(entries))}
	for _, entry := range entries {
		name := strings.TrimSuffix(path.Base(entry), ".html")

		var tmpl *template.Template
		if fragments[name] {
			tmpl, err = template.New(path.Base(entry)).Funcs(funcs).ParseFS(templateFS, entry)
		} else {
			tmpl, err = template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/partials.html", entry)
		}
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Render writes the named page to w.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	return tmpl.Execute(w, data)
}

// Static returns the embedded static asset tree rooted at its top directory.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("web: static assets missing: " + err.Error())
	}
	return sub
}

var funcs = template.FuncMap{
	"poster": func(p *string) string {
		if p == nil || *p == "" {
			return ""
		}
		return tmdb.PosterURL(*p)
	},
	"posterPath": tmdb.PosterURL,
	"score": func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.1f", *v)
	},
	"rating": func(v *int) string {
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%d", *v)
	},
	"date": func(t time.Time) string {
		return t.Format("Jan 2, 2006")
	},
	"str": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"id": func(v *int64) int64 {
		if v == nil {
			return 0
		}
		return *v
	},
}
