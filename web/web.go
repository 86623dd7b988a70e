// Package web embeds the page templates and static assets for both servers.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
)

//go:embed templates/*.html
var templates embed.FS

//go:embed static
var static embed.FS

// Static returns the static asset tree rooted at static/.
func Static() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Relay parses the standalone relay page.
func Relay() (*template.Template, error) {
	return template.ParseFS(templates, "templates/relay.html")
}

// DashboardPages are the dashboard pages, each rendered inside layout.html.
var DashboardPages = []string{"chat", "page", "game", "community"}

// Dashboard parses every dashboard page together with the shared layout.
// Execute the "layout" template of the returned set.
func Dashboard(funcs template.FuncMap) (map[string]*template.Template, error) {
	out := make(map[string]*template.Template, len(DashboardPages))
	for _, name := range DashboardPages {
		t, err := template.New(name).Funcs(funcs).ParseFS(templates,
			"templates/layout.html",
			fmt.Sprintf("templates/%s.html", name),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}
