// Package web holds the server-rendered HTML templates.
package web

import (
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses every page and partial into one set. Pages are addressed
// by file name, e.g. "dashboard.html".
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"join": strings.Join,
		"date": formatDate,
		"year": func() int { return time.Now().Year() },
	}).ParseFS(templateFS, "templates/*.html")
}

// formatDate renders an ISO date (YYYY-MM-DD) the German way.
func formatDate(iso string) string {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return t.Format("02.01.2006")
}
