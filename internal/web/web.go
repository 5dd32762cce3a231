// Package web holds the embedded HTML page served at the root path.
package web

import (
	"embed"
	"html/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// IndexTemplate is the name of the download page template.
const IndexTemplate = "index.tmpl"

// Templates parses the embedded page templates.
func Templates() *template.Template {
	return template.Must(template.New("").ParseFS(templateFS, "templates/*.tmpl"))
}
