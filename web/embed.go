// Package web embeds the static assets (dist/) and the admin page template.
//
// SPAHandler serves dist/ and falls back to index.html for unknown paths;
// AdminTemplate renders the server-side journey listing.
package web

import (
	"embed"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

//go:embed all:dist
var distFS embed.FS

//go:embed templates/*.html
var templateFS embed.FS

// SPAHandler returns an http.Handler that serves the embedded assets.
// It serves static files from dist/, and falls back to index.html for
// any path that doesn't match a file.
func SPAHandler() http.Handler {
	subFS, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}

	fileServer := http.FileServer(http.FS(subFS))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")
		if path == "" {
			path = "index.html"
		}

		if f, err := subFS.Open(path); err == nil {
			if closeErr := f.Close(); closeErr != nil {
				slog.Debug("web: failed to close embedded file", "path", path, "error", closeErr)
			}
			fileServer.ServeHTTP(w, r)
			return
		}

		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}

// AdminTemplate parses the admin listing template.
func AdminTemplate() (*template.Template, error) {
	return template.New("admin.html").Funcs(template.FuncMap{
		"timestamp": func(t time.Time) string { return t.UTC().Format("Jan 2, 2006 3:04:05 PM UTC") },
	}).ParseFS(templateFS, "templates/admin.html")
}
