// Package assets embeds the gateway's static files: the icon referenced by
// the connector manifest and the Markdown landing page shown to browsers.
package assets

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/yuin/goldmark"
)

//go:embed static
var staticFS embed.FS

// IconPath is the icon's path below /static/.
const IconPath = "icon.svg"

const baseURLPlaceholder = "{{BASE_URL}}"

var landingShell = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<link rel="icon" href="/static/` + IconPath + `">
<style>
body { font-family: system-ui, sans-serif; max-width: 46rem; margin: 3rem auto; padding: 0 1rem; line-height: 1.5; color: #202124; }
code, pre { background: #f1f3f4; border-radius: 4px; padding: 0.1rem 0.3rem; }
pre { padding: 0.75rem; overflow-x: auto; }
</style>
</head>
<body>
{{.Content}}
</body>
</html>
`))

func init() {
	// Errors are ignored: these only fail if extension format is invalid.
	_ = mime.AddExtensionType(".svg", "image/svg+xml")
	_ = mime.AddExtensionType(".md", "text/markdown; charset=utf-8")
}

// LandingHTML renders the landing page for a gateway reachable at baseURL.
func LandingHTML(title, baseURL string) ([]byte, error) {
	md, err := fs.ReadFile(staticFS, "static/landing.md")
	if err != nil {
		return nil, fmt.Errorf("reading landing page: %w", err)
	}
	md = bytes.ReplaceAll(md, []byte(baseURLPlaceholder), []byte(strings.TrimRight(baseURL, "/")))

	var body bytes.Buffer
	if err := goldmark.Convert(md, &body); err != nil {
		return nil, fmt.Errorf("rendering landing page: %w", err)
	}

	var out bytes.Buffer
	err = landingShell.Execute(&out, struct {
		Title   string
		Content template.HTML
	}{
		Title:   title,
		Content: template.HTML(body.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering landing shell: %w", err)
	}
	return out.Bytes(), nil
}

// mimeFromExt returns the MIME type for a file extension.
// Falls back to the Go standard library's MIME type database,
// then to "application/octet-stream" if unknown.
func mimeFromExt(ext string) string {
	switch ext {
	case ".svg":
		return "image/svg+xml"
	case ".md":
		return "text/markdown; charset=utf-8"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}

// FileServer returns an http.Handler that serves embedded files from static/.
// The handler expects paths relative to the static root (strip /static/ before calling).
func FileServer() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("assets: failed to create sub filesystem: " + err.Error())
	}
	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ext := strings.ToLower(path.Ext(r.URL.Path))
		if ext != "" {
			w.Header().Set("Content-Type", mimeFromExt(ext))
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		fileServer.ServeHTTP(w, r)
	})
}
