package web

import (
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"strings"
)

//go:embed static/*
var staticFS embed.FS

// Bootstrap is what the admin page needs to find its API.
type Bootstrap struct {
	BasePath string
	APIName  string
	AjaxURL  string
}

// script renders the globals read by js/admin.js.
func (b Bootstrap) script() string {
	str := func(s string) string {
		out, _ := json.Marshal(s)
		return string(out)
	}
	return "<script>window.__BASE_PATH=" + str(b.BasePath) +
		";window.apiName=" + str(b.APIName) +
		";window.ajaxurl=" + str(b.AjaxURL) + ";</script>"
}

// StaticHandler returns an http.Handler that serves the embedded static files.
// It injects the bootstrap globals into index.html and prefixes asset paths
// with the base path.
func StaticHandler(b Bootstrap) http.Handler {
	sub, _ := fs.Sub(staticFS, "static")
	fileServer := http.FileServerFS(sub)

	// Read index.html once at startup for injection
	indexBytes, _ := fs.ReadFile(sub, "index.html")
	injected := strings.Replace(string(indexBytes), "<head>", "<head>\n"+b.script(), 1)

	// Rewrite static asset paths to include base_path prefix
	if b.BasePath != "/" && b.BasePath != "" {
		prefix := b.BasePath + "/"
		injected = strings.ReplaceAll(injected, `href="/css/`, `href="`+prefix+`css/`)
		injected = strings.ReplaceAll(injected, `src="/js/`, `src="`+prefix+`js/`)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Serve injected index.html for root or index.html requests
		if r.URL.Path == "/" || r.URL.Path == "/index.html" {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(injected))
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}
