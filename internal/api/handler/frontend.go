package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// FrontendHandler serves the single-page frontend shell under /app. Any
// path that does not resolve to a file falls back to index.html so the
// client router can take over.
type FrontendHandler struct {
	dir string
}

// NewFrontendHandler serves static assets from dir.
func NewFrontendHandler(dir string) *FrontendHandler {
	return &FrontendHandler{dir: dir}
}

// ServeHTTP serves the requested asset or the index shell.
func (h *FrontendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.dir == "" {
		http.NotFound(w, r)
		return
	}

	rel := strings.TrimPrefix(r.URL.Path, "/app")
	rel = strings.TrimPrefix(rel, "/")

	path := filepath.Join(h.dir, filepath.FromSlash(filepath.Clean("/"+rel)))
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		path = filepath.Join(h.dir, "index.html")
	}

	http.ServeFile(w, r, path)
}
