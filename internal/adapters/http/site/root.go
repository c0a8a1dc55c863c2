// Package site serves the embedded dashboard page.
package site

import (
	"context"
	"net/http"
)

// Register attaches the dashboard page at / and its assets under /assets/.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("/assets/", http.StripPrefix("/assets/", http.FileServer(FS())))
	mux.HandleFunc("/", NewRootHandler().HandleRoot)
}

// RootHandler handles root path requests.
type RootHandler struct{}

// NewRootHandler creates a new root handler.
func NewRootHandler() *RootHandler {
	return &RootHandler{}
}

// HandleRoot serves the dashboard for GET / and 404 for any other path
// falling through to the catch-all pattern.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(indexHTML)
}
