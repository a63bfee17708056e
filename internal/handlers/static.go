package handlers

import (
	"net/http"
	"path"
	"path/filepath"
	"strings"
)

func (h *Handler) HandleStatic(w http.ResponseWriter, r *http.Request) {
	filePath := strings.TrimPrefix(r.URL.Path, "/")
	if filePath == "" || strings.HasSuffix(filePath, "/") {
		filePath += "index.html"
	}

	// Prevent directory traversal attacks
	if strings.Contains(filePath, "..") {
		http.Error(w, "Invalid file path", http.StatusBadRequest)
		return
	}

	switch path.Ext(filePath) {
	case ".css":
		w.Header().Set("Content-Type", "text/css")
	case ".js":
		w.Header().Set("Content-Type", "application/javascript")
	case ".html":
		w.Header().Set("Content-Type", "text/html")
	case ".fits":
		w.Header().Set("Content-Type", "application/fits")
	}

	http.ServeFile(w, r, filepath.Join(h.siteDir, filepath.FromSlash(filePath)))
}
