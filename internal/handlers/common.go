// Package handlers serves a built site for local preview, together with a
// small read-only API over its data files.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

// errNotBuilt is returned when the site has no data files yet.
var errNotBuilt = errors.New("site not built")

type Handler struct {
	siteDir string
}

func New(siteDir string) *Handler {
	return &Handler{siteDir: siteDir}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// readData decodes a site-relative JSON document. The files are re-read on
// every request so a rebuild shows up without restarting the server.
func (h *Handler) readData(rel string, v any) error {
	data, err := os.ReadFile(filepath.Join(h.siteDir, filepath.FromSlash(rel)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errNotBuilt
		}
		return fmt.Errorf("failed to read %s: %w", rel, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", rel, err)
	}
	return nil
}

func (h *Handler) writeDataError(w http.ResponseWriter, err error) {
	if errors.Is(err, errNotBuilt) {
		h.writeError(w, "Site not built, run the build command first", http.StatusServiceUnavailable)
		return
	}
	h.writeError(w, err.Error(), http.StatusInternalServerError)
}
