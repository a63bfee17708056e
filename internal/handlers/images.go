package handlers

import (
	"net/http"
	"slices"
	"strings"

	"github.com/astrogalery/astrogalery/internal/gallery"
	"github.com/astrogalery/astrogalery/internal/models"
)

// HandleImages lists image records, optionally filtered by ?catalog= and
// ?tag= (French or English tag, case-insensitive).
func (h *Handler) HandleImages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var records []models.ImageRecord
	if err := h.readData(gallery.ImagesJSON, &records); err != nil {
		h.writeDataError(w, err)
		return
	}

	catalogName := r.URL.Query().Get("catalog")
	tag := strings.TrimSpace(r.URL.Query().Get("tag"))
	matchTag := func(t string) bool { return strings.EqualFold(t, tag) }

	out := make([]models.ImageRecord, 0, len(records))
	for _, rec := range records {
		if catalogName != "" && !strings.EqualFold(rec.Catalog, catalogName) {
			continue
		}
		if tag != "" && !slices.ContainsFunc(rec.TagsEN, matchTag) && !slices.ContainsFunc(rec.TagsFR, matchTag) {
			continue
		}
		out = append(out, rec)
	}
	h.writeJSON(w, out)
}
