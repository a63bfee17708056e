package handlers

import (
	"net/http"
	"path"
	"strings"

	"github.com/astrogalery/astrogalery/internal/gallery"
	"github.com/astrogalery/astrogalery/internal/models"
)

// ObjectDetail is one object with its image records.
type ObjectDetail struct {
	gallery.ObjectGroup
	Records []models.ImageRecord `json:"records"`
}

func (h *Handler) HandleObjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var groups []gallery.ObjectGroup
		if err := h.readData(gallery.ObjectJSON, &groups); err != nil {
			h.writeDataError(w, err)
			return
		}
		if groups == nil {
			groups = []gallery.ObjectGroup{}
		}
		h.writeJSON(w, groups)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleObjectDetail serves /api/objects/{slug}, where slug is the base name
// of the object page.
func (h *Handler) HandleObjectDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	slug := strings.TrimPrefix(r.URL.Path, "/api/objects/")

	var groups []gallery.ObjectGroup
	if err := h.readData(gallery.ObjectJSON, &groups); err != nil {
		h.writeDataError(w, err)
		return
	}

	var detail *ObjectDetail
	for _, g := range groups {
		if strings.TrimSuffix(path.Base(g.Page), ".html") == slug {
			detail = &ObjectDetail{ObjectGroup: g, Records: []models.ImageRecord{}}
			break
		}
	}
	if detail == nil {
		h.writeError(w, "Object not found", http.StatusNotFound)
		return
	}

	var records []models.ImageRecord
	if err := h.readData(gallery.ImagesJSON, &records); err != nil {
		h.writeDataError(w, err)
		return
	}
	for _, rec := range records {
		if rec.ObjectName == detail.Name {
			detail.Records = append(detail.Records, rec)
		}
	}
	h.writeJSON(w, detail)
}
