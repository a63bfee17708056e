package gallery

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/astrogalery/astrogalery/internal/models"
)

// ObjectGroup is one entry of data/objects.json: every image of an object,
// newest first.
type ObjectGroup struct {
	Name       string   `json:"name"`
	Page       string   `json:"page"`
	CatalogID  string   `json:"catalogId"`
	Catalog    string   `json:"catalog"`
	ObjectType string   `json:"objectType"`
	Thumbnail  string   `json:"thumbnailUrl"`
	Astrometry string   `json:"astrometryUrl,omitempty"`
	Finder     string   `json:"finderChartUrl,omitempty"`
	Images     []string `json:"images"`
}

// GroupByObject groups records by object name. Records must already be
// sorted newest first; groups are returned by name.
func GroupByObject(records []*models.ImageRecord) []ObjectGroup {
	index := make(map[string]int)
	var groups []ObjectGroup
	for _, rec := range records {
		i, ok := index[rec.ObjectName]
		if !ok {
			i = len(groups)
			index[rec.ObjectName] = i
			groups = append(groups, ObjectGroup{
				Name:       rec.ObjectName,
				Page:       rec.ObjectPage,
				CatalogID:  rec.CatalogID,
				Catalog:    rec.Catalog,
				ObjectType: rec.ObjectType,
				Thumbnail:  rec.ThumbnailURL,
			})
		}
		g := &groups[i]
		g.Images = append(g.Images, rec.ContentURL)
		if g.Astrometry == "" && rec.Astrometry != nil {
			g.Astrometry = rec.Astrometry.Image
		}
		if g.Finder == "" && rec.FinderChart != "" {
			g.Finder = rec.FinderChart
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return strings.ToLower(groups[i].Name) < strings.ToLower(groups[j].Name)
	})
	return groups
}

// imageRow is the flat parquet view of a record.
type imageRow struct {
	Name          string  `parquet:"name"`
	ObjectName    string  `parquet:"object_name"`
	CatalogID     string  `parquet:"catalog_id"`
	Catalog       string  `parquet:"catalog"`
	ObjectType    string  `parquet:"object_type"`
	DateCreated   string  `parquet:"date_created"`
	Exposure      float64 `parquet:"exposure"`
	Filter        string  `parquet:"filter"`
	Telescope     string  `parquet:"telescope"`
	RA            string  `parquet:"ra"`
	Dec           string  `parquet:"dec"`
	MainID        string  `parquet:"main_id"`
	OType         string  `parquet:"otype"`
	TagsFR        string  `parquet:"tags_fr"`
	TagsEN        string  `parquet:"tags_en"`
	ContentURL    string  `parquet:"content_url"`
	AstrometryURL string  `parquet:"astrometry_url"`
	FinderURL     string  `parquet:"finder_url"`
}

func toRow(rec *models.ImageRecord) imageRow {
	row := imageRow{
		Name:        rec.Name,
		ObjectName:  rec.ObjectName,
		CatalogID:   rec.CatalogID,
		Catalog:     rec.Catalog,
		ObjectType:  rec.ObjectType,
		DateCreated: rec.DateCreatedISO,
		Exposure:    rec.Header.Exposure,
		Filter:      rec.Header.Filter,
		Telescope:   rec.Header.Telescope,
		RA:          rec.Header.RA,
		Dec:         rec.Header.Dec,
		MainID:      rec.MainID,
		OType:       rec.OType,
		TagsFR:      strings.Join(rec.TagsFR, ", "),
		TagsEN:      strings.Join(rec.TagsEN, ", "),
		ContentURL:  rec.ContentURL,
		FinderURL:   rec.FinderChart,
	}
	if rec.Astrometry != nil {
		row.AstrometryURL = rec.Astrometry.Image
	}
	return row
}

func (p *Pipeline) writeOutputs(records []*models.ImageRecord, groups []ObjectGroup) error {
	if records == nil {
		records = []*models.ImageRecord{}
	}
	if groups == nil {
		groups = []ObjectGroup{}
	}

	if err := writeJSON(filepath.Join(p.opts.Output, ImagesJSON), records); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(p.opts.Output, ObjectJSON), groups); err != nil {
		return err
	}

	if p.opts.Parquet {
		rows := make([]imageRow, len(records))
		for i, rec := range records {
			rows[i] = toRow(rec)
		}
		if err := parquet.WriteFile(filepath.Join(p.opts.Output, ImagesPQ), rows); err != nil {
			slog.Warn("Failed to write parquet export", "error", err)
		}
	}

	path, err := p.report.SaveYAML(p.opts.Output)
	if err != nil {
		slog.Warn("Failed to write run report", "error", err)
	} else {
		slog.Info("Run report saved", "path", path)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
