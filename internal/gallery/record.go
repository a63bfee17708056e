package gallery

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/astrogalery/astrogalery/internal/cache"
	"github.com/astrogalery/astrogalery/internal/catalog"
	"github.com/astrogalery/astrogalery/internal/fits"
	"github.com/astrogalery/astrogalery/internal/identity"
	"github.com/astrogalery/astrogalery/internal/models"
	"github.com/astrogalery/astrogalery/internal/scan"
)

// Site-relative locations.
const (
	ImageDir   = "data/img"
	ObjectDir  = "gallery"
	ImagesJSON = "data/images.json"
	ObjectJSON = "data/objects.json"
	ImagesPQ   = "data/images.parquet"
)

// TypeUnknown is the object type when nothing better is known.
const TypeUnknown = "Unknown"

// objectName picks the header OBJECT, falling back to the observation
// directory name for missing or placeholder values.
func objectName(h models.Header, obsDir string) string {
	name := strings.TrimSpace(h.Object)
	switch strings.ToLower(name) {
	case "", "unknown", strings.ToLower(fits.UnknownObject):
		return filepath.Base(obsDir)
	}
	return name
}

// buildRecord runs pass 1 for one candidate: header, identity and catalog
// table. It only fails when the image cannot be copied into the site.
func (p *Pipeline) buildRecord(ctx context.Context, c scan.Candidate, rep *ImageReport) (*models.ImageRecord, error) {
	rec := &models.ImageRecord{
		Name:           filepath.Base(c.JPGPath),
		ObservationDir: filepath.Base(c.ObservationDir),
		Scratch: models.Scratch{
			JPGPath: c.JPGPath,
			JPGStem: c.Stem(),
		},
	}

	if fitsPath := fits.FindStacked(c.ObservationDir); fitsPath == "" {
		rep.add(StageHeader, StatusSkipped, "", "no stacked FITS file")
	} else if h, err := fits.Extract(fitsPath); err != nil {
		rep.add(StageHeader, StatusDegraded, "", err.Error())
	} else {
		rec.Header = h
		rec.Scratch.FITSPath = fitsPath
		rep.add(StageHeader, StatusOK, "", "")
	}

	rec.ObjectName = objectName(rec.Header, c.ObservationDir)
	rep.Object = rec.ObjectName

	if t, ok := fits.ParseDate(rec.Header.DateObs); ok {
		rec.ObservedAt = t
		rec.DateCreated = t.Format("2006-01-02 15:04")
		rec.DateCreatedISO = t.Format("2006-01-02T15:04:05")
	}

	rec.Catalog = catalog.InferCatalog(rec.ObjectName)
	rec.CatalogID = catalog.Other
	if id, ok := catalog.NormalizeID(rec.ObjectName); ok {
		rec.CatalogID = id
	}

	res := p.identity.Resolve(ctx, rec.ObjectName)
	p.countIdentity(res.Outcome)
	rec.MainID = res.Entry.MainID
	rec.OType = res.Entry.OType
	rec.OTypeText = res.Entry.OTypeText
	rec.IdentitySource = res.Entry.Source
	rec.TagsFR = models.Dedupe(res.Entry.TagsFR)
	rec.TagsEN = models.Dedupe(res.Entry.TagsEN)
	switch res.Outcome {
	case identity.OutcomeRemoteError:
		rep.add(StageIdentity, StatusFailed, res.Outcome.String(), res.Entry.Source)
	case identity.OutcomeRemoteNotFound, identity.OutcomeOffline:
		rep.add(StageIdentity, StatusDegraded, res.Outcome.String(), "")
	default:
		rep.add(StageIdentity, StatusOK, res.Outcome.String(), "")
	}

	rec.ObjectType = identity.RefineType(rec.TagsEN, catalog.InferObjectTypeBasic(rec.ObjectName))
	if rec.ObjectType == "" {
		rec.ObjectType = TypeUnknown
	}

	if entry, ok := p.table.Lookup(rec.CatalogID); ok {
		rec.CatalogEntry = &entry
		rep.add(StageCatalog, StatusOK, "", "")
	} else {
		rep.add(StageCatalog, StatusSkipped, "", "not in catalog table")
	}

	if err := p.copyImages(rec, c); err != nil {
		return nil, err
	}
	describe(rec)
	return rec, nil
}

func (p *Pipeline) copyImages(rec *models.ImageRecord, c scan.Candidate) error {
	slug := models.Slugify(rec.ObjectName)

	rel := filepath.ToSlash(filepath.Join(ImageDir, slug+"-"+rec.Name))
	if err := cache.CopyFile(c.JPGPath, filepath.Join(p.opts.Output, filepath.FromSlash(rel))); err != nil {
		return fmt.Errorf("failed to copy image: %w", err)
	}
	rec.ContentURL = rel
	rec.ThumbnailURL = rel

	if c.ThumbPath != "" {
		thumb := filepath.ToSlash(filepath.Join(ImageDir, slug+"-"+filepath.Base(c.ThumbPath)))
		if err := cache.CopyFile(c.ThumbPath, filepath.Join(p.opts.Output, filepath.FromSlash(thumb))); err == nil {
			rec.ThumbnailURL = thumb
		}
	}

	rec.ObjectPage = ObjectDir + "/" + slug + ".html"

	if p.opts.BaseURL != "" {
		rec.ContentURLAbs = absoluteURL(p.opts.BaseURL, rec.ContentURL)
		rec.ThumbnailURLAbs = absoluteURL(p.opts.BaseURL, rec.ThumbnailURL)
	}
	return nil
}

// absoluteURL joins a site-relative path onto the public base URL, escaping
// each path segment.
func absoluteURL(base, rel string) string {
	if u, err := url.JoinPath(base, rel); err == nil {
		return u
	}
	return strings.TrimRight(base, "/") + "/" + rel
}

// describe fills keywords, description and alt text.
func describe(rec *models.ImageRecord) {
	scope := rec.Header.Telescope
	if scope == fits.UnknownTelescope {
		scope = ""
	}

	base := []string{rec.ObjectName, rec.Catalog, scope}
	rec.KeywordsFR = models.Dedupe(base, []string{"astrophotographie"}, rec.TagsFR)
	rec.KeywordsEN = models.Dedupe(base, []string{"astrophotography"}, rec.TagsEN)

	desc := "Astrophotographie " + rec.ObjectName
	if scope != "" {
		desc += " (" + scope + ")"
	}
	desc += "."
	if short := joinFirst(rec.TagsFR, 3) + " / " + joinFirst(rec.TagsEN, 3); short != " / " {
		desc += " " + short
	}
	rec.Description = strings.TrimSpace(desc)

	parts := []string{rec.ObjectName}
	if tags := models.Dedupe(first(rec.TagsFR, 2), first(rec.TagsEN, 2)); len(tags) > 0 {
		parts = append(parts, strings.Join(tags, ", "))
	}
	parts = append(parts, rec.Catalog)
	if scope != "" {
		parts = append(parts, scope)
	}
	rec.Alt = strings.Join(parts, " - ")
}

func first(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func joinFirst(s []string, n int) string {
	return strings.Join(first(s, n), ", ")
}
