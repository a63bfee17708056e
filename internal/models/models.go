package models

import "time"

// Header is the flat view of a FITS primary header that the pipeline consumes.
type Header struct {
	Object      string  `json:"object"`
	DateObs     string  `json:"dateObs"`
	Exposure    float64 `json:"exptime"`
	Filter      string  `json:"filter"`
	Telescope   string  `json:"telescope"`
	Instrument  string  `json:"instrument"`
	Observer    string  `json:"observer"`
	RA          string  `json:"ra"`
	Dec         string  `json:"dec"`
	FocalLength float64 `json:"-"` // mm, 0 when absent
	PixelSize   float64 `json:"-"` // microns, 0 when absent
}

// CatalogFields holds the optional columns of the reference spreadsheet.
type CatalogFields struct {
	Designation   string   `json:"designation"`
	CrossID       string   `json:"crossId,omitempty"`
	Name          string   `json:"name,omitempty"`
	Type          string   `json:"type,omitempty"`
	Constellation string   `json:"constellation,omitempty"`
	Magnitude     *float64 `json:"magnitude,omitempty"`
	Size          string   `json:"size,omitempty"`
	Distance      *int     `json:"distance,omitempty"`
}

// ArtifactRef points at the plate-solve artifacts copied into the site.
type ArtifactRef struct {
	Image string `json:"image"`
	WCS   string `json:"wcs"`
}

// Scratch holds paths only the pipeline needs; it never reaches the output.
type Scratch struct {
	FITSPath string
	JPGPath  string
	JPGStem  string
}

// ImageRecord is the enriched record for one discovered final image.
type ImageRecord struct {
	Name           string `json:"name"`
	ObjectName     string `json:"objectName"`
	ObservationDir string `json:"observation"`

	CatalogID  string `json:"catalogId"`
	Catalog    string `json:"catalog"`
	ObjectType string `json:"objectType"`

	DateCreated    string    `json:"dateCreated"`
	DateCreatedISO string    `json:"dateCreatedISO"`
	ObservedAt     time.Time `json:"-"`

	Header Header `json:"header"`

	MainID         string `json:"mainId"`
	OType          string `json:"otype"`
	OTypeText      string `json:"otypeText"`
	IdentitySource string `json:"identitySource"`

	TagsFR     []string `json:"tags_fr"`
	TagsEN     []string `json:"tags_en"`
	KeywordsFR []string `json:"keywords_fr"`
	KeywordsEN []string `json:"keywords_en"`

	Description  string `json:"description"`
	Alt          string `json:"alt"`
	ContentURL   string `json:"contentUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
	// Absolute forms under the public base URL, empty when none is set.
	ContentURLAbs   string `json:"contentUrlAbs,omitempty"`
	ThumbnailURLAbs string `json:"thumbnailUrlAbs,omitempty"`
	ObjectPage   string `json:"objectPage"`

	CatalogEntry *CatalogFields `json:"catalogEntry,omitempty"`
	Astrometry   *ArtifactRef   `json:"astrometry,omitempty"`
	FinderChart  string         `json:"finderChartUrl,omitempty"`

	Scratch Scratch `json:"-"`
}

// StripScratch clears the pipeline-internal fields before hand-off.
func (r *ImageRecord) StripScratch() {
	r.Scratch = Scratch{}
}

// HasSource reports whether a local FITS file backs the record.
func (r *ImageRecord) HasSource() bool {
	return r.Scratch.FITSPath != ""
}
