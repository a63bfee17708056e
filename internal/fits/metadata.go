package fits

import (
	"io/fs"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/astrogalery/astrogalery/internal/models"
)

// Placeholders used when a header lacks a keyword.
const (
	UnknownObject     = "Unknown Object"
	UnknownTelescope  = "Unknown Telescope"
	UnknownInstrument = "Unknown Instrument"
	UnknownObserver   = "Unknown Observer"
	NoFilter          = "None"
)

var (
	focalKeys = []string{"FOCALLEN", "FOCAL", "FOCAL_LENGTH", "TELFOCAL"}
	pixelKeys = []string{"XPIXSZ", "PIXSIZE", "PIXELSIZE", "PIX_SIZE", "XPIXELSZ"}
)

// StackedPattern matches the stacked master frame written next to the final
// JPEG, with or without compression.
const StackedPattern = "Stacked*.fit*"

// Extract reads the observation metadata of a FITS file, filling defaults
// for missing keywords.
func Extract(path string) (models.Header, error) {
	h, err := ReadHeader(path)
	if err != nil {
		return models.Header{}, err
	}
	return h.Metadata(), nil
}

// Metadata maps raw keywords to the gallery header.
func (h Header) Metadata() models.Header {
	text := func(key, fallback string) string {
		if v, ok := h.Get(key); ok {
			return v
		}
		return fallback
	}

	out := models.Header{
		Object:     text("OBJECT", UnknownObject),
		DateObs:    text("DATE-OBS", ""),
		Filter:     text("FILTER", NoFilter),
		Telescope:  text("TELESCOP", UnknownTelescope),
		Instrument: text("INSTRUME", UnknownInstrument),
		Observer:   text("OBSERVER", UnknownObserver),
		RA:         text("RA", ""),
		Dec:        text("DEC", ""),
	}
	if v, ok := h.FirstFloat("EXPTIME", "EXPOSURE"); ok {
		out.Exposure = v
	}
	if v, ok := h.FirstFloat(focalKeys...); ok {
		out.FocalLength = v
	}
	if v, ok := h.FirstFloat(pixelKeys...); ok {
		out.PixelSize = v
	}
	return out
}

// EstimateScale returns the plate scale in arcsec/pixel from focal length
// (mm) and pixel size (microns). It reports false when either is missing.
func EstimateScale(h models.Header) (float64, bool) {
	if h.FocalLength <= 0 || h.PixelSize <= 0 {
		return 0, false
	}
	return 206.265 * h.PixelSize / h.FocalLength, true
}

// FindStacked returns the first stacked FITS file under dir in lexical walk
// order, or "" when there is none.
func FindStacked(dir string) string {
	var found string
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(StackedPattern, d.Name()); ok {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	return found
}

var dateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseDate reads a DATE-OBS value. Time zone suffixes are ignored; values
// are taken as UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
		if len(s) > 19 {
			if t, err := time.Parse(layout, s[:19]); err == nil {
				return t, true
			}
		}
	}
	if len(s) >= 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseRA reads a right ascension as decimal degrees or sexagesimal hours
// ("12:30:49.4", "12h30m49s") and returns degrees.
func ParseRA(s string) (float64, bool) {
	v, sexagesimal, ok := parseAngle(s)
	if !ok {
		return 0, false
	}
	if sexagesimal {
		v *= 15
	}
	if v < 0 || v >= 360 {
		return 0, false
	}
	return v, true
}

// ParseDec reads a declination as decimal or sexagesimal degrees.
func ParseDec(s string) (float64, bool) {
	v, _, ok := parseAngle(s)
	if !ok || v < -90 || v > 90 {
		return 0, false
	}
	return v, true
}

func parseAngle(s string) (value float64, sexagesimal, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, false
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, false, !math.IsNaN(v)
	}

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimLeft(s, "+-")
	s = strings.Map(func(r rune) rune {
		switch r {
		case ':', 'h', 'H', 'd', 'D', 'm', 'M', 's', 'S', '°', '\'', '"':
			return ' '
		}
		return r
	}, s)

	parts := strings.Fields(s)
	if len(parts) == 0 || len(parts) > 3 {
		return 0, false, false
	}
	div := 1.0
	for _, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil || f < 0 {
			return 0, false, false
		}
		value += f / div
		div *= 60
	}
	if neg {
		value = -value
	}
	return value, true, true
}
