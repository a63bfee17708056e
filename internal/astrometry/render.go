package astrometry

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	"github.com/astrogalery/astrogalery/internal/fits"
	"github.com/astrogalery/astrogalery/internal/raster"
)

var (
	overlayColor = color.RGBA{255, 255, 255, 255}
	bandColor    = color.RGBA{0, 0, 0, 170}
)

// ImageRenderer draws the preview from the final JPEG: the image scaled down,
// a field circle, and a caption with the solved center and scale.
type ImageRenderer struct {
	MaxWidth int
}

// Render writes the preview PNG to dest.
func (r ImageRenderer) Render(imagePath, wcsPath, dest, title string) error {
	h, err := fits.ReadHeader(wcsPath)
	if err != nil {
		return fmt.Errorf("failed to read WCS: %w", err)
	}
	ra, dec, ok := h.Center()
	if !ok {
		return fmt.Errorf("WCS header of %s has no CRVAL1/CRVAL2", wcsPath)
	}

	f, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}

	maxWidth := r.MaxWidth
	if maxWidth <= 0 {
		maxWidth = 960
	}
	c := raster.FromImage(src, maxWidth)
	w, hgt := float64(c.Width()), float64(c.Height())

	c.Circle(w/2, hgt/2, math.Min(w, hgt)*0.33, overlayColor)
	c.Cross(w/2, hgt/2, 12, 4, overlayColor)

	lines := []string{title, fmt.Sprintf("RA %.4f  Dec %+.4f", ra, dec)}
	if scale, ok := PixelScale(h); ok {
		lines = append(lines, fmt.Sprintf("%.2f arcsec/px", scale))
	}

	lh := raster.LineHeight()
	band := image.Rect(0, c.Height()-lh*len(lines)-8, c.Width(), c.Height())
	c.Fill(band, bandColor)
	for i, line := range lines {
		c.Text(6, band.Min.Y+4+lh*(i+1)-3, line, overlayColor)
	}

	return c.WritePNG(dest)
}

// PixelScale returns the solved plate scale in arcsec/pixel from the CD
// matrix or CDELT keywords.
func PixelScale(h fits.Header) (float64, bool) {
	if cd11, ok := h.Float("CD1_1"); ok {
		cd21, _ := h.Float("CD2_1")
		return math.Hypot(cd11, cd21) * 3600, true
	}
	if cdelt, ok := h.Float("CDELT1"); ok && cdelt != 0 {
		return math.Abs(cdelt) * 3600, true
	}
	return 0, false
}
