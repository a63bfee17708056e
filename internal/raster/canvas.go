// Package raster draws the simple overlays used by astrometry previews and
// finder charts: lines, circles, discs and bitmap-font text on an RGBA image.
package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Canvas is an RGBA image with drawing helpers. Coordinates are pixels with
// the origin at the top left.
type Canvas struct {
	*image.RGBA
}

// New returns a canvas filled with bg.
func New(width, height int, bg color.Color) *Canvas {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	return &Canvas{RGBA: img}
}

// FromImage copies src onto a new canvas, downscaling it so the width does
// not exceed maxWidth. A non-positive maxWidth keeps the original size.
func FromImage(src image.Image, maxWidth int) *Canvas {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxWidth > 0 && w > maxWidth {
		h = int(math.Round(float64(h) * float64(maxWidth) / float64(w)))
		w = maxWidth
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return &Canvas{RGBA: dst}
}

// Width returns the canvas width in pixels.
func (c *Canvas) Width() int { return c.Bounds().Dx() }

// Height returns the canvas height in pixels.
func (c *Canvas) Height() int { return c.Bounds().Dy() }

func (c *Canvas) plot(x, y int, col color.Color) {
	if image.Pt(x, y).In(c.Bounds()) {
		c.Set(x, y, col)
	}
}

// Line draws a one pixel wide segment.
func (c *Canvas) Line(x0, y0, x1, y1 float64, col color.Color) {
	dx, dy := x1-x0, y1-y0
	steps := int(math.Ceil(math.Max(math.Abs(dx), math.Abs(dy))))
	if steps == 0 {
		c.plot(int(math.Round(x0)), int(math.Round(y0)), col)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		c.plot(int(math.Round(x0+dx*t)), int(math.Round(y0+dy*t)), col)
	}
}

// Circle draws a circle outline.
func (c *Canvas) Circle(cx, cy, r float64, col color.Color) {
	if r <= 0 {
		return
	}
	steps := int(math.Max(16, 2*math.Pi*r))
	for i := 0; i < steps; i++ {
		a := 2 * math.Pi * float64(i) / float64(steps)
		c.plot(int(math.Round(cx+r*math.Cos(a))), int(math.Round(cy+r*math.Sin(a))), col)
	}
}

// Disc fills a circle.
func (c *Canvas) Disc(cx, cy, r float64, col color.Color) {
	if r <= 0 {
		return
	}
	r2 := r * r
	for y := int(math.Floor(cy - r)); y <= int(math.Ceil(cy+r)); y++ {
		for x := int(math.Floor(cx - r)); x <= int(math.Ceil(cx+r)); x++ {
			ddx, ddy := float64(x)-cx, float64(y)-cy
			if ddx*ddx+ddy*ddy <= r2 {
				c.plot(x, y, col)
			}
		}
	}
}

// Cross draws a crosshair with arms of length size around (cx, cy), leaving
// a gap in the middle.
func (c *Canvas) Cross(cx, cy, size, gap float64, col color.Color) {
	c.Line(cx-size, cy, cx-gap, cy, col)
	c.Line(cx+gap, cy, cx+size, cy, col)
	c.Line(cx, cy-size, cx, cy-gap, col)
	c.Line(cx, cy+gap, cx, cy+size, col)
}

// Fill paints a rectangle.
func (c *Canvas) Fill(r image.Rectangle, col color.Color) {
	draw.Draw(c.RGBA, r.Intersect(c.Bounds()), image.NewUniform(col), image.Point{}, draw.Over)
}

// Face is the bitmap font used for all text.
var Face font.Face = basicfont.Face7x13

// TextWidth returns the advance of s in pixels.
func TextWidth(s string) int {
	return font.MeasureString(Face, s).Round()
}

// LineHeight is the vertical distance between text baselines.
func LineHeight() int {
	return Face.Metrics().Height.Ceil()
}

// Text draws s with its baseline starting at (x, y).
func (c *Canvas) Text(x, y int, s string, col color.Color) {
	d := &font.Drawer{
		Dst:  c.RGBA,
		Src:  image.NewUniform(col),
		Face: Face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// WritePNG encodes the canvas to path through a temporary file.
func (c *Canvas) WritePNG(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if err := png.Encode(f, c.RGBA); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move PNG: %w", err)
	}
	return nil
}
