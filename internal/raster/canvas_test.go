package raster

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var white = color.RGBA{255, 255, 255, 255}

func TestFromImageDownscales(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 400, 200))
	c := FromImage(src, 100)
	assert.Equal(t, 100, c.Width())
	assert.Equal(t, 50, c.Height())

	same := FromImage(src, 0)
	assert.Equal(t, 400, same.Width())
}

func TestDrawingStaysInBounds(t *testing.T) {
	c := New(20, 20, color.Black)

	// none of these may panic even when partly outside the canvas
	c.Line(-10, -10, 30, 30, white)
	c.Circle(10, 10, 50, white)
	c.Disc(0, 0, 5, white)
	c.Cross(10, 10, 40, 2, white)
	c.Text(-5, 10, "M 31", white)

	assert.Equal(t, white, c.RGBAAt(5, 5), "diagonal line")
	assert.Equal(t, white, c.RGBAAt(0, 0), "disc at origin")
}

func TestCrossLeavesGap(t *testing.T) {
	c := New(20, 20, color.Black)
	c.Cross(10, 10, 6, 2, white)

	assert.Equal(t, color.RGBA{0, 0, 0, 255}, c.RGBAAt(10, 10))
	assert.Equal(t, white, c.RGBAAt(14, 10))
	assert.Equal(t, white, c.RGBAAt(10, 5))
}

func TestTextMetrics(t *testing.T) {
	assert.Equal(t, 7*4, TextWidth("M 31"))
	assert.Greater(t, LineHeight(), 0)
}

func TestWritePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts", "m-31.png")
	c := New(8, 4, white)
	require.NoError(t, c.WritePNG(path))
	assert.NoFileExists(t, path+".tmp")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 4), img.Bounds())
}
