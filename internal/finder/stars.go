package finder

import (
	"math"

	"github.com/astrogalery/astrogalery/internal/refdata"
)

// Marker radius bounds in pixels.
const (
	minMarker = 0.8
	maxMarker = 6.0
)

// PlotStar is a selected star with its tangent-plane offsets in arcminutes.
type PlotStar struct {
	refdata.Star
	X, Y float64
}

// SelectStars returns the stars within radius degrees of the projection
// center that have a magnitude no fainter than maxMag. Stars without a
// magnitude are dropped.
func SelectStars(stars []refdata.Star, ra, dec, radius, maxMag float64) []PlotStar {
	proj := NewProjection(ra, dec)

	var out []PlotStar
	for _, s := range stars {
		if math.IsNaN(s.Magnitude) || s.Magnitude > maxMag {
			continue
		}
		if !inBox(ra, dec, s.RA, s.Dec, radius) {
			continue
		}
		if Separation(ra, dec, s.RA, s.Dec) > radius {
			continue
		}
		x, y, ok := proj.Project(s.RA, s.Dec)
		if !ok {
			continue
		}
		out = append(out, PlotStar{Star: s, X: x, Y: y})
	}
	return out
}

// MarkerRadius scales a star marker inversely with magnitude.
func MarkerRadius(mag float64) float64 {
	r := 5 - 0.55*(mag+1)
	return math.Max(minMarker, math.Min(maxMarker, r))
}
