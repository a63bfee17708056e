package finder

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	deg2rad = math.Pi / 180
	rad2deg = 180 / math.Pi
	// arcminutes per radian
	rad2arcmin = rad2deg * 60
)

// UnitVector returns the direction of an equatorial position in degrees.
func UnitVector(ra, dec float64) r3.Vec {
	a, d := ra*deg2rad, dec*deg2rad
	return r3.Vec{
		X: math.Cos(d) * math.Cos(a),
		Y: math.Cos(d) * math.Sin(a),
		Z: math.Sin(d),
	}
}

// Separation returns the angle between two positions in degrees.
func Separation(ra1, dec1, ra2, dec2 float64) float64 {
	u, v := UnitVector(ra1, dec1), UnitVector(ra2, dec2)
	return math.Atan2(r3.Norm(r3.Cross(u, v)), r3.Dot(u, v)) * rad2deg
}

// Projection is a gnomonic projection onto the plane tangent at a center.
// Offsets are in arcminutes, x toward increasing RA and y toward north.
type Projection struct {
	center, east, north r3.Vec
}

// NewProjection centers a projection on (ra, dec) in degrees.
func NewProjection(ra, dec float64) Projection {
	c := UnitVector(ra, dec)
	e := r3.Cross(r3.Vec{Z: 1}, c)
	if r3.Norm(e) < 1e-12 {
		// at a pole every direction is south or north
		e = r3.Vec{Y: 1}
	}
	e = r3.Unit(e)
	return Projection{center: c, east: e, north: r3.Cross(c, e)}
}

// Project maps a position to tangent-plane offsets. It reports false for
// points 90 degrees or more from the center.
func (p Projection) Project(ra, dec float64) (x, y float64, ok bool) {
	v := UnitVector(ra, dec)
	cosc := r3.Dot(v, p.center)
	if cosc <= 1e-9 {
		return 0, 0, false
	}
	x = r3.Dot(v, p.east) / cosc * rad2arcmin
	y = r3.Dot(v, p.north) / cosc * rad2arcmin
	return x, y, true
}

// inBox is the cheap declination and right-ascension window test run before
// the exact separation.
func inBox(ra0, dec0, ra, dec, radius float64) bool {
	if math.Abs(dec-dec0) > radius {
		return false
	}
	if math.Abs(dec0)+radius >= 90 {
		return true
	}
	window := radius / math.Cos((math.Abs(dec0)+radius)*deg2rad)
	dra := math.Abs(math.Mod(ra-ra0+540, 360) - 180)
	return dra <= window
}
