package finder

import (
	"math"

	"github.com/astrogalery/astrogalery/internal/refdata"
)

// Segment is a constellation line in tangent-plane arcminutes.
type Segment struct {
	X0, Y0, X1, Y1 float64
}

// Figure is the visible part of one constellation.
type Figure struct {
	Abbr     string
	Segments []Segment
	// LabelX and LabelY are valid when HasLabel is set.
	LabelX, LabelY float64
	HasLabel       bool
}

// Figures projects constellation lines around the projection center. A
// segment is kept only when both ends lie within margin arcminutes of the
// center on each axis. The label sits at the mean of the kept endpoints when
// that point is within half arcminutes, the visible half-width.
func Figures(cat *refdata.Catalog, lines []refdata.Constellation, proj Projection, margin, half float64) []Figure {
	inside := func(x, y, limit float64) bool {
		return math.Abs(x) <= limit && math.Abs(y) <= limit
	}
	project := func(hip int) (float64, float64, bool) {
		s, ok := cat.ByHIP(hip)
		if !ok {
			return 0, 0, false
		}
		x, y, ok := proj.Project(s.RA, s.Dec)
		if !ok || !inside(x, y, margin) {
			return 0, 0, false
		}
		return x, y, true
	}

	var out []Figure
	for _, c := range lines {
		fig := Figure{Abbr: c.Abbr}
		var sumX, sumY float64
		for _, seg := range c.Segments {
			x0, y0, ok0 := project(seg[0])
			x1, y1, ok1 := project(seg[1])
			if !ok0 || !ok1 {
				continue
			}
			fig.Segments = append(fig.Segments, Segment{X0: x0, Y0: y0, X1: x1, Y1: y1})
			sumX += x0 + x1
			sumY += y0 + y1
		}
		if len(fig.Segments) == 0 {
			continue
		}

		n := float64(2 * len(fig.Segments))
		fig.LabelX, fig.LabelY = sumX/n, sumY/n
		fig.HasLabel = inside(fig.LabelX, fig.LabelY, half)
		out = append(out, fig)
	}
	return out
}
