package finder

import (
	"math"
	"sort"
	"strings"

	"github.com/astrogalery/astrogalery/internal/catalog"
	"github.com/astrogalery/astrogalery/internal/simbad"
)

// Candidate is an object that may be labeled on the chart. Magnitude is NaN
// when unknown.
type Candidate struct {
	Name      string
	RA, Dec   float64
	Magnitude float64
}

// Label is a placed chart label in pixels.
type Label struct {
	Text string
	X, Y float64
}

type ranked struct {
	Candidate
	designated bool
	distance   float64
}

// MergeCandidates combines cone search results with secondary entries,
// dropping duplicates by name and anything fainter than magLimit. Objects
// without a magnitude are kept only when they carry a catalog designation.
func MergeCandidates(cone []simbad.ConeObject, extra []Candidate, magLimit float64) []Candidate {
	seen := make(map[string]struct{})
	var out []Candidate

	add := func(c Candidate) {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return
		}
		if id, ok := catalog.NormalizeID(c.Name); ok {
			c.Name = id
		}
		key := strings.ToUpper(c.Name)
		if _, dup := seen[key]; dup {
			return
		}
		if math.IsNaN(c.Magnitude) {
			if !catalog.IsDesignated(c.Name) {
				return
			}
		} else if c.Magnitude > magLimit {
			return
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}

	for _, c := range extra {
		add(c)
	}
	for _, o := range cone {
		add(Candidate{Name: o.MainID, RA: o.RA, Dec: o.Dec, Magnitude: o.Magnitude})
	}
	return out
}

// RankCandidates orders candidates for labeling: catalog designations first,
// then brighter first, then closer to the center first.
func RankCandidates(cands []Candidate, ra, dec float64) []Candidate {
	rs := make([]ranked, len(cands))
	for i, c := range cands {
		rs[i] = ranked{
			Candidate:  c,
			designated: catalog.IsDesignated(c.Name),
			distance:   Separation(ra, dec, c.RA, c.Dec),
		}
	}

	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if a.designated != b.designated {
			return a.designated
		}
		ma, mb := magKey(a.Magnitude), magKey(b.Magnitude)
		if ma != mb {
			return ma < mb
		}
		return a.distance < b.distance
	})

	out := make([]Candidate, len(rs))
	for i, r := range rs {
		out[i] = r.Candidate
	}
	return out
}

func magKey(m float64) float64 {
	if math.IsNaN(m) {
		return math.Inf(1)
	}
	return m
}

// PlaceLabels greedily keeps labels in order, skipping any that falls within
// minSep pixels of one already placed, up to maxCount labels.
func PlaceLabels(labels []Label, minSep float64, maxCount int) []Label {
	var placed []Label
	for _, l := range labels {
		if len(placed) >= maxCount {
			break
		}
		free := true
		for _, p := range placed {
			if math.Hypot(l.X-p.X, l.Y-p.Y) < minSep {
				free = false
				break
			}
		}
		if free {
			placed = append(placed, l)
		}
	}
	return placed
}
