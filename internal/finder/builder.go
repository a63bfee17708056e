// Package finder draws finder charts: a labeled star field around a target
// with constellation lines and nearby catalog objects.
package finder

import (
	"context"
	"fmt"
	"hash/fnv"
	"image/color"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/astrogalery/astrogalery/internal/cache"
	"github.com/astrogalery/astrogalery/internal/models"
	"github.com/astrogalery/astrogalery/internal/raster"
	"github.com/astrogalery/astrogalery/internal/refdata"
	"github.com/astrogalery/astrogalery/internal/simbad"
)

// ChartDir is the site-relative directory for published charts.
const ChartDir = "finder"

// Entry is one cached chart.
type Entry struct {
	Key  string `json:"key"`
	Path string `json:"path"`
}

// Valid reports whether the cached chart file is still there.
func (e Entry) Valid() bool {
	return cache.Exists(e.Path)
}

// ReferenceData supplies bright stars and constellation figures.
type ReferenceData interface {
	Stars(ctx context.Context) (*refdata.Catalog, error)
	Lines(ctx context.Context) ([]refdata.Constellation, error)
}

// ConeSearcher finds catalog objects around a position.
type ConeSearcher interface {
	ConeSearch(ctx context.Context, raDeg, decDeg, radiusDeg float64, limit int) ([]simbad.ConeObject, error)
}

// Status of one chart request.
type Status int

const (
	StatusRendered Status = iota
	StatusCached
	StatusDegraded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusRendered:
		return "rendered"
	case StatusCached:
		return "cached"
	case StatusDegraded:
		return "degraded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Request describes the chart to draw. Extra lists secondary objects that
// may be labeled alongside cone search results.
type Request struct {
	Title   string
	RA, Dec float64
	Extra   []Candidate
}

// Outcome is the result of Build. Path is the site-relative chart path and
// is set unless the status is failed. Reasons explain degraded and failed
// outcomes.
type Outcome struct {
	Status  Status
	Path    string
	Reasons []string
}

// Options configure the chart layout.
type Options struct {
	CacheDir  string
	OutputDir string
	// Size is the chart width and height in pixels.
	Size int
	// FOV is the chart field in arcminutes.
	FOV float64
	// InnerFOV is the diameter of the marked field in arcminutes.
	InnerFOV     float64
	StarMagLimit float64
	// LabelMagLimit bounds the combined cone and secondary candidates.
	LabelMagLimit   float64
	MaxLabels       int
	LabelSeparation float64
	ConeLimit       int
}

// Builder renders finder charts and keeps the chart index.
type Builder struct {
	ref   ReferenceData
	cone  ConeSearcher
	store *cache.Store[Entry]
	opts  Options

	// ConeCalls counts cone searches sent, for run reports.
	ConeCalls int
}

// New creates a builder. A nil cone searcher draws charts without object
// labels. Zero options take defaults.
func New(ref ReferenceData, cone ConeSearcher, store *cache.Store[Entry], opts Options) *Builder {
	if opts.Size <= 0 {
		opts.Size = 800
	}
	if opts.FOV <= 0 {
		opts.FOV = 300
	}
	if opts.InnerFOV <= 0 {
		opts.InnerFOV = 60
	}
	if opts.StarMagLimit == 0 {
		opts.StarMagLimit = 8
	}
	if opts.LabelMagLimit == 0 {
		opts.LabelMagLimit = 12
	}
	if opts.MaxLabels <= 0 {
		opts.MaxLabels = 12
	}
	if opts.LabelSeparation <= 0 {
		opts.LabelSeparation = 40
	}
	if opts.ConeLimit <= 0 {
		opts.ConeLimit = 200
	}
	return &Builder{ref: ref, cone: cone, store: store, opts: opts}
}

// Key derives the chart cache key.
func (b *Builder) Key(req Request) string {
	return fmt.Sprintf("%s|%.4f|%.4f|%.1f", strings.ToUpper(strings.TrimSpace(req.Title)), req.RA, req.Dec, b.opts.InnerFOV)
}

func fileName(title, key string) string {
	h := fnv.New32a()
	h.Write([]byte(key))
	return fmt.Sprintf("%s-%08x-finder.png", models.Slugify(title), h.Sum32())
}

// Build returns a chart for req, reusing the cached file when present.
// Failures never escape: they are reported in the Outcome.
func (b *Builder) Build(ctx context.Context, req Request) Outcome {
	if math.IsNaN(req.RA) || math.IsNaN(req.Dec) || req.Dec < -90 || req.Dec > 90 {
		return Outcome{Status: StatusFailed, Reasons: []string{"invalid center"}}
	}

	key := b.Key(req)
	name := fileName(req.Title, key)

	if e, ok := b.store.Get(key); ok && e.Valid() {
		slog.Debug("Reusing cached finder chart", "key", key)
		return b.publish(e.Path, name, Outcome{Status: StatusCached})
	}

	chartPath := filepath.Join(b.opts.CacheDir, name)
	reasons, err := b.render(ctx, req, chartPath)
	if err != nil {
		slog.Warn("Finder chart failed", "title", req.Title, "error", err)
		return Outcome{Status: StatusFailed, Reasons: append(reasons, err.Error())}
	}

	b.store.Set(key, Entry{Key: key, Path: chartPath})

	out := Outcome{Status: StatusRendered, Reasons: reasons}
	if len(reasons) > 0 {
		out.Status = StatusDegraded
	}
	return b.publish(chartPath, name, out)
}

func (b *Builder) publish(src, name string, out Outcome) Outcome {
	rel := filepath.ToSlash(filepath.Join(ChartDir, name))
	if err := cache.CopyFile(src, filepath.Join(b.opts.OutputDir, filepath.FromSlash(rel))); err != nil {
		return Outcome{Status: StatusFailed, Reasons: append(out.Reasons, err.Error())}
	}
	out.Path = rel
	return out
}

var (
	skyColor      = color.RGBA{10, 14, 30, 255}
	starColor     = color.RGBA{240, 240, 250, 255}
	lineColor     = color.RGBA{70, 100, 150, 255}
	figLabelColor = color.RGBA{110, 140, 190, 255}
	objectColor   = color.RGBA{255, 210, 90, 255}
	crossColor    = color.RGBA{255, 80, 80, 255}
	fovColor      = color.RGBA{90, 220, 120, 255}
	titleColor    = color.RGBA{255, 255, 255, 255}
)

// render draws the chart. Missing lines or labels degrade the chart and are
// returned as reasons; a chart without stars is an error.
func (b *Builder) render(ctx context.Context, req Request, dest string) ([]string, error) {
	var reasons []string

	stars, err := b.ref.Stars(ctx)
	if err != nil {
		return nil, fmt.Errorf("star catalog: %w", err)
	}

	half := b.opts.FOV / 2
	radius := half * math.Sqrt2 / 60
	selected := SelectStars(stars.Stars, req.RA, req.Dec, radius, b.opts.StarMagLimit)
	if len(selected) == 0 {
		return nil, fmt.Errorf("no stars within %.2f deg", radius)
	}

	proj := NewProjection(req.RA, req.Dec)
	size := float64(b.opts.Size)
	scale := size / b.opts.FOV
	cx, cy := size/2, size/2
	// east is drawn to the left, as on the sky
	toPixel := func(x, y float64) (float64, float64) {
		return cx - x*scale, cy - y*scale
	}

	canvas := raster.New(b.opts.Size, b.opts.Size, skyColor)

	lines, err := b.ref.Lines(ctx)
	if err != nil {
		reasons = append(reasons, fmt.Sprintf("constellation lines: %v", err))
	}
	for _, fig := range Figures(stars, lines, proj, half*1.1, half) {
		for _, s := range fig.Segments {
			x0, y0 := toPixel(s.X0, s.Y0)
			x1, y1 := toPixel(s.X1, s.Y1)
			canvas.Line(x0, y0, x1, y1, lineColor)
		}
		if fig.HasLabel {
			x, y := toPixel(fig.LabelX, fig.LabelY)
			canvas.Text(int(x), int(y), fig.Abbr, figLabelColor)
		}
	}

	for _, s := range selected {
		x, y := toPixel(s.X, s.Y)
		canvas.Disc(x, y, MarkerRadius(s.Magnitude), starColor)
	}

	var cone []simbad.ConeObject
	if b.cone != nil {
		b.ConeCalls++
		cone, err = b.cone.ConeSearch(ctx, req.RA, req.Dec, radius, b.opts.ConeLimit)
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("cone search: %v", err))
		}
	}

	var positioned []Label
	for _, c := range RankCandidates(MergeCandidates(cone, req.Extra, b.opts.LabelMagLimit), req.RA, req.Dec) {
		x, y, ok := proj.Project(c.RA, c.Dec)
		if !ok || math.Abs(x) > half || math.Abs(y) > half {
			continue
		}
		px, py := toPixel(x, y)
		positioned = append(positioned, Label{Text: c.Name, X: px, Y: py})
	}
	for _, l := range PlaceLabels(positioned, b.opts.LabelSeparation, b.opts.MaxLabels) {
		canvas.Circle(l.X, l.Y, 4, objectColor)
		canvas.Text(int(l.X)+6, int(l.Y)-4, l.Text, objectColor)
	}

	canvas.Cross(cx, cy, 18, 5, crossColor)
	canvas.Circle(cx, cy, b.opts.InnerFOV/2*scale, fovColor)

	lh := raster.LineHeight()
	canvas.Text(8, lh+4, req.Title, titleColor)
	canvas.Text(8, 2*lh+6, fmt.Sprintf("RA %.4f  Dec %+.4f  FOV %.0f'", req.RA, req.Dec, b.opts.FOV), figLabelColor)

	if err := canvas.WritePNG(dest); err != nil {
		return reasons, err
	}
	return reasons, nil
}

// Persist flushes the chart index.
func (b *Builder) Persist() error {
	return b.store.Persist()
}
