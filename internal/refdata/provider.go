package refdata

import (
	"context"
	"path"
	"sync"
)

// Default sources for the reference files.
const (
	DefaultStarsURL = "https://raw.githubusercontent.com/astronexus/HYG-Database/main/hyg/CURRENT/hygdata_v41.csv"
	DefaultLinesURL = "https://raw.githubusercontent.com/Stellarium/stellarium/v23.4/skycultures/modern/constellationship.fab"
)

// Sources selects where reference files come from.
type Sources struct {
	StarsURL string
	LinesURL string
	// MaxMagnitude drops fainter stars at load time; 0 keeps all.
	MaxMagnitude float64
}

// Provider loads each reference file at most once per process. It is safe
// for concurrent use.
type Provider struct {
	downloader *Downloader
	sources    Sources

	starsOnce sync.Once
	stars     *Catalog
	starsErr  error

	linesOnce sync.Once
	lines     []Constellation
	linesErr  error
}

// NewProvider creates a provider backed by d.
func NewProvider(d *Downloader, sources Sources) *Provider {
	if sources.StarsURL == "" {
		sources.StarsURL = DefaultStarsURL
	}
	if sources.LinesURL == "" {
		sources.LinesURL = DefaultLinesURL
	}
	return &Provider{downloader: d, sources: sources}
}

// Stars returns the bright-star catalog, downloading it on first use. A
// failed load is remembered and returned on every later call.
func (p *Provider) Stars(ctx context.Context) (*Catalog, error) {
	p.starsOnce.Do(func() {
		file, err := p.downloader.Fetch(ctx, p.sources.StarsURL, path.Base(p.sources.StarsURL))
		if err != nil {
			p.starsErr = err
			return
		}
		stars, err := ReadHYGFile(file, p.sources.MaxMagnitude)
		if err != nil {
			p.starsErr = err
			return
		}
		p.stars = NewCatalog(stars)
	})
	return p.stars, p.starsErr
}

// Lines returns the constellation figures, downloading them on first use.
func (p *Provider) Lines(ctx context.Context) ([]Constellation, error) {
	p.linesOnce.Do(func() {
		file, err := p.downloader.Fetch(ctx, p.sources.LinesURL, path.Base(p.sources.LinesURL))
		if err != nil {
			p.linesErr = err
			return
		}
		p.lines, p.linesErr = ReadFabFile(file)
	})
	return p.lines, p.linesErr
}
