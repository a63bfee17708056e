// Package gallery runs the two-pass build: discovery and identity
// enrichment, then plate solving and finder charts, then the data files the
// site templates read.
package gallery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/astrogalery/astrogalery/internal/astrometry"
	"github.com/astrogalery/astrogalery/internal/catalog"
	"github.com/astrogalery/astrogalery/internal/config"
	"github.com/astrogalery/astrogalery/internal/finder"
	"github.com/astrogalery/astrogalery/internal/fits"
	"github.com/astrogalery/astrogalery/internal/identity"
	"github.com/astrogalery/astrogalery/internal/models"
	"github.com/astrogalery/astrogalery/internal/scan"
)

// IdentityResolver resolves object names to tags.
type IdentityResolver interface {
	Resolve(ctx context.Context, name string) identity.Result
	Persist() error
}

// Authenticator opens a plate-solving session.
type Authenticator interface {
	Login(ctx context.Context, apiKey string) (string, error)
}

// Options configure a run.
type Options struct {
	Root    string
	Output  string
	Mode    string
	APIKey  string
	Parquet bool
	// BaseURL is the public site root used for absolute image URLs.
	BaseURL   string
	SiteTitle string
	// Exclude lists directories under Root that discovery must skip.
	Exclude []string
}

// Deps are the collaborators of a run. Auth, Astrometry and Charts may be
// nil to disable the matching pass 2 stage.
type Deps struct {
	Identity   IdentityResolver
	Table      *catalog.Table
	Auth       Authenticator
	Astrometry *astrometry.Orchestrator
	Charts     *finder.Builder
}

// Pipeline owns the records of one run.
type Pipeline struct {
	opts       Options
	identity   IdentityResolver
	table      *catalog.Table
	auth       Authenticator
	astrometry *astrometry.Orchestrator
	charts     *finder.Builder

	report *Report
}

// New creates a pipeline.
func New(opts Options, deps Deps) *Pipeline {
	if opts.Mode == "" {
		opts.Mode = config.ModeLatestPerObject
	}
	return &Pipeline{
		opts:       opts,
		identity:   deps.Identity,
		table:      deps.Table,
		auth:       deps.Auth,
		astrometry: deps.Astrometry,
		charts:     deps.Charts,
	}
}

// Result is what a run hands to the site templates.
type Result struct {
	Records []*models.ImageRecord
	Objects []ObjectGroup
	Report  *Report
}

// Run builds the gallery data. Per-image problems are recorded in the
// report; only an unusable output directory or root stops the run.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if err := os.MkdirAll(filepath.Join(p.opts.Output, ImageDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	p.report = &Report{Config: RunConfig{
		SiteTitle: p.opts.SiteTitle,
		BaseURL:   p.opts.BaseURL,
		Root:      p.opts.Root,
		Output:    p.opts.Output,
		Mode:      p.opts.Mode,
		Charts:    p.charts != nil,
	}}

	candidates, err := scan.Discover(p.opts.Root, scan.Options{
		Exclude: append([]string{p.opts.Output}, p.opts.Exclude...),
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		slog.Info("No final images found", "root", p.opts.Root)
	}

	// pass 1
	reports := make(map[*models.ImageRecord]*ImageReport, len(candidates))
	var records []*models.ImageRecord
	for i, c := range candidates {
		rep := &ImageReport{Name: filepath.Base(c.JPGPath)}
		rec, err := p.buildRecord(ctx, c, rep)
		if err != nil {
			slog.Warn("Skipping image", "path", c.JPGPath, "error", err)
			continue
		}
		slog.Debug("Scanned image", "progress", fmt.Sprintf("%d/%d", i+1, len(candidates)), "object", rec.ObjectName)
		records = append(records, rec)
		reports[rec] = rep
	}

	if err := p.identity.Persist(); err != nil {
		slog.Warn("Failed to save identity cache", "error", err)
	}
	slog.Info("Tags resolved", "images", len(records))

	sortByDate(records)

	// pass 2
	solving := p.openSession(ctx)
	p.report.Config.Solving = solving
	if solving {
		p.enrich(ctx, records, reports)
	} else {
		for _, rec := range records {
			reports[rec].add(StageAstrometry, StatusSkipped, "", "plate solving disabled")
			reports[rec].add(StageFinder, StatusSkipped, "", "plate solving disabled")
		}
	}

	for _, rec := range records {
		rec.StripScratch()
	}

	groups := GroupByObject(records)
	p.report.Summary.Images = len(records)
	p.report.Summary.Objects = len(groups)
	for _, rec := range records {
		p.report.Images = append(p.report.Images, *reports[rec])
		if rec.Astrometry != nil {
			p.report.Summary.AstrometryLinked++
		}
		if rec.FinderChart != "" {
			p.report.Summary.ChartsLinked++
		}
	}
	if p.astrometry != nil {
		p.report.Summary.PlateSolveCalls = p.astrometry.RemoteCalls
	}
	if p.charts != nil {
		p.report.Summary.ConeSearches = p.charts.ConeCalls
	}

	if err := p.writeOutputs(records, groups); err != nil {
		return nil, err
	}
	return &Result{Records: records, Objects: groups, Report: p.report}, nil
}

// openSession arms a lazy login: the plate-solve service is only contacted
// when a solve misses the cache. Without a credential the whole pass 2 is
// disabled.
func (p *Pipeline) openSession(ctx context.Context) bool {
	if p.astrometry == nil || p.auth == nil {
		return false
	}
	if p.opts.APIKey == "" {
		slog.Info("No nova credential, skipping astrometry", "env", config.CredentialEnv)
		return false
	}
	p.astrometry.SetLogin(func() (string, error) {
		session, err := p.auth.Login(ctx, p.opts.APIKey)
		if err != nil {
			slog.Warn("Nova login failed, new solves are skipped", "error", err)
			return "", err
		}
		slog.Info("Nova session open")
		return session, nil
	})
	return true
}

func (p *Pipeline) enrich(ctx context.Context, records []*models.ImageRecord, reports map[*models.ImageRecord]*ImageReport) {
	selected := SelectForSolve(records, p.opts.Mode)
	slog.Info("Astrometry", "mode", p.opts.Mode, "solves", len(selected))

	chosen := make(map[*models.ImageRecord]bool, len(selected))
	for _, rec := range selected {
		chosen[rec] = true
	}

	for i, rec := range records {
		rep := reports[rec]
		if !chosen[rec] {
			rep.add(StageAstrometry, StatusSkipped, "", "not selected")
			rep.add(StageFinder, StatusSkipped, "", "not selected")
			continue
		}
		slog.Debug("Astrometry", "progress", fmt.Sprintf("%d/%d", i+1, len(records)), "object", rec.ObjectName)

		wcsPath := p.solve(ctx, rec, rep)
		p.chart(ctx, rec, rep, wcsPath, records)
	}

	if err := p.astrometry.Persist(); err != nil {
		slog.Warn("Failed to save astrometry index", "error", err)
	}
	if p.charts != nil {
		if err := p.charts.Persist(); err != nil {
			slog.Warn("Failed to save chart index", "error", err)
		}
	}
}

func (p *Pipeline) solve(ctx context.Context, rec *models.ImageRecord, rep *ImageReport) string {
	req := astrometry.Request{
		Object:    rec.ObjectName,
		Stem:      rec.Scratch.JPGStem,
		FITSPath:  rec.Scratch.FITSPath,
		ImagePath: rec.Scratch.JPGPath,
	}
	if scale, ok := fits.EstimateScale(rec.Header); ok {
		req.Scale = &scale
	}

	out := p.astrometry.Solve(ctx, req)
	switch out.Status {
	case astrometry.StatusSolved, astrometry.StatusCached:
		rec.Astrometry = out.Ref
		rep.add(StageAstrometry, StatusOK, out.Status.String(), "")
		slog.Info("Astrometry linked", "object", rec.ObjectName, "status", out.Status)
	case astrometry.StatusSkipped:
		rep.add(StageAstrometry, StatusSkipped, "", out.Reason)
	default:
		rep.add(StageAstrometry, StatusFailed, "", out.Reason)
	}
	return out.WCSPath
}

// chartCenter prefers the solved center and falls back to the header.
func chartCenter(rec *models.ImageRecord, wcsPath string) (ra, dec float64, ok bool) {
	if wcsPath != "" {
		if h, err := fits.ReadHeader(wcsPath); err == nil {
			if ra, dec, ok := h.Center(); ok {
				return ra, dec, true
			}
		}
	}
	return headerCenter(rec.Header)
}

func headerCenter(h models.Header) (ra, dec float64, ok bool) {
	ra, okRA := fits.ParseRA(h.RA)
	dec, okDec := fits.ParseDec(h.Dec)
	return ra, dec, okRA && okDec
}

func (p *Pipeline) chart(ctx context.Context, rec *models.ImageRecord, rep *ImageReport, wcsPath string, all []*models.ImageRecord) {
	if p.charts == nil {
		rep.add(StageFinder, StatusSkipped, "", "finder charts disabled")
		return
	}
	ra, dec, ok := chartCenter(rec, wcsPath)
	if !ok {
		rep.add(StageFinder, StatusSkipped, "", "no sky position")
		return
	}

	out := p.charts.Build(ctx, finder.Request{
		Title: rec.ObjectName,
		RA:    ra,
		Dec:   dec,
		Extra: secondaryObjects(rec, all),
	})
	reason := strings.Join(out.Reasons, "; ")
	switch out.Status {
	case finder.StatusRendered, finder.StatusCached:
		rec.FinderChart = out.Path
		rep.add(StageFinder, StatusOK, out.Status.String(), "")
	case finder.StatusDegraded:
		rec.FinderChart = out.Path
		rep.add(StageFinder, StatusDegraded, "", reason)
	default:
		rep.add(StageFinder, StatusFailed, "", reason)
	}
}

// secondaryObjects offers the other objects of this run as chart labels.
func secondaryObjects(self *models.ImageRecord, all []*models.ImageRecord) []finder.Candidate {
	seen := map[string]bool{strings.ToUpper(self.ObjectName): true}
	var out []finder.Candidate
	for _, rec := range all {
		key := strings.ToUpper(rec.ObjectName)
		if seen[key] {
			continue
		}
		ra, dec, ok := headerCenter(rec.Header)
		if !ok {
			continue
		}
		seen[key] = true

		mag := math.NaN()
		if rec.CatalogEntry != nil && rec.CatalogEntry.Magnitude != nil {
			mag = *rec.CatalogEntry.Magnitude
		}
		out = append(out, finder.Candidate{Name: rec.ObjectName, RA: ra, Dec: dec, Magnitude: mag})
	}
	return out
}

func (p *Pipeline) countIdentity(o identity.Outcome) {
	switch {
	case o.Remote():
		p.report.Summary.IdentityRemoteCalls++
	case o == identity.OutcomeCacheHit:
		p.report.Summary.IdentityCacheHits++
	}
}

// sortByDate orders records newest first. Undated records go last.
func sortByDate(records []*models.ImageRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].DateCreatedISO > records[j].DateCreatedISO
	})
}

// SelectForSolve picks the records pass 2 works on. In latest_per_object
// mode only the most recent image of each object is kept, and only if it
// has a FITS source; in all mode every record with a source is kept.
func SelectForSolve(records []*models.ImageRecord, mode string) []*models.ImageRecord {
	var out []*models.ImageRecord
	if mode == config.ModeAll {
		for _, rec := range records {
			if rec.HasSource() {
				out = append(out, rec)
			}
		}
		return out
	}

	latest := make(map[string]*models.ImageRecord)
	var order []string
	for _, rec := range records {
		cur, ok := latest[rec.ObjectName]
		if !ok {
			order = append(order, rec.ObjectName)
		}
		if !ok || rec.DateCreatedISO > cur.DateCreatedISO {
			latest[rec.ObjectName] = rec
		}
	}
	for _, name := range order {
		if rec := latest[name]; rec.HasSource() {
			out = append(out, rec)
		}
	}
	return out
}

// PrintSummary writes the run table.
func (r *Result) PrintSummary(w io.Writer) {
	r.Report.WriteSummary(w)
}
