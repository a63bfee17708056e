// Package astrometry plate-solves stacked FITS files and keeps the solved
// artifacts in a cache keyed by the source file fingerprint.
package astrometry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/astrogalery/astrogalery/internal/cache"
	"github.com/astrogalery/astrogalery/internal/models"
	"github.com/astrogalery/astrogalery/internal/nova"
)

// Site-relative directories for copied artifacts.
const (
	SolvedDir  = "data/solved"
	PreviewDir = "astrometry"
)

// Entry is one cached solve.
type Entry struct {
	Fingerprint string    `json:"fingerprint"`
	Object      string    `json:"object"`
	UpdatedAt   time.Time `json:"updated_at"`
	WCSPath     string    `json:"wcs_path"`
	PreviewPath string    `json:"preview_path"`
}

// Valid reports whether the entry can be reused for a source with the given
// fingerprint.
func (e Entry) Valid(fingerprint string) bool {
	return e.Fingerprint == fingerprint && cache.Exists(e.WCSPath) && cache.Exists(e.PreviewPath)
}

// Solver is the remote plate-solving workflow.
type Solver interface {
	Upload(ctx context.Context, session, path string, scale *float64) (int, error)
	PollSubmission(ctx context.Context, subID int, interval, timeout time.Duration) (int, error)
	PollJob(ctx context.Context, jobID int, interval, timeout time.Duration) (nova.State, error)
	DownloadWCS(ctx context.Context, jobID int, dest string) error
}

// Renderer draws a preview of the solved field.
type Renderer interface {
	Render(imagePath, wcsPath, dest, title string) error
}

// Status of one solve request.
type Status int

const (
	StatusSolved Status = iota
	StatusCached
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSolved:
		return "solved"
	case StatusCached:
		return "cached"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Request describes one image to solve.
type Request struct {
	Object    string
	Stem      string
	FITSPath  string
	ImagePath string
	Scale     *float64
}

// Outcome is the result of Solve. Ref is set for solved and cached outcomes.
type Outcome struct {
	Status Status
	Reason string
	Ref    *models.ArtifactRef
	// WCSPath is the cached header-only WCS file, for callers that need the
	// solved center.
	WCSPath string
}

// Options configure the orchestrator.
type Options struct {
	CacheDir          string
	OutputDir         string
	PollInterval      time.Duration
	SubmissionTimeout time.Duration
	JobTimeout        time.Duration
}

// Orchestrator drives solves and maintains the artifact cache.
type Orchestrator struct {
	solver   Solver
	renderer Renderer
	store    *cache.Store[Entry]
	opts     Options
	session  string
	login    func() (string, error)

	// RemoteCalls counts uploads started, for run reports.
	RemoteCalls int
}

// New creates an orchestrator. Zero durations take the service defaults.
func New(solver Solver, renderer Renderer, store *cache.Store[Entry], opts Options) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.SubmissionTimeout <= 0 {
		opts.SubmissionTimeout = 10 * time.Minute
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 15 * time.Minute
	}
	return &Orchestrator{
		solver:   solver,
		renderer: renderer,
		store:    store,
		opts:     opts,
	}
}

// SetSession installs the session token obtained at login.
func (o *Orchestrator) SetSession(session string) {
	o.session = session
}

// SetLogin installs the session opener. It runs at most once, on the first
// solve that needs the remote service; its error is kept for later solves.
func (o *Orchestrator) SetLogin(login func() (string, error)) {
	o.login = sync.OnceValues(login)
}

func (o *Orchestrator) sessionToken() (string, error) {
	if o.session == "" && o.login != nil {
		session, err := o.login()
		if err != nil {
			return "", err
		}
		o.session = session
	}
	return o.session, nil
}

// Key derives the cache key of an image.
func Key(object, stem string) string {
	return models.Slugify(object) + "-" + stem
}

// Solve returns the artifacts for req, reusing the cache when the source is
// unchanged. Failures are reported in the Outcome.
func (o *Orchestrator) Solve(ctx context.Context, req Request) Outcome {
	if !cache.Exists(req.FITSPath) {
		return Outcome{Status: StatusSkipped, Reason: "no local FITS file"}
	}

	fp, err := cache.Fingerprint(req.FITSPath)
	if err != nil {
		return Outcome{Status: StatusFailed, Reason: err.Error()}
	}

	key := Key(req.Object, req.Stem)
	entry, ok := o.store.Get(key)
	if ok && entry.Valid(fp) {
		slog.Debug("Reusing cached astrometry", "key", key)
		return o.publish(key, entry, StatusCached)
	}

	wcsPath := filepath.Join(o.opts.CacheDir, key+"-wcs.fits")
	previewPath := filepath.Join(o.opts.CacheDir, key+"-astrometry.png")

	// A matching solve whose preview went missing only needs a re-render.
	if !(ok && entry.Fingerprint == fp && cache.Exists(entry.WCSPath)) {
		session, err := o.sessionToken()
		if err != nil {
			return Outcome{Status: StatusFailed, Reason: fmt.Sprintf("login: %v", err)}
		}
		if session == "" {
			return Outcome{Status: StatusSkipped, Reason: "no nova session"}
		}
		if reason, err := o.solve(ctx, req, wcsPath); err != nil {
			slog.Warn("Plate solve failed", "object", req.Object, "stage", reason, "error", err)
			return Outcome{Status: StatusFailed, Reason: fmt.Sprintf("%s: %v", reason, err)}
		}
	} else {
		wcsPath = entry.WCSPath
	}

	entry = Entry{
		Fingerprint: fp,
		Object:      req.Object,
		UpdatedAt:   time.Now().UTC(),
		WCSPath:     wcsPath,
	}

	if err := o.renderer.Render(req.ImagePath, wcsPath, previewPath, req.Object); err != nil {
		// keep the solve so the next run only re-renders
		o.store.Set(key, entry)
		slog.Warn("Astrometry preview failed", "object", req.Object, "error", err)
		return Outcome{Status: StatusFailed, Reason: fmt.Sprintf("render: %v", err)}
	}
	entry.PreviewPath = previewPath
	o.store.Set(key, entry)

	return o.publish(key, entry, StatusSolved)
}

func (o *Orchestrator) solve(ctx context.Context, req Request, wcsPath string) (string, error) {
	o.RemoteCalls++

	subID, err := o.solver.Upload(ctx, o.session, req.FITSPath, req.Scale)
	if err != nil {
		return "upload", err
	}
	slog.Debug("Uploaded for plate solving", "object", req.Object, "subid", subID)

	jobID, err := o.solver.PollSubmission(ctx, subID, o.opts.PollInterval, o.opts.SubmissionTimeout)
	if err != nil {
		return "submission", err
	}

	state, err := o.solver.PollJob(ctx, jobID, o.opts.PollInterval, o.opts.JobTimeout)
	if err != nil {
		return "job", err
	}
	if state != nova.StateSuccess {
		return "job", fmt.Errorf("job %d ended in %s", jobID, state)
	}

	if err := o.solver.DownloadWCS(ctx, jobID, wcsPath); err != nil {
		return "download", err
	}
	slog.Info("Plate solved", "object", req.Object, "job", jobID)
	return "", nil
}

// publish copies cached artifacts into the output tree.
func (o *Orchestrator) publish(key string, e Entry, status Status) Outcome {
	ref := &models.ArtifactRef{
		Image: filepath.ToSlash(filepath.Join(PreviewDir, key+"-astrometry.png")),
		WCS:   filepath.ToSlash(filepath.Join(SolvedDir, key+"-wcs.fits")),
	}

	if err := cache.CopyFile(e.PreviewPath, filepath.Join(o.opts.OutputDir, filepath.FromSlash(ref.Image))); err != nil {
		return Outcome{Status: StatusFailed, Reason: err.Error()}
	}
	if err := cache.CopyFile(e.WCSPath, filepath.Join(o.opts.OutputDir, filepath.FromSlash(ref.WCS))); err != nil {
		return Outcome{Status: StatusFailed, Reason: err.Error()}
	}
	return Outcome{Status: status, Ref: ref, WCSPath: e.WCSPath}
}

// Persist flushes the artifact index.
func (o *Orchestrator) Persist() error {
	return o.store.Persist()
}
