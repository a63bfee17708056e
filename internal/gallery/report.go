package gallery

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// Status of one pipeline stage for one image.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusFailed   Status = "failed"
	StatusSkipped  Status = "skipped"
)

// Stage names used in reports.
const (
	StageHeader     = "header"
	StageIdentity   = "identity"
	StageCatalog    = "catalog"
	StageAstrometry = "astrometry"
	StageFinder     = "finder"
)

// StageResult records what happened to one image in one stage.
type StageResult struct {
	Stage  string `yaml:"stage"`
	Status Status `yaml:"status"`
	Source string `yaml:"source,omitempty"`
	Reason string `yaml:"reason,omitempty"`
}

// ImageReport collects the stage results of one image.
type ImageReport struct {
	Name   string        `yaml:"name"`
	Object string        `yaml:"object"`
	Stages []StageResult `yaml:"stages"`
}

func (r *ImageReport) add(stage string, status Status, source, reason string) {
	r.Stages = append(r.Stages, StageResult{Stage: stage, Status: status, Source: source, Reason: reason})
}

// Stage returns the result recorded for stage.
func (r ImageReport) Stage(stage string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s, true
		}
	}
	return StageResult{}, false
}

// RunConfig is the configuration section of the report.
type RunConfig struct {
	SiteTitle string `yaml:"site_title,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty"`
	Root      string `yaml:"root"`
	Output    string `yaml:"output"`
	Mode      string `yaml:"mode"`
	Solving   bool   `yaml:"solving"`
	Charts    bool   `yaml:"charts"`
	Timestamp string `yaml:"timestamp"`
}

// Summary counts the work done in a run.
type Summary struct {
	Images              int `yaml:"images"`
	Objects             int `yaml:"objects"`
	IdentityRemoteCalls int `yaml:"identity_remote_calls"`
	IdentityCacheHits   int `yaml:"identity_cache_hits"`
	PlateSolveCalls     int `yaml:"plate_solve_calls"`
	AstrometryLinked    int `yaml:"astrometry_linked"`
	ConeSearches        int `yaml:"cone_searches"`
	ChartsLinked        int `yaml:"charts_linked"`
}

// Report is written to report.yaml at the end of a run.
type Report struct {
	Config  RunConfig     `yaml:"config"`
	Summary Summary       `yaml:"summary"`
	Images  []ImageReport `yaml:"images"`
}

// Image returns the report of the image with the given file name.
func (r *Report) Image(name string) (ImageReport, bool) {
	for _, img := range r.Images {
		if img.Name == name {
			return img, true
		}
	}
	return ImageReport{}, false
}

// SaveYAML writes the report into dir.
func (r *Report) SaveYAML(dir string) (string, error) {
	if r.Config.Timestamp == "" {
		r.Config.Timestamp = time.Now().Format("2006-01-02_15-04-05")
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}

	path := filepath.Join(dir, "report.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write YAML file: %w", err)
	}
	return path, nil
}

// WriteSummary prints the per-stage status counts as a table.
func (r *Report) WriteSummary(w io.Writer) {
	stages := []string{StageHeader, StageIdentity, StageCatalog, StageAstrometry, StageFinder}
	counts := make(map[string]map[Status]int, len(stages))
	for _, s := range stages {
		counts[s] = make(map[Status]int)
	}
	for _, img := range r.Images {
		for _, s := range img.Stages {
			if c, ok := counts[s.Stage]; ok {
				c[s.Status]++
			}
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	title := fmt.Sprintf("%d image(s), %d object(s)", r.Summary.Images, r.Summary.Objects)
	if r.Config.SiteTitle != "" {
		title = r.Config.SiteTitle + ": " + title
	}
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Stage", "OK", "Degraded", "Failed", "Skipped"})
	for _, s := range stages {
		c := counts[s]
		t.AppendRow(table.Row{s, c[StatusOK], c[StatusDegraded], c[StatusFailed], c[StatusSkipped]})
	}
	t.AppendFooter(table.Row{"Remote", fmt.Sprintf("identity %d", r.Summary.IdentityRemoteCalls),
		fmt.Sprintf("solves %d", r.Summary.PlateSolveCalls), fmt.Sprintf("cone %d", r.Summary.ConeSearches), ""})
	t.Render()
}
