package gallery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/astrogalery/astrogalery/internal/astrometry"
	"github.com/astrogalery/astrogalery/internal/cache"
	"github.com/astrogalery/astrogalery/internal/catalog"
	"github.com/astrogalery/astrogalery/internal/config"
	"github.com/astrogalery/astrogalery/internal/finder"
	"github.com/astrogalery/astrogalery/internal/identity"
	"github.com/astrogalery/astrogalery/internal/models"
	"github.com/astrogalery/astrogalery/internal/nova"
	"github.com/astrogalery/astrogalery/internal/refdata"
	"github.com/astrogalery/astrogalery/internal/simbad"
)

func fitsHeader(cards ...string) []byte {
	var buf bytes.Buffer
	for _, c := range append(append([]string{"SIMPLE  =                    T"}, cards...), "END") {
		buf.WriteString(fmt.Sprintf("%-80s", c))
	}
	for buf.Len()%2880 != 0 {
		buf.WriteByte(' ')
	}
	return buf.Bytes()
}

type observation struct {
	dir    string
	object string
	date   string
	ra     string
	dec    string
	thumb  bool
}

func writeTree(t *testing.T, root string, obs []observation) {
	t.Helper()
	for _, o := range obs {
		dir := filepath.Join(root, o.dir)
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, o.dir+".jpg"), []byte("jpeg "+o.dir), 0644))
		if o.thumb {
			require.NoError(t, os.WriteFile(filepath.Join(dir, o.dir+"_thn.jpg"), []byte("thumb"), 0644))
		}
		if o.object == "" {
			continue
		}
		cards := []string{
			fmt.Sprintf("OBJECT  = '%s'", o.object),
			fmt.Sprintf("DATE-OBS= '%s'", o.date),
			"TELESCOP= 'Seestar S50'",
			"FOCALLEN=                250.0",
			"XPIXSZ  =                  2.9",
		}
		if o.ra != "" {
			cards = append(cards, "RA      = "+o.ra, "DEC     = "+o.dec)
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, "Stacked_30_"+o.dir+".fit"), fitsHeader(cards...), 0644))
	}
	// sub-frames are never part of the gallery
	sub := filepath.Join(root, "M31_2024", "lights_sub")
	require.NoError(t, os.MkdirAll(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "frame.jpg"), []byte("sub"), 0644))
}

func defaultTree() []observation {
	return []observation{
		{dir: "M31_2024", object: "M 31", date: "2024-01-02T20:00:00", ra: "10.6847", dec: "41.2690", thumb: true},
		{dir: "M31_2023", object: "M 31", date: "2023-10-01T21:30:00", ra: "10.6847", dec: "41.2690"},
		{dir: "NGC7000", object: "NGC 7000", date: "2024-02-01T22:00:00", ra: "314.75", dec: "44.37"},
		{dir: "Jupiter"},
	}
}

type countingResolver struct {
	calls   int
	objects map[string]simbad.Object
	fail    map[string]error
}

func (r *countingResolver) QueryIdentifier(_ context.Context, ident string) (simbad.Object, bool, error) {
	r.calls++
	if err, ok := r.fail[ident]; ok {
		return simbad.Object{}, false, err
	}
	obj, ok := r.objects[ident]
	return obj, ok, nil
}

type fakeAuth struct {
	calls int
	err   error
}

func (a *fakeAuth) Login(context.Context, string) (string, error) {
	a.calls++
	if a.err != nil {
		return "", a.err
	}
	return "session-1", nil
}

type fakeSolver struct {
	uploads int
}

func (f *fakeSolver) Upload(context.Context, string, string, *float64) (int, error) {
	f.uploads++
	return f.uploads, nil
}

func (f *fakeSolver) PollSubmission(_ context.Context, subID int, _, _ time.Duration) (int, error) {
	return subID + 1000, nil
}

func (f *fakeSolver) PollJob(context.Context, int, time.Duration, time.Duration) (nova.State, error) {
	return nova.StateSuccess, nil
}

func (f *fakeSolver) DownloadWCS(_ context.Context, _ int, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return os.WriteFile(dest, fitsHeader("CRVAL1  =              10.6847", "CRVAL2  =              41.2690"), 0644)
}

type fakeRenderer struct{}

func (fakeRenderer) Render(_, _, dest, _ string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("png"), 0644)
}

type fakeRef struct{}

func (fakeRef) Stars(context.Context) (*refdata.Catalog, error) {
	return refdata.NewCatalog([]refdata.Star{
		{HIP: 3881, Name: "Mirach", RA: 17.43, Dec: 35.62, Magnitude: 2.05},
		{HIP: 3092, RA: 9.83, Dec: 30.86, Magnitude: 3.27},
		{HIP: 3693, RA: 11.8, Dec: 41.0, Magnitude: 5.5},
		{HIP: 102098, Name: "Deneb", RA: 310.36, Dec: 45.28, Magnitude: 1.25},
	}), nil
}

func (fakeRef) Lines(context.Context) ([]refdata.Constellation, error) {
	return nil, nil
}

type env struct {
	root, site, cacheDir string
	resolver             *countingResolver
	auth                 *fakeAuth
	solver               *fakeSolver
	opts                 Options
	withCharts           bool
}

func newEnv(t *testing.T) *env {
	t.Helper()
	base := t.TempDir()
	e := &env{
		root:     filepath.Join(base, "captures"),
		site:     filepath.Join(base, "site"),
		cacheDir: filepath.Join(base, "captures", "cache"),
		resolver: &countingResolver{
			objects: map[string]simbad.Object{"M 31": {MainID: "M  31", OType: "G", OTypeText: "Galaxy"}},
			fail:    map[string]error{"NGC 7000": errors.New("connection refused")},
		},
		auth:       &fakeAuth{},
		solver:     &fakeSolver{},
		withCharts: true,
	}
	e.opts = Options{Root: e.root, Output: e.site, Mode: config.ModeLatestPerObject, APIKey: "key"}
	writeTree(t, e.root, defaultTree())

	table := "Désignation;Constellation;Magnitude\nM 31;Andromède;3,4\n"
	require.NoError(t, os.WriteFile(filepath.Join(e.root, "messier.csv"), []byte(table), 0644))
	return e
}

// run builds fresh collaborators over the same cache files, like a new
// process would.
func (e *env) run(t *testing.T) *Result {
	t.Helper()
	table, err := catalog.LoadTable(filepath.Join(e.root, "messier.csv"))
	require.NoError(t, err)

	ids := identity.NewService(e.resolver, cache.Open[identity.Entry](filepath.Join(e.cacheDir, "object_info.json")))
	orch := astrometry.New(e.solver, fakeRenderer{}, cache.Open[astrometry.Entry](filepath.Join(e.cacheDir, "astrometry_index.json")), astrometry.Options{
		CacheDir:  filepath.Join(e.cacheDir, "astrometry"),
		OutputDir: e.site,
	})
	deps := Deps{Identity: ids, Table: table, Auth: e.auth, Astrometry: orch}
	if e.withCharts {
		deps.Charts = finder.New(fakeRef{}, nil, cache.Open[finder.Entry](filepath.Join(e.cacheDir, "finder_index.json")), finder.Options{
			CacheDir:  filepath.Join(e.cacheDir, "finder"),
			OutputDir: e.site,
			Size:      120,
			FOV:       900,
		})
	}

	res, err := New(e.opts, deps).Run(context.Background())
	require.NoError(t, err)
	return res
}

func byName(t *testing.T, res *Result, object string) []*models.ImageRecord {
	t.Helper()
	var out []*models.ImageRecord
	for _, r := range res.Records {
		if r.ObjectName == object {
			out = append(out, r)
		}
	}
	return out
}

func TestRunBuildsRecords(t *testing.T) {
	e := newEnv(t)
	res := e.run(t)

	require.Len(t, res.Records, 4)

	// newest first, undated last
	assert.Equal(t, "NGC7000.jpg", res.Records[0].Name)
	assert.Equal(t, "M31_2024.jpg", res.Records[1].Name)
	assert.Equal(t, "M31_2023.jpg", res.Records[2].Name)
	assert.Equal(t, "Jupiter.jpg", res.Records[3].Name)
	assert.Len(t, res.Objects, 3)

	m31 := res.Records[1]
	assert.Equal(t, "M 31", m31.CatalogID)
	assert.Equal(t, catalog.Messier, m31.Catalog)
	assert.Equal(t, "Galaxy", m31.ObjectType)
	assert.Equal(t, []string{"galaxie"}, m31.TagsFR)
	assert.Equal(t, []string{"galaxy"}, m31.TagsEN)
	assert.Equal(t, "2024-01-02 20:00", m31.DateCreated)
	assert.Equal(t, "gallery/m-31.html", m31.ObjectPage)
	assert.Equal(t, "data/img/m-31-M31_2024.jpg", m31.ContentURL)
	assert.Equal(t, "data/img/m-31-M31_2024_thn.jpg", m31.ThumbnailURL)
	require.NotNil(t, m31.CatalogEntry)
	assert.Equal(t, "Andromède", m31.CatalogEntry.Constellation)
	assert.Contains(t, m31.KeywordsEN, "Seestar S50")
	assert.Contains(t, m31.KeywordsFR, "astrophotographie")
	assert.Contains(t, m31.Description, "galaxie / galaxy")
	assert.FileExists(t, filepath.Join(e.site, "data", "img", "m-31-M31_2024.jpg"))

	jupiter := res.Records[3]
	assert.Equal(t, "Jupiter", jupiter.ObjectName)
	assert.Equal(t, catalog.Other, jupiter.CatalogID)
	assert.Equal(t, "Planet", jupiter.ObjectType)
	assert.Equal(t, identity.SourceLocal, jupiter.IdentitySource)
	assert.Equal(t, "data/img/jupiter-Jupiter.jpg", jupiter.ThumbnailURL)

	for _, r := range res.Records {
		assert.Equal(t, models.Scratch{}, r.Scratch, "scratch stripped for %s", r.Name)
		assert.NotEmpty(t, r.CatalogID)
		assert.NotEmpty(t, r.ObjectType)
	}
}

func TestRunRemoteErrorKeepsCatalogID(t *testing.T) {
	e := newEnv(t)
	res := e.run(t)

	recs := byName(t, res, "NGC 7000")
	require.Len(t, recs, 1)
	ngc := recs[0]
	assert.Equal(t, "NGC 7000", ngc.CatalogID)
	assert.Empty(t, ngc.TagsFR)
	assert.Empty(t, ngc.TagsEN)
	assert.NotNil(t, ngc.TagsEN)
	assert.True(t, strings.HasPrefix(ngc.IdentitySource, identity.SourceErrorPrefix))

	cached := cache.Load[identity.Entry](filepath.Join(e.cacheDir, "object_info.json"))
	entry, ok := cached["NGC 7000"]
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(entry.Source, identity.SourceErrorPrefix))

	rep, ok := res.Report.Image("NGC7000.jpg")
	require.True(t, ok)
	assert.NotEmpty(t, rep.Stages)
}

func TestRunSecondRunIsOffline(t *testing.T) {
	e := newEnv(t)
	first := e.run(t)
	callsAfterFirst := e.resolver.calls
	uploadsAfterFirst := e.solver.uploads
	loginsAfterFirst := e.auth.calls
	assert.Equal(t, 2, callsAfterFirst, "one query per distinct identifier")
	assert.Equal(t, 2, uploadsAfterFirst)
	assert.Equal(t, 1, loginsAfterFirst)

	second := e.run(t)
	assert.Equal(t, callsAfterFirst, e.resolver.calls, "no identity queries on the second run")
	assert.Equal(t, uploadsAfterFirst, e.solver.uploads, "no plate solves on the second run")
	assert.Equal(t, loginsAfterFirst, e.auth.calls, "no login when every solve is cached")
	assert.Equal(t, 0, second.Report.Summary.IdentityRemoteCalls)
	assert.Equal(t, 0, second.Report.Summary.PlateSolveCalls)

	require.Len(t, second.Records, len(first.Records))
	for i := range first.Records {
		a, b := first.Records[i], second.Records[i]
		assert.Equal(t, a.TagsFR, b.TagsFR)
		assert.Equal(t, a.TagsEN, b.TagsEN)
		assert.Equal(t, a.ObjectType, b.ObjectType)
		assert.Equal(t, a.Astrometry, b.Astrometry)
		assert.Equal(t, a.FinderChart, b.FinderChart)
	}
}

func TestRunLatestPerObject(t *testing.T) {
	e := newEnv(t)
	res := e.run(t)
	assert.Equal(t, 2, e.solver.uploads)

	latest := res.Records[1]
	require.NotNil(t, latest.Astrometry)
	assert.Equal(t, "astrometry/m-31-M31_2024-astrometry.png", latest.Astrometry.Image)
	assert.FileExists(t, filepath.Join(e.site, "astrometry", "m-31-M31_2024-astrometry.png"))
	assert.NotEmpty(t, latest.FinderChart)
	assert.FileExists(t, filepath.Join(e.site, filepath.FromSlash(latest.FinderChart)))

	older := res.Records[2]
	assert.Nil(t, older.Astrometry)
	stage, ok := res.Report.Images[2].Stage(StageAstrometry)
	require.True(t, ok)
	assert.Equal(t, StatusSkipped, stage.Status)
	assert.Equal(t, "not selected", stage.Reason)

	jupiter := res.Records[3]
	assert.Nil(t, jupiter.Astrometry)
	assert.Empty(t, jupiter.FinderChart)

	for _, g := range res.Objects {
		if g.Name == "M 31" {
			assert.Equal(t, latest.Astrometry.Image, g.Astrometry)
			assert.Len(t, g.Images, 2)
		}
	}
	assert.Equal(t, 2, res.Report.Summary.AstrometryLinked)
}

func TestRunAllMode(t *testing.T) {
	e := newEnv(t)
	e.opts.Mode = config.ModeAll
	res := e.run(t)

	assert.Equal(t, 3, e.solver.uploads)
	assert.NotNil(t, res.Records[2].Astrometry)
	assert.Equal(t, "astrometry/m-31-M31_2023-astrometry.png", res.Records[2].Astrometry.Image)
	assert.Nil(t, res.Records[3].Astrometry)
}

func TestRunWithoutCredentialSkipsPassTwo(t *testing.T) {
	e := newEnv(t)
	e.opts.APIKey = ""
	res := e.run(t)

	assert.Equal(t, 0, e.auth.calls)
	assert.Equal(t, 0, e.solver.uploads)
	assert.False(t, res.Report.Config.Solving)
	for _, r := range res.Records {
		assert.Nil(t, r.Astrometry)
		assert.Empty(t, r.FinderChart)
	}
	assert.FileExists(t, filepath.Join(e.site, ImagesJSON))
}

func TestRunLoginFailureKeepsBuilding(t *testing.T) {
	e := newEnv(t)
	e.auth.err = errors.New("bad key")
	res := e.run(t)

	assert.Equal(t, 1, e.auth.calls, "a failed login is not retried for every image")
	assert.Equal(t, 0, e.solver.uploads)
	require.Len(t, res.Records, 4)

	latest := res.Records[1]
	assert.Nil(t, latest.Astrometry)
	stage, ok := res.Report.Images[1].Stage(StageAstrometry)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, stage.Status)
	assert.Contains(t, stage.Reason, "login")

	// the header position still places the chart
	assert.NotEmpty(t, latest.FinderChart)
}

func TestRunWritesOutputs(t *testing.T) {
	e := newEnv(t)
	e.opts.Parquet = true
	e.withCharts = false
	res := e.run(t)

	data, err := os.ReadFile(filepath.Join(e.site, ImagesJSON))
	require.NoError(t, err)
	var images []map[string]any
	require.NoError(t, json.Unmarshal(data, &images))
	require.Len(t, images, 4)
	assert.NotContains(t, string(data), "Stacked_30_")
	assert.Equal(t, "NGC 7000", images[0]["catalogId"])

	data, err = os.ReadFile(filepath.Join(e.site, ObjectJSON))
	require.NoError(t, err)
	var groups []ObjectGroup
	require.NoError(t, json.Unmarshal(data, &groups))
	require.Len(t, groups, 3)
	assert.Equal(t, "Jupiter", groups[0].Name)
	assert.Equal(t, res.Objects, groups)

	rows, err := parquet.ReadFile[imageRow](filepath.Join(e.site, ImagesPQ))
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "galaxy", rows[1].TagsEN)

	data, err = os.ReadFile(filepath.Join(e.site, "report.yaml"))
	require.NoError(t, err)
	var rep Report
	require.NoError(t, yaml.Unmarshal(data, &rep))
	assert.Equal(t, 4, rep.Summary.Images)
	assert.Len(t, rep.Images, 4)
	finderStage, ok := rep.Images[0].Stage(StageFinder)
	require.True(t, ok)
	assert.Equal(t, StatusSkipped, finderStage.Status)
}

func TestSelectForSolve(t *testing.T) {
	rec := func(name, date, fits string) *models.ImageRecord {
		return &models.ImageRecord{ObjectName: name, DateCreatedISO: date, Scratch: models.Scratch{FITSPath: fits}}
	}
	newest := rec("M 42", "2024-03-01T00:00:00", "a.fit")
	older := rec("M 42", "2024-01-01T00:00:00", "b.fit")
	noSource := rec("M 45", "2024-02-01T00:00:00", "")
	other := rec("M 45", "2023-02-01T00:00:00", "c.fit")
	records := []*models.ImageRecord{older, newest, noSource, other}

	latest := SelectForSolve(records, config.ModeLatestPerObject)
	assert.Equal(t, []*models.ImageRecord{newest}, latest, "the newest M 45 has no FITS so nothing is solved for it")

	all := SelectForSolve(records, config.ModeAll)
	assert.Equal(t, []*models.ImageRecord{older, newest, other}, all)
}

func TestWriteSummary(t *testing.T) {
	rep := &Report{
		Summary: Summary{Images: 2, Objects: 1, IdentityRemoteCalls: 1},
		Images: []ImageReport{
			{Name: "a.jpg", Stages: []StageResult{{Stage: StageIdentity, Status: StatusOK}}},
			{Name: "b.jpg", Stages: []StageResult{{Stage: StageIdentity, Status: StatusFailed}}},
		},
	}
	var buf bytes.Buffer
	rep.WriteSummary(&buf)
	out := strings.ToLower(buf.String())
	assert.Contains(t, out, "2 image(s), 1 object(s)")
	assert.Contains(t, out, StageIdentity)
	assert.Contains(t, out, "identity 1")
}

func TestRunAbsoluteURLs(t *testing.T) {
	e := newEnv(t)
	e.opts.BaseURL = "https://example.com/seestar/"
	e.opts.SiteTitle = "GNU Astro Galery"
	e.opts.APIKey = ""
	res := e.run(t)

	m31 := res.Records[1]
	assert.Equal(t, "https://example.com/seestar/data/img/m-31-M31_2024.jpg", m31.ContentURLAbs)
	assert.Equal(t, "https://example.com/seestar/data/img/m-31-M31_2024_thn.jpg", m31.ThumbnailURLAbs)

	data, err := os.ReadFile(filepath.Join(e.site, "report.yaml"))
	require.NoError(t, err)
	var rep Report
	require.NoError(t, yaml.Unmarshal(data, &rep))
	assert.Equal(t, "GNU Astro Galery", rep.Config.SiteTitle)

	var buf bytes.Buffer
	res.PrintSummary(&buf)
	assert.Contains(t, strings.ToLower(buf.String()), "gnu astro galery")
}

func TestRunWithoutBaseURL(t *testing.T) {
	e := newEnv(t)
	e.opts.APIKey = ""
	res := e.run(t)
	for _, r := range res.Records {
		assert.Empty(t, r.ContentURLAbs)
		assert.Empty(t, r.ThumbnailURLAbs)
	}
}
